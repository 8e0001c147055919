package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"loom/internal/queue"
	"loom/internal/services"
)

// MaxFileSizeBytes caps the size of a single source document.
const MaxFileSizeBytes = 100 << 20

var extractors = map[string]func(string) (string, error){
	".txt":  extractPlain,
	".md":   extractPlain,
	".html": extractHTML,
	".htm":  extractHTML,
	".docx": extractDOCX,
	".pdf":  extractPDF,
}

// SupportedExtensions lists the document extensions ingest accepts, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Ingest extracts text from every path and returns one SourceText per
// document, in input order. Any unreadable, oversized, unsupported, or empty
// document rejects the whole submission.
func Ingest(paths []string) ([]queue.SourceText, error) {
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrValidation, "ingest", "read", "at least one source document is required", nil)
	}

	sources := make([]queue.SourceText, 0, len(paths))
	for _, path := range paths {
		source, err := File(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, nil
}

// File extracts text from a single document.
func File(path string) (queue.SourceText, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return queue.SourceText{}, services.Wrap(services.ErrValidation, "ingest", "read", "source path is empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		return queue.SourceText{}, services.Wrap(services.ErrValidation, "ingest", "read", fmt.Sprintf("cannot read %s", path), err)
	}
	if info.IsDir() {
		return queue.SourceText{}, services.Wrap(services.ErrValidation, "ingest", "read", fmt.Sprintf("%s is a directory", path), nil)
	}
	if info.Size() > MaxFileSizeBytes {
		return queue.SourceText{}, services.Wrap(services.ErrValidation, "ingest", "read",
			fmt.Sprintf("%s exceeds the %d MB size limit", path, MaxFileSizeBytes>>20), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	extract, ok := extractors[ext]
	if !ok {
		return queue.SourceText{}, services.Wrap(services.ErrValidation, "ingest", "read",
			fmt.Sprintf("unsupported document type %q (supported: %s)", ext, strings.Join(SupportedExtensions(), ", ")), nil)
	}

	text, err := extract(path)
	if err != nil {
		return queue.SourceText{}, services.Wrap(services.ErrValidation, "ingest", "extract", fmt.Sprintf("extract text from %s", path), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return queue.SourceText{}, services.Wrap(services.ErrValidation, "ingest", "extract", fmt.Sprintf("%s contains no extractable text", path), nil)
	}

	return queue.SourceText{Name: filepath.Base(path), Content: text}, nil
}

func extractPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func extractHTML(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var lines []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, pre, blockquote").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		return strings.TrimSpace(root.Text()), nil
	}
	return strings.Join(lines, "\n"), nil
}

// extractDOCX pulls paragraph text out of the word/document.xml entry. Only
// w:t runs carry visible text; paragraph and line-break elements become
// newlines.
func extractDOCX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer archive.Close()

	var document *zip.File
	for _, entry := range archive.File {
		if entry.Name == "word/document.xml" {
			document = entry
			break
		}
	}
	if document == nil {
		return "", fmt.Errorf("word/document.xml missing from archive")
	}

	reader, err := document.Open()
	if err != nil {
		return "", err
	}
	defer reader.Close()

	return docxText(reader)
}

func docxText(reader io.Reader) (string, error) {
	decoder := xml.NewDecoder(reader)
	var buf bytes.Buffer
	inRun := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch element := token.(type) {
		case xml.StartElement:
			switch element.Name.Local {
			case "t":
				inRun = true
			case "br", "cr":
				buf.WriteByte('\n')
			case "tab":
				buf.WriteByte('\t')
			}
		case xml.EndElement:
			switch element.Name.Local {
			case "t":
				inRun = false
			case "p":
				buf.WriteByte('\n')
			}
		case xml.CharData:
			if inRun {
				buf.Write(element)
			}
		}
	}
	return buf.String(), nil
}

func extractPDF(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", err
	}
	return buf.String(), nil
}
