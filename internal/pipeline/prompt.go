package pipeline

import (
	"regexp"
	"strings"
)

var listMarkerPattern = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)

// excerpt returns the leading portion of text bounded to limit runes, cutting
// back to the last word boundary so prompts never end mid-word.
func excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

// bulletList renders items one per line with "- " prefixes for prompt bodies.
func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// stripListMarker removes a leading bullet or numbering marker from one line.
func stripListMarker(line string) string {
	return strings.TrimSpace(listMarkerPattern.ReplaceAllString(line, ""))
}

// cleanGeneratedLines normalizes model-produced list items: markers stripped,
// whitespace collapsed, length capped, empties and case-insensitive duplicates
// dropped. Order is preserved.
func cleanGeneratedLines(items []string, limit int) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		cleaned := stripListMarker(item)
		cleaned = strings.Join(strings.Fields(cleaned), " ")
		if cleaned == "" {
			continue
		}
		if limit > 0 {
			cleaned = excerpt(cleaned, limit)
		}
		key := strings.ToLower(cleaned)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}

// splitSentences splits prose into trimmed sentences on terminal punctuation.
// Used to pad short model output from source material.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
