package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Palette for generated frames. Fixed values keep rendering deterministic
// across runs so identical jobs produce byte-identical frames.
var (
	gradientTop    = color.RGBA{R: 0x10, G: 0x18, B: 0x38, A: 0xFF}
	gradientBottom = color.RGBA{R: 0x40, G: 0x1C, B: 0x58, A: 0xFF}
	titleColor     = color.RGBA{R: 0xF5, G: 0xF5, B: 0xF0, A: 0xFF}
	counterColor   = color.RGBA{R: 0xC8, G: 0xC8, B: 0xD4, A: 0xFF}
	barTrackColor  = color.RGBA{R: 0x20, G: 0x20, B: 0x30, A: 0xFF}
	barFillColor   = color.RGBA{R: 0xE8, G: 0xA8, B: 0x28, A: 0xFF}
)

const (
	titleScale     = 4
	barHeight      = 8
	counterMarginX = 12
	counterMarginY = 10
)

// FrameSpec describes a single frame of a concept's run. GlobalIndex drives
// the gradient phase, Progress (0..1 within the concept) drives the title
// slide, and GlobalIndex/GlobalTotal drive the bottom progress bar.
type FrameSpec struct {
	Title        string
	ConceptIndex int
	ConceptCount int
	Progress     float64
	GlobalIndex  int
	GlobalTotal  int
}

// Renderer draws presentation frames at a fixed size.
type Renderer struct {
	width  int
	height int
	face   font.Face
}

// New constructs a renderer for the given frame dimensions.
func New(width, height int) *Renderer {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	return &Renderer{width: width, height: height, face: basicfont.Face7x13}
}

// Frame allocates and draws a single frame.
func (r *Renderer) Frame(spec FrameSpec) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	r.Draw(dst, spec)
	return dst
}

// Draw renders spec into dst, which must match the renderer dimensions.
func (r *Renderer) Draw(dst *image.RGBA, spec FrameSpec) {
	r.drawGradient(dst, spec.GlobalIndex)
	r.drawTitle(dst, spec.Title, spec.Progress)
	r.drawCounter(dst, spec.ConceptIndex, spec.ConceptCount)
	r.drawProgressBar(dst, spec.GlobalIndex, spec.GlobalTotal)
}

// drawGradient fills dst with a vertical two-stop gradient whose phase
// advances with the global frame index, producing a slow upward drift when
// frames play back in sequence. The triangle mapping avoids a hard seam at
// the wrap point.
func (r *Renderer) drawGradient(dst *image.RGBA, globalIndex int) {
	if globalIndex < 0 {
		globalIndex = 0
	}
	shift := globalIndex % r.height
	for y := 0; y < r.height; y++ {
		pos := float64((y+shift)%r.height) / float64(r.height)
		t := pos * 2
		if t > 1 {
			t = 2 - t
		}
		c := lerpColor(gradientTop, gradientBottom, t)
		rowStart := dst.PixOffset(0, y)
		for x := 0; x < r.width; x++ {
			i := rowStart + x*4
			dst.Pix[i] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xFF
		}
	}
}

// drawTitle slides the concept title across the frame: just off the right
// edge at progress 0, centered mid-run, gone past the left edge at 1.
func (r *Renderer) drawTitle(dst *image.RGBA, title string, progress float64) {
	if title == "" {
		return
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	titleImg := r.renderScaledText(title, titleScale, titleColor)
	bounds := titleImg.Bounds()
	travel := float64(r.width + bounds.Dx())
	x := r.width - int(progress*travel)
	y := (r.height - bounds.Dy()) / 2

	target := image.Rect(x, y, x+bounds.Dx(), y+bounds.Dy())
	xdraw.Draw(dst, target, titleImg, bounds.Min, xdraw.Over)
}

func (r *Renderer) drawCounter(dst *image.RGBA, index, total int) {
	if total <= 0 {
		return
	}
	label := fmt.Sprintf("concept %d/%d", index, total)
	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(counterColor),
		Face: r.face,
		Dot:  fixed.P(counterMarginX, counterMarginY+r.face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(label)
}

// drawProgressBar fills the bottom strip proportionally to overall frame
// position so viewers can see how far through the video they are.
func (r *Renderer) drawProgressBar(dst *image.RGBA, globalIndex, globalTotal int) {
	top := r.height - barHeight
	fillWidth := 0
	if globalTotal > 1 {
		fraction := float64(globalIndex) / float64(globalTotal-1)
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		fillWidth = int(fraction * float64(r.width))
	}
	for y := top; y < r.height; y++ {
		rowStart := dst.PixOffset(0, y)
		for x := 0; x < r.width; x++ {
			c := barTrackColor
			if x < fillWidth {
				c = barFillColor
			}
			i := rowStart + x*4
			dst.Pix[i] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xFF
		}
	}
}

// renderScaledText rasterizes text with the bitmap face and scales it up with
// nearest-neighbour so titles stay crisp-edged rather than blurry.
func (r *Renderer) renderScaledText(text string, scale int, col color.RGBA) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	width := font.MeasureString(r.face, text).Ceil()
	if width <= 0 {
		width = 1
	}
	metrics := r.face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()
	if height <= 0 {
		height = 13
	}

	small := image.NewRGBA(image.Rect(0, 0, width, height))
	drawer := font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(col),
		Face: r.face,
		Dot:  fixed.P(0, metrics.Ascent.Ceil()),
	}
	drawer.DrawString(text)

	scaled := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), small, small.Bounds(), xdraw.Over, nil)
	return scaled
}

// WritePNG encodes img to path, creating parent directories as needed.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create frame dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	defer f.Close()
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(f, img); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: lerpByte(a.R, b.R, t),
		G: lerpByte(a.G, b.G, t),
		B: lerpByte(a.B, b.B, t),
		A: 0xFF,
	}
}

func lerpByte(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}
