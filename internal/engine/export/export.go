// Package export renders one excerpt as a PDF document or a PNG image.
// Output depends only on (title, content, format): no clock, no randomness.
package export

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

// Footer is printed at the bottom of every page and image.
const Footer = "Generated by Transcribai • YouTube Excerpt Generator"

const (
	filenameMaxRunes = 30
	defaultFilename  = "excerpt"
)

// Template colors.
var (
	bandStart = rgb{0x66, 0x7e, 0xea}
	bandEnd   = rgb{0x76, 0x4b, 0xa2}
	bodyColor = rgb{0x33, 0x33, 0x33}
	footColor = rgb{0x88, 0x88, 0x88}
)

type rgb struct{ r, g, b uint8 }

func (c rgb) lerp(to rgb, t float64) rgb {
	mix := func(a, b uint8) uint8 { return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t)) }
	return rgb{mix(c.r, to.r), mix(c.g, to.g), mix(c.b, to.b)}
}

// Renderer is stateless; fonts and encoders are built per call.
type Renderer struct{}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer { return &Renderer{} }

// Render encodes the excerpt. Arbitrary text is accepted; only encoder
// faults produce an EncodingFailure.
func (r *Renderer) Render(title, content string, format engine.ExportFormat) (art engine.ExportArtifact, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &engine.RenderError{Kind: engine.KindEncodingFailure, Format: format, Err: fmt.Errorf("panic: %v", p)}
		}
		if err != nil {
			engine.IncrRenderErrors()
			slog.Error("export: render failed", slog.String("format", string(format)), slog.Any("error", err))
			return
		}
		engine.IncrRender(format)
	}()

	var data []byte
	switch format {
	case engine.FormatPDF:
		data, err = renderPDF(title, content)
		art.ContentType = engine.ContentTypePDF
	case engine.FormatImage:
		data, err = renderPNG(title, content)
		art.ContentType = engine.ContentTypePNG
	default:
		return engine.ExportArtifact{}, &engine.RenderError{
			Kind: engine.KindInvalidInput, Format: format,
			Err: fmt.Errorf("unknown format %q (want pdf or image)", format),
		}
	}
	if err != nil {
		return engine.ExportArtifact{}, &engine.RenderError{Kind: engine.KindEncodingFailure, Format: format, Err: err}
	}
	art.Data = data
	art.Filename = Filename(title, format)
	return art, nil
}

// Filename derives the download name from the first 30 runes of the title.
func Filename(title string, format engine.ExportFormat) string {
	ext := ".pdf"
	if format == engine.FormatImage {
		ext = ".png"
	}
	base := engine.TruncateRunes(strings.TrimSpace(title), filenameMaxRunes, "")
	var sb strings.Builder
	for _, r := range base {
		switch {
		case r == ' ':
			sb.WriteByte('_')
		case r == '_' || r == '-' || r == '.':
			sb.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		}
	}
	name := strings.Trim(sb.String(), ".")
	if strings.Trim(name, "_-") == "" {
		name = defaultFilename
	}
	return name + ext
}

// bodyFontPx scales the body text down as the excerpt grows, clamped to [8, 36] CSS px.
func bodyFontPx(title, content string) float64 {
	chars := len([]rune(title)) + len([]rune(content))
	return math.Min(math.Max(math.Sqrt(620000/float64(max(chars, 1))), 8), 36)
}
