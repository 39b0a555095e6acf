package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// A4 at 144 DPI, the resolution of a 2x raster of the PDF page.
const (
	canvasW  = 1190
	canvasH  = 1684
	pxScale  = 1.5 // CSS px (96 DPI) to canvas px
	marginPx = 113 // 2cm
	padPx    = 40
)

var parseFonts = sync.OnceValues(func() (*[2]*opentype.Font, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &[2]*opentype.Font{regular, bold}, nil
})

func newFace(f *opentype.Font, sizePx float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{Size: sizePx, DPI: 72, Hinting: font.HintingFull})
}

func renderPNG(title, content string) ([]byte, error) {
	fonts, err := parseFonts()
	if err != nil {
		return nil, err
	}
	bodyPx := bodyFontPx(title, content) * pxScale
	titleFace, err := newFace(fonts[1], bodyPx*1.5)
	if err != nil {
		return nil, err
	}
	defer titleFace.Close()
	bodyFace, err := newFace(fonts[0], bodyPx)
	if err != nil {
		return nil, err
	}
	defer bodyFace.Close()
	footFace, err := newFace(fonts[0], 10*pxScale)
	if err != nil {
		return nil, err
	}
	defer footFace.Close()

	img := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	textW := canvasW - 2*marginPx

	// Header band with a diagonal gradient.
	titleLines := wrapText(titleFace, title, textW)
	titleLineH := lineStep(titleFace, 1.3)
	bandH := max(len(titleLines), 1)*titleLineH + 2*padPx
	for y := 0; y < bandH; y++ {
		for x := 0; x < canvasW; x++ {
			c := bandStart.lerp(bandEnd, float64(x+y)/float64(canvasW+bandH))
			img.SetRGBA(x, y, color.RGBA{c.r, c.g, c.b, 0xff})
		}
	}
	y := padPx
	for _, line := range titleLines {
		w := font.MeasureString(titleFace, line).Ceil()
		drawLine(img, titleFace, color.White, (canvasW-w)/2, y, line)
		y += titleLineH
	}

	// Body, clipped to the first page above the footer.
	footerTop := canvasH - marginPx/2 - lineStep(footFace, 1)
	bodyStep := lineStep(bodyFace, lineHeight)
	y = bandH + bodyStep
	lines := wrapText(bodyFace, content, textW)
	for i, line := range lines {
		if y+bodyStep > footerTop {
			break
		}
		if i+1 < len(lines) && y+2*bodyStep > footerTop {
			line = strings.TrimRight(line, " ") + "…"
		}
		drawLine(img, bodyFace, color.RGBA{bodyColor.r, bodyColor.g, bodyColor.b, 0xff}, marginPx, y, line)
		y += bodyStep
	}

	fw := font.MeasureString(footFace, Footer).Ceil()
	drawLine(img, footFace, color.RGBA{footColor.r, footColor.g, footColor.b, 0xff}, (canvasW-fw)/2, footerTop, Footer)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawLine draws s with its line box top at y.
func drawLine(dst draw.Image, face font.Face, c color.Color, x, y int, s string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

func lineStep(face font.Face, factor float64) int {
	return int(float64(face.Metrics().Height.Ceil()) * factor)
}

// wrapText greedily breaks s into lines no wider than maxW pixels.
// Explicit newlines start a new line; over-long words are split by rune.
func wrapText(face font.Face, s string, maxW int) []string {
	limit := fixed.I(maxW)
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		cur := ""
		for _, w := range words {
			candidate := w
			if cur != "" {
				candidate = cur + " " + w
			}
			if font.MeasureString(face, candidate) <= limit {
				cur = candidate
				continue
			}
			if cur != "" {
				lines = append(lines, cur)
			}
			cur = ""
			for _, r := range w {
				next := cur + string(r)
				if cur != "" && font.MeasureString(face, next) > limit {
					lines = append(lines, cur)
					next = string(r)
				}
				cur = next
			}
		}
		lines = append(lines, cur)
	}
	return lines
}
