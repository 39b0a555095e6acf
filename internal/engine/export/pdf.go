package export

import (
	"bytes"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// A4 page with 2cm margins; sizes in mm unless noted.
const (
	pageMargin   = 20.0
	bandPadding  = 7.0
	footerOffset = 10.0
	ptPerPx      = 0.75   // CSS px at 96 DPI to PostScript points
	mmPerPt      = 0.3528 // 1pt in mm
	lineHeight   = 1.6
)

// pdfFamily is the embedded Go font family, the same faces the PNG path draws with.
const pdfFamily = "Go"

// fixedDate replaces wall-clock timestamps in the document info dictionary.
var fixedDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func renderPDF(title, content string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(fixedDate)
	pdf.SetModificationDate(fixedDate)
	pdf.SetTitle(title, true)
	pdf.SetCreator("Transcribai", false)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddUTF8FontFromBytes(pdfFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(pdfFamily, "B", gobold.TTF)
	if err := pdf.Error(); err != nil {
		return nil, err
	}

	title, content = pdfText(title), pdfText(content)

	bodyPt := bodyFontPx(title, content) * ptPerPx
	titlePt := bodyPt * 1.5
	footPt := 10 * ptPerPx

	pdf.SetFooterFunc(func() {
		pdf.SetY(-(pageMargin - footerOffset) - footPt*mmPerPt*2)
		pdf.SetFont(pdfFamily, "", footPt)
		pdf.SetTextColor(int(footColor.r), int(footColor.g), int(footColor.b))
		pdf.CellFormat(0, footPt*mmPerPt*2, Footer, "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	textW := pageW - 2*pageMargin

	// Full-bleed header band, title centered in white.
	pdf.SetFont(pdfFamily, "B", titlePt)
	titleLineH := titlePt * mmPerPt * 1.3
	titleLines := pdf.SplitText(title, textW)
	bandH := float64(max(len(titleLines), 1))*titleLineH + 2*bandPadding
	pdf.LinearGradient(0, 0, pageW, bandH,
		int(bandStart.r), int(bandStart.g), int(bandStart.b),
		int(bandEnd.r), int(bandEnd.g), int(bandEnd.b),
		0, 1, 1, 0)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(pageMargin, bandPadding)
	pdf.MultiCell(textW, titleLineH, title, "", "C", false)

	// Justified body.
	pdf.SetFont(pdfFamily, "", bodyPt)
	pdf.SetTextColor(int(bodyColor.r), int(bodyColor.g), int(bodyColor.b))
	pdf.SetXY(pageMargin, bandH+bodyPt*mmPerPt*lineHeight)
	pdf.MultiCell(textW, bodyPt*mmPerPt*lineHeight, content, "", "J", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// pdfText keeps text inside the Basic Multilingual Plane, the range the
// embedded font's width table covers. Other runes become U+FFFD.
func pdfText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return '\uFFFD'
		}
		return r
	}, s)
}
