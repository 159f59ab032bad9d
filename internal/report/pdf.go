package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/signintech/gopdf"

	"osce-station/internal/station"
)

// DefaultFontPaths are the usual DejaVuSans locations on Alpine and Debian.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

const (
	fontFamily = "DejaVu"
	textWidth  = 500
	pageBottom = 790
)

// Renderer draws feedback reports as A4 PDFs.
type Renderer struct {
	fontPaths []string
}

func NewRenderer(fontPaths ...string) *Renderer {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &Renderer{fontPaths: fontPaths}
}

// RenderPDF implements station.PDFRenderer.
func (rd *Renderer) RenderPDF(r *station.FeedbackReport) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range rd.fontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF. Please ensure ttf-dejavu is installed. Last error: %w", fontErr)
	}

	w := &pdfWriter{pdf: &pdf}

	w.font(20)
	w.line("OSCE Station Report")
	pdf.Br(30)

	w.font(12)
	w.line(fmt.Sprintf("Date: %s", r.GeneratedAt.Format("02.01.2006 15:04")))
	w.line(fmt.Sprintf("Station: %s", r.StationName))
	w.line(fmt.Sprintf("Case: %s", r.CaseID))
	w.line(fmt.Sprintf("Session: %s", r.SessionID))
	if r.FinalMood != "" {
		w.line(fmt.Sprintf("Patient mood at the end: %s", strings.ReplaceAll(string(r.FinalMood), "_", " ")))
	}
	pdf.Br(10)

	w.heading("Performance summary")
	w.line(fmt.Sprintf("Data gathering: %s", r.DataGathering))
	w.line(fmt.Sprintf("Interpersonal: %s", r.Interpersonal))
	w.line(fmt.Sprintf("Management: %s", r.Management))
	w.line(fmt.Sprintf("Listening: %s", r.Listening))
	w.line(fmt.Sprintf("Questions asked: %d", r.Questions))
	pdf.Br(10)

	w.heading("Covered")
	for _, d := range station.Domains {
		labels := r.Covered[d]
		if len(labels) == 0 {
			w.line(fmt.Sprintf("- %s: none", d))
			continue
		}
		w.paragraph(fmt.Sprintf("- %s: %s", d, strings.Join(labels, ", ")))
	}
	pdf.Br(10)

	if len(r.Missed) > 0 {
		w.heading("Missed")
		for _, m := range r.Missed {
			w.line("- " + m)
		}
		pdf.Br(10)
	}

	if len(r.Duplicates) > 0 {
		w.heading("Repeated questions")
		for _, d := range r.Duplicates {
			w.paragraph("- " + d)
		}
		pdf.Br(10)
	}

	if r.Narrative != "" {
		w.heading("Examiner feedback")
		w.paragraph(r.Narrative)
	}

	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// pdfWriter keeps the first drawing error and handles page breaks.
type pdfWriter struct {
	pdf  *gopdf.GoPdf
	size float64
	err  error
}

func (w *pdfWriter) font(size float64) {
	if w.err != nil {
		return
	}
	w.size = size
	w.err = w.pdf.SetFont(fontFamily, "", size)
}

func (w *pdfWriter) heading(text string) {
	w.font(14)
	w.line(text)
	w.font(11)
}

func (w *pdfWriter) line(text string) {
	if w.err != nil {
		return
	}
	if w.pdf.GetY() > pageBottom {
		w.pdf.AddPage()
		w.font(w.size)
	}
	if strings.TrimSpace(text) != "" {
		if err := w.pdf.Cell(nil, text); err != nil {
			w.err = err
			return
		}
	}
	w.pdf.Br(w.size + 4)
}

func (w *pdfWriter) paragraph(text string) {
	for _, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "" {
			w.line("")
			continue
		}
		lines, err := w.pdf.SplitText(raw, textWidth)
		if err != nil {
			w.line(raw)
			continue
		}
		for _, l := range lines {
			w.line(l)
		}
	}
}
