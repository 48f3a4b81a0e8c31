package pdfocr

import (
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/scandocs/ocrworker/pkg/ocr"
)

// drawTextLayer draws the recognized text onto a toggleable layer of the
// current page. Words are placed individually when the engine reported
// them; otherwise the whole line is stretched across its bounding box.
func drawTextLayer(pdf *fpdf.Fpdf, lines []ocr.Line, scale float64, pageNum int, cfg Config) error {
	layer := pdf.AddLayer(fmt.Sprintf("%s (Page %d)", cfg.LayerName, pageNum), true)
	pdf.BeginLayer(layer)
	defer pdf.EndLayer()

	pdf.SetFont(cfg.Font.Name, cfg.Font.Style, cfg.Font.Size)
	if cfg.Debug {
		pdf.SetTextColor(255, 0, 0) // highlight text in red
	} else {
		pdf.SetAlpha(0.0, "Normal") // hide text from normal view
	}

	encodingErrors := 0
	wordCount := 0
	for _, line := range lines {
		if len(line.Words) == 0 {
			drawBox(pdf, line.Text, line.BBox, scale, cfg, &encodingErrors)
			wordCount++
			continue
		}
		for _, word := range line.Words {
			drawBox(pdf, word.Text, word.BBox, scale, cfg, &encodingErrors)
			wordCount++
		}
	}

	// A few unmappable characters are expected with non-Latin content; only
	// a large share indicates the wrong font setup.
	if wordCount > 0 && encodingErrors > wordCount/10 {
		return fmt.Errorf("character encoding issues in %d of %d words", encodingErrors, wordCount)
	}
	return nil
}

// drawBox renders one text fragment stretched over its pixel bounding box.
func drawBox(pdf *fpdf.Fpdf, text string, bbox ocr.BoundingBox, scale float64, cfg Config, encodingErrors *int) {
	if text == "" {
		return
	}

	x := bbox.X1 * scale
	y := bbox.Y1 * scale
	width := bbox.Width() * scale

	// Convert text to ISO-8859-1 to avoid PDF encoding issues.
	latin1, err := charmap.ISO8859_1.NewEncoder().String(text)
	if err != nil {
		*encodingErrors++
		latin1 = text // fallback to raw text
	}

	// Stretch the font so the fragment spans the recognized box.
	if strWidth := pdf.GetStringWidth(latin1); strWidth > 0 && width > 0 {
		pdf.SetFontSize(cfg.Font.Size * width / strWidth)
	}

	fontSize, _ := pdf.GetFontSize()
	pdf.Text(x, y+fontSize*cfg.Font.AscentRatio, latin1)
	pdf.SetFontSize(cfg.Font.Size)

	if cfg.Debug {
		pdf.Rect(x, y, width, bbox.Height()*scale, "D")
	}
}
