package hocr

import "strings"

// Page is one page of recognized text
// Corresponds to the hOCR element with class: 'ocr_page'
type Page struct {
	ID         string      // Unique identifier
	Title      string      // Original title attribute
	PageNumber int         // Page number from the 'ppageno' property
	ImageName  string      // Source image filename
	BBox       BoundingBox // Page coordinates
	Lines      []Line      // All lines on the page, in document order
}

// Line represents a line of text
// Corresponds to the hOCR element with class: 'ocr_line'
type Line struct {
	ID         string      // Unique identifier
	BBox       BoundingBox // Line coordinates
	Baseline   string      // Baseline information
	Confidence float64     // Averaged word confidence (0-100)
	Words      []Word      // Words in this line
}

// Text joins the line's word texts with single spaces.
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Words))
	for _, w := range l.Words {
		if w.Text != "" {
			parts = append(parts, w.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Word is a recognized word with bounding box
// Corresponds to the hOCR element with class: 'ocrx_word'
type Word struct {
	ID         string      // Unique identifier
	Text       string      // The actual text content
	BBox       BoundingBox // Word coordinates
	Confidence float64     // Recognition confidence from 'x_wconf' (0-100)
}

// BoundingBox represents a rectangle in page pixel coordinates
// Used to store hOCR 'bbox' property values
type BoundingBox struct {
	X1 float64 // Left coordinate
	Y1 float64 // Top coordinate
	X2 float64 // Right coordinate
	Y2 float64 // Bottom coordinate
}
