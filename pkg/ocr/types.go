package ocr

// Image is a single rasterized PDF page handed to an Engine.
//
// The pixel data is PNG encoded with the alpha channel already dropped by
// the rasterizer, so engines never have to deal with channel layout
// differences themselves.
type Image struct {
	PNG    []byte // PNG-encoded page pixels, RGB without alpha
	Width  int    // Pixel width
	Height int    // Pixel height
	DPI    int    // Resolution the page was rasterized at
}

// BoundingBox is a rectangle in page pixel coordinates,
// origin in the upper-left corner.
type BoundingBox struct {
	X1 float64 // Left coordinate
	Y1 float64 // Top coordinate
	X2 float64 // Right coordinate
	Y2 float64 // Bottom coordinate
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Word is a single recognized token within a line.
type Word struct {
	Text       string      // Recognized text
	Confidence float64     // Recognition confidence (0-100)
	BBox       BoundingBox // Word position on the page
}

// Line is one recognized text line on a page, in engine-return order.
type Line struct {
	Text       string      // Full line text
	Confidence float64     // Recognition confidence (0-100)
	BBox       BoundingBox // Line position on the page
	Words      []Word      // Per-word breakdown, may be empty
}
