package pdfocr

// Config holds options for assembling a searchable PDF.
type Config struct {
	Debug     bool   // Render the text layer visibly (red) with word boxes
	LayerName string // Base name of the OCR layer (page number is appended)
	Font      FontConfig
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Debug:     false,
		LayerName: "OCR Text", // Formatted as "OCR Text (Page X)" in the final PDF
		Font:      DefaultFont,
	}
}

// FontConfig contains font settings for the OCR text layer.
type FontConfig struct {
	Name        string  // Font name (e.g., "Helvetica")
	Style       string  // Font style ("", "B", "I", "BI")
	Size        float64 // Default font size
	AscentRatio float64 // Vertical positioning ratio
}

// DefaultFont sets the default font to Helvetica which is tried and tested for the OCR layer
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "",
	Size:        10,
	AscentRatio: 0.718,
}
