// Package tesseract implements the default OCR engine profile on top of the
// Tesseract bindings (gosseract).
//
// The client is created once at load time and reused for every page, which
// keeps the trained model warm across requests. Recognition goes through
// Tesseract's hOCR output so that line geometry and per-word confidence are
// preserved for the searchable-PDF text layer.
package tesseract

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"

	"github.com/scandocs/ocrworker/pkg/hocr"
	"github.com/scandocs/ocrworker/pkg/ocr"
)

// Config holds the engine settings fixed at process start.
type Config struct {
	// Language is the locale requested by the host ("eng", "fr", "de", ...).
	// Short ISO-639-1 codes are mapped to Tesseract's trained-data names.
	Language string
	// TessdataDir optionally points at a pre-provisioned model directory.
	TessdataDir string
	// DisableAccel turns off the OpenMP acceleration path, which is known
	// to crash inference with some Tesseract builds.
	DisableAccel bool
}

// Engine is a warm Tesseract model handle. It implements ocr.Engine.
type Engine struct {
	cfg    Config
	client *gosseract.Client
}

// New creates an unloaded engine; call Load before Recognize.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Name identifies the engine profile.
func (e *Engine) Name() string { return "tesseract" }

// Load creates the Tesseract client and fixes its configuration for the
// lifetime of the process.
func (e *Engine) Load(ctx context.Context) error {
	if e.cfg.DisableAccel {
		// Tesseract reads this at inference time through OpenMP.
		os.Setenv("OMP_THREAD_LIMIT", "1")
	}

	client := gosseract.NewClient()

	lang := trainedDataName(e.cfg.Language)
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return fmt.Errorf("failed to set language %q: %w", lang, err)
	}
	if e.cfg.TessdataDir != "" {
		if err := client.SetTessdataPrefix(e.cfg.TessdataDir); err != nil {
			client.Close()
			return fmt.Errorf("failed to set tessdata dir %q: %w", e.cfg.TessdataDir, err)
		}
	}

	e.client = client
	log.Info().Str("language", lang).Str("tessdata", e.cfg.TessdataDir).
		Msg("tesseract model loaded")
	return nil
}

// Recognize runs OCR on one page image and returns its lines in engine
// order. A page without recognizable content yields zero lines, not an
// error.
func (e *Engine) Recognize(ctx context.Context, img ocr.Image) ([]ocr.Line, error) {
	if e.client == nil {
		return nil, fmt.Errorf("tesseract engine is not loaded")
	}

	if err := e.client.SetImageFromBytes(img.PNG); err != nil {
		return nil, fmt.Errorf("failed to set page image: %w", err)
	}
	if img.DPI > 0 {
		if err := e.client.SetVariable("user_defined_dpi", strconv.Itoa(img.DPI)); err != nil {
			return nil, fmt.Errorf("failed to set dpi: %w", err)
		}
	}

	hocrHTML, err := e.client.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("recognition failed: %w", err)
	}
	if strings.TrimSpace(hocrHTML) == "" {
		return nil, nil
	}

	pages, err := hocr.Parse([]byte(hocrHTML))
	if err != nil {
		// Unparseable engine output for a page is treated as zero lines;
		// the detail still goes to stderr for operators.
		log.Warn().Err(err).Msg("discarding unparseable hOCR output")
		return nil, nil
	}
	return LinesFromHOCR(pages), nil
}

// Close releases the Tesseract client.
func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// LinesFromHOCR flattens parsed hOCR pages into the engine line contract.
// Tesseract reports exactly one hOCR page per recognized image, but any
// extra pages are folded in rather than dropped.
func LinesFromHOCR(pages []hocr.Page) []ocr.Line {
	var lines []ocr.Line
	for _, page := range pages {
		for _, l := range page.Lines {
			text := strings.TrimSpace(l.Text())
			if text == "" {
				continue
			}
			line := ocr.Line{
				Text:       text,
				Confidence: l.Confidence,
				BBox:       ocr.BoundingBox{X1: l.BBox.X1, Y1: l.BBox.Y1, X2: l.BBox.X2, Y2: l.BBox.Y2},
			}
			for _, w := range l.Words {
				line.Words = append(line.Words, ocr.Word{
					Text:       w.Text,
					Confidence: w.Confidence,
					BBox:       ocr.BoundingBox{X1: w.BBox.X1, Y1: w.BBox.Y1, X2: w.BBox.X2, Y2: w.BBox.Y2},
				})
			}
			lines = append(lines, line)
		}
	}
	return lines
}

// trainedDataName maps short locale codes to Tesseract trained-data names.
// Unknown values pass through so full names like "eng+fra" keep working.
func trainedDataName(lang string) string {
	switch strings.ToLower(lang) {
	case "", "en", "eng":
		return "eng"
	case "fr", "fra":
		return "fra"
	case "de", "deu":
		return "deu"
	case "es", "spa":
		return "spa"
	case "it", "ita":
		return "ita"
	case "nl", "nld":
		return "nld"
	case "pt", "por":
		return "por"
	default:
		return lang
	}
}
