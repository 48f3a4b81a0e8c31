// Package docai implements an OCR engine profile backed by Google Document
// AI, for hosts that prefer a managed recognition service over a local
// Tesseract installation.
//
// The processor client is dialed once at load time and reused for every
// page; each Recognize call sends one rasterized page image and converts
// the Document AI response into the engine line contract.
//
// Usage Requirements:
//
// - Google Cloud project with the Document AI API enabled
// - Document AI processor configured for OCR
// - Authentication via the GOOGLE_APPLICATION_CREDENTIALS environment variable
package docai

import (
	"context"
	"fmt"
	"os"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/scandocs/ocrworker/pkg/ocr"
)

// Engine is a warm Document AI processor handle. It implements ocr.Engine.
type Engine struct {
	cfg       Config
	client    *documentai.DocumentProcessorClient
	processor string
}

// New creates an unloaded engine; call Load before Recognize.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Name identifies the engine profile.
func (e *Engine) Name() string { return "docai" }

// Load dials the Document AI endpoint for the configured location. The
// client lives for the whole process; per-request work is one RPC.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", e.cfg.Location)
	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create Document AI client: %w", err)
	}

	e.client = client
	e.processor = fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		e.cfg.ProjectID, e.cfg.Location, e.cfg.ProcessorID)
	log.Info().Str("processor", e.processor).Msg("document AI client ready")
	return nil
}

// Recognize sends one page image to the processor and returns its lines.
func (e *Engine) Recognize(ctx context.Context, img ocr.Image) ([]ocr.Line, error) {
	if e.client == nil {
		return nil, fmt.Errorf("docai engine is not loaded")
	}

	req := &documentaipb.ProcessRequest{
		Name: e.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  img.PNG,
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}

	resp, err := e.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process page: %w", err)
	}

	doc := resp.GetDocument()
	if e.cfg.Debug {
		if raw, err := protojson.Marshal(doc); err == nil {
			log.Debug().RawJSON("document", raw).Msg("document AI response")
		}
	}

	return LinesFromDocument(doc, img.Width, img.Height), nil
}

// Close releases the processor client.
func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// LinesFromDocument converts a Document AI response into engine lines.
// Geometry comes back normalized to [0,1] or in page pixels depending on
// the processor version; both forms are mapped to pixel coordinates of the
// submitted image. Lines without text are skipped.
func LinesFromDocument(doc *documentaipb.Document, width, height int) []ocr.Line {
	if doc == nil {
		return nil
	}

	var lines []ocr.Line
	for _, page := range doc.GetPages() {
		for _, l := range page.GetLines() {
			layout := l.GetLayout()
			text := trimTrailingBreak(textFromLayout(layout, doc.GetText()))
			if text == "" {
				continue
			}
			line := ocr.Line{
				Text:       text,
				Confidence: float64(layout.GetConfidence()) * 100,
				BBox:       boxFromPoly(layout.GetBoundingPoly(), width, height),
			}
			for _, token := range tokensWithin(layout, page.GetTokens()) {
				wordText := trimTrailingBreak(textFromLayout(token.GetLayout(), doc.GetText()))
				if wordText == "" {
					continue
				}
				line.Words = append(line.Words, ocr.Word{
					Text:       wordText,
					Confidence: float64(token.GetLayout().GetConfidence()) * 100,
					BBox:       boxFromPoly(token.GetLayout().GetBoundingPoly(), width, height),
				})
			}
			lines = append(lines, line)
		}
	}
	return lines
}

// textFromLayout extracts text from a layout's text anchor segments.
func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	runes := []rune(fullText)
	total := len(runes)

	var result string
	for _, seg := range layout.TextAnchor.TextSegments {
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > total {
			end = total
		}
		if start > end {
			start = end
		}
		result += string(runes[start:end])
	}
	return result
}

// tokensWithin returns the tokens whose text range falls inside the line's
// range. Document AI does not nest tokens under lines, so containment is
// recovered from the shared text anchor offsets.
func tokensWithin(line *documentaipb.Document_Page_Layout, tokens []*documentaipb.Document_Page_Token) []*documentaipb.Document_Page_Token {
	segs := line.GetTextAnchor().GetTextSegments()
	if len(segs) == 0 {
		return nil
	}
	start, end := segs[0].GetStartIndex(), segs[0].GetEndIndex()

	var result []*documentaipb.Document_Page_Token
	for _, token := range tokens {
		tsegs := token.GetLayout().GetTextAnchor().GetTextSegments()
		if len(tsegs) == 0 {
			continue
		}
		if tsegs[0].GetStartIndex() >= start && tsegs[0].GetEndIndex() <= end {
			result = append(result, token)
		}
	}
	return result
}

// boxFromPoly converts a bounding polygon to a rectangle in pixel
// coordinates of the submitted image.
func boxFromPoly(poly *documentaipb.BoundingPoly, width, height int) ocr.BoundingBox {
	if poly == nil {
		return ocr.BoundingBox{}
	}

	if verts := poly.GetVertices(); len(verts) > 0 {
		box := ocr.BoundingBox{X1: float64(verts[0].GetX()), Y1: float64(verts[0].GetY())}
		box.X2, box.Y2 = box.X1, box.Y1
		for _, v := range verts[1:] {
			box = expand(box, float64(v.GetX()), float64(v.GetY()))
		}
		return box
	}

	if verts := poly.GetNormalizedVertices(); len(verts) > 0 {
		w, h := float64(width), float64(height)
		box := ocr.BoundingBox{X1: float64(verts[0].GetX()) * w, Y1: float64(verts[0].GetY()) * h}
		box.X2, box.Y2 = box.X1, box.Y1
		for _, v := range verts[1:] {
			box = expand(box, float64(v.GetX())*w, float64(v.GetY())*h)
		}
		return box
	}

	return ocr.BoundingBox{}
}

func expand(box ocr.BoundingBox, x, y float64) ocr.BoundingBox {
	if x < box.X1 {
		box.X1 = x
	}
	if y < box.Y1 {
		box.Y1 = y
	}
	if x > box.X2 {
		box.X2 = x
	}
	if y > box.Y2 {
		box.Y2 = y
	}
	return box
}

// trimTrailingBreak drops the single trailing whitespace Document AI leaves
// on text anchored through a detected break.
func trimTrailingBreak(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	switch runes[len(runes)-1] {
	case ' ', '\n', '\r', '\t':
		return string(runes[:len(runes)-1])
	}
	return s
}
