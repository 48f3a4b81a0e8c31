// Package raster renders PDF pages to pixel buffers for OCR.
//
// It wraps the MuPDF bindings (go-fitz) behind a small document handle:
// open a PDF, ask for its page count, render individual pages at a target
// DPI. Rendering scales linearly from the PDF's native 72 DPI. The channel
// layout is normalized for the OCR engines: any alpha channel is dropped
// outright (never blended) and the pixels are handed over PNG-encoded.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/gen2brain/go-fitz"

	"github.com/scandocs/ocrworker/pkg/ocr"
)

// Document is an open PDF scoped to a single request. It must be closed on
// every exit path; no handle may outlive the request that opened it.
type Document struct {
	doc  *fitz.Document
	path string
}

// Open loads the PDF at path. The file is checked for readability first so
// callers get a plain I/O error instead of a renderer failure when the path
// is wrong.
func Open(path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot read PDF: %w", err)
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	return &Document{doc: doc, path: path}, nil
}

// PageCount returns the document's total page count.
func (d *Document) PageCount() int {
	return d.doc.NumPage()
}

// RenderPage rasterizes one page (0-based index) at the given DPI and
// returns it PNG-encoded with the channel layout already normalized.
func (d *Document) RenderPage(index, dpi int) (ocr.Image, error) {
	img, err := d.doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return ocr.Image{}, fmt.Errorf("failed to render page %d of %s: %w", index+1, d.path, err)
	}

	dropAlpha(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocr.Image{}, fmt.Errorf("failed to encode page %d: %w", index+1, err)
	}

	bounds := img.Bounds()
	return ocr.Image{
		PNG:    buf.Bytes(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		DPI:    dpi,
	}, nil
}

// Close releases the underlying MuPDF document.
func (d *Document) Close() error {
	return d.doc.Close()
}

// dropAlpha forces every pixel fully opaque. MuPDF renders onto a white
// background so the alpha channel carries no information; it is discarded,
// not blended.
func dropAlpha(img *image.RGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
}
