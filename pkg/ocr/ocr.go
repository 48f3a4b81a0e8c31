// Package ocr defines the contract between the worker loop and the OCR
// engines that back it.
//
// An Engine wraps a warm recognition model: it is loaded exactly once at
// process start, recognizes one page image at a time, and is never
// reconfigured afterwards. Engine implementations live in subpackages
// (tesseract, docai); the worker loop only sees this interface, so version
// or vendor differences between engines never leak into the protocol code.
//
// Engines return recognized lines with bounding geometry and confidence.
// The worker loop itself only consumes the line text; geometry and
// confidence are carried for the searchable-PDF text layer.
package ocr

import "context"

// Engine is a warm OCR model handle.
//
// Load is called once before any Recognize call and gates the worker's
// readiness signal. Recognize must tolerate pages with no recognizable
// content by returning an empty (or nil) slice rather than an error.
type Engine interface {
	// Name identifies the engine profile, e.g. "tesseract" or "docai".
	Name() string

	// Load initializes the underlying model. Called exactly once.
	Load(ctx context.Context) error

	// Recognize runs OCR on a single rasterized page.
	Recognize(ctx context.Context, img Image) ([]Line, error)

	// Close releases the model handle.
	Close() error
}
