// Package worker implements the request-processing loop at the heart of the
// OCR worker process.
//
// The loop owns the process lifecycle: it loads the OCR model once, emits a
// one-time readiness signal, then reads one JSON request per stdin line and
// writes exactly one JSON response per request, in input order. Requests
// are handled strictly sequentially; there are no in-flight overlaps and no
// internal timeouts (a supervising host is expected to handle pathological
// inputs by restarting the process).
//
// Lifecycle:
//
//	Loading → Ready → (Processing → Ready)* → Terminal
//
// A model-load failure emits {"ready": false} and aborts before any request
// is accepted. Every other failure is contained within the request that
// caused it: the response carries the best-available request id and an
// error description, and the loop keeps serving. End of input ends the
// process cleanly.
package worker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/scandocs/ocrworker/pkg/ocr"
	"github.com/scandocs/ocrworker/pkg/pdfocr"
	"github.com/scandocs/ocrworker/pkg/protocol"
)

// PageBreak separates per-page text segments in the aggregated response.
const PageBreak = "\n\n--- PAGE BREAK ---\n\n"

// Input lines beyond this size fail that request rather than the process.
const maxLineBytes = 10 * 1024 * 1024

// Document is an open PDF scoped to one request. The worker closes it on
// every exit path, including failed ones.
type Document interface {
	PageCount() int
	RenderPage(index, dpi int) (ocr.Image, error)
	Close() error
}

// OpenFunc opens the PDF at a filesystem path. The production implementation
// is the raster package; tests substitute fakes.
type OpenFunc func(path string) (Document, error)

// Config wires the worker's collaborators together.
type Config struct {
	Engine     ocr.Engine    // warm OCR model handle
	Open       OpenFunc      // rasterizer entry point
	Output     io.Writer     // protocol stream, normally stdout
	DefaultDPI int           // rasterization DPI when a request has none
	PDF        pdfocr.Config // searchable-PDF assembly options
}

// Worker drives the request-processing loop.
type Worker struct {
	engine     ocr.Engine
	open       OpenFunc
	emitter    *protocol.Emitter
	defaultDPI int
	pdfCfg     pdfocr.Config
}

// New creates a worker from the given configuration.
func New(cfg Config) *Worker {
	if cfg.DefaultDPI <= 0 {
		cfg.DefaultDPI = 300
	}
	if cfg.PDF.LayerName == "" {
		cfg.PDF.LayerName = pdfocr.DefaultConfig().LayerName
	}
	if cfg.PDF.Font.Name == "" {
		cfg.PDF.Font = pdfocr.DefaultFont
	}
	return &Worker{
		engine:     cfg.Engine,
		open:       cfg.Open,
		emitter:    protocol.NewEmitter(cfg.Output),
		defaultDPI: cfg.DefaultDPI,
		pdfCfg:     cfg.PDF,
	}
}

// Run loads the model, signals readiness and serves requests until the
// input stream ends. It returns an error only for a model-load failure or a
// broken protocol stream; per-request failures never surface here.
func (w *Worker) Run(ctx context.Context, in io.Reader) error {
	if err := w.engine.Load(ctx); err != nil {
		// The negative readiness signal is best-effort; the exit status is
		// what the host supervises on.
		_ = w.emitter.Emit(protocol.Readiness{Ready: false, Error: fmt.Sprintf("model load failed: %v", err)})
		return fmt.Errorf("model load failed: %w", err)
	}
	if err := w.emitter.Emit(protocol.Readiness{Ready: true}); err != nil {
		return err
	}
	log.Info().Str("engine", w.engine.Name()).Int("pid", os.Getpid()).Msg("worker ready")

	reader := bufio.NewReaderSize(in, 64*1024)

	for {
		line, tooLong, readErr := readLine(reader)
		if tooLong {
			// An oversized line is that request's failure, not the
			// process's; the stream is already resynchronized past it.
			failure := protocol.Failure(nil, fmt.Errorf("request line exceeds %d bytes", maxLineBytes))
			if err := w.emitter.Emit(failure); err != nil {
				return err
			}
		} else if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if err := w.emitter.Emit(w.processOne(ctx, trimmed)); err != nil {
				return err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read input stream: %w", readErr)
		}
	}
}

// readLine reads one input line, enforcing maxLineBytes. An over-long line
// is consumed and discarded to the next newline so the stream stays in sync,
// and reported as tooLong instead of returned.
func readLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, isPrefix, readErr := r.ReadLine()
		if !tooLong && len(chunk) > 0 {
			line = append(line, chunk...)
			if len(line) > maxLineBytes {
				line = nil
				tooLong = true
			}
		}
		if readErr != nil {
			return line, tooLong, readErr
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}

// processOne turns one input line into exactly one response. Nothing may
// escape this boundary: any fault, including a panic from the engine or
// rasterizer bindings, becomes a failure response carrying the
// best-available request id.
func (w *Worker) processOne(ctx context.Context, line []byte) (resp protocol.Response) {
	var reqID *string
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).
				Msg("request processing panicked")
			resp = protocol.Failure(reqID, fmt.Errorf("internal error: %v", r))
		}
	}()

	req, id, err := protocol.ParseRequest(line)
	reqID = id
	if err != nil {
		return protocol.Failure(id, err)
	}

	if req.PDFPath == "" {
		return protocol.Failure(req.ID, fmt.Errorf("missing field: pdf_path"))
	}

	dpi := w.defaultDPI
	if req.DPI != nil {
		if *req.DPI <= 0 {
			return protocol.Failure(req.ID, fmt.Errorf("invalid dpi: must be a positive integer"))
		}
		dpi = *req.DPI
	}

	text, pageCount, err := w.ocrPDF(ctx, req.PDFPath, dpi, req.PDFOut)
	if err != nil {
		log.Error().Err(err).Str("pdf", req.PDFPath).Msg("request failed")
		return protocol.Failure(req.ID, err)
	}
	return protocol.Success(req.ID, text, pageCount)
}

// ocrPDF converts one PDF into its aggregated text: every page is
// rasterized at the requested DPI and recognized in document order; page
// texts are joined with the page-break delimiter. The page count is the
// document's total, independent of how many pages yielded text. When
// pdfOut is set, a searchable PDF is additionally written there.
func (w *Worker) ocrPDF(ctx context.Context, path string, dpi int, pdfOut string) (string, int, error) {
	doc, err := w.open(path)
	if err != nil {
		return "", 0, err
	}
	defer doc.Close()

	pageCount := doc.PageCount()
	pagesText := make([]string, 0, pageCount)
	var searchable []pdfocr.PageOCR

	for i := 0; i < pageCount; i++ {
		img, err := doc.RenderPage(i, dpi)
		if err != nil {
			return "", 0, err
		}

		lines, err := w.engine.Recognize(ctx, img)
		if err != nil {
			return "", 0, fmt.Errorf("recognition failed on page %d: %w", i+1, err)
		}

		// An empty page still occupies its position in the output.
		texts := make([]string, 0, len(lines))
		for _, l := range lines {
			if t := strings.TrimSpace(l.Text); t != "" {
				texts = append(texts, t)
			}
		}
		pagesText = append(pagesText, strings.Join(texts, "\n"))

		if pdfOut != "" {
			searchable = append(searchable, pdfocr.PageOCR{Image: img, Lines: lines})
		}
	}

	if pdfOut != "" {
		out, err := pdfocr.Assemble(searchable, w.pdfCfg)
		if err != nil {
			return "", 0, fmt.Errorf("failed to assemble searchable PDF: %w", err)
		}
		if err := os.WriteFile(pdfOut, out, 0o644); err != nil {
			return "", 0, fmt.Errorf("failed to write searchable PDF: %w", err)
		}
	}

	text := strings.TrimSpace(strings.Join(pagesText, PageBreak))
	return text, pageCount, nil
}
