// Package protocol implements the line-delimited JSON protocol the worker
// speaks over its standard streams.
//
// Input is one JSON request object per line on stdin; output is one JSON
// object per line on stdout, flushed after every write. Stdout carries only
// protocol traffic (the one-time readiness signal followed by responses);
// all diagnostics belong on stderr so the stream framing is never corrupted.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Request is a single conversion request read from stdin.
type Request struct {
	// ID is caller-chosen and opaque; it is echoed back verbatim.
	ID *string `json:"id"`
	// PDFPath references a readable PDF on the local filesystem.
	PDFPath string `json:"pdf_path"`
	// DPI optionally overrides the process-wide rasterization resolution.
	DPI *int `json:"dpi,omitempty"`
	// PDFOut optionally names a path to also write a searchable PDF to.
	PDFOut string `json:"pdf_out,omitempty"`
}

// Response is the reply for one request. Exactly one of the success fields
// (Text, PageCount) or Error is set, never both.
type Response struct {
	ID        *string `json:"id"`
	Text      *string `json:"text,omitempty"`
	PageCount *int    `json:"page_count,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Readiness is the one-time startup signal, emitted before any Response.
type Readiness struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Success builds a success response echoing the request id.
func Success(id *string, text string, pageCount int) Response {
	return Response{ID: id, Text: &text, PageCount: &pageCount}
}

// Failure builds a failure response carrying the best-available request id.
func Failure(id *string, err error) Response {
	return Response{ID: id, Error: err.Error()}
}

// ParseRequest decodes one input line into a Request.
//
// On a JSON decode failure the returned id is the best-effort extraction of
// the request's id field, so the caller can still echo it: a line that is
// valid JSON but has a mistyped field (e.g. a string dpi) keeps its id,
// while a line that is not JSON at all yields a nil id.
func ParseRequest(line []byte) (Request, *string, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, extractID(line), fmt.Errorf("invalid JSON: %w", err)
	}
	return req, req.ID, nil
}

// extractID pulls just the id field out of a line whose full decode failed.
func extractID(line []byte) *string {
	var probe struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil
	}
	return probe.ID
}
