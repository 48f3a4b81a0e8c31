package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// Emitter writes protocol objects to the output stream, one JSON object per
// line, flushed immediately so a supervising host never blocks on a
// half-buffered response.
type Emitter struct {
	enc   *json.Encoder
	flush func() error
}

// NewEmitter wraps the given writer. If w supports flushing (bufio.Writer,
// os.File needs none), each Emit call flushes after the newline.
func NewEmitter(w io.Writer) *Emitter {
	enc := json.NewEncoder(w)
	// Keep output byte-for-byte faithful; the protocol is not HTML.
	enc.SetEscapeHTML(false)

	e := &Emitter{enc: enc}
	if f, ok := w.(interface{ Flush() error }); ok {
		e.flush = f.Flush
	}
	return e
}

// Emit writes one protocol object followed by a newline and flushes.
func (e *Emitter) Emit(v interface{}) error {
	if err := e.enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode protocol object: %w", err)
	}
	if e.flush != nil {
		if err := e.flush(); err != nil {
			return fmt.Errorf("failed to flush protocol stream: %w", err)
		}
	}
	return nil
}
