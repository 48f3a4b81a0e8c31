package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scandocs/ocrworker/pkg/ocr"
	"github.com/scandocs/ocrworker/pkg/pdfocr"
)

// pageKey identifies a rendered page so the fake engine can map it to a
// scripted recognition result.
func pageKey(path string, index int) string {
	return fmt.Sprintf("%s#%d", path, index)
}

type fakeDoc struct {
	path      string
	pages     int
	renderErr map[int]error
	dpiSeen   []int
	closed    bool
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) RenderPage(index, dpi int) (ocr.Image, error) {
	d.dpiSeen = append(d.dpiSeen, dpi)
	if err := d.renderErr[index]; err != nil {
		return ocr.Image{}, err
	}
	return ocr.Image{
		PNG:    []byte(pageKey(d.path, index)),
		Width:  100,
		Height: 100,
		DPI:    dpi,
	}, nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type fakeEngine struct {
	loadErr   error
	loadCalls int
	lines     map[string][]ocr.Line
	errs      map[string]error
	panics    map[string]bool
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Load(ctx context.Context) error {
	e.loadCalls++
	return e.loadErr
}

func (e *fakeEngine) Recognize(ctx context.Context, img ocr.Image) ([]ocr.Line, error) {
	key := string(img.PNG)
	if e.panics[key] {
		panic("recognition blew up")
	}
	if err := e.errs[key]; err != nil {
		return nil, err
	}
	return e.lines[key], nil
}

func (e *fakeEngine) Close() error { return nil }

func textLines(texts ...string) []ocr.Line {
	lines := make([]ocr.Line, 0, len(texts))
	for _, t := range texts {
		lines = append(lines, ocr.Line{Text: t})
	}
	return lines
}

// harness bundles a worker over fake collaborators and captures the
// documents it opened.
type harness struct {
	engine *fakeEngine
	docs   map[string]*fakeDoc
	opened []*fakeDoc
	out    bytes.Buffer
	worker *Worker
}

func newHarness(engine *fakeEngine, docs map[string]*fakeDoc) *harness {
	h := &harness{engine: engine, docs: docs}
	h.worker = New(Config{
		Engine: engine,
		Open: func(path string) (Document, error) {
			doc, ok := docs[path]
			if !ok {
				return nil, fmt.Errorf("cannot read PDF: %s: no such file", path)
			}
			h.opened = append(h.opened, doc)
			return doc, nil
		},
		Output:     &h.out,
		DefaultDPI: 300,
	})
	return h
}

// run feeds the input through the loop and returns the decoded output lines.
func (h *harness) run(t *testing.T, input string) []map[string]interface{} {
	t.Helper()
	require.NoError(t, h.worker.Run(context.Background(), strings.NewReader(input)))
	return h.outputs(t)
}

func (h *harness) outputs(t *testing.T) []map[string]interface{} {
	t.Helper()
	var result []map[string]interface{}
	for _, raw := range strings.Split(strings.TrimRight(h.out.String(), "\n"), "\n") {
		if raw == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(raw), &m), "line %q", raw)
		result = append(result, m)
	}
	return result
}

func TestRunReadinessFirstAndOnce(t *testing.T) {
	h := newHarness(&fakeEngine{}, nil)
	outs := h.run(t, "")

	require.Len(t, outs, 1)
	assert.Equal(t, map[string]interface{}{"ready": true}, outs[0])
	assert.Equal(t, 1, h.engine.loadCalls)
}

func TestRunModelLoadFailure(t *testing.T) {
	h := newHarness(&fakeEngine{loadErr: fmt.Errorf("weights corrupt")}, nil)

	err := h.worker.Run(context.Background(), strings.NewReader(`{"id":"x","pdf_path":"/a.pdf"}`+"\n"))
	require.Error(t, err)

	outs := h.outputs(t)
	require.Len(t, outs, 1, "no request may be processed after a failed load")
	assert.Equal(t, false, outs[0]["ready"])
	assert.Contains(t, outs[0]["error"], "weights corrupt")
}

func TestThreePageAggregation(t *testing.T) {
	engine := &fakeEngine{lines: map[string][]ocr.Line{
		pageKey("/doc.pdf", 0): textLines("first page", "line two"),
		pageKey("/doc.pdf", 1): textLines("second page"),
		pageKey("/doc.pdf", 2): textLines("third page"),
	}}
	doc := &fakeDoc{path: "/doc.pdf", pages: 3}
	h := newHarness(engine, map[string]*fakeDoc{"/doc.pdf": doc})

	outs := h.run(t, `{"id":"r1","pdf_path":"/doc.pdf"}`+"\n")
	require.Len(t, outs, 2)

	resp := outs[1]
	assert.Equal(t, "r1", resp["id"])
	assert.Equal(t, float64(3), resp["page_count"])

	want := "first page\nline two" + PageBreak + "second page" + PageBreak + "third page"
	assert.Equal(t, want, resp["text"])
	assert.Equal(t, 2, strings.Count(resp["text"].(string), "--- PAGE BREAK ---"),
		"delimiter appears page_count-1 times")
	assert.True(t, doc.closed, "document must be released")
}

func TestEmptyPageStillCounted(t *testing.T) {
	engine := &fakeEngine{lines: map[string][]ocr.Line{
		pageKey("/doc.pdf", 0): textLines("alpha"),
		// page 1 yields zero lines
		pageKey("/doc.pdf", 2): textLines("omega"),
	}}
	h := newHarness(engine, map[string]*fakeDoc{"/doc.pdf": {path: "/doc.pdf", pages: 3}})

	outs := h.run(t, `{"id":"r1","pdf_path":"/doc.pdf"}`+"\n")
	resp := outs[1]

	assert.Equal(t, float64(3), resp["page_count"])
	assert.Equal(t, "alpha"+PageBreak+""+PageBreak+"omega", resp["text"],
		"the empty page contributes an empty segment at its position")
}

func TestZeroPageDocument(t *testing.T) {
	h := newHarness(&fakeEngine{}, map[string]*fakeDoc{"/empty.pdf": {path: "/empty.pdf", pages: 0}})

	outs := h.run(t, `{"id":"z","pdf_path":"/empty.pdf"}`+"\n")
	resp := outs[1]

	assert.Equal(t, "z", resp["id"])
	assert.Equal(t, float64(0), resp["page_count"])
	assert.Equal(t, "", resp["text"])
	assert.NotContains(t, resp, "error")
}

func TestInvalidJSONDoesNotKillLoop(t *testing.T) {
	engine := &fakeEngine{lines: map[string][]ocr.Line{
		pageKey("/doc.pdf", 0): textLines("ok"),
	}}
	h := newHarness(engine, map[string]*fakeDoc{"/doc.pdf": {path: "/doc.pdf", pages: 1}})

	outs := h.run(t, "{not json\n"+`{"id":"after","pdf_path":"/doc.pdf"}`+"\n")
	require.Len(t, outs, 3)

	bad := outs[1]
	assert.Nil(t, bad["id"], "unparseable line reports a null id")
	assert.Contains(t, bad["error"], "invalid JSON")
	assert.NotContains(t, bad, "text")

	good := outs[2]
	assert.Equal(t, "after", good["id"])
	assert.Equal(t, "ok", good["text"])
}

func TestMissingPDFPath(t *testing.T) {
	h := newHarness(&fakeEngine{}, nil)

	outs := h.run(t, `{"id":"req-9"}`+"\n")
	resp := outs[1]

	assert.Equal(t, "req-9", resp["id"], "id is echoed even when validation fails")
	assert.Contains(t, resp["error"], "pdf_path")
}

func TestInvalidDPI(t *testing.T) {
	h := newHarness(&fakeEngine{}, map[string]*fakeDoc{"/doc.pdf": {path: "/doc.pdf", pages: 1}})

	outs := h.run(t, `{"id":"d","pdf_path":"/doc.pdf","dpi":-50}`+"\n")
	assert.Contains(t, outs[1]["error"], "dpi")
	assert.Equal(t, "d", outs[1]["id"])
}

func TestDPIPropagation(t *testing.T) {
	doc := &fakeDoc{path: "/doc.pdf", pages: 2}
	h := newHarness(&fakeEngine{}, map[string]*fakeDoc{"/doc.pdf": doc})

	h.run(t, `{"id":"a","pdf_path":"/doc.pdf","dpi":150}`+"\n"+
		`{"id":"b","pdf_path":"/doc.pdf"}`+"\n")

	// First request renders both pages at 150, second at the default.
	assert.Equal(t, []int{150, 150, 300, 300}, doc.dpiSeen)
}

func TestMissingFileThenRecovery(t *testing.T) {
	engine := &fakeEngine{lines: map[string][]ocr.Line{
		pageKey("/doc.pdf", 0): textLines("fine"),
	}}
	h := newHarness(engine, map[string]*fakeDoc{"/doc.pdf": {path: "/doc.pdf", pages: 1}})

	outs := h.run(t, `{"id":"gone","pdf_path":"/nope.pdf"}`+"\n"+
		`{"id":"here","pdf_path":"/doc.pdf"}`+"\n")

	assert.Equal(t, "gone", outs[1]["id"])
	assert.Contains(t, outs[1]["error"], "no such file")
	assert.Equal(t, "fine", outs[2]["text"])
}

func TestEngineErrorIsContained(t *testing.T) {
	engine := &fakeEngine{
		errs:  map[string]error{pageKey("/bad.pdf", 0): fmt.Errorf("inference crashed")},
		lines: map[string][]ocr.Line{pageKey("/ok.pdf", 0): textLines("still alive")},
	}
	bad := &fakeDoc{path: "/bad.pdf", pages: 2}
	h := newHarness(engine, map[string]*fakeDoc{
		"/bad.pdf": bad,
		"/ok.pdf":  {path: "/ok.pdf", pages: 1},
	})

	outs := h.run(t, `{"id":"x","pdf_path":"/bad.pdf"}`+"\n"+
		`{"id":"y","pdf_path":"/ok.pdf"}`+"\n")

	assert.Contains(t, outs[1]["error"], "page 1")
	assert.Contains(t, outs[1]["error"], "inference crashed")
	assert.True(t, bad.closed, "document is released on the failure path")
	assert.Equal(t, "still alive", outs[2]["text"])
}

func TestPanicIsContained(t *testing.T) {
	engine := &fakeEngine{
		panics: map[string]bool{pageKey("/boom.pdf", 0): true},
		lines:  map[string][]ocr.Line{pageKey("/ok.pdf", 0): textLines("recovered")},
	}
	h := newHarness(engine, map[string]*fakeDoc{
		"/boom.pdf": {path: "/boom.pdf", pages: 1},
		"/ok.pdf":   {path: "/ok.pdf", pages: 1},
	})

	outs := h.run(t, `{"id":"p","pdf_path":"/boom.pdf"}`+"\n"+
		`{"id":"q","pdf_path":"/ok.pdf"}`+"\n")

	assert.Equal(t, "p", outs[1]["id"])
	assert.Contains(t, outs[1]["error"], "internal error")
	assert.Equal(t, "recovered", outs[2]["text"])
}

func TestOversizedLineDoesNotKillLoop(t *testing.T) {
	engine := &fakeEngine{lines: map[string][]ocr.Line{
		pageKey("/doc.pdf", 0): textLines("ok"),
	}}
	h := newHarness(engine, map[string]*fakeDoc{"/doc.pdf": {path: "/doc.pdf", pages: 1}})

	var input strings.Builder
	input.WriteString(strings.Repeat("a", maxLineBytes+1))
	input.WriteString("\n")
	input.WriteString(`{"id":"after","pdf_path":"/doc.pdf"}` + "\n")

	outs := h.run(t, input.String())
	require.Len(t, outs, 3)

	oversize := outs[1]
	assert.Nil(t, oversize["id"])
	assert.Contains(t, oversize["error"], "exceeds")

	assert.Equal(t, "after", outs[2]["id"])
	assert.Equal(t, "ok", outs[2]["text"])
}

func TestBlankLinesProduceNoOutput(t *testing.T) {
	h := newHarness(&fakeEngine{}, map[string]*fakeDoc{"/doc.pdf": {path: "/doc.pdf", pages: 0}})

	outs := h.run(t, "\n\n   \n"+`{"id":"only","pdf_path":"/doc.pdf"}`+"\n\n")
	require.Len(t, outs, 2, "readiness plus exactly one response")
	assert.Equal(t, "only", outs[1]["id"])
}

func TestResponsesInInputOrder(t *testing.T) {
	engine := &fakeEngine{lines: map[string][]ocr.Line{}}
	docs := map[string]*fakeDoc{}
	var input strings.Builder
	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("/doc%d.pdf", i)
		docs[path] = &fakeDoc{path: path, pages: 1}
		engine.lines[pageKey(path, 0)] = textLines(fmt.Sprintf("text %d", i))
		fmt.Fprintf(&input, `{"id":"req-%d","pdf_path":"%s"}`+"\n", i, path)
	}
	h := newHarness(engine, docs)

	outs := h.run(t, input.String())
	require.Len(t, outs, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("req-%d", i), outs[i+1]["id"])
	}
}

func TestSearchablePDFOutput(t *testing.T) {
	// The searchable-PDF path needs real PNG page images.
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 20, 20))))
	pagePNG := pngBuf.Bytes()

	engine := &fakeEngine{lines: map[string][]ocr.Line{
		string(pagePNG): {{
			Text: "hello",
			BBox: ocr.BoundingBox{X1: 1, Y1: 1, X2: 15, Y2: 5},
		}},
	}}

	doc := &pngDoc{png: pagePNG}
	outPath := filepath.Join(t.TempDir(), "searchable.pdf")

	var out bytes.Buffer
	w := New(Config{
		Engine: engine,
		Open: func(string) (Document, error) {
			return doc, nil
		},
		Output: &out,
	})
	input := fmt.Sprintf(`{"id":"s","pdf_path":"/doc.pdf","pdf_out":%q}`+"\n", outPath)
	require.NoError(t, w.Run(context.Background(), strings.NewReader(input)))

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(written, []byte("%PDF-")))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"page_count":1`)
}

func TestNewPreservesPDFSettings(t *testing.T) {
	w := New(Config{
		Engine: &fakeEngine{},
		Output: &bytes.Buffer{},
		PDF:    pdfocr.Config{Debug: true},
	})

	// Only zero fields are defaulted; caller settings survive.
	assert.True(t, w.pdfCfg.Debug)
	assert.Equal(t, pdfocr.DefaultConfig().LayerName, w.pdfCfg.LayerName)
	assert.Equal(t, pdfocr.DefaultFont, w.pdfCfg.Font)
}

// pngDoc is a one-page document whose render output is a real PNG.
type pngDoc struct{ png []byte }

func (d *pngDoc) PageCount() int { return 1 }
func (d *pngDoc) RenderPage(index, dpi int) (ocr.Image, error) {
	return ocr.Image{PNG: d.png, Width: 20, Height: 20, DPI: dpi}, nil
}
func (d *pngDoc) Close() error { return nil }
