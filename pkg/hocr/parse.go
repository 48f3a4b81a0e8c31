package hocr

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

// Parse converts raw hOCR data into structured pages.
// It returns an error only when the input is not parseable HTML or contains
// no ocr_page element at all; damaged lines and words are skipped.
func Parse(data []byte) ([]Page, error) {
	decoded, err := decodeCharset(data)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(string(decoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hOCR HTML: %w", err)
	}

	var pages []Page
	var findPages func(*html.Node)
	findPages = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocr_page") {
			pages = append(pages, parsePage(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findPages(c)
		}
	}
	findPages(doc)

	if len(pages) == 0 {
		return nil, fmt.Errorf("no ocr_page elements found in hOCR data")
	}
	return pages, nil
}

// ParseTitle breaks down an hOCR title attribute into its properties.
// Example input: "bbox 100 200 300 400; x_wconf 95"
func ParseTitle(title string) map[string][]string {
	props := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		items := strings.Fields(strings.TrimSpace(part))
		if len(items) > 0 {
			props[items[0]] = items[1:]
		}
	}
	return props
}

// ParseBoundingBoxFromTitle extracts a bounding box from a title attribute.
// Returns nil if the title carries no usable bbox property.
func ParseBoundingBoxFromTitle(title string) *BoundingBox {
	if bbox, ok := ParseTitle(title)["bbox"]; ok && len(bbox) >= 4 {
		x1, _ := strconv.ParseFloat(bbox[0], 64)
		y1, _ := strconv.ParseFloat(bbox[1], 64)
		x2, _ := strconv.ParseFloat(bbox[2], 64)
		y2, _ := strconv.ParseFloat(bbox[3], 64)
		return &BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
	}
	return nil
}

// decodeCharset converts the data to UTF-8 when the document declares a
// legacy charset. Tesseract always emits UTF-8, but scanners that post-edit
// hOCR occasionally re-save it as Latin-1.
func decodeCharset(data []byte) ([]byte, error) {
	content := string(data)
	idx := strings.Index(content, "charset=")
	if idx < 0 {
		return data, nil
	}
	rest := content[idx+len("charset="):]
	fields := strings.FieldsFunc(rest, func(r rune) bool {
		return r == '"' || r == ';' || r == '\'' || r == '>' || r == ' '
	})
	// A declaration with no usable value is treated as UTF-8.
	if len(fields) == 0 {
		return data, nil
	}
	enc := strings.ToLower(fields[0])
	if enc == "utf-8" {
		return data, nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s hOCR data: %w", enc, err)
	}
	return decoded, nil
}

// parsePage extracts a page and all lines nested anywhere beneath it.
func parsePage(n *html.Node) Page {
	page := Page{}
	for _, attr := range n.Attr {
		switch attr.Key {
		case "id":
			page.ID = attr.Val
		case "title":
			page.Title = attr.Val
			if bbox := ParseBoundingBoxFromTitle(attr.Val); bbox != nil {
				page.BBox = *bbox
			}
			props := ParseTitle(attr.Val)
			if image, ok := props["image"]; ok && len(image) > 0 {
				page.ImageName = strings.Trim(image[0], `"`)
			}
			if ppageno, ok := props["ppageno"]; ok && len(ppageno) > 0 {
				page.PageNumber, _ = strconv.Atoi(ppageno[0])
			}
		}
	}

	// Lines may sit under areas and paragraphs or directly under the page;
	// collect them all in document order.
	var collectLines func(*html.Node)
	collectLines = func(node *html.Node) {
		if node.Type == html.ElementNode && hasClass(node, "ocr_line") {
			if line, ok := parseLine(node); ok {
				page.Lines = append(page.Lines, line)
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collectLines(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectLines(c)
	}

	return page
}

// parseLine extracts one line and its words. Lines without any word content
// are reported as not ok and skipped by the caller.
func parseLine(n *html.Node) (Line, bool) {
	line := Line{}
	for _, attr := range n.Attr {
		switch attr.Key {
		case "id":
			line.ID = attr.Val
		case "title":
			if bbox := ParseBoundingBoxFromTitle(attr.Val); bbox != nil {
				line.BBox = *bbox
			}
			if baseline, ok := ParseTitle(attr.Val)["baseline"]; ok {
				line.Baseline = strings.Join(baseline, " ")
			}
		}
	}

	var findWords func(*html.Node)
	findWords = func(node *html.Node) {
		if node.Type == html.ElementNode && hasClass(node, "ocrx_word") {
			if word, ok := parseWord(node); ok {
				line.Words = append(line.Words, word)
			}
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			findWords(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		findWords(c)
	}

	if len(line.Words) == 0 {
		return Line{}, false
	}

	var confSum float64
	for _, w := range line.Words {
		confSum += w.Confidence
	}
	line.Confidence = confSum / float64(len(line.Words))
	return line, true
}

// parseWord extracts a single word. Words with empty text are not ok.
func parseWord(n *html.Node) (Word, bool) {
	word := Word{}
	for _, attr := range n.Attr {
		switch attr.Key {
		case "id":
			word.ID = attr.Val
		case "title":
			if bbox := ParseBoundingBoxFromTitle(attr.Val); bbox != nil {
				word.BBox = *bbox
			}
			if conf, ok := ParseTitle(attr.Val)["x_wconf"]; ok && len(conf) > 0 {
				word.Confidence, _ = strconv.ParseFloat(conf[0], 64)
			}
		}
	}
	word.Text = textContent(n)
	if word.Text == "" {
		return Word{}, false
	}
	return word, true
}

// textContent gets all text from a node and its children.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var text string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text += textContent(c)
	}
	return strings.TrimSpace(text)
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" && strings.Contains(attr.Val, class) {
			return true
		}
	}
	return false
}
