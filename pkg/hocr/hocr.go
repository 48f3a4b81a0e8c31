// Package hocr parses hOCR data, the HTML-based standard format in which
// OCR engines report recognized text together with positional metadata.
//
// The worker only needs the page → line → word slice of the hOCR
// hierarchy: lines are collected in document order regardless of how the
// producing engine nests them inside content areas or paragraphs. Elements
// that cannot be parsed are skipped rather than failing the document, since
// a single damaged word must never lose a whole page.
//
// Key Types:
//
// - Page: one recognized page with class 'ocr_page'
// - Line: a line of text with class 'ocr_line'
// - Word: a single word with class 'ocrx_word'
// - BoundingBox: pixel rectangle from the hOCR 'bbox' property
//
// Main Functions:
//
// - Parse: converts raw hOCR HTML into Pages
// - ParseTitle / ParseBoundingBoxFromTitle: decode hOCR title attributes
package hocr
