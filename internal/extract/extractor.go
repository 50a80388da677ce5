// Package extract provides page-oriented text extraction from document formats.
package extract

import (
	"fmt"
	"strings"
)

// Page is one page of extracted text. Numbers start at 1.
type Page struct {
	Number int
	Text   string
}

// Extractor extracts text pages from raw document bytes.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Pages extracts text from content based on the file extension (with leading
// dot, e.g. ".pdf"). PDFs yield one Page per physical page; every other
// supported format yields a single page. Unknown extensions are treated as
// plain text.
func (e *Extractor) Pages(content []byte, ext string) ([]Page, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDFPages(content)
	case ".docx":
		return singlePage(extractDOCX(content))
	case ".xlsx":
		return singlePage(extractExcel(content))
	case ".txt", ".md", ".rst", "":
		return singlePage(extractPlain(content))
	default:
		return singlePage(extractPlain(content))
	}
}

func singlePage(text string, err error) ([]Page, error) {
	if err != nil {
		return nil, err
	}
	return []Page{{Number: 1, Text: text}}, nil
}

// PDFPages extracts one Page per physical PDF page.
func (e *Extractor) PDFPages(content []byte) ([]Page, error) {
	return extractPDFPages(content)
}

// errorf keeps error formatting consistent across format handlers.
func errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
