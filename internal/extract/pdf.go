package extract

import (
	"bytes"

	"github.com/ledongthuc/pdf"
)

// extractPDFPages returns one Page per PDF page. Null pages (deleted or
// malformed page objects) are skipped; a page that fails text extraction
// fails the whole document so the caller can reject it.
func extractPDFPages(content []byte) ([]Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
