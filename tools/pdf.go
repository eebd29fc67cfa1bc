package tools

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxPDFPages bounds how many pages are extracted per document.
const DefaultMaxPDFPages = 20

// PDFToText extracts the embedded text layer of up to maxPages pages. Pages
// without a text layer are skipped; there is no OCR fallback.
func PDFToText(data []byte, maxPages int) (string, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPDFPages
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	total := r.NumPage()
	if total > maxPages {
		total = maxPages
	}

	var b strings.Builder
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- page %d ---\n", i)
		b.WriteString(text)
	}
	return strings.TrimSpace(b.String()), nil
}
