package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDF extracts text from all pages of a PDF payload. Encrypted or
// malformed PDFs fail here; the reader refuses password-protected files.
func extractPDF(payload []byte) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", 0, extractionErr("pdf", "open document", err)
	}
	numPages := r.NumPage()
	var buf bytes.Buffer
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, extractionErr("pdf", fmt.Sprintf("page %d", i), err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), numPages, nil
}
