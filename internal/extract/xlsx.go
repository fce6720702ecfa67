package extract

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX extracts cell text from an .xlsx payload, one tab-separated
// line per row. Sheets stand in for pages in the page count.
func extractXLSX(payload []byte) (string, int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return "", 0, extractionErr("xlsx", "open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var buf strings.Builder
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", 0, extractionErr("xlsx", "read sheet "+sheet, err)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	return strings.TrimSpace(buf.String()), len(sheets), nil
}
