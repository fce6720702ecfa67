package extract

import (
	"archive/zip"
	"bytes"
	"io"
	"regexp"
	"strings"
)

// Paths and content types inside an OOXML wordprocessing package.
const (
	docxBodyPath     = "word/document.xml"
	contentTypesPath = "[Content_Types].xml"
	docxBodyType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// textNode matches <w:t>text</w:t> with any attributes (e.g. xml:space).
var textNode = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// bodyPartAttrs match the Override entry for the main document part in
// [Content_Types].xml, in either attribute order.
var (
	bodyPartA = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxBodyType) + `"`)
	bodyPartB = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxBodyType) + `"[^>]+PartName="([^"]+)"`)
)

// extractDOCX extracts text from a .docx payload. DOCX is a zip holding the
// document body as XML; all <w:t> text nodes are collected so content
// survives regardless of paragraph and run attributes. Page count is not
// recorded in OOXML, so a single page is reported.
func extractDOCX(payload []byte) (string, int, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", 0, extractionErr("docx", "not a zip archive", err)
	}

	bodyPath := findBodyPath(zr)
	if bodyPath == "" {
		bodyPath = docxBodyPath
	}

	bodyXML, err := readZipEntry(zr, bodyPath)
	if err != nil {
		return "", 0, extractionErr("docx", "read "+bodyPath, err)
	}
	if bodyXML == nil {
		return "", 0, extractionErr("docx", bodyPath+" not found", nil)
	}

	parts := textNode.FindAllStringSubmatch(string(bodyXML), -1)
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(p[1]))
	}
	return strings.TrimSpace(b.String()), 1, nil
}

// findBodyPath resolves the main document part from [Content_Types].xml.
// Returns "" when the package carries no override for it.
func findBodyPath(zr *zip.Reader) string {
	data, err := readZipEntry(zr, contentTypesPath)
	if err != nil || data == nil {
		return ""
	}
	content := string(data)
	if m := bodyPartA.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := bodyPartB.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

// readZipEntry returns the contents of the named entry, or nil if absent.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, nil
}
