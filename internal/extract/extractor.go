// Package extract turns uploaded document payloads into plain text.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
)

// Extractor extracts plain text and a page count from document payloads.
// Extraction is a pure transformation: no state is retained on failure.
type Extractor struct {
	maxPayload int
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxPayload overrides the payload size ceiling (bytes). Used in tests.
func WithMaxPayload(n int) ExtractorOption {
	return func(e *Extractor) { e.maxPayload = n }
}

// NewExtractor returns an Extractor with the default payload ceiling.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{maxPayload: MaxPayloadSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text content and page count of payload. name is the
// original file name; its extension selects the format, with header sniffing
// as fallback. Oversized payloads fail with ErrPayloadTooLarge before any
// parsing; malformed, encrypted, or textless documents fail with
// *ExtractionError.
func (e *Extractor) Extract(payload []byte, name string) (string, int, error) {
	if len(payload) > e.maxPayload {
		return "", 0, fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, len(payload), e.maxPayload)
	}
	if len(payload) == 0 {
		return "", 0, extractionErr("plain", "empty payload", nil)
	}

	text, pages, err := e.extractByFormat(payload, formatFor(payload, name))
	if err != nil {
		return "", 0, err
	}
	if strings.TrimSpace(text) == "" {
		return "", 0, extractionErr(formatFor(payload, name), "no extractable characters", nil)
	}
	return text, pages, nil
}

func (e *Extractor) extractByFormat(payload []byte, format string) (string, int, error) {
	switch format {
	case "pdf":
		return extractPDF(payload)
	case "docx":
		return extractDOCX(payload)
	case "xlsx":
		return extractXLSX(payload)
	default:
		return extractPlain(payload)
	}
}

// formatFor maps the file extension to a format name. When the extension is
// missing or unknown, the payload header decides: %PDF- means PDF, a zip
// magic means DOCX (the common upload case), anything else is plain text.
func formatFor(payload []byte, name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".xlsx":
		return "xlsx"
	case ".txt", ".md", ".rst":
		return "plain"
	}
	if bytes.HasPrefix(payload, pdfMagic) {
		return "pdf"
	}
	if bytes.HasPrefix(payload, zipMagic) {
		return "docx"
	}
	return "plain"
}
