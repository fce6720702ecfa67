package extract

import (
	"errors"
	"fmt"
)

// MaxPayloadSize is the fixed payload ceiling, checked before any parsing.
const MaxPayloadSize = 10 << 20 // 10 MiB

// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadSize.
// The check happens before extraction is attempted.
var ErrPayloadTooLarge = errors.New("payload exceeds size limit")

// ExtractionError reports that a payload could not be turned into text:
// malformed, encrypted, or containing no extractable characters.
type ExtractionError struct {
	Format string // "pdf", "docx", "xlsx", "plain"
	Reason string
	Err    error // underlying parser error, may be nil
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Format, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func extractionErr(format, reason string, err error) *ExtractionError {
	return &ExtractionError{Format: format, Reason: reason, Err: err}
}
