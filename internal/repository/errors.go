package repository

import (
	"errors"
	"fmt"
)

// ErrDuplicateID is returned by Insert when the case identifier exists.
var ErrDuplicateID = errors.New("case id already exists")

// ErrNotFound is returned when a case identifier is absent.
var ErrNotFound = errors.New("case not found")

// CorruptError reports an inconsistency between the durable stores detected
// at load: fingerprint or dimension mismatch, or metadata and vectors
// disagreeing on membership. It is fatal at startup: the engine must not
// serve queries against an index it cannot trust.
type CorruptError struct {
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("repository corrupt: %s", e.Reason)
}

func corruptf(format string, args ...interface{}) *CorruptError {
	return &CorruptError{Reason: fmt.Sprintf(format, args...)}
}
