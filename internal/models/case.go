// Package models defines core data structures for cases, search options, and results.
package models

import (
	"fmt"
	"time"
)

// Source identifies where a case document came from.
type Source string

const (
	// SourceCorpus marks cases from the curated case corpus.
	SourceCorpus Source = "corpus"
	// SourceHelper marks cases submitted by platform users.
	SourceHelper Source = "helper"
)

// Valid reports whether s is a known source tag.
func (s Source) Valid() bool {
	return s == SourceCorpus || s == SourceHelper
}

// HelperExtras carries the fields specific to helper-submitted cases.
// They are owned by the helper-case workflow; the engine passes them through.
type HelperExtras struct {
	UserID    string  `json:"user_id"`
	Outcome   string  `json:"outcome,omitempty"`
	TotalCost float64 `json:"total_cost,omitempty"`
	Advice    string  `json:"advice,omitempty"`
}

// CaseDocument is one entry in the case repository. The vector is kept out of
// JSON responses; it lives in the vector log and the in-memory index.
type CaseDocument struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Source    Source        `json:"source"`
	Snippet   string        `json:"snippet"`
	FileRef   string        `json:"file_ref"`
	Pages     int           `json:"pages"`
	Visible   bool          `json:"visible"`
	Helper    *HelperExtras `json:"helper,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Vector    []float64     `json:"-"`
}

// CaseInput is the caller-supplied metadata for ingesting a case.
// ID may be empty; one is generated during ingestion.
type CaseInput struct {
	ID     string        `json:"id,omitempty"`
	Title  string        `json:"title,omitempty"`
	Source Source        `json:"source,omitempty"`
	Helper *HelperExtras `json:"helper,omitempty"`
}

// Validate checks the input and applies defaults: source defaults to corpus,
// and helper extras are only allowed on helper cases.
func (in *CaseInput) Validate() error {
	if in.Source == "" {
		in.Source = SourceCorpus
	}
	if !in.Source.Valid() {
		return fmt.Errorf("unknown source %q", in.Source)
	}
	if in.Helper != nil && in.Source != SourceHelper {
		return fmt.Errorf("helper fields are only valid for helper cases")
	}
	if in.Source == SourceHelper && in.Helper == nil {
		return fmt.Errorf("helper cases require helper fields")
	}
	return nil
}
