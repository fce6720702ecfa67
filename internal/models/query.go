package models

import (
	"fmt"
	"strings"
)

// Default and maximum values for SearchOptions.TopK.
const (
	DefaultTopK = 10
	MaxTopK     = 100
)

// SearchOptions controls ranking: how many results, the score floor applied
// after ranking, and which sources to search.
type SearchOptions struct {
	TopK     int      `json:"top_k,omitempty"`
	MinScore float64  `json:"min_score,omitempty"`
	Sources  []Source `json:"sources,omitempty"`
}

// Validate normalizes the options: TopK defaults to DefaultTopK and is capped
// at MaxTopK, MinScore must be in [0, 1], and empty Sources means both.
func (o *SearchOptions) Validate() error {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.TopK > MaxTopK {
		o.TopK = MaxTopK
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		return fmt.Errorf("min_score must be in [0, 1], got %v", o.MinScore)
	}
	if len(o.Sources) == 0 {
		o.Sources = []Source{SourceCorpus, SourceHelper}
	}
	for _, s := range o.Sources {
		if !s.Valid() {
			return fmt.Errorf("unknown source %q", s)
		}
	}
	return nil
}

// ParseSources parses a comma-separated source list ("corpus,helper").
// An empty string yields nil (meaning all sources).
func ParseSources(s string) ([]Source, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []Source
	for _, part := range strings.Split(s, ",") {
		src := Source(strings.TrimSpace(part))
		if !src.Valid() {
			return nil, fmt.Errorf("unknown source %q", src)
		}
		out = append(out, src)
	}
	return out, nil
}
