// Package normalize turns raw extracted text into a canonical token sequence.
package normalize

import (
	"strings"
	"unicode"

	"github.com/blevesearch/go-porterstemmer"
)

// Normalizer applies the fixed normalization pipeline: lowercase folding,
// punctuation stripping, tokenization, stop-word removal, and Porter
// stemming. The pipeline is deterministic: identical input always yields an
// identical token sequence. Stored vectors depend on that across restarts.
type Normalizer struct {
	stopwords map[string]struct{}
}

// NewNormalizer returns a Normalizer with the fixed English stop-word set.
func NewNormalizer() *Normalizer {
	return &Normalizer{stopwords: stopwordSet()}
}

// Normalize returns the canonical token sequence for text. An empty result is
// valid (e.g. an all-stop-word document) and not an error; the resulting
// vector degenerates to near-zero and ranks poorly downstream.
func (n *Normalizer) Normalize(text string) []string {
	folded := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	var tokens []string
	for _, word := range strings.Fields(folded) {
		// Single-letter fragments carry no signal for term matching.
		if len(word) < 2 {
			continue
		}
		if _, stop := n.stopwords[word]; stop {
			continue
		}
		tokens = append(tokens, porterstemmer.StemString(word))
	}
	return tokens
}

// CollapseSpace trims text and collapses runs of whitespace into single
// spaces. Used to build display snippets from extracted text.
func CollapseSpace(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
