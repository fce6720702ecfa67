// Package vectorize converts normalized token sequences into fixed-length
// TF-IDF vectors over a vocabulary of general and weighted legal terms.
package vectorize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Tokenizer is the contract the vectorizer needs from the text normalizer.
type Tokenizer interface {
	Normalize(text string) []string
}

// Model is a fitted vocabulary and term-weighting model. It is immutable
// after Fit; rebuilding produces a new Model with a new fingerprint.
type Model struct {
	// Terms is the ordered vocabulary; its length is the vector dimension.
	Terms []string `json:"terms"`
	// DomainWeights maps vocabulary terms to their multiplicative boost
	// (> 1.0). Terms absent from the map carry weight 1.0.
	DomainWeights map[string]float64 `json:"domain_weights"`
	// IDF holds the smoothed inverse document frequency per term, aligned
	// with Terms.
	IDF []float64 `json:"idf"`
	// Documents is the training corpus size.
	Documents int `json:"documents"`
	// Fingerprint binds stored vectors to this exact build.
	Fingerprint string `json:"fingerprint"`

	index map[string]int
}

// Dimension returns the vector length produced by this model.
func (m *Model) Dimension() int { return len(m.Terms) }

func (m *Model) buildIndex() {
	m.index = make(map[string]int, len(m.Terms))
	for i, t := range m.Terms {
		m.index[t] = i
	}
}

// fingerprint computes the SHA-256 over the canonical serialization of the
// vocabulary, weights, and IDF table.
func (m *Model) fingerprint() string {
	h := sha256.New()
	for i, term := range m.Terms {
		fmt.Fprintf(h, "%s|%.12g|%.12g\n", term, m.DomainWeights[term], m.IDF[i])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FitOptions tunes vocabulary selection during Fit.
type FitOptions struct {
	// MinDocFreq drops general terms appearing in fewer documents.
	MinDocFreq int
	// MaxDocRatio drops general terms appearing in more than this fraction
	// of documents (near-ubiquitous terms carry no signal).
	MaxDocRatio float64
}

// DefaultFitOptions mirror the weighting the engine was tuned with.
func DefaultFitOptions() FitOptions {
	return FitOptions{MinDocFreq: 2, MaxDocRatio: 0.8}
}

// Fit builds a Model from a corpus of normalized token sequences plus the
// domain term weight table (keys already normalized, weights > 1.0). Domain
// terms always enter the vocabulary, regardless of document frequency.
// Fit runs offline; it is never on the request path.
func Fit(corpus [][]string, domainWeights map[string]float64, opts FitOptions) (*Model, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("training corpus is empty")
	}
	if opts.MinDocFreq <= 0 {
		opts.MinDocFreq = 1
	}
	if opts.MaxDocRatio <= 0 || opts.MaxDocRatio > 1 {
		opts.MaxDocRatio = 1
	}

	df := make(map[string]int)
	for _, tokens := range corpus {
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	n := len(corpus)
	maxDF := int(opts.MaxDocRatio * float64(n))
	terms := make([]string, 0, len(df))
	for term, count := range df {
		if _, domain := domainWeights[term]; domain {
			continue // added below regardless of frequency
		}
		if count < opts.MinDocFreq || count > maxDF {
			continue
		}
		terms = append(terms, term)
	}
	for term := range domainWeights {
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("no terms survived vocabulary selection")
	}
	// Sorted vocabulary keeps dimension order stable across builds.
	sort.Strings(terms)

	weights := make(map[string]float64, len(domainWeights))
	for term, w := range domainWeights {
		if w <= 1.0 {
			return nil, fmt.Errorf("domain term %q has weight %v, must be > 1.0", term, w)
		}
		weights[term] = w
	}

	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+float64(n))/(1+float64(df[term]))) + 1.0
	}

	m := &Model{
		Terms:         terms,
		DomainWeights: weights,
		IDF:           idf,
		Documents:     n,
	}
	m.Fingerprint = m.fingerprint()
	m.buildIndex()
	return m, nil
}

// DomainTerm is one curated legal vocabulary entry.
type DomainTerm struct {
	Term     string  `json:"term"`
	Category string  `json:"category,omitempty"`
	Weight   float64 `json:"weight"`
}

// PrepareDomainWeights normalizes raw domain terms through the same pipeline
// documents go through and returns the weight table keyed by normalized
// token. Multi-word terms contribute each of their tokens; when normalized
// forms collide, the highest weight wins.
func PrepareDomainWeights(tok Tokenizer, terms []DomainTerm) map[string]float64 {
	weights := make(map[string]float64)
	for _, dt := range terms {
		for _, t := range tok.Normalize(strings.ToLower(dt.Term)) {
			if dt.Weight > weights[t] {
				weights[t] = dt.Weight
			}
		}
	}
	return weights
}
