package vectorize

import (
	"errors"
	"math"
	"sync"

	"github.com/precedex/precedex/pkg/utils"
)

// ErrModelNotLoaded is returned when Vectorize is called before a fitted
// model has been loaded into the process.
var ErrModelNotLoaded = errors.New("vectorizer model not loaded")

// Vectorizer converts token sequences into fixed-length vectors using a
// loaded Model. The model is process-wide, read-mostly state: it is swapped
// whole, never mutated in place, so concurrent Vectorize calls only ever see
// a complete build.
type Vectorizer struct {
	mu    sync.RWMutex
	model *Model
}

// NewVectorizer returns a Vectorizer with no model loaded.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{}
}

// Load installs a fitted model. Replacing a previous model is an explicit
// administrative cutover; callers must only do so together with a rebuild of
// the stored vectors (the repository refuses mixed fingerprints).
func (v *Vectorizer) Load(m *Model) {
	if m.index == nil {
		m.buildIndex()
	}
	v.mu.Lock()
	v.model = m
	v.mu.Unlock()
}

// Model returns the loaded model, or nil.
func (v *Vectorizer) Model() *Model {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.model
}

// Fingerprint returns the loaded model's fingerprint, or "".
func (v *Vectorizer) Fingerprint() string {
	if m := v.Model(); m != nil {
		return m.Fingerprint
	}
	return ""
}

// Dimension returns the loaded model's vector length, or 0.
func (v *Vectorizer) Dimension() int {
	if m := v.Model(); m != nil {
		return m.Dimension()
	}
	return 0
}

// Vectorize converts tokens into an L2-normalized TF-IDF vector. Each
// in-vocabulary term scores sublinear TF (1+log tf) times its IDF times its
// domain weight. Out-of-vocabulary tokens are dropped silently. An empty or
// fully out-of-vocabulary sequence yields the zero vector, which is valid.
func (v *Vectorizer) Vectorize(tokens []string) ([]float64, error) {
	m := v.Model()
	if m == nil {
		return nil, ErrModelNotLoaded
	}

	vec := make([]float64, m.Dimension())
	tf := make(map[int]int)
	for _, tok := range tokens {
		if idx, ok := m.index[tok]; ok {
			tf[idx]++
		}
	}
	if len(tf) == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		weight := 1.0
		if w, ok := m.DomainWeights[m.Terms[idx]]; ok {
			weight = w
		}
		vec[idx] = (1 + math.Log(float64(count))) * m.IDF[idx] * weight
	}
	utils.NormalizeL2(vec)
	return vec, nil
}
