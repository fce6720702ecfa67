package vectorize

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// modelArtifact is the on-disk form of a fitted model.
type modelArtifact struct {
	Fingerprint   string             `json:"fingerprint"`
	CreatedAt     time.Time          `json:"created_at"`
	Documents     int                `json:"documents"`
	Terms         []string           `json:"terms"`
	DomainWeights map[string]float64 `json:"domain_weights"`
	IDF           []float64          `json:"idf"`
}

// SaveModel writes the fitted model to path as a versioned JSON artifact.
// Parent directories are created if needed.
func SaveModel(path string, m *Model) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create model dir: %w", err)
		}
	}
	art := modelArtifact{
		Fingerprint:   m.Fingerprint,
		CreatedAt:     time.Now().UTC(),
		Documents:     m.Documents,
		Terms:         m.Terms,
		DomainWeights: m.DomainWeights,
		IDF:           m.IDF,
	}
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// LoadModel reads a model artifact from path and verifies its fingerprint
// against the recomputed value, refusing tampered or truncated artifacts.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var art modelArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if len(art.Terms) == 0 {
		return nil, fmt.Errorf("model artifact has no vocabulary")
	}
	if len(art.IDF) != len(art.Terms) {
		return nil, fmt.Errorf("model artifact IDF table length %d does not match %d terms", len(art.IDF), len(art.Terms))
	}
	m := &Model{
		Terms:         art.Terms,
		DomainWeights: art.DomainWeights,
		IDF:           art.IDF,
		Documents:     art.Documents,
		Fingerprint:   art.Fingerprint,
	}
	if m.DomainWeights == nil {
		m.DomainWeights = map[string]float64{}
	}
	if got := m.fingerprint(); got != art.Fingerprint {
		return nil, fmt.Errorf("model fingerprint mismatch: artifact says %s, content hashes to %s", art.Fingerprint, got)
	}
	m.buildIndex()
	return m, nil
}
