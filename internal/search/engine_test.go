package search

import (
	"math"
	"testing"

	"github.com/precedex/precedex/internal/models"
	"github.com/precedex/precedex/internal/repository"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0, 0}, []float64{1, 0, 0}, 1.0},
		{"orthogonal", []float64{1, 0, 0}, []float64{0, 1, 0}, 0.0},
		{"close", []float64{1, 0, 0}, []float64{0.9, 0.1, 0}, 0.9 / math.Sqrt(0.82)},
		{"zero query", []float64{0, 0, 0}, []float64{1, 0, 0}, 0.0},
		{"zero candidate", []float64{1, 0, 0}, []float64{0, 0, 0}, 0.0},
		{"both zero", []float64{0, 0}, []float64{0, 0}, 0.0},
		{"length mismatch", []float64{1, 0}, []float64{1, 0, 0}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_Clamped(t *testing.T) {
	// Accumulated floating point error on parallel vectors must not push the
	// score past 1.
	a := make([]float64, 100)
	for i := range a {
		a[i] = 0.1
	}
	if got := CosineSimilarity(a, a); got > 1.0 {
		t.Errorf("score %v exceeds 1.0", got)
	}
}

func entriesABC() []repository.VectorEntry {
	return []repository.VectorEntry{
		{ID: "A", Source: models.SourceCorpus, Vector: []float64{1, 0, 0}},
		{ID: "B", Source: models.SourceCorpus, Vector: []float64{0, 1, 0}},
		{ID: "C", Source: models.SourceCorpus, Vector: []float64{0.9, 0.1, 0}},
	}
}

func TestRank_TopK(t *testing.T) {
	hits := Rank([]float64{1, 0, 0}, entriesABC(), 2, 0)
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "A" || math.Abs(hits[0].Score-1.0) > 1e-9 {
		t.Errorf("hit 0 = %+v, want A at 1.0", hits[0])
	}
	wantC := 0.9 / math.Sqrt(0.82)
	if hits[1].ID != "C" || math.Abs(hits[1].Score-wantC) > 1e-9 {
		t.Errorf("hit 1 = %+v, want C at %v", hits[1], wantC)
	}
}

func TestRank_TieBreaksByID(t *testing.T) {
	entries := []repository.VectorEntry{
		{ID: "zeta", Vector: []float64{1, 0}},
		{ID: "alpha", Vector: []float64{1, 0}},
		{ID: "mid", Vector: []float64{1, 0}},
	}
	hits := Rank([]float64{1, 0}, entries, 10, 0)
	want := []string{"alpha", "mid", "zeta"}
	for i, id := range want {
		if hits[i].ID != id {
			t.Errorf("hit %d = %s, want %s", i, hits[i].ID, id)
		}
	}
}

func TestRank_MinScoreFiltersAfterTruncation(t *testing.T) {
	hits := Rank([]float64{1, 0, 0}, entriesABC(), 2, 0.999)
	if len(hits) != 1 || hits[0].ID != "A" {
		t.Fatalf("hits = %+v, want only A", hits)
	}
}

func TestRank_ZeroQueryVector(t *testing.T) {
	hits := Rank([]float64{0, 0, 0}, entriesABC(), 10, 0)
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	for _, h := range hits {
		if h.Score != 0 {
			t.Errorf("hit %s score = %v, want 0", h.ID, h.Score)
		}
	}
	if hits := Rank([]float64{0, 0, 0}, entriesABC(), 10, 0.1); len(hits) != 0 {
		t.Errorf("min_score should drop all zero-score hits, got %d", len(hits))
	}
}

func TestRank_EmptyEntries(t *testing.T) {
	if hits := Rank([]float64{1, 0}, nil, 10, 0); len(hits) != 0 {
		t.Errorf("got %d hits for empty corpus", len(hits))
	}
}
