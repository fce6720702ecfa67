// Package search ranks case vectors by cosine similarity and runs the
// end-to-end search and ingestion pipelines.
package search

import (
	"math"
	"sort"

	"github.com/precedex/precedex/internal/models"
	"github.com/precedex/precedex/internal/repository"
	"github.com/precedex/precedex/pkg/utils"
)

// Hit is one ranked candidate before metadata resolution.
type Hit struct {
	ID     string
	Source models.Source
	Score  float64
}

// CosineSimilarity returns the cosine of the angle between a and b, clamped
// to [0, 1]. Either vector having zero magnitude yields 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return utils.Clamp01(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Rank scores every entry against the query vector, orders by score
// descending with ascending id breaking ties, keeps the top k, and only then
// drops entries below minScore. The floor trims the final list rather than
// pulling lower-ranked candidates into it.
func Rank(query []float64, entries []repository.VectorEntry, topK int, minScore float64) []Hit {
	hits := make([]Hit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, Hit{
			ID:     e.ID,
			Source: e.Source,
			Score:  CosineSimilarity(query, e.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	if minScore > 0 {
		filtered := hits[:0]
		for _, h := range hits {
			if h.Score >= minScore {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}
	return hits
}
