package benchmark

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/precedex/precedex/internal/models"
	"github.com/precedex/precedex/internal/normalize"
	"github.com/precedex/precedex/internal/repository"
	"github.com/precedex/precedex/internal/search"
	"github.com/precedex/precedex/internal/vectorize"
)

func randomEntries(n, dim int) []repository.VectorEntry {
	rng := rand.New(rand.NewSource(1))
	entries := make([]repository.VectorEntry, n)
	for i := range entries {
		vec := make([]float64, dim)
		for j := range vec {
			vec[j] = rng.Float64()
		}
		entries[i] = repository.VectorEntry{
			ID:     fmt.Sprintf("case-%05d", i),
			Source: models.SourceCorpus,
			Vector: vec,
		}
	}
	return entries
}

func BenchmarkRank(b *testing.B) {
	entries := randomEntries(10000, 512)
	query := entries[0].Vector
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = search.Rank(query, entries, 10, 0)
	}
}

func BenchmarkCosineSimilarity(b *testing.B) {
	entries := randomEntries(2, 4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = search.CosineSimilarity(entries[0].Vector, entries[1].Vector)
	}
}

func BenchmarkNormalizeAndVectorize(b *testing.B) {
	normalizer := normalize.NewNormalizer()
	corpus := [][]string{
		normalizer.Normalize("The landlord filed an eviction notice against the tenant for unpaid rent."),
		normalizer.Normalize("The supplier sued for breach of contract after the buyer refused to pay."),
		normalizer.Normalize("Damages were awarded for negligence after the accident caused injury."),
	}
	model, err := vectorize.Fit(corpus, map[string]float64{}, vectorize.FitOptions{MinDocFreq: 1, MaxDocRatio: 1})
	if err != nil {
		b.Fatal(err)
	}
	vectorizer := vectorize.NewVectorizer()
	vectorizer.Load(model)

	text := "The tenant received an eviction notice and disputed the unpaid rent claim under the lease."
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tokens := normalizer.Normalize(text)
		if _, err := vectorizer.Vectorize(tokens); err != nil {
			b.Fatal(err)
		}
	}
}
