package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/precedex/precedex/internal/extract"
	"github.com/precedex/precedex/internal/models"
	"github.com/precedex/precedex/internal/normalize"
	"github.com/precedex/precedex/internal/repository"
	"github.com/precedex/precedex/internal/vectorize"
)

var trainingTexts = []string{
	"The landlord filed an eviction notice against the tenant for unpaid rent on the lease.",
	"The tenant disputed the eviction claiming the lease permitted late rent payment.",
	"The supplier sued for breach of contract after the buyer refused to pay the invoice.",
	"The buyer alleged the contract was void and the invoice overstated the damages.",
	"Damages were awarded for negligence after the accident caused personal injury.",
}

func newTestService(t *testing.T) (*Service, *repository.Repository) {
	t.Helper()
	normalizer := normalize.NewNormalizer()

	corpus := make([][]string, len(trainingTexts))
	for i, text := range trainingTexts {
		corpus[i] = normalizer.Normalize(text)
	}
	weights := vectorize.PrepareDomainWeights(normalizer, []vectorize.DomainTerm{
		{Term: "eviction", Weight: 2.5},
		{Term: "breach of contract", Weight: 2.5},
		{Term: "negligence", Weight: 2.0},
	})
	model, err := vectorize.Fit(corpus, weights, vectorize.FitOptions{MinDocFreq: 1, MaxDocRatio: 1})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	vectorizer := vectorize.NewVectorizer()
	vectorizer.Load(model)

	dir := t.TempDir()
	repo, err := repository.New(
		filepath.Join(dir, "cases.db"),
		filepath.Join(dir, "vectors.bin"),
		filepath.Join(dir, "files"),
		model.Fingerprint, model.Dimension(),
	)
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	svc := NewService(extract.NewExtractor(), normalizer, vectorizer, repo)
	return svc, repo
}

func ingestText(t *testing.T, svc *Service, id, text string, input models.CaseInput) *models.CaseDocument {
	t.Helper()
	input.ID = id
	doc, err := svc.IngestCase(context.Background(), []byte(text), id+".txt", input)
	if err != nil {
		t.Fatalf("IngestCase %s: %v", id, err)
	}
	return doc
}

func TestService_SelfSimilarity(t *testing.T) {
	svc, _ := newTestService(t)
	evictionText := "Landlord served an eviction notice over unpaid rent under the lease."
	ingestText(t, svc, "eviction-1", evictionText, models.CaseInput{})
	ingestText(t, svc, "contract-1",
		"The supplier claims breach of contract over an unpaid invoice.", models.CaseInput{})

	resp, err := svc.SimilaritySearch(context.Background(), []byte(evictionText), "query.txt", models.SearchOptions{})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	top := resp.Results[0]
	if top.CaseID != "eviction-1" {
		t.Errorf("top result = %s, want eviction-1", top.CaseID)
	}
	if math.Abs(top.Score-1.0) > 1e-9 {
		t.Errorf("self similarity = %v, want 1.0", top.Score)
	}
	if top.Rank != 1 || resp.Results[1].Rank != 2 {
		t.Errorf("ranks = %d, %d", top.Rank, resp.Results[1].Rank)
	}
	if resp.Results[1].Score >= top.Score {
		t.Errorf("unrelated case scored %v >= %v", resp.Results[1].Score, top.Score)
	}
}

func TestService_SourceFilter(t *testing.T) {
	svc, _ := newTestService(t)
	helper := &models.HelperExtras{UserID: "u-1", Outcome: "settled", TotalCost: 800, Advice: "negotiate first"}
	ingestText(t, svc, "corpus-1", "Eviction dispute over the lease and unpaid rent.", models.CaseInput{})
	ingestText(t, svc, "helper-1", "My landlord started an eviction over late rent.",
		models.CaseInput{Source: models.SourceHelper, Helper: helper})

	resp, err := svc.SimilaritySearch(context.Background(), []byte("eviction notice for unpaid rent"), "q.txt",
		models.SearchOptions{Sources: []models.Source{models.SourceHelper}})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].CaseID != "helper-1" {
		t.Fatalf("results = %+v, want only helper-1", resp.Results)
	}
	got := resp.Results[0].Helper
	if got == nil || got.UserID != "u-1" || got.Advice != "negotiate first" {
		t.Errorf("helper extras = %+v", got)
	}
}

func TestService_IngestDefaults(t *testing.T) {
	svc, repo := newTestService(t)
	doc, err := svc.IngestCase(context.Background(),
		[]byte("Negligence claim after a traffic accident caused injury."),
		"accident report.txt", models.CaseInput{})
	if err != nil {
		t.Fatalf("IngestCase: %v", err)
	}
	if doc.ID == "" {
		t.Error("no id generated")
	}
	if doc.Title != "accident report" {
		t.Errorf("title = %q, want derived from file name", doc.Title)
	}
	if doc.Source != models.SourceCorpus {
		t.Errorf("source = %q, want corpus", doc.Source)
	}
	if !doc.Visible {
		t.Error("ingested case not visible")
	}
	if doc.Snippet == "" {
		t.Error("no snippet stored")
	}
	if _, err := repo.Files().Read(doc.FileRef); err != nil {
		t.Errorf("payload not stored: %v", err)
	}
}

func TestService_IngestDuplicateKeepsPayload(t *testing.T) {
	svc, repo := newTestService(t)
	original := "Eviction hearing scheduled after the rent dispute."
	doc := ingestText(t, svc, "dup", original, models.CaseInput{})

	_, err := svc.IngestCase(context.Background(), []byte("a different document entirely"),
		"dup.txt", models.CaseInput{ID: "dup"})
	if !errors.Is(err, repository.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	payload, err := repo.Files().Read(doc.FileRef)
	if err != nil {
		t.Fatalf("original payload lost: %v", err)
	}
	if string(payload) != original {
		t.Errorf("payload overwritten: %q", payload)
	}
}

func TestService_ConcurrentSameIDIngest(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	payloads := [][]byte{
		[]byte("The tenant disputes the eviction notice over unpaid rent."),
		[]byte("The landlord seeks damages for breach of the lease contract."),
	}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("contested-%d", i)
		var wg sync.WaitGroup
		docs := make([]*models.CaseDocument, len(payloads))
		errs := make([]error, len(payloads))
		for j := range payloads {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				docs[j], errs[j] = svc.IngestCase(ctx, payloads[j], id+".txt", models.CaseInput{ID: id})
			}(j)
		}
		wg.Wait()

		winner := -1
		dups := 0
		for j, err := range errs {
			switch {
			case err == nil:
				winner = j
			case errors.Is(err, repository.ErrDuplicateID):
				dups++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if winner < 0 || dups != len(payloads)-1 {
			t.Fatalf("want one success and one duplicate, got %v", errs)
		}
		stored, err := repo.Files().Read(docs[winner].FileRef)
		if err != nil {
			t.Fatalf("winning payload unreadable after concurrent ingest: %v", err)
		}
		if !bytes.Equal(stored, payloads[winner]) {
			t.Errorf("stored payload does not match the winning ingest: %q", stored)
		}
	}
}

func TestService_IngestInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.IngestCase(context.Background(), []byte("text"), "x.txt",
		models.CaseInput{Source: models.SourceHelper})
	if err == nil {
		t.Fatal("helper case without helper fields accepted")
	}
}

func TestService_SearchRejectsBadOptions(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SimilaritySearch(context.Background(), []byte("text"), "x.txt",
		models.SearchOptions{MinScore: 1.5})
	if err == nil {
		t.Fatal("min_score out of range accepted")
	}
}

func TestService_SearchExtractionError(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SimilaritySearch(context.Background(), []byte{}, "empty.txt", models.SearchOptions{})
	if err == nil {
		t.Fatal("empty payload accepted")
	}
	var exErr *extract.ExtractionError
	if !errors.As(err, &exErr) {
		t.Errorf("err = %v, want *extract.ExtractionError", err)
	}
}

func TestService_SearchModelNotLoaded(t *testing.T) {
	svc, _ := newTestService(t)
	svc.vectorizer = vectorize.NewVectorizer() // fresh, nothing loaded
	_, err := svc.SimilaritySearch(context.Background(), []byte("text about rent"), "q.txt", models.SearchOptions{})
	if !errors.Is(err, vectorize.ErrModelNotLoaded) {
		t.Fatalf("err = %v, want ErrModelNotLoaded", err)
	}
}
