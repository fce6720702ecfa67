package search

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/precedex/precedex/internal/models"
	"github.com/precedex/precedex/internal/normalize"
	"github.com/precedex/precedex/internal/repository"
	"github.com/precedex/precedex/pkg/utils"
)

// DefaultSnippetLength caps the stored and returned case preview text.
const DefaultSnippetLength = 200

// Extractor turns a raw document payload into plain text and a page count.
type Extractor interface {
	Extract(payload []byte, name string) (string, int, error)
}

// Normalizer turns plain text into the token stream the vectorizer consumes.
type Normalizer interface {
	Normalize(text string) []string
}

// Vectorizer maps a token stream to a fixed-dimension vector.
type Vectorizer interface {
	Vectorize(tokens []string) ([]float64, error)
}

// Service wires the extraction, normalization, and vectorization stages to
// the case repository. Both ingestion and search run a document through the
// same pipeline, so a case queried with its own payload scores 1.0 against
// itself.
type Service struct {
	extractor  Extractor
	normalizer Normalizer
	vectorizer Vectorizer
	repo       *repository.Repository
	logger     *zap.Logger
	snippetLen int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets a logger for pipeline debug output.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithSnippetLength overrides the stored snippet length.
func WithSnippetLength(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.snippetLen = n
		}
	}
}

// NewService creates the search service.
func NewService(ex Extractor, n Normalizer, v Vectorizer, repo *repository.Repository, opts ...ServiceOption) *Service {
	s := &Service{
		extractor:  ex,
		normalizer: n,
		vectorizer: v,
		repo:       repo,
		snippetLen: DefaultSnippetLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SimilaritySearch runs the query document through the pipeline and returns
// the cases most similar to it, ranked by cosine similarity.
func (s *Service) SimilaritySearch(ctx context.Context, payload []byte, name string, opts models.SearchOptions) (*models.SearchResponse, error) {
	start := time.Now()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	text, _, err := s.extractor.Extract(payload, name)
	if err != nil {
		return nil, err
	}
	tokens := s.normalizer.Normalize(text)
	vec, err := s.vectorizer.Vectorize(tokens)
	if err != nil {
		return nil, err
	}

	entries := s.repo.Vectors(opts.Sources)
	hits := Rank(vec, entries, opts.TopK, opts.MinScore)

	results := make([]*models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		doc, err := s.repo.Get(ctx, hit.ID)
		if err != nil {
			// Removed between snapshot and resolution; skip rather than fail.
			continue
		}
		results = append(results, &models.SearchResult{
			CaseID:  doc.ID,
			Title:   doc.Title,
			Source:  doc.Source,
			Score:   hit.Score,
			Rank:    len(results) + 1,
			Snippet: doc.Snippet,
			FileRef: doc.FileRef,
			Helper:  doc.Helper,
		})
	}

	if s.logger != nil {
		s.logger.Debug("similarity search",
			zap.Int("candidates", len(entries)),
			zap.Int("results", len(results)),
			zap.Duration("took", time.Since(start)),
		)
	}
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// IngestCase runs the payload through the pipeline and stores it as a new
// case. The payload is kept for later download; if any stage of the durable
// write fails, metadata, vector, and payload are all rolled back together.
func (s *Service) IngestCase(ctx context.Context, payload []byte, name string, input models.CaseInput) (*models.CaseDocument, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	if input.Title == "" {
		input.Title = titleFromName(name)
	}

	// Cheap duplicate check before running the pipeline. Insert re-checks
	// under its write lock, so a concurrent ingest of the same id still
	// resolves to exactly one winner.
	if _, err := s.repo.Get(ctx, input.ID); err == nil {
		return nil, fmt.Errorf("%w: %s", repository.ErrDuplicateID, input.ID)
	}

	text, pages, err := s.extractor.Extract(payload, name)
	if err != nil {
		return nil, err
	}
	tokens := s.normalizer.Normalize(text)
	vec, err := s.vectorizer.Vectorize(tokens)
	if err != nil {
		return nil, err
	}

	// The payload is written under a private temp name and only renamed onto
	// its final reference after the insert reserves the id. A losing
	// concurrent ingest therefore cleans up its own temp file and never
	// touches the winner's stored payload.
	tmpRef, err := s.repo.Files().SaveTemp(payload)
	if err != nil {
		return nil, fmt.Errorf("store payload: %w", err)
	}
	ref := s.repo.Files().Ref(input.ID, name)

	doc := &models.CaseDocument{
		ID:      input.ID,
		Title:   input.Title,
		Source:  input.Source,
		Snippet: utils.Truncate(normalize.CollapseSpace(text), s.snippetLen),
		FileRef: ref,
		Pages:   pages,
		Visible: true,
		Helper:  input.Helper,
		Vector:  vec,
	}
	if err := s.repo.Insert(ctx, doc); err != nil {
		if rmErr := s.repo.Files().Remove(tmpRef); rmErr != nil && s.logger != nil {
			s.logger.Warn("temp payload cleanup failed after insert error",
				zap.String("id", input.ID), zap.Error(rmErr))
		}
		return nil, err
	}
	if err := s.repo.Files().Promote(tmpRef, ref); err != nil {
		// Undo the insert so metadata never references a missing payload.
		if rmErr := s.repo.Remove(ctx, input.ID); rmErr != nil && s.logger != nil {
			s.logger.Error("case rollback failed after payload promote error",
				zap.String("id", input.ID), zap.Error(rmErr))
		}
		_ = s.repo.Files().Remove(tmpRef)
		return nil, fmt.Errorf("store payload: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("case ingested",
			zap.String("id", doc.ID),
			zap.String("source", string(doc.Source)),
			zap.Int("tokens", len(tokens)),
		)
	}
	return doc, nil
}

func titleFromName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
