// Package repository is the durable case store: SQLite metadata, a binary
// vector log, original payload files, and the process-wide in-memory index
// served to the search engine.
package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/precedex/precedex/internal/models"
)

// VectorEntry is one (id, vector) pair from a point-in-time snapshot.
type VectorEntry struct {
	ID     string
	Source models.Source
	Vector []float64
}

// Repository combines the metadata store, vector log, and payload store
// behind one consistent view. Reads go to the in-memory index only, so a
// reader never observes a case with metadata but no vector or vice versa.
type Repository struct {
	meta  *metaStore
	log   *vectorLog
	files *FileStore

	fingerprint string
	dim         int
	logger      *zap.Logger

	// writeMu serializes Insert/Remove end to end: durable write first,
	// then the in-memory swap. mu guards only the cases map, so readers
	// block writers for no longer than the map operation itself.
	writeMu sync.Mutex
	mu      sync.RWMutex
	cases   map[string]*models.CaseDocument

	loaded bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// New opens the repository stores. fingerprint and dim come from the loaded
// vocabulary model; an existing vector log built against a different
// vocabulary is refused with *CorruptError. Call LoadAll before serving.
func New(dbPath, vectorLogPath, filesDir, fingerprint string, dim int, opts ...Option) (*Repository, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	meta, err := newMetaStore(dbPath)
	if err != nil {
		return nil, err
	}
	log, err := openVectorLog(vectorLogPath, fingerprint, dim)
	if err != nil {
		_ = meta.Close()
		return nil, err
	}
	files, err := NewFileStore(filesDir)
	if err != nil {
		_ = meta.Close()
		_ = log.Close()
		return nil, err
	}
	r := &Repository{
		meta:        meta,
		log:         log,
		files:       files,
		fingerprint: fingerprint,
		dim:         dim,
		cases:       make(map[string]*models.CaseDocument),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// LoadAll reads durable metadata and vectors into memory. It fails fast with
// *CorruptError when the two collections disagree on membership or a vector
// has the wrong dimension; serving against such state is forbidden.
func (r *Repository) LoadAll(ctx context.Context) error {
	docs, err := r.meta.All(ctx)
	if err != nil {
		return fmt.Errorf("load case metadata: %w", err)
	}
	vectors, err := r.log.Load()
	if err != nil {
		return err
	}

	cases := make(map[string]*models.CaseDocument, len(docs))
	for _, doc := range docs {
		vec, ok := vectors[doc.ID]
		if !ok {
			return corruptf("case %s has metadata but no vector", doc.ID)
		}
		if len(vec) != r.dim {
			return corruptf("case %s vector has dimension %d, vocabulary size %d", doc.ID, len(vec), r.dim)
		}
		doc.Vector = vec
		cases[doc.ID] = doc
		delete(vectors, doc.ID)
	}
	for id := range vectors {
		return corruptf("vector %s has no metadata entry", id)
	}

	r.mu.Lock()
	r.cases = cases
	r.loaded = true
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info("repository loaded",
			zap.Int("cases", len(cases)),
			zap.String("fingerprint", shortFingerprint(r.fingerprint)),
		)
	}
	return nil
}

// Insert stores a case durably, then makes it visible to readers, in that
// order. Fails with ErrDuplicateID when the id exists; concurrent inserts of
// the same id resolve to exactly one success.
func (r *Repository) Insert(ctx context.Context, doc *models.CaseDocument) error {
	if len(doc.Vector) != r.dim {
		return fmt.Errorf("case %s vector has dimension %d, vocabulary size %d", doc.ID, len(doc.Vector), r.dim)
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	_, exists := r.cases[doc.ID]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
	}

	// Durability before visibility: metadata row, then the fsynced vector
	// record, then the in-memory swap.
	if err := r.meta.Create(ctx, doc); err != nil {
		return err
	}
	if err := r.log.Append(doc.ID, doc.Vector); err != nil {
		// Roll the metadata row back so the stores stay reconciled.
		if delErr := r.meta.Delete(ctx, doc.ID); delErr != nil && r.logger != nil {
			r.logger.Error("metadata rollback failed after vector append error",
				zap.String("id", doc.ID), zap.Error(delErr))
		}
		return err
	}

	r.mu.Lock()
	r.cases[doc.ID] = doc
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Debug("case inserted", zap.String("id", doc.ID), zap.String("source", string(doc.Source)))
	}
	return nil
}

// Get returns the case by id, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*models.CaseDocument, error) {
	r.mu.RLock()
	doc, ok := r.cases[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *doc
	return &copied, nil
}

// Remove deletes the case from the durable stores and the in-memory index.
// Readers observe the removal atomically: the case either resolves fully or
// not at all, never half.
func (r *Repository) Remove(ctx context.Context, id string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	doc, ok := r.cases[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := r.meta.Delete(ctx, id); err != nil {
		return err
	}

	// Compact the vector log without the removed case.
	remaining := make(map[string][]float64, len(r.cases))
	r.mu.RLock()
	for cid, c := range r.cases {
		if cid != id {
			remaining[cid] = c.Vector
		}
	}
	r.mu.RUnlock()
	if err := r.log.Rewrite(remaining); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cases, id)
	r.mu.Unlock()

	if err := r.files.Remove(doc.FileRef); err != nil && r.logger != nil {
		r.logger.Warn("payload removal failed", zap.String("id", id), zap.Error(err))
	}
	if r.logger != nil {
		r.logger.Debug("case removed", zap.String("id", id))
	}
	return nil
}

// SetVisibility toggles the one externally mutable metadata field. Hidden
// cases are excluded from Vectors and therefore from ranking.
func (r *Repository) SetVisibility(ctx context.Context, id string, visible bool) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	doc, ok := r.cases[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := r.meta.SetVisible(ctx, id, visible); err != nil {
		return err
	}
	updated := *doc
	updated.Visible = visible
	updated.UpdatedAt = time.Now().UTC()
	r.mu.Lock()
	r.cases[id] = &updated
	r.mu.Unlock()
	return nil
}

// Vectors returns a point-in-time snapshot of the visible (id, vector) pairs
// for the given sources (nil or empty means all). Inserts after the call are
// not reflected in the returned slice.
func (r *Repository) Vectors(sources []models.Source) []VectorEntry {
	want := make(map[models.Source]bool, len(sources))
	for _, s := range sources {
		want[s] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]VectorEntry, 0, len(r.cases))
	for id, doc := range r.cases {
		if !doc.Visible {
			continue
		}
		if len(want) > 0 && !want[doc.Source] {
			continue
		}
		entries = append(entries, VectorEntry{ID: id, Source: doc.Source, Vector: doc.Vector})
	}
	return entries
}

// Counts returns the number of cases per source tag.
func (r *Repository) Counts() map[models.Source]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[models.Source]int, 2)
	for _, doc := range r.cases {
		counts[doc.Source]++
	}
	return counts
}

// Files exposes the payload store for download handlers.
func (r *Repository) Files() *FileStore { return r.files }

// Fingerprint returns the vocabulary fingerprint the stores are bound to.
func (r *Repository) Fingerprint() string { return r.fingerprint }

// Dimension returns the vector dimension the stores are bound to.
func (r *Repository) Dimension() int { return r.dim }

// Close closes the underlying stores.
func (r *Repository) Close() error {
	err := r.meta.Close()
	if logErr := r.log.Close(); err == nil {
		err = logErr
	}
	return err
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
