package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/precedex/precedex/internal/models"
)

// metaStore is the SQLite-backed case metadata collection. It holds every
// CaseDocument field except the vector, which lives in the vector log.
type metaStore struct {
	db *sql.DB
}

// newMetaStore opens or creates the SQLite database at dbPath and
// initializes the schema. Parent directories are created if needed.
func newMetaStore(dbPath string) (*metaStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &metaStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		title TEXT,
		source TEXT NOT NULL,
		snippet TEXT,
		file_ref TEXT,
		pages INTEGER NOT NULL DEFAULT 0,
		visible INTEGER NOT NULL DEFAULT 1,
		helper TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cases_source ON cases(source);
	`
	_, err := db.Exec(schema)
	return err
}

// Create inserts a case row. A primary key violation is surfaced as
// ErrDuplicateID so concurrent inserts of the same id resolve to exactly
// one success.
func (s *metaStore) Create(ctx context.Context, doc *models.CaseDocument) error {
	helperJSON, err := marshalHelper(doc.Helper)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cases (id, title, source, snippet, file_ref, pages, visible, helper, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, string(doc.Source), doc.Snippet, doc.FileRef,
		doc.Pages, doc.Visible, helperJSON, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
	}
	return err
}

// Delete removes a case row. Returns ErrNotFound when absent.
func (s *metaStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cases WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SetVisible updates the visibility flag, the one metadata field external
// collaborators may mutate.
func (s *metaStore) SetVisible(ctx context.Context, id string, visible bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE cases SET visible = ?, updated_at = ? WHERE id = ?`,
		visible, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// All returns every case row, vectors excluded.
func (s *metaStore) All(ctx context.Context) ([]*models.CaseDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, source, snippet, file_ref, pages, visible, helper, created_at, updated_at
		 FROM cases ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.CaseDocument
	for rows.Next() {
		var doc models.CaseDocument
		var source, helperJSON string
		if err := rows.Scan(&doc.ID, &doc.Title, &source, &doc.Snippet, &doc.FileRef,
			&doc.Pages, &doc.Visible, &helperJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.Source = models.Source(source)
		if doc.Helper, err = unmarshalHelper(helperJSON); err != nil {
			return nil, fmt.Errorf("case %s: %w", doc.ID, err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (s *metaStore) Close() error {
	return s.db.Close()
}

func marshalHelper(h *models.HelperExtras) (string, error) {
	if h == nil {
		return "", nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("marshal helper fields: %w", err)
	}
	return string(data), nil
}

func unmarshalHelper(s string) (*models.HelperExtras, error) {
	if s == "" {
		return nil, nil
	}
	var h models.HelperExtras
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, fmt.Errorf("unmarshal helper fields: %w", err)
	}
	return &h, nil
}

// isUniqueViolation matches SQLite's primary key constraint error without
// depending on driver error codes.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint")
}
