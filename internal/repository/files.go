package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the original document payloads on disk, addressable by the
// file reference stored in case metadata. Payloads are written once at
// ingestion and only ever read back for download or preview.
type FileStore struct {
	dir string
}

// NewFileStore creates the payload directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create files dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Ref returns the file reference a case's payload lives under: the case id
// plus the original extension, so downloads keep a meaningful suffix.
func (fs *FileStore) Ref(caseID, originalName string) string {
	return caseID + strings.ToLower(filepath.Ext(originalName))
}

// SaveTemp writes payload under a unique temporary name and returns its
// reference. The caller owns the temp file exclusively until it is promoted
// to a final reference or removed, so two ingests of the same case id never
// write through the same name.
func (fs *FileStore) SaveTemp(payload []byte) (string, error) {
	f, err := os.CreateTemp(fs.dir, "ingest-*.tmp")
	if err != nil {
		return "", fmt.Errorf("save payload: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("save payload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("save payload: %w", err)
	}
	return filepath.Base(f.Name()), nil
}

// Promote renames a temporary payload onto its final reference.
func (fs *FileStore) Promote(tmpRef, ref string) error {
	if err := os.Rename(fs.Path(tmpRef), fs.Path(ref)); err != nil {
		return fmt.Errorf("promote payload: %w", err)
	}
	return nil
}

// Path resolves a file reference to its on-disk path.
func (fs *FileStore) Path(ref string) string {
	return filepath.Join(fs.dir, filepath.Base(ref))
}

// Read returns the stored payload for ref.
func (fs *FileStore) Read(ref string) ([]byte, error) {
	data, err := os.ReadFile(fs.Path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: payload %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}

// Remove deletes the stored payload. A missing file is not an error: the
// metadata row is authoritative for existence.
func (fs *FileStore) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	if err := os.Remove(fs.Path(ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove payload: %w", err)
	}
	return nil
}
