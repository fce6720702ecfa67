// Package caseid derives a deterministic case ID from a file path for
// corpus files ingested from intake directories.
package caseid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "corpus:"

// FromPath returns a stable case ID for the given absolute path.
// Same path always yields the same ID, so re-ingesting a changed file
// and removing a deleted one address the same case.
func FromPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}
