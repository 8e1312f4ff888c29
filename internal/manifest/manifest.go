// Package manifest persists the per-index file ledger: which files were
// indexed, what they looked like, and which blocks they produced, so an
// incremental update knows what changed without reopening the store.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/semcode-dev/semcode/internal/block"
)

// SchemaVersion is bumped whenever the on-disk shape changes in a way that
// isn't backward compatible. A mismatch is never migrated, only rejected —
// the reference implementation this is drawn from exhibits several
// incompatible schema versions and makes no attempt to upgrade between
// them; this module follows the same policy.
const SchemaVersion = 1

// FileName is the manifest's name under the index directory.
const FileName = "manifest.json"

// Manifest is the index's file ledger.
type Manifest struct {
	SchemaVersion int                          `json:"schema_version"`
	ModelIdentity string                       `json:"model_identity"`
	CreatedAt     int64                        `json:"created_at"`
	UpdatedAt     int64                        `json:"updated_at"`
	Files         map[string]*block.FileRecord `json:"files"`
}

// New builds an empty Manifest for a fresh build.
func New(modelIdentity string, now int64) *Manifest {
	return &Manifest{
		SchemaVersion: SchemaVersion,
		ModelIdentity: modelIdentity,
		CreatedAt:     now,
		UpdatedAt:     now,
		Files:         make(map[string]*block.FileRecord),
	}
}

// Load reads the manifest at <indexDir>/manifest.json. A missing file
// returns (nil, nil) — the caller treats that as "no index yet".
func Load(indexDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(indexDir, FileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: reading: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decoding: %w", err)
	}
	return &m, nil
}

// Save writes the manifest atomically (write to a temp file, then rename)
// so a crash mid-write never leaves a half-written manifest behind.
func (m *Manifest) Save(indexDir string) error {
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return fmt.Errorf("manifest: creating index directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encoding: %w", err)
	}

	finalPath := filepath.Join(indexDir, FileName)
	tmp := finalPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("manifest: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, finalPath); err != nil {
		return fmt.Errorf("manifest: renaming into place: %w", err)
	}
	return nil
}

// Compatible reports whether this manifest can be searched with an
// embedder whose identity is modelIdentity, and whether its schema is one
// this build understands. Either mismatch means IndexNeedsRebuild.
func (m *Manifest) Compatible(modelIdentity string) bool {
	return m.SchemaVersion == SchemaVersion && m.ModelIdentity == modelIdentity
}

// BlockCount sums the block ids recorded across all files.
func (m *Manifest) BlockCount() int {
	n := 0
	for _, f := range m.Files {
		n += len(f.BlockIDs)
	}
	return n
}

// RemoveFile drops a file's record, returning the block ids it owned so
// the caller can delete them from the store.
func (m *Manifest) RemoveFile(relativePath string) []string {
	f, ok := m.Files[relativePath]
	if !ok {
		return nil
	}
	delete(m.Files, relativePath)
	return f.BlockIDs
}

// RemoveUnderPath drops every file record whose path is at or beneath
// prefix, returning the union of block ids they owned — used by `clean`
// on a subtree.
func (m *Manifest) RemoveUnderPath(prefix string) []string {
	var ids []string
	for path, f := range m.Files {
		if path == prefix || hasPathPrefix(path, prefix) {
			ids = append(ids, f.BlockIDs...)
			delete(m.Files, path)
		}
	}
	return ids
}

func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return len(path) > len(prefix) && path[:len(prefix)] == prefix && path[len(prefix)] == '/'
}
