// Package indexer builds and incrementally refreshes an index: it walks a
// project tree, extracts blocks, embeds them, and writes them into a
// vectorstore.Store, keeping a manifest.Manifest of what it has seen so a
// later run only touches what changed.
package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/semcode-dev/semcode/internal/embed"
	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/extract/prose"
	"github.com/semcode-dev/semcode/internal/indexlock"
	"github.com/semcode-dev/semcode/internal/locator"
	"github.com/semcode-dev/semcode/internal/manifest"
	"github.com/semcode-dev/semcode/internal/vectorstore"
	"github.com/semcode-dev/semcode/internal/walker"
)

// storeDirName is the vectorstore's own subdirectory under the index
// marker directory, alongside manifest.FileName and the write lock.
const storeDirName = "store"

// DefaultEmbedBatchSize bounds how many blocks are embedded per call to
// the embedder, after length-sorting (§4.6 step 4/5).
const DefaultEmbedBatchSize = 64

// Config configures a build or update run.
type Config struct {
	// RootPath is the project directory to index.
	RootPath string
	// IndexDirName overrides the marker directory name (default locator.MarkerName).
	IndexDirName string
	// MaxFileSize caps the walker's per-file size (0 = walker.DefaultMaxFileSize).
	MaxFileSize int64
	// ExcludeDirs/ExcludeFiles are extra walker exclude patterns.
	ExcludeDirs  []string
	ExcludeFiles []string
	// FollowSymlinks/IncludeHidden are forwarded to walker.Options verbatim.
	FollowSymlinks bool
	IncludeHidden  bool
	// EmbedBatchSize overrides DefaultEmbedBatchSize.
	EmbedBatchSize int
	// ChunkMaxTokens/ChunkOverlapTokens override the prose chunker's token
	// budget and overlap (0 = prose package defaults).
	ChunkMaxTokens     int
	ChunkOverlapTokens int
	// OnProgress, if set, receives phase/current/total updates (spec §5
	// "on_progress(phase, current, total)").
	OnProgress func(phase string, current, total int)
}

// Result summarizes one build or update run.
type Result struct {
	FilesIndexed   int
	FilesUnchanged int
	FilesRemoved   int
	Warnings       int
	BlocksIndexed  int
	Duration       time.Duration
}

func (c Config) indexDirName() string {
	if c.IndexDirName != "" {
		return c.IndexDirName
	}
	return locator.MarkerName
}

func (c Config) embedBatchSize() int {
	if c.EmbedBatchSize > 0 {
		return c.EmbedBatchSize
	}
	return DefaultEmbedBatchSize
}

func (c Config) chunkOptions() prose.Options {
	return prose.Options{MaxTokens: c.ChunkMaxTokens, OverlapTokens: c.ChunkOverlapTokens}
}

func (c Config) walkerOptions() walker.Options {
	return walker.Options{
		MaxFileSize:    c.MaxFileSize,
		ExcludeDirs:    c.ExcludeDirs,
		ExcludeFiles:   c.ExcludeFiles,
		IndexDirName:   c.indexDirName(),
		FollowSymlinks: c.FollowSymlinks,
		IncludeHidden:  c.IncludeHidden,
	}
}

func (c Config) progress(phase string, current, total int) {
	if c.OnProgress != nil {
		c.OnProgress(phase, current, total)
	}
}

// indexer is the shared session state a build or update run operates
// against: an acquired write lock, the walker, the open store, and the
// manifest being read and rewritten.
type indexer struct {
	cfg      Config
	root     string
	indexDir string
	w        *walker.Walker
	embedder embed.Embedder
	store    *vectorstore.Store
	lock     *indexlock.Lock
	mf       *manifest.Manifest
}

// open acquires the write lock and the vectorstore for root's index
// directory. mf may be nil (fresh build) or loaded from disk (update);
// callers are responsible for supplying the right one.
func open(cfg Config, embedder embed.Embedder, mf *manifest.Manifest) (*indexer, error) {
	root, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("indexer: resolving root: %w", err)
	}
	indexDir := filepath.Join(root, cfg.indexDirName())

	lock := indexlock.New(indexDir)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(errors.CodeIndexLocked, "another process is writing this index", nil)
	}

	w, err := walker.New()
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	store, err := vectorstore.Open(filepath.Join(indexDir, storeDirName), embedder.Dimensions())
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return &indexer{
		cfg:      cfg,
		root:     root,
		indexDir: indexDir,
		w:        w,
		embedder: embedder,
		store:    store,
		lock:     lock,
		mf:       mf,
	}, nil
}

func (idx *indexer) close() {
	_ = idx.store.Close()
	_ = idx.lock.Unlock()
}

func hashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func readFile(absPath string) ([]byte, error) {
	return os.ReadFile(absPath)
}
