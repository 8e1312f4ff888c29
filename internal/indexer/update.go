package indexer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/semcode-dev/semcode/internal/embed"
	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/manifest"
	"github.com/semcode-dev/semcode/internal/walker"
)

// Update runs an incremental refresh against an existing index rooted at
// cfg.RootPath (§4.6 "Incremental update"): diff the current tree against
// the manifest by mtime, confirm real changes by content hash, and
// re-extract only what moved.
func Update(ctx context.Context, cfg Config, embedder embed.Embedder, now time.Time) (*Result, error) {
	start := time.Now()

	root, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, err
	}
	indexDir := filepath.Join(root, cfg.indexDirName())

	mf, err := manifest.Load(indexDir)
	if err != nil {
		return nil, err
	}
	if mf == nil {
		return nil, errors.New(errors.CodeIndexMissing, "no index at "+root, nil).
			WithSuggestion("run build " + root)
	}
	if !mf.Compatible(embedder.Identity()) {
		return nil, errors.New(errors.CodeIndexNeedsRebuild, "manifest model/schema does not match the active embedder", nil).
			WithDetail("manifest_model", mf.ModelIdentity).
			WithDetail("active_model", embedder.Identity())
	}

	idx, err := open(cfg, embedder, mf)
	if err != nil {
		return nil, err
	}
	defer idx.close()

	current := make(map[string]walker.File)
	err = idx.w.ScanMetadata(ctx, idx.root, idx.cfg.walkerOptions(), func(f walker.File) error {
		current[f.RelativePath] = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	var reindex []fileTask
	var removedCount, unchangedCount int

	for relPath, fr := range mf.Files {
		f, exists := current[relPath]
		if !exists {
			for _, id := range mf.RemoveFile(relPath) {
				_ = idx.store.Delete([]string{id})
			}
			removedCount++
			continue
		}
		if f.MTimeNS == fr.MTimeNS {
			unchangedCount++
			continue
		}

		content, err := readFile(f.AbsPath)
		if err != nil {
			continue // unreadable now; leave the manifest entry untouched
		}
		if hashBytes(content) == fr.ContentHash {
			// mtime changed but content didn't: record the new mtime and
			// skip re-indexing entirely.
			fr.MTimeNS = f.MTimeNS
			unchangedCount++
			continue
		}

		for _, id := range fr.BlockIDs {
			_ = idx.store.Delete([]string{id})
		}
		reindex = append(reindex, fileTask{AbsPath: f.AbsPath, RelativePath: relPath, MTimeNS: f.MTimeNS})
	}

	for relPath, f := range current {
		if _, known := mf.Files[relPath]; !known {
			reindex = append(reindex, fileTask{AbsPath: f.AbsPath, RelativePath: relPath, MTimeNS: f.MTimeNS})
		}
	}

	records, warnings, err := idx.processFiles(ctx, reindex)
	if err != nil {
		return nil, err
	}

	blocks := 0
	for path, fr := range records {
		idx.mf.Files[path] = fr
		blocks += len(fr.BlockIDs)
	}
	idx.mf.UpdatedAt = now.UnixNano()

	if err := idx.mf.Save(idx.indexDir); err != nil {
		return nil, err
	}
	if err := idx.store.Flush(); err != nil {
		return nil, err
	}

	return &Result{
		FilesIndexed:   len(records),
		FilesUnchanged: unchangedCount,
		FilesRemoved:   removedCount,
		Warnings:       warnings,
		BlocksIndexed:  blocks,
		Duration:       time.Since(start),
	}, nil
}
