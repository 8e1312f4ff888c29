package indexer

import (
	"context"
	"time"

	"github.com/semcode-dev/semcode/internal/embed"
	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/locator"
	"github.com/semcode-dev/semcode/internal/manifest"
	"github.com/semcode-dev/semcode/internal/walker"
)

// Build performs a fresh build rooted at cfg.RootPath (§4.6 "Build
// (fresh)"): refuse if a parent index governs this path, merge any
// subordinate indexes found beneath it, then walk, extract, embed, and
// store every file.
func Build(ctx context.Context, cfg Config, embedder embed.Embedder, now time.Time) (*Result, error) {
	start := time.Now()

	root := cfg.RootPath
	if parent, found, err := locator.FindParent(root); err != nil {
		return nil, err
	} else if found {
		return nil, errors.New(errors.CodeParentIndexExists, "a governing index already exists above this path", nil).
			WithDetail("parent", parent).
			WithSuggestion("build at " + parent + " instead")
	}

	mf := manifest.New(embedder.Identity(), now.UnixNano())

	idx, err := open(cfg, embedder, mf)
	if err != nil {
		return nil, err
	}
	defer idx.close()

	subordinates, err := locator.FindSubordinates(idx.root)
	if err != nil {
		return nil, err
	}
	walkOpts := idx.cfg.walkerOptions()
	for _, sub := range subordinates {
		relPrefix, err := idx.mergeSubordinate(sub)
		if err != nil {
			return nil, err
		}
		// Already bulk-copied above; walking it again would re-extract
		// and re-embed what merge just avoided recomputing.
		walkOpts.ExcludeDirs = append(walkOpts.ExcludeDirs, relPrefix+"/**")
	}

	var tasks []fileTask
	err = idx.w.Scan(ctx, idx.root, walkOpts, func(f walker.File) error {
		tasks = append(tasks, fileTask{AbsPath: f.AbsPath, RelativePath: f.RelativePath, MTimeNS: f.MTimeNS})
		return nil
	})
	if err != nil {
		return nil, err
	}

	records, warnings, err := idx.processFiles(ctx, tasks)
	if err != nil {
		// store left partially written; manifest not written, per §4.6
		// "Failure semantics".
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
		FilesIndexed:  len(records),
		Warnings:      warnings,
		BlocksIndexed: blocks,
		Duration:      time.Since(start),
	}, nil
}
