package search

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/semcode-dev/semcode/internal/block"
	"github.com/semcode-dev/semcode/internal/embed"
	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/indexer"
	"github.com/semcode-dev/semcode/internal/manifest"
	"github.com/semcode-dev/semcode/internal/vectorstore"
)

// ParseRef splits a block reference into its path and locator: "file#name",
// "file:line", or a bare file path (resolved to its first block per the
// original implementation's FileRef::ByFile).
func ParseRef(ref string) (path, name string, line int, hasLine bool) {
	if idx := strings.LastIndex(ref, "#"); idx >= 0 {
		return ref[:idx], ref[idx+1:], 0, false
	}
	if idx := strings.LastIndex(ref, ":"); idx >= 0 {
		if n, err := strconv.Atoi(ref[idx+1:]); err == nil {
			return ref[:idx], "", n, true
		}
	}
	return ref, "", 0, false
}

// FindSimilar runs the §4.7 "find_similar variant": resolve ref to a
// block, query the store with that block's own tokens, drop results from
// the same file, and boost using the reference block's name as the
// synthetic query.
func FindSimilar(ctx context.Context, cfg Config, ref string, embedder embed.Embedder, now time.Time) ([]Hit, error) {
	root, indexDir, err := resolveIndex(cfg, embedder, now)
	if err != nil {
		return nil, err
	}

	if _, err := indexer.Update(ctx, indexer.Config{
		RootPath:     root,
		IndexDirName: cfg.IndexDirName,
		OnProgress:   cfg.OnProgress,
	}, embedder, now); err != nil {
		return nil, err
	}

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

	store, err := vectorstore.Open(storeDir(indexDir), embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	path, name, line, hasLine := ParseRef(ref)
	relPath, err := toRelative(root, path)
	if err != nil {
		return nil, err
	}

	fr, ok := mf.Files[relPath]
	if !ok {
		return nil, errors.New(errors.CodePathNotFound, "no indexed file at "+relPath, nil)
	}

	refBlock, refTokens, err := resolveRefBlock(store, fr.BlockIDs, name, line, hasLine)
	if err != nil {
		return nil, err
	}

	k := cfg.k()
	results, err := store.QueryWithOptions(refTokens, k+len(fr.BlockIDs), vectorstore.QueryOptions{})
	if err != nil {
		return nil, err
	}

	cap := cfg.boostCap()
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		if r.Metadata != nil && r.Metadata.RelativePath == relPath {
			continue
		}
		hits = append(hits, Hit{Block: r.Metadata, Score: BoostCapped(r.Score, refBlock.Name, r.Metadata, cap)})
	}

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func resolveRefBlock(store *vectorstore.Store, blockIDs []string, name string, line int, hasLine bool) (*block.Block, embed.Matrix, error) {
	var fallback *candidate
	for _, id := range blockIDs {
		tokens, md, err := store.GetTokens(id)
		if err != nil {
			continue
		}
		switch {
		case name != "":
			if strings.EqualFold(md.Name, name) {
				return md, tokens, nil
			}
		case hasLine:
			if md.Contains(line, line) {
				return md, tokens, nil
			}
		default:
			if fallback == nil || md.StartLine < fallback.block.StartLine {
				fallback = &candidate{block: md, tokens: tokens}
			}
		}
	}
	if fallback != nil {
		return fallback.block, fallback.tokens, nil
	}
	return nil, nil, errors.New(errors.CodePathNotFound, "no matching block for reference", nil)
}

type candidate struct {
	block  *block.Block
	tokens embed.Matrix
}
