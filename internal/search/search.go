// Package search implements the query-time half of the retrieval pipeline:
// locating the governing index, refreshing it, running the two-candidate-
// stream hybrid query, fusing and boosting scores, and applying scope
// filtering (§4.7, §4.8).
package search

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/semcode-dev/semcode/internal/block"
	"github.com/semcode-dev/semcode/internal/embed"
	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/indexer"
	"github.com/semcode-dev/semcode/internal/lexical"
	"github.com/semcode-dev/semcode/internal/locator"
	"github.com/semcode-dev/semcode/internal/manifest"
	"github.com/semcode-dev/semcode/internal/vectorstore"
)

// overfetchScoped/overfetchUnscoped are the §4.7 step 6 overfetch factors:
// a scoped query needs a wider candidate pool since the scope filter drops
// results after fusion, not before.
const (
	overfetchScoped   = 5
	overfetchUnscoped = 1
)

// Config configures a search run.
type Config struct {
	// RootPath is where the upward index search begins.
	RootPath string
	// ScopePath, if set, restricts results to relative paths at or beneath it.
	ScopePath string
	// K is the number of results requested (default 10).
	K int
	// AutoBuild builds a fresh index at RootPath if none is found walking
	// upward, instead of failing with IndexMissing (§6 "*_AUTO_BUILD=1").
	AutoBuild bool
	// IndexDirName overrides the marker directory name.
	IndexDirName string
	// BM25Weight/SemanticWeight blend the two candidate streams' normalized
	// scores at fusion (§4.7 step 8). Both zero falls back to 0.5/0.5.
	BM25Weight     float64
	SemanticWeight float64
	// BoostCap overrides the default boost clamp (Cap) when non-zero.
	BoostCap float64
	// OnProgress is forwarded to the freshness update that runs before search.
	OnProgress func(phase string, current, total int)
}

func (c Config) fusionWeights() (bm25, semantic float64) {
	if c.BM25Weight == 0 && c.SemanticWeight == 0 {
		return 0.5, 0.5
	}
	return c.BM25Weight, c.SemanticWeight
}

func (c Config) boostCap() float64 {
	if c.BoostCap > 0 {
		return c.BoostCap
	}
	return Cap
}

func (c Config) k() int {
	if c.K > 0 {
		return c.K
	}
	return 10
}

// Hit is one scored result.
type Hit struct {
	Block *block.Block
	Score float64
}

// Search runs the full §4.7 pipeline and returns up to cfg.K hits sorted by
// adjusted score descending.
func Search(ctx context.Context, cfg Config, queryText string, embedder embed.Embedder, now time.Time) ([]Hit, error) {
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

	matrices, err := embedder.Embed(ctx, []string{queryText}, embed.ModeQuery)
	if err != nil {
		return nil, err
	}
	queryTokens := matrices[0]
	queryTextSplit := strings.Join(lexical.Tokenize(queryText), " ")

	overfetch := overfetchUnscoped
	var scopeRel string
	if cfg.ScopePath != "" {
		overfetch = overfetchScoped
		scopeRel, err = toRelative(root, cfg.ScopePath)
		if err != nil {
			return nil, err
		}
	}
	filter := scopeFilter(scopeRel)

	k := cfg.k()
	bm25Weight, semanticWeight := cfg.fusionWeights()
	c1, err := store.SearchMultiWeighted(queryTokens, queryTextSplit, overfetch*k, filter, bm25Weight, semanticWeight)
	if err != nil {
		return nil, err
	}
	c2, err := store.QueryWithOptions(queryTokens, overfetch*k, vectorstore.QueryOptions{Filter: filter})
	if err != nil {
		return nil, err
	}

	merged := mergeCandidates(c1, c2)
	cap := cfg.boostCap()
	hits := make([]Hit, 0, len(merged))
	for _, r := range merged {
		hits = append(hits, Hit{Block: r.Metadata, Score: BoostCapped(r.Score, queryText, r.Metadata, cap)})
	}

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// resolveIndex locates the governing index above cfg.RootPath, optionally
// building one if AutoBuild is set and none exists (§4.7 step 1).
func resolveIndex(cfg Config, embedder embed.Embedder, now time.Time) (root, indexDir string, err error) {
	root, found, err := locator.LocateUpward(cfg.RootPath)
	if err != nil {
		return "", "", err
	}
	if !found {
		if !cfg.AutoBuild {
			return "", "", errors.New(errors.CodeIndexMissing, "no index found at or above "+cfg.RootPath, nil).
				WithSuggestion("run build " + cfg.RootPath)
		}
		if _, err := indexer.Build(context.Background(), indexer.Config{
			RootPath:     cfg.RootPath,
			IndexDirName: cfg.IndexDirName,
			OnProgress:   cfg.OnProgress,
		}, embedder, now); err != nil {
			return "", "", err
		}
		abs, err := filepath.Abs(cfg.RootPath)
		if err != nil {
			return "", "", err
		}
		root = abs
	}

	dirName := cfg.IndexDirName
	if dirName == "" {
		dirName = locator.MarkerName
	}
	return root, joinPath(root, dirName), nil
}

// mergeCandidates builds id -> max(score) across both candidate streams,
// keeping metadata from whichever stream supplied the winning score
// (§4.7 step 8).
func mergeCandidates(c1, c2 []vectorstore.Result) []vectorstore.Result {
	best := make(map[string]vectorstore.Result, len(c1)+len(c2))
	for _, r := range c1 {
		best[r.ID] = r
	}
	for _, r := range c2 {
		if cur, ok := best[r.ID]; !ok || r.Score > cur.Score {
			best[r.ID] = r
		}
	}
	out := make([]vectorstore.Result, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	return out
}

// sortHits sorts by adjusted score descending, stable on id to keep ties
// deterministic (§5 "Ordering guarantees").
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Block.ID < hits[j].Block.ID
	})
}

// scopeFilter builds a vectorstore.Filter that keeps only blocks whose
// RelativePath is at or beneath scopeRel. An empty scopeRel accepts
// everything (§4.7 step 10).
func scopeFilter(scopeRel string) vectorstore.Filter {
	if scopeRel == "" {
		return nil
	}
	return func(_ string, md *block.Block) bool {
		if md == nil {
			return false
		}
		return md.RelativePath == scopeRel || strings.HasPrefix(md.RelativePath, scopeRel+"/")
	}
}

func storeDir(indexDir string) string {
	return joinPath(indexDir, "store")
}
