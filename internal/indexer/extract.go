package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/semcode-dev/semcode/internal/block"
	"github.com/semcode-dev/semcode/internal/embed"
	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/extract"
	"github.com/semcode-dev/semcode/internal/extract/prose"
	"github.com/semcode-dev/semcode/internal/lang"
)

// fileTask is one file queued for extraction.
type fileTask struct {
	AbsPath      string
	RelativePath string
	MTimeNS      int64
}

var markdownExtensions = map[string]bool{".md": true, ".markdown": true, ".mdx": true}

// extractFile dispatches to the tree-sitter extractor for recognized code
// extensions, to the prose chunker for markdown and everything else, never
// to both.
func extractFile(ctx context.Context, ex *extract.Extractor, relPath string, content []byte, chunkOpts prose.Options) ([]*block.Block, error) {
	ext := strings.ToLower(filepath.Ext(relPath))
	if markdownExtensions[ext] {
		return prose.ExtractWithOptions(relPath, content, true, chunkOpts), nil
	}
	if cfg, ok := lang.Default().ByExtension(ext); ok {
		return ex.Extract(ctx, relPath, cfg.Name, content)
	}
	return prose.ExtractWithOptions(relPath, content, false, chunkOpts), nil
}

// fileResult is what one worker produces for one task.
type fileResult struct {
	task   fileTask
	blocks []*block.Block
	hash   string
	err    error
}

// extractAll runs extraction over tasks on a work-stealing pool sized
// min(cpu_count, file_count) — one Extractor per worker, since a tree-sitter
// parser is not safe for concurrent use (§4.6 "Concurrency").
func extractAll(ctx context.Context, tasks []fileTask, chunkOpts prose.Options, onProgress func(current, total int)) ([]*fileResult, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	workers := runtime.NumCPU()
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]*fileResult, len(tasks))
	var done int
	var mu sync.Mutex

	extractors := make(chan *extract.Extractor, workers)
	for w := 0; w < workers; w++ {
		extractors <- extract.New()
	}
	defer func() {
		close(extractors)
		for ex := range extractors {
			ex.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			ex := <-extractors
			defer func() { extractors <- ex }()

			content, err := readFile(task.AbsPath)
			if err != nil {
				results[i] = &fileResult{task: task, err: err}
			} else {
				blocks, err := extractFile(gctx, ex, task.RelativePath, content, chunkOpts)
				results[i] = &fileResult{task: task, blocks: blocks, hash: hashBytes(content), err: err}
			}

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			onProgress(n, len(tasks))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// processFiles runs extract -> length-sort -> batch-embed -> store for
// tasks, returning the per-file manifest records for files that succeeded.
// A failed extraction is logged and skipped (its previous manifest entry,
// if any, is left for the caller to preserve); a batch-embedding or store
// failure is fatal for the whole run, per errors.CodeEmbeddingBatchFail and
// errors.CodeStoreWriteError's fatal classification.
func (idx *indexer) processFiles(ctx context.Context, tasks []fileTask) (map[string]*block.FileRecord, int, error) {
	results, err := extractAll(ctx, tasks, idx.cfg.chunkOptions(), func(current, total int) {
		idx.cfg.progress("extract", current, total)
	})
	if err != nil {
		return nil, 0, err
	}

	var allBlocks []*block.Block
	warnings := 0

	records := make(map[string]*block.FileRecord)
	for _, r := range results {
		if r.err != nil {
			slog.Warn("extraction failed, file skipped", "path", r.task.RelativePath, "error", r.err)
			warnings++
			continue
		}
		allBlocks = append(allBlocks, r.blocks...)
		// A file that parses cleanly but yields no blocks (empty file,
		// blank markdown) still gets a manifest entry so it isn't treated
		// as new on every subsequent scan.
		records[r.task.RelativePath] = &block.FileRecord{RelativePath: r.task.RelativePath, ContentHash: r.hash}
	}

	if len(allBlocks) == 0 {
		for _, task := range tasks {
			if fr, ok := records[task.RelativePath]; ok {
				fr.MTimeNS = task.MTimeNS
			}
		}
		return records, warnings, nil
	}

	sort.SliceStable(allBlocks, func(i, j int) bool {
		return len(allBlocks[i].EmbeddingText) < len(allBlocks[j].EmbeddingText)
	})

	if err := idx.embedAndStore(ctx, allBlocks); err != nil {
		return nil, warnings, err
	}

	for _, b := range allBlocks {
		fr := records[b.RelativePath]
		fr.BlockIDs = append(fr.BlockIDs, b.ID)
	}
	for _, task := range tasks {
		if fr, ok := records[task.RelativePath]; ok {
			fr.MTimeNS = task.MTimeNS
		}
	}

	return records, warnings, nil
}

// embedAndStore embeds allBlocks in fixed-size batches on a single
// executor and writes each block into the store, both serialized per
// §4.6's "Concurrency" (the store is not mutated from many threads).
func (idx *indexer) embedAndStore(ctx context.Context, allBlocks []*block.Block) error {
	batchSize := idx.cfg.embedBatchSize()
	total := len(allBlocks)

	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		batch := allBlocks[start:end]

		texts := make([]string, len(batch))
		for i, b := range batch {
			texts[i] = b.EmbeddingText
		}

		matrices, err := idx.embedder.Embed(ctx, texts, embed.ModeDocument)
		if err != nil {
			return errors.New(errors.CodeEmbeddingBatchFail, fmt.Sprintf("embedding batch %d-%d", start, end), err)
		}

		for i, b := range batch {
			if err := idx.store.Store(b.ID, matrices[i], b.EmbeddingText, b); err != nil {
				return errors.New(errors.CodeStoreWriteError, fmt.Sprintf("storing block %s", b.ID), err)
			}
		}

		idx.cfg.progress("embed", end, total)
	}
	return nil
}
