package indexer

import (
	"fmt"
	"os"
	pathpkg "path"
	"path/filepath"

	"github.com/semcode-dev/semcode/internal/block"
	"github.com/semcode-dev/semcode/internal/manifest"
	"github.com/semcode-dev/semcode/internal/vectorstore"
)

// mergeSubordinate folds a subordinate index's records into idx's store
// and manifest without re-embedding (§4.6 step 2: "a fast bulk copy by
// id"), then removes the subordinate's index directory — its source tree
// is left untouched, only its index marker directory goes away. It
// returns the subordinate's path relative to idx.root so the caller can
// exclude it from the walk that follows (re-walking it would re-extract
// and re-embed exactly what was just bulk-copied).
func (idx *indexer) mergeSubordinate(subRoot string) (string, error) {
	subIndexDir := filepath.Join(subRoot, idx.cfg.indexDirName())

	relPrefix, err := filepath.Rel(idx.root, subRoot)
	if err != nil {
		return "", fmt.Errorf("indexer: relativizing subordinate root: %w", err)
	}
	relPrefix = filepath.ToSlash(relPrefix)

	subMF, err := manifest.Load(subIndexDir)
	if err != nil {
		return "", fmt.Errorf("indexer: loading subordinate manifest at %s: %w", subRoot, err)
	}
	if subMF == nil {
		return relPrefix, os.RemoveAll(subIndexDir)
	}

	subStore, err := vectorstore.Open(filepath.Join(subIndexDir, storeDirName), idx.embedder.Dimensions())
	if err != nil {
		return "", fmt.Errorf("indexer: opening subordinate store at %s: %w", subRoot, err)
	}
	defer func() { _ = subStore.Close() }()

	for relPath, fr := range subMF.Files {
		newRelPath := pathpkg.Join(relPrefix, relPath)

		newFR := &block.FileRecord{
			RelativePath: newRelPath,
			MTimeNS:      fr.MTimeNS,
			ContentHash:  fr.ContentHash,
		}

		for _, id := range fr.BlockIDs {
			tokens, md, err := subStore.GetTokens(id)
			if err != nil {
				continue // tombstoned in the subordinate; nothing to copy
			}
			md.RelativePath = newRelPath
			if err := idx.store.Store(id, tokens, md.EmbeddingText, md); err != nil {
				return "", fmt.Errorf("indexer: copying block %s from subordinate: %w", id, err)
			}
			newFR.BlockIDs = append(newFR.BlockIDs, id)
		}

		idx.mf.Files[newRelPath] = newFR
	}

	return relPrefix, os.RemoveAll(subIndexDir)
}
