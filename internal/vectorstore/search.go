package vectorstore

import (
	"github.com/semcode-dev/semcode/internal/embed"
)

// bm25CandidateFactor widens the BM25 candidate pool past k before MaxSim
// reranks it, so a good semantic match that BM25 ranks modestly still has
// a chance to surface after rerank.
const bm25CandidateFactor = 4

// SearchMultiWithText fuses BM25 candidate generation over queryText with
// MaxSim reranking over queryTokens, blending the two normalized scores
// evenly. It is SearchMultiWeighted with the default 0.5/0.5 split.
func (s *Store) SearchMultiWithText(queryTokens embed.Matrix, queryText string, k int, filter Filter) ([]Result, error) {
	return s.SearchMultiWeighted(queryTokens, queryText, k, filter, 0.5, 0.5)
}

// SearchMultiWeighted is SearchMultiWithText with a caller-supplied blend of
// the normalized BM25 and semantic scores, letting Config.Search's fusion
// weights (§10) reach the fusion formula without disturbing the 0.5/0.5
// default callers rely on.
func (s *Store) SearchMultiWeighted(queryTokens embed.Matrix, queryText string, k int, filter Filter, bm25Weight, semanticWeight float64) ([]Result, error) {
	bm25Scores, err := s.bm25.search(queryText, k*bm25CandidateFactor)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(bm25Scores) == 0 {
		return nil, nil
	}

	var maxBM25 float64
	for _, sc := range bm25Scores {
		if sc > maxBM25 {
			maxBM25 = sc
		}
	}

	var candidates []*Record
	var bm25Norm []float64
	for id, sc := range bm25Scores {
		r, ok := s.records[id]
		if !ok || r.Deleted {
			continue
		}
		if filter != nil && !filter(id, r.Metadata) {
			continue
		}
		candidates = append(candidates, r)
		if maxBM25 > 0 {
			bm25Norm = append(bm25Norm, sc/maxBM25)
		} else {
			bm25Norm = append(bm25Norm, 0)
		}
	}

	var maxSimScores []float64
	var maxMaxSim float64
	for _, r := range candidates {
		v := maxSim(queryTokens, r.Tokens)
		maxSimScores = append(maxSimScores, v)
		if v > maxMaxSim {
			maxMaxSim = v
		}
	}

	results := make([]Result, len(candidates))
	for i, r := range candidates {
		semanticNorm := 0.0
		if maxMaxSim > 0 {
			semanticNorm = maxSimScores[i] / maxMaxSim
		}
		results[i] = Result{
			ID:       r.ID,
			Score:    bm25Weight*bm25Norm[i] + semanticWeight*semanticNorm,
			Metadata: r.Metadata,
		}
	}
	return topK(results, k), nil
}

// QueryWithOptions runs a pure-semantic MaxSim query: exact brute-force
// below ApproximateThreshold records, or ANN-narrowed-then-exact-reranked
// above it.
func (s *Store) QueryWithOptions(queryTokens embed.Matrix, k int, opts QueryOptions) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live := make([]*Record, 0, len(s.records))
	for id, r := range s.records {
		if r.Deleted {
			continue
		}
		if opts.Filter != nil && !opts.Filter(id, r.Metadata) {
			continue
		}
		live = append(live, r)
	}

	if len(live) <= ApproximateThreshold {
		return bruteForceMaxSim(queryTokens, live, k), nil
	}

	candidateIDs := s.ann.search(pool(queryTokens), k*bm25CandidateFactor)
	candidates := make([]*Record, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		if r, ok := s.records[id]; ok && !r.Deleted {
			if opts.Filter != nil && !opts.Filter(id, r.Metadata) {
				continue
			}
			candidates = append(candidates, r)
		}
	}
	return bruteForceMaxSim(queryTokens, candidates, k), nil
}
