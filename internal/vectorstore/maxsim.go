package vectorstore

import (
	"sort"

	"github.com/semcode-dev/semcode/internal/embed"
)

// maxSim scores a query matrix against a document matrix: for each query
// token, the highest dot product against any document token, summed
// across query tokens. Vectors are assumed pre-normalized by the embedder,
// so the dot product is a cosine similarity.
func maxSim(query, doc embed.Matrix) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	var total float64
	for _, q := range query {
		best := dot(q, doc[0])
		for _, d := range doc[1:] {
			if v := dot(q, d); v > best {
				best = v
			}
		}
		total += best
	}
	return total
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// pool collapses a multi-vector matrix into a single fixed-dimensional
// vector (mean of its token vectors) for indexing in the ANN graph — a
// fixed-dimensional encoding cheap enough to approximate-search at scale,
// with exact MaxSim reserved for reranking its candidates.
func pool(m embed.Matrix) []float32 {
	if len(m) == 0 {
		return nil
	}
	dim := len(m[0])
	out := make([]float32, dim)
	for _, v := range m {
		for i := 0; i < dim && i < len(v); i++ {
			out[i] += v[i]
		}
	}
	inv := float32(1) / float32(len(m))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// bruteForceMaxSim scores query against every candidate record's tokens
// and returns the top k by descending score. Used below
// ApproximateThreshold, where an exhaustive scan is cheap enough that an
// approximate index would only add risk of missed recall.
func bruteForceMaxSim(query embed.Matrix, candidates []*Record, k int) []Result {
	scored := make([]Result, 0, len(candidates))
	for _, r := range candidates {
		scored = append(scored, Result{ID: r.ID, Score: maxSim(query, r.Tokens), Metadata: r.Metadata})
	}
	return topK(scored, k)
}

func topK(results []Result, k int) []Result {
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
