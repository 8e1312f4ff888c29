// Package embed defines the multi-vector embedding contract the core
// consumes: given a batch of strings, produce one token-count × token-dim
// matrix per string. The embedder owns its own tokenization and pooling;
// the core only ever sees matrices and a stable model identity string.
package embed

import (
	"context"
	"math"
)

// Mode selects document-side or query-side embedding. Implementations may
// commit to different maximum input lengths per mode — documents are
// typically allowed to run longer than queries.
type Mode string

const (
	ModeDocument Mode = "document"
	ModeQuery    Mode = "query"
)

// Matrix is one string's multi-vector embedding: Matrix[i] is the vector
// for the i-th token, each of length Embedder.Dimensions().
type Matrix [][]float32

// Embedder produces per-token dense vectors for a batch of strings. The
// embedder is treated as an external black box: the core never inspects
// its tokenization or pooling, only the resulting matrices.
type Embedder interface {
	// Embed returns one Matrix per input string, in order.
	Embed(ctx context.Context, texts []string, mode Mode) ([]Matrix, error)

	// Dimensions returns the fixed per-token vector width.
	Dimensions() int

	// ModelName returns a short identifier for the embedding model.
	ModelName() string

	// Identity returns the manifest's model_identity string
	// ("<model_name>:<precision>:<dim>"), used to detect a stale index.
	Identity() string

	// Available reports whether the embedder is ready to serve requests.
	Available(ctx context.Context) bool

	// Close releases any resources (model handles, warm caches).
	Close() error
}

// normalizeVector scales v to unit length in place, returning v.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= scale
	}
	return v
}
