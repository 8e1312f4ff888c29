package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/semcode-dev/semcode/internal/lexical"
)

// Dimensions is the per-token vector width the static embedder commits to.
// Chosen to match the dimension-compatible fallback precedent the rest of
// this stack follows: a fixed width independent of any real model's
// native dimension, so the fallback never needs to reconcile with one.
const Dimensions = 256

// Weights mirror the teacher's hash-based pooled embedder: most of a
// token's vector mass comes from the token itself, with a smaller
// contribution from its character trigrams so near-misspellings and
// partial matches still land close in vector space.
const (
	tokenWeight   = 0.7
	trigramWeight = 0.3
	trigramSize   = 3
)

// Per-mode token budgets. Queries are short by nature; documents can run
// considerably longer before truncation, matching the contract's
// "distinct maximum length per mode" requirement.
const (
	maxDocumentTokens = 512
	maxQueryTokens    = 64
)

// StaticEmbedder is a deterministic, dependency-free fallback: each token
// gets its own hash-derived vector rather than a single pooled vector per
// input, so it satisfies the multi-vector contract without a real model.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// NewStaticEmbedder builds a StaticEmbedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

func (e *StaticEmbedder) Embed(ctx context.Context, texts []string, mode Mode) ([]Matrix, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embed: static embedder is closed")
	}

	maxTokens := maxDocumentTokens
	if mode == ModeQuery {
		maxTokens = maxQueryTokens
	}

	out := make([]Matrix, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = embedOne(text, maxTokens)
	}
	return out, nil
}

func embedOne(text string, maxTokens int) Matrix {
	tokens := lexical.Tokenize(text)
	if len(tokens) == 0 {
		// An empty or all-stopword string still needs at least one
		// vector so downstream MaxSim has something to compare against.
		return Matrix{make([]float32, Dimensions)}
	}
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}

	m := make(Matrix, len(tokens))
	for i, tok := range tokens {
		m[i] = normalizeVector(tokenVector(tok))
	}
	return m
}

// tokenVector hashes a token and its character trigrams into a sparse
// vector: the token's own hash carries most of the weight, trigram hashes
// carry the rest so subtoken overlap between similar identifiers still
// produces a nonzero dot product.
func tokenVector(tok string) []float32 {
	v := make([]float32, Dimensions)
	v[hashToIndex(tok, Dimensions)] += tokenWeight

	lower := strings.ToLower(tok)
	for _, tri := range trigrams(lower, trigramSize) {
		v[hashToIndex(tri, Dimensions)] += trigramWeight
	}
	return v
}

func trigrams(s string, n int) []string {
	if len(s) < n {
		return nil
	}
	out := make([]string, 0, len(s)-n+1)
	for i := 0; i <= len(s)-n; i++ {
		out = append(out, s[i:i+n])
	}
	return out
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func (e *StaticEmbedder) Dimensions() int { return Dimensions }

func (e *StaticEmbedder) ModelName() string { return "static-hash" }

func (e *StaticEmbedder) Identity() string {
	return fmt.Sprintf("%s:fp32:%d", e.ModelName(), Dimensions)
}

func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
