package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the query-embedding cache. Only query-mode
// embeddings are cached: documents are embedded once per build and never
// repeated, so caching them would only hold memory for no benefit.
const DefaultCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU cache over query-mode
// embeddings, since interactive search repeats the same short queries far
// more often than indexing repeats document text.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, Matrix]
}

// NewCachedEmbedder wraps inner with an LRU cache of the given size (0 =
// DefaultCacheSize).
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, Matrix](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string, mode Mode) ([]Matrix, error) {
	if mode != ModeQuery {
		return c.inner.Embed(ctx, texts, mode)
	}

	out := make([]Matrix, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if m, ok := c.cache.Get(c.cacheKey(t)); ok {
			out[i] = m
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	computed, err := c.inner.Embed(ctx, missTexts, mode)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = computed[j]
		c.cache.Add(c.cacheKey(texts[idx]), computed[j])
	}
	return out, nil
}

func (c *CachedEmbedder) Dimensions() int         { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string       { return c.inner.ModelName() }
func (c *CachedEmbedder) Identity() string        { return c.inner.Identity() }
func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *CachedEmbedder) Close() error            { return c.inner.Close() }

// Inner returns the wrapped embedder.
func (c *CachedEmbedder) Inner() Embedder { return c.inner }
