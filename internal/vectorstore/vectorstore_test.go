package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcode-dev/semcode/internal/block"
	"github.com/semcode-dev/semcode/internal/embed"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index"), embed.Dimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func embedText(t *testing.T, text string) embed.Matrix {
	t.Helper()
	e := embed.NewStaticEmbedder()
	defer e.Close()
	matrices, err := e.Embed(context.Background(), []string{text}, embed.ModeDocument)
	require.NoError(t, err)
	return matrices[0]
}

func TestStore_StoreAndGetTokensRoundTrip(t *testing.T) {
	s := newTestStore(t)
	tokens := embedText(t, "function parseRequest")
	md := &block.Block{ID: "a", Name: "parseRequest", Kind: block.KindFunction}

	require.NoError(t, s.Store("a", tokens, "function parseRequest", md))

	got, gotMD, err := s.GetTokens("a")
	require.NoError(t, err)
	assert.Equal(t, len(tokens), len(got))
	assert.Equal(t, "parseRequest", gotMD.Name)
}

func TestStore_CountReflectsLiveRecords(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Store("a", embedText(t, "a"), "a", &block.Block{ID: "a"}))
	require.NoError(t, s.Store("b", embedText(t, "b"), "b", &block.Block{ID: "b"}))

	assert.Equal(t, 2, s.Count())
	assert.Equal(t, 0, s.DeletedCount())

	require.NoError(t, s.Delete([]string{"a"}))
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 1, s.DeletedCount())
}

func TestStore_DeletedRecordNotReturnedByGetTokens(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Store("a", embedText(t, "a"), "a", &block.Block{ID: "a"}))
	require.NoError(t, s.Delete([]string{"a"}))

	_, _, err := s.GetTokens("a")
	assert.Error(t, err)
}

func TestStore_CompactReclaimsDeletedRecords(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Store("a", embedText(t, "a"), "a", &block.Block{ID: "a"}))
	require.NoError(t, s.Delete([]string{"a"}))

	require.NoError(t, s.Compact())
	assert.Equal(t, 0, s.DeletedCount())
}

func TestSearchMultiWithText_FindsLexicalMatch(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Store("auth", embedText(t, "function authenticateUser\nchecks credentials"),
		"function authenticateUser\nchecks credentials", &block.Block{ID: "auth", Name: "authenticateUser"}))
	require.NoError(t, s.Store("other", embedText(t, "function renderWidget\ndraws a button"),
		"function renderWidget\ndraws a button", &block.Block{ID: "other", Name: "renderWidget"}))

	queryTokens := embedText(t, "authenticateUser")
	results, err := s.SearchMultiWithText(queryTokens, "authenticateUser", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth", results[0].ID)
}

func TestSearchMultiWithText_FilterExcludesCandidates(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Store("auth", embedText(t, "authenticateUser"), "authenticateUser",
		&block.Block{ID: "auth", RelativePath: "src/auth.py", Name: "authenticateUser"}))

	filter := func(id string, md *block.Block) bool { return false }
	results, err := s.SearchMultiWithText(embedText(t, "authenticateUser"), "authenticateUser", 5, filter)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchMultiWeighted_ZeroBM25WeightIgnoresLexicalScore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Store("auth", embedText(t, "function authenticateUser\nchecks credentials"),
		"function authenticateUser\nchecks credentials", &block.Block{ID: "auth", Name: "authenticateUser"}))
	require.NoError(t, s.Store("other", embedText(t, "function renderWidget\ndraws a button"),
		"function renderWidget\ndraws a button", &block.Block{ID: "other", Name: "renderWidget"}))

	results, err := s.SearchMultiWeighted(embedText(t, "authenticateUser"), "authenticateUser", 5, nil, 0, 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestQueryWithOptions_BruteForceReturnsTopKByMaxSim(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Store("a", embedText(t, "exponentialBackoff retry logic"), "exponentialBackoff retry logic",
		&block.Block{ID: "a", Name: "exponentialBackoff"}))
	require.NoError(t, s.Store("b", embedText(t, "renderWidget draws ui"), "renderWidget draws ui",
		&block.Block{ID: "b", Name: "renderWidget"}))

	results, err := s.QueryWithOptions(embedText(t, "retry with backoff"), 2, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
}

func TestMaxSim_IdenticalMatricesScoreHighestPossible(t *testing.T) {
	m := embedText(t, "parseRequest")
	assert.InDelta(t, float64(len(m)), maxSim(m, m), 0.05)
}

func TestMaxSim_EmptyMatrixScoresZero(t *testing.T) {
	assert.Equal(t, 0.0, maxSim(embed.Matrix{}, embed.Matrix{{1, 2, 3}}))
}

func TestPool_AveragesTokenVectors(t *testing.T) {
	m := embed.Matrix{{1, 0}, {0, 1}}
	got := pool(m)
	assert.InDelta(t, 0.5, got[0], 0.001)
	assert.InDelta(t, 0.5, got[1], 0.001)
}
