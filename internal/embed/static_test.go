package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_EmbedReturnsOneVectorPerToken(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	matrices, err := e.Embed(context.Background(), []string{"func parseRequest"}, ModeDocument)
	require.NoError(t, err)
	require.Len(t, matrices, 1)

	m := matrices[0]
	assert.Greater(t, len(m), 0)
	for _, vec := range m {
		assert.Len(t, vec, Dimensions)
	}
}

func TestStaticEmbedder_EmptyInputStillProducesOneVector(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	matrices, err := e.Embed(context.Background(), []string{""}, ModeDocument)
	require.NoError(t, err)
	require.Len(t, matrices, 1)
	assert.Len(t, matrices[0], 1)
}

func TestStaticEmbedder_AllStopwordInputStillProducesOneVector(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	matrices, err := e.Embed(context.Background(), []string{"the a an"}, ModeDocument)
	require.NoError(t, err)
	require.Len(t, matrices, 1)
	assert.Len(t, matrices[0], 1)
}

func TestStaticEmbedder_QueryModeTruncatesShorterThanDocumentMode(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	long := ""
	for i := 0; i < maxDocumentTokens+50; i++ {
		long += "token "
	}

	docMatrices, err := e.Embed(context.Background(), []string{long}, ModeDocument)
	require.NoError(t, err)
	queryMatrices, err := e.Embed(context.Background(), []string{long}, ModeQuery)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(docMatrices[0]), maxDocumentTokens)
	assert.LessOrEqual(t, len(queryMatrices[0]), maxQueryTokens)
	assert.Greater(t, len(docMatrices[0]), len(queryMatrices[0]))
}

func TestStaticEmbedder_IdenticalTokensProduceIdenticalVectors(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	matrices, err := e.Embed(context.Background(), []string{"parse", "parse"}, ModeDocument)
	require.NoError(t, err)
	assert.Equal(t, matrices[0], matrices[1])
}

func TestStaticEmbedder_VectorsAreUnitNormalized(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	matrices, err := e.Embed(context.Background(), []string{"parseHTTPRequest"}, ModeDocument)
	require.NoError(t, err)

	for _, vec := range matrices[0] {
		var sumSquares float64
		for _, x := range vec {
			sumSquares += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, sumSquares, 0.01)
	}
}

func TestStaticEmbedder_CloseMakesEmbedderUnavailable(t *testing.T) {
	e := NewStaticEmbedder()

	require.True(t, e.Available(context.Background()))
	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))

	_, err := e.Embed(context.Background(), []string{"x"}, ModeDocument)
	assert.Error(t, err)
}

func TestStaticEmbedder_IdentityEncodesModelAndDimensions(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	assert.Equal(t, "static-hash:fp32:256", e.Identity())
}
