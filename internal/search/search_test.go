package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcode-dev/semcode/internal/embed"
	semerrors "github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/indexer"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

const greetGo = `package sample

func Greet(name string) string {
	return "hello " + name
}

func unrelatedHelper() int {
	return 42
}
`

func TestSearch_FindsBlockByName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "greet.go", greetGo)

	e := embed.NewStaticEmbedder()
	defer e.Close()

	_, err := indexer.Build(context.Background(), indexer.Config{RootPath: root}, e, time.Now())
	require.NoError(t, err)

	hits, err := Search(context.Background(), Config{RootPath: root, K: 5}, "Greet", e, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Greet", hits[0].Block.Name)
}

func TestSearch_ScopeFilterExcludesOutsidePath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/greet.go", greetGo)
	writeFile(t, root, "b/greet.go", greetGo)

	e := embed.NewStaticEmbedder()
	defer e.Close()

	_, err := indexer.Build(context.Background(), indexer.Config{RootPath: root}, e, time.Now())
	require.NoError(t, err)

	hits, err := Search(context.Background(), Config{
		RootPath:  root,
		ScopePath: filepath.Join(root, "a"),
		K:         10,
	}, "Greet", e, time.Now())
	require.NoError(t, err)
	for _, h := range hits {
		assert.True(t, h.Block.RelativePath == "a/greet.go" || filepath.Dir(h.Block.RelativePath) == "a")
	}
}

func TestSearch_MissingIndexReturnsIndexMissing(t *testing.T) {
	root := t.TempDir()
	e := embed.NewStaticEmbedder()
	defer e.Close()

	_, err := Search(context.Background(), Config{RootPath: root}, "anything", e, time.Now())
	require.Error(t, err)
	assert.Equal(t, semerrors.CodeIndexMissing, semerrors.CodeOf(err))
}

func TestSearch_AutoBuildCreatesIndexWhenMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "greet.go", greetGo)
	e := embed.NewStaticEmbedder()
	defer e.Close()

	hits, err := Search(context.Background(), Config{RootPath: root, AutoBuild: true, K: 5}, "Greet", e, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestFindSimilar_DropsSameFileResults(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", greetGo)
	writeFile(t, root, "b.go", greetGo)

	e := embed.NewStaticEmbedder()
	defer e.Close()

	_, err := indexer.Build(context.Background(), indexer.Config{RootPath: root}, e, time.Now())
	require.NoError(t, err)

	hits, err := FindSimilar(context.Background(), Config{RootPath: root, K: 5}, "a.go#Greet", e, time.Now())
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "a.go", h.Block.RelativePath)
	}
}

func TestFindSimilar_UnknownFileReturnsPathNotFound(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", greetGo)
	e := embed.NewStaticEmbedder()
	defer e.Close()

	_, err := indexer.Build(context.Background(), indexer.Config{RootPath: root}, e, time.Now())
	require.NoError(t, err)

	_, err = FindSimilar(context.Background(), Config{RootPath: root}, "missing.go#Foo", e, time.Now())
	require.Error(t, err)
	assert.Equal(t, semerrors.CodePathNotFound, semerrors.CodeOf(err))
}
