package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 400, cfg.Chunk.MaxTokens)
	assert.Equal(t, 50, cfg.Chunk.OverlapTokens)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 0.5, cfg.Search.BM25Weight)
	assert.Equal(t, 0.5, cfg.Search.SemanticWeight)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Walker.Exclude)
}

func TestConfig_Validate_RejectsWeightOutsideUnitRange(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.BM25Weight = 1.5
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RejectsUnknownProvider(t *testing.T) {
	cfg := NewConfig()
	cfg.Embeddings.Provider = "ollama"
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	withIsolatedUserConfig(t)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Chunk, cfg.Chunk)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	withIsolatedUserConfig(t)

	writeProjectConfig(t, tmpDir, ".semcode.yaml", "search:\n  max_results: 25\nboost:\n  cap: 3.0\n")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.Equal(t, 3.0, cfg.Boost.Cap)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	tmpDir := t.TempDir()
	withIsolatedUserConfig(t)

	writeProjectConfig(t, tmpDir, ".semcode.yml", "chunk:\n  max_tokens: 800\n")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Chunk.MaxTokens)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	tmpDir := t.TempDir()
	withIsolatedUserConfig(t)

	writeProjectConfig(t, tmpDir, ".semcode.yaml", "chunk:\n  max_tokens: 111\n")
	writeProjectConfig(t, tmpDir, ".semcode.yml", "chunk:\n  max_tokens: 222\n")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 111, cfg.Chunk.MaxTokens)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	withIsolatedUserConfig(t)

	writeProjectConfig(t, tmpDir, ".semcode.yaml", "not: valid: yaml: [")

	_, err := Load(tmpDir)
	assert.Error(t, err)
}

func TestLoad_ExcludePatterns_AppendToDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	withIsolatedUserConfig(t)

	writeProjectConfig(t, tmpDir, ".semcode.yaml", "walker:\n  exclude:\n    - \"**/fixtures/**\"\n")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Contains(t, cfg.Walker.Exclude, "**/fixtures/**")
	assert.Contains(t, cfg.Walker.Exclude, "**/node_modules/**")
}

func TestLoad_EnvVarOverridesProvider(t *testing.T) {
	tmpDir := t.TempDir()
	withIsolatedUserConfig(t)
	t.Setenv("SEMCODE_EMBEDDINGS_PROVIDER", "static")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
}

func TestLoad_EnvVarOverridesSearchWeights(t *testing.T) {
	tmpDir := t.TempDir()
	withIsolatedUserConfig(t)
	t.Setenv("SEMCODE_BM25_WEIGHT", "0.7")
	t.Setenv("SEMCODE_SEMANTIC_WEIGHT", "0.3")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Search.BM25Weight)
	assert.Equal(t, 0.3, cfg.Search.SemanticWeight)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	tmpDir := t.TempDir()
	withIsolatedUserConfig(t)
	t.Setenv("SEMCODE_LOG_LEVEL", "")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvVarTakesPrecedenceOverProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	withIsolatedUserConfig(t)
	writeProjectConfig(t, tmpDir, ".semcode.yaml", "search:\n  max_results: 25\n")
	t.Setenv("SEMCODE_MAX_RESULTS", "40")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Search.MaxResults)
}

func TestGetUserConfigPath_DefaultsToXDGLocation(t *testing.T) {
	withIsolatedUserConfig(t)
	assert.Contains(t, GetUserConfigPath(), filepath.Join("semcode", "config.yaml"))
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	assert.Equal(t, filepath.Join(tmpDir, "semcode", "config.yaml"), GetUserConfigPath())
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	withIsolatedUserConfig(t)
	assert.False(t, UserConfigExists())
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	withIsolatedUserConfig(t)
	require.NoError(t, os.MkdirAll(GetUserConfigDir(), 0755))
	require.NoError(t, os.WriteFile(GetUserConfigPath(), []byte("version: 1\n"), 0644))
	assert.True(t, UserConfigExists())
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	withIsolatedUserConfig(t)
	require.NoError(t, os.MkdirAll(GetUserConfigDir(), 0755))
	require.NoError(t, os.WriteFile(GetUserConfigPath(), []byte("search:\n  max_results: 15\n"), 0644))

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Search.MaxResults)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	withIsolatedUserConfig(t)
	require.NoError(t, os.MkdirAll(GetUserConfigDir(), 0755))
	require.NoError(t, os.WriteFile(GetUserConfigPath(), []byte("search:\n  max_results: 15\n"), 0644))

	tmpDir := t.TempDir()
	writeProjectConfig(t, tmpDir, ".semcode.yaml", "search:\n  max_results: 30\n")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Search.MaxResults)
}

func TestConfig_IndexerConfig_ProjectsWalkerAndChunkFields(t *testing.T) {
	cfg := NewConfig()
	cfg.Walker.MaxFileSizeKB = 2048
	cfg.Chunk.MaxTokens = 600

	ic := cfg.IndexerConfig("/some/root")
	assert.Equal(t, "/some/root", ic.RootPath)
	assert.Equal(t, int64(2048*1024), ic.MaxFileSize)
	assert.Equal(t, 600, ic.ChunkMaxTokens)
}

func TestConfig_SearchConfig_ProjectsFusionAndBoostFields(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.MaxResults = 5
	cfg.Boost.Cap = 2.0

	sc := cfg.SearchConfig("/some/root")
	assert.Equal(t, 5, sc.K)
	assert.Equal(t, 2.0, sc.BoostCap)
}

func withIsolatedUserConfig(t *testing.T) {
	t.Helper()
	tmpHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpHome, "xdg"))
}

func writeProjectConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}
