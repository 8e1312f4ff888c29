// Package config loads and merges the project's configuration, applying
// defaults, a user-level config, a project-level config file, and
// environment variable overrides in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/semcode-dev/semcode/internal/indexer"
	"github.com/semcode-dev/semcode/internal/search"
)

// WalkerConfig covers what the walker includes or skips (§4.1, §10).
type WalkerConfig struct {
	// Exclude adds directory patterns beyond the walker's hardcoded ignore
	// list (node_modules, .git, build, dist, ...).
	Exclude []string `yaml:"exclude"`
	// ExcludeFiles adds glob-style file patterns beyond the sensitive-file list.
	ExcludeFiles []string `yaml:"exclude_files"`
	// MaxFileSizeKB caps indexable file size (0 = walker.DefaultMaxFileSize).
	MaxFileSizeKB int64 `yaml:"max_file_size_kb"`
	// FollowSymlinks enables following symbolic links during the walk.
	FollowSymlinks bool `yaml:"follow_symlinks"`
	// IncludeHidden indexes dot-prefixed files and directories.
	IncludeHidden bool `yaml:"include_hidden"`
}

// ChunkConfig covers the prose chunker's token budget (§4.2, §10).
type ChunkConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// EmbeddingsConfig selects and tunes the embedder (§4.4, §10).
type EmbeddingsConfig struct {
	// Provider names the embedder implementation. "static" is the only
	// one this module ships; the field exists so a config file can name
	// a future provider without a schema change.
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// SearchConfig tunes fusion and result sizing (§4.7, §10).
type SearchConfig struct {
	BM25Weight     float64 `yaml:"bm25_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	MaxResults     int     `yaml:"max_results"`
}

// BoostConfig tunes the §4.8 reranking clamp.
type BoostConfig struct {
	Cap float64 `yaml:"cap"`
}

// LoggingConfig selects the slog level the CLI installs at startup.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is the full merged configuration for one project.
type Config struct {
	Version    int              `yaml:"version"`
	Walker     WalkerConfig     `yaml:"walker"`
	Chunk      ChunkConfig      `yaml:"chunk"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Search     SearchConfig     `yaml:"search"`
	Boost      BoostConfig      `yaml:"boost"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// defaultExcludePatterns are merged into WalkerConfig.Exclude by default,
// on top of the walker's own hardcoded ignore list.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/*.min.js",
	"**/*.min.css",
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Walker: WalkerConfig{
			Exclude:       append([]string{}, defaultExcludePatterns...),
			MaxFileSizeKB: 1024,
		},
		Chunk: ChunkConfig{
			MaxTokens:     400,
			OverlapTokens: 50,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			BatchSize: indexer.DefaultEmbedBatchSize,
		},
		Search: SearchConfig{
			BM25Weight:     0.5,
			SemanticWeight: 0.5,
			MaxResults:     10,
		},
		Boost: BoostConfig{
			Cap: search.Cap,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory spec:
//   - $XDG_CONFIG_HOME/semcode/config.yaml (if set)
//   - ~/.config/semcode/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "semcode", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "semcode", "config.yaml")
	}
	return filepath.Join(home, ".config", "semcode", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if present.
// A missing file is not an error.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file. Returns nil config and
// nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load builds the final Config for dir, applying layers in order of
// increasing precedence:
//  1. hardcoded defaults
//  2. user/global config (~/.config/semcode/config.yaml)
//  3. project config (.semcode.yaml or .semcode.yml in dir)
//  4. environment variables (SEMCODE_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile tries .semcode.yaml, then .semcode.yml, in dir. Neither
// existing is not an error — the caller gets defaults plus earlier layers.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".semcode.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".semcode.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML parses path into a temporary Config and merges its non-zero
// fields into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overrides c's fields with other's non-zero ones, except the
// Walker exclude lists, which are appended to c's rather than replacing them.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Walker.Exclude) > 0 {
		c.Walker.Exclude = append(c.Walker.Exclude, other.Walker.Exclude...)
	}
	if len(other.Walker.ExcludeFiles) > 0 {
		c.Walker.ExcludeFiles = append(c.Walker.ExcludeFiles, other.Walker.ExcludeFiles...)
	}
	if other.Walker.MaxFileSizeKB != 0 {
		c.Walker.MaxFileSizeKB = other.Walker.MaxFileSizeKB
	}
	if other.Walker.FollowSymlinks {
		c.Walker.FollowSymlinks = true
	}
	if other.Walker.IncludeHidden {
		c.Walker.IncludeHidden = true
	}

	if other.Chunk.MaxTokens != 0 {
		c.Chunk.MaxTokens = other.Chunk.MaxTokens
	}
	if other.Chunk.OverlapTokens != 0 {
		c.Chunk.OverlapTokens = other.Chunk.OverlapTokens
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}

	if other.Search.BM25Weight != 0 {
		c.Search.BM25Weight = other.Search.BM25Weight
	}
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Boost.Cap != 0 {
		c.Boost.Cap = other.Boost.Cap
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies SEMCODE_* environment variable overrides, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SEMCODE_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.BM25Weight = w
		}
	}
	if v := os.Getenv("SEMCODE_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("SEMCODE_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("SEMCODE_BOOST_CAP"); v != "" {
		if cap, err := parseFloat64(v); err == nil && cap > 0 {
			c.Boost.Cap = cap
		}
	}
	if v := os.Getenv("SEMCODE_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SEMCODE_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SEMCODE_CHUNK_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunk.MaxTokens = n
		}
	}
	if v := os.Getenv("SEMCODE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SEMCODE_INCLUDE_HIDDEN"); v != "" {
		c.Walker.IncludeHidden = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("SEMCODE_FOLLOW_SYMLINKS"); v != "" {
		c.Walker.FollowSymlinks = strings.ToLower(v) == "true" || v == "1"
	}
}

// parseFloat64 parses a string to float64 for config and env parsing.
func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Validate checks the final merged configuration for internally
// inconsistent values.
func (c *Config) Validate() error {
	if c.Search.BM25Weight < 0 || c.Search.BM25Weight > 1 {
		return fmt.Errorf("search.bm25_weight must be between 0 and 1, got %f", c.Search.BM25Weight)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("search.semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Chunk.MaxTokens < 0 {
		return fmt.Errorf("chunk.max_tokens must be non-negative, got %d", c.Chunk.MaxTokens)
	}
	if c.Boost.Cap < 0 {
		return fmt.Errorf("boost.cap must be non-negative, got %f", c.Boost.Cap)
	}
	if c.Embeddings.Provider != "" && c.Embeddings.Provider != "static" {
		return fmt.Errorf("embeddings.provider must be 'static', got %s", c.Embeddings.Provider)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes c to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// IndexerConfig projects c onto an indexer.Config for rootPath.
func (c *Config) IndexerConfig(rootPath string) indexer.Config {
	var maxFileSize int64
	if c.Walker.MaxFileSizeKB > 0 {
		maxFileSize = c.Walker.MaxFileSizeKB * 1024
	}
	return indexer.Config{
		RootPath:           rootPath,
		MaxFileSize:        maxFileSize,
		ExcludeDirs:        c.Walker.Exclude,
		ExcludeFiles:       c.Walker.ExcludeFiles,
		FollowSymlinks:     c.Walker.FollowSymlinks,
		IncludeHidden:      c.Walker.IncludeHidden,
		EmbedBatchSize:     c.Embeddings.BatchSize,
		ChunkMaxTokens:     c.Chunk.MaxTokens,
		ChunkOverlapTokens: c.Chunk.OverlapTokens,
	}
}

// SearchConfig projects c onto a search.Config for rootPath.
func (c *Config) SearchConfig(rootPath string) search.Config {
	return search.Config{
		RootPath:       rootPath,
		K:              c.Search.MaxResults,
		BM25Weight:     c.Search.BM25Weight,
		SemanticWeight: c.Search.SemanticWeight,
		BoostCap:       c.Boost.Cap,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
