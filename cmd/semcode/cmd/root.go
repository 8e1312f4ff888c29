// Package cmd provides the CLI commands for semcode.
package cmd

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/semcode-dev/semcode/internal/block"
	"github.com/semcode-dev/semcode/internal/config"
	"github.com/semcode-dev/semcode/internal/embed"
	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/logging"
	"github.com/semcode-dev/semcode/internal/output"
	"github.com/semcode-dev/semcode/internal/search"
	"github.com/semcode-dev/semcode/pkg/version"
)

// exitError carries the documented exit code (§6: 0/1/2) through cobra's
// error-returning RunE without relying on os.Exit mid-command, so deferred
// cleanup (embedder/store Close) always runs.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd()
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exitError); ok {
		if ee.err != nil {
			cmd.PrintErrln(ee.err)
		}
		return ee.code
	}
	cmd.PrintErrln(err)
	return 2
}

// queryOptions holds the common result-shaping flags shared by the
// default query verb (§6 "<query> <path>").
type queryOptions struct {
	n         int
	jsonOut   bool
	compact   bool
	filesOnly bool
	extension string
	exclude   []string
	codeOnly  bool
}

func (o queryOptions) renderOptions() output.RenderOptions {
	return output.RenderOptions{JSON: o.jsonOut, Compact: o.compact, FilesOnly: o.filesOnly}
}

var debugMode bool

// NewRootCmd builds the semcode CLI: an explicit build/status/clean/list
// tree, plus a default "<query> <path>" verb for anything that isn't one
// of those subcommand names (§6).
func NewRootCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:     "semcode <query> [path]",
		Short:   "Local semantic code search",
		Version: version.Version,
		Long: `semcode indexes a codebase and searches it with hybrid BM25 +
semantic retrieval, entirely locally.

  semcode build .                 index or refresh the current directory
  semcode "parseRequest" .        search
  semcode auth.go#handleLogin .   find similar blocks to a named block
  semcode status .
  semcode clean .
  semcode list .`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}
	cmd.SetVersionTemplate("semcode version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr")
	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		level := "info"
		if debugMode {
			level = "debug"
		}
		logging.SetupDefault(level)
		return nil
	}

	cmd.Flags().IntVarP(&opts.n, "n", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Structured JSON output")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "Omit block content from output")
	cmd.Flags().BoolVarP(&opts.filesOnly, "files-only", "l", false, "Print unique file paths only")
	cmd.Flags().StringVarP(&opts.extension, "extension", "t", "", "Filter results by file extension")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Glob patterns to exclude from results (repeatable)")
	cmd.Flags().BoolVar(&opts.codeOnly, "code-only", false, "Skip markdown/text blocks")

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// runQuery implements the default "<query> <path>" verb: a query that
// looks like a block reference triggers find_similar, otherwise a hybrid
// search runs (§6).
func runQuery(cmd *cobra.Command, args []string, opts queryOptions) error {
	query := args[0]
	path := "."
	if len(args) > 1 {
		path = args[1]
	}

	embedder := embed.NewCachedEmbedder(embed.NewStaticEmbedder(), embed.DefaultCacheSize)
	defer func() { _ = embedder.Close() }()

	cfg, err := config.Load(path)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	searchCfg := cfg.SearchConfig(path)
	if opts.n > 0 {
		searchCfg.K = opts.n
	}
	searchCfg.AutoBuild = autoBuildEnabled()

	ctx := cmd.Context()
	now := time.Now()

	var hits []search.Hit
	if looksLikeRef(query) {
		hits, err = search.FindSimilar(ctx, searchCfg, query, embedder, now)
	} else {
		hits, err = search.Search(ctx, searchCfg, query, embedder, now)
	}
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	results := filterHits(hits, opts)
	out := output.New(cmd.OutOrStdout())
	if err := out.RenderResults(results, opts.renderOptions()); err != nil {
		return &exitError{code: 2, err: err}
	}
	return &exitError{code: errors.ExitCode(nil, len(results))}
}

// looksLikeRef mirrors search.ParseRef's own split: a "#name" suffix, or a
// trailing ":<line>" where <line> parses as an integer.
func looksLikeRef(s string) bool {
	if strings.Contains(s, "#") {
		return true
	}
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		if _, err := strconv.Atoi(s[idx+1:]); err == nil {
			return true
		}
	}
	return false
}

func autoBuildEnabled() bool {
	v := os.Getenv("SEMCODE_AUTO_BUILD")
	return v == "1" || strings.EqualFold(v, "true")
}

func filterHits(hits []search.Hit, opts queryOptions) []output.Result {
	results := make([]output.Result, 0, len(hits))
	for _, h := range hits {
		if h.Block == nil {
			continue
		}
		if opts.codeOnly && isProse(h.Block.Language) {
			continue
		}
		if opts.extension != "" && !strings.EqualFold(extOf(h.Block.RelativePath), opts.extension) {
			continue
		}
		if matchesAnyExclude(h.Block.RelativePath, opts.exclude) {
			continue
		}
		results = append(results, output.Result{
			File:    h.Block.RelativePath,
			Type:    string(h.Block.Kind),
			Name:    h.Block.Name,
			Line:    h.Block.StartLine,
			EndLine: h.Block.EndLine,
			Score:   h.Score,
			Content: h.Block.Content,
		})
	}
	return results
}

func isProse(lang block.Language) bool {
	return lang == block.LanguageMarkdown || lang == block.LanguageText
}

func extOf(relPath string) string {
	idx := strings.LastIndex(relPath, ".")
	if idx < 0 {
		return ""
	}
	return strings.TrimPrefix(relPath[idx:], ".")
}

func matchesAnyExclude(relPath string, patterns []string) bool {
	base := filepath.Base(relPath)
	for _, p := range patterns {
		if matched, _ := filepath.Match(p, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(p, base); matched {
			return true
		}
	}
	return false
}
