package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/semcode-dev/semcode/internal/config"
	"github.com/semcode-dev/semcode/internal/embed"
	"github.com/semcode-dev/semcode/internal/indexer"
	"github.com/semcode-dev/semcode/internal/locator"
	"github.com/semcode-dev/semcode/internal/output"
)

func newBuildCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "build <path>",
		Short: "Build or refresh the index rooted at <path>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild from scratch even if an index already exists")
	return cmd
}

func runBuild(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := config.Load(path)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	embedder := embed.NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()

	idxCfg := cfg.IndexerConfig(path)
	idxCfg.OnProgress = func(phase string, current, total int) {
		out.Progress(current, total, phase)
	}

	now := time.Now()
	abs, err := filepath.Abs(path)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var result *indexer.Result
	if !force && locator.IsIndexRoot(abs) {
		result, err = indexer.Update(ctx, idxCfg, embedder, now)
	} else {
		result, err = indexer.Build(ctx, idxCfg, embedder, now)
	}
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	out.Successf("indexed %d blocks across %d files (%d unchanged, %d removed, %d warnings) in %s",
		result.BlocksIndexed, result.FilesIndexed, result.FilesUnchanged, result.FilesRemoved, result.Warnings,
		result.Duration.Round(time.Millisecond))
	return &exitError{code: 0}
}
