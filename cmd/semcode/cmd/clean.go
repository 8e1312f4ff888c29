package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semcode-dev/semcode/internal/embed"
	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/locator"
	"github.com/semcode-dev/semcode/internal/manifest"
	"github.com/semcode-dev/semcode/internal/output"
	"github.com/semcode-dev/semcode/internal/vectorstore"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <path>",
		Short: "Delete the index at <path>, or remove a subtree from its governing parent index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, args[0])
		},
	}
}

func runClean(cmd *cobra.Command, path string) error {
	out := output.New(cmd.OutOrStdout())

	abs, err := filepath.Abs(path)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	if locator.IsIndexRoot(abs) {
		if err := os.RemoveAll(filepath.Join(abs, locator.MarkerName)); err != nil {
			return &exitError{code: 2, err: err}
		}
		out.Successf("removed index at %s", abs)
		return &exitError{code: 0}
	}

	root, found, err := locator.FindParent(abs)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	if !found {
		return &exitError{code: 2, err: errors.New(errors.CodeIndexMissing, "no index found at or above "+path, nil).
			WithSuggestion("run build " + path)}
	}

	indexDir := filepath.Join(root, locator.MarkerName)
	mf, err := manifest.Load(indexDir)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	if mf == nil {
		return &exitError{code: 2, err: errors.New(errors.CodeIndexMissing, "no index found at or above "+path, nil)}
	}

	relPrefix, err := filepath.Rel(root, abs)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	relPrefix = strings.ReplaceAll(relPrefix, string(filepath.Separator), "/")

	ids := mf.RemoveUnderPath(relPrefix)
	if len(ids) == 0 {
		out.Successf("no blocks under %s", relPrefix)
		return &exitError{code: 1}
	}

	embedder := embed.NewStaticEmbedder()
	defer func() { _ = embedder.Close() }()
	store, err := vectorstore.Open(filepath.Join(indexDir, "store"), embedder.Dimensions())
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	defer func() { _ = store.Close() }()

	if err := store.Delete(ids); err != nil {
		return &exitError{code: 2, err: err}
	}
	if err := store.Flush(); err != nil {
		return &exitError{code: 2, err: err}
	}
	if err := mf.Save(indexDir); err != nil {
		return &exitError{code: 2, err: err}
	}

	out.Successf("removed %d blocks under %s from %s", len(ids), relPrefix, root)
	return &exitError{code: 0}
}
