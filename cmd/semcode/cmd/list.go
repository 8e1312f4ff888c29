package cmd

import (
	"encoding/json"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/locator"
	"github.com/semcode-dev/semcode/internal/manifest"
)

type indexInfo struct {
	Path          string `json:"path"`
	FileCount     int    `json:"file_count"`
	BlockCount    int    `json:"block_count"`
	ModelIdentity string `json:"model_identity"`
}

func newListCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list <path>",
		Short: "Enumerate all indexes at or below <path>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args[0], jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runList(cmd *cobra.Command, path string, jsonOut bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	roots, err := locator.List(abs)
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	infos := make([]indexInfo, 0, len(roots))
	for _, root := range roots {
		mf, err := manifest.Load(filepath.Join(root, locator.MarkerName))
		if err != nil || mf == nil {
			continue
		}
		infos = append(infos, indexInfo{
			Path:          root,
			FileCount:     len(mf.Files),
			BlockCount:    mf.BlockCount(),
			ModelIdentity: mf.ModelIdentity,
		})
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(infos); err != nil {
			return &exitError{code: 2, err: err}
		}
		return &exitError{code: errors.ExitCode(nil, len(infos))}
	}

	for _, info := range infos {
		cmd.Printf("%s  (%d files, %d blocks, model %s)\n", info.Path, info.FileCount, info.BlockCount, info.ModelIdentity)
	}
	return &exitError{code: errors.ExitCode(nil, len(infos))}
}
