package cmd

import (
	"encoding/json"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/locator"
	"github.com/semcode-dev/semcode/internal/manifest"
)

// statusInfo is the §6 status payload: {file_count, block_count,
// schema_version, model_identity}.
type statusInfo struct {
	FileCount     int    `json:"file_count"`
	BlockCount    int    `json:"block_count"`
	SchemaVersion int    `json:"schema_version"`
	ModelIdentity string `json:"model_identity"`
}

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <path>",
		Short: "Print file_count, block_count, schema_version, model_identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0], jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, path string, jsonOut bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	root, found, err := locator.LocateUpward(abs)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	if !found {
		return &exitError{code: 2, err: errors.New(errors.CodeIndexMissing, "no index found at or above "+path, nil).
			WithSuggestion("run build " + path)}
	}

	mf, err := manifest.Load(filepath.Join(root, locator.MarkerName))
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	if mf == nil {
		return &exitError{code: 2, err: errors.New(errors.CodeIndexMissing, "no index found at or above "+path, nil).
			WithSuggestion("run build " + path)}
	}

	info := statusInfo{
		FileCount:     len(mf.Files),
		BlockCount:    mf.BlockCount(),
		SchemaVersion: mf.SchemaVersion,
		ModelIdentity: mf.ModelIdentity,
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(info); err != nil {
			return &exitError{code: 2, err: err}
		}
		return &exitError{code: 0}
	}

	cmd.Printf("files: %d\nblocks: %d\nschema_version: %d\nmodel_identity: %s\n",
		info.FileCount, info.BlockCount, info.SchemaVersion, info.ModelIdentity)
	return &exitError{code: 0}
}
