package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/semcode-dev/semcode/internal/config"
	"github.com/semcode-dev/semcode/internal/errors"
	"github.com/semcode-dev/semcode/internal/output"
)

// newConfigCmd groups the user/global config file's backup lifecycle
// behind one verb, so a bad edit to the XDG config is always one
// "config restore" away from undone.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the user configuration file's backups",
	}
	cmd.AddCommand(newConfigBackupCmd())
	cmd.AddCommand(newConfigListBackupsCmd())
	cmd.AddCommand(newConfigRestoreCmd())
	return cmd
}

func newConfigBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the current user config, keeping the last " + strconv.Itoa(config.MaxBackups),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigBackup(cmd)
		},
	}
}

func runConfigBackup(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	path, err := config.BackupUserConfig()
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	if path == "" {
		out.Successf("no user config to back up")
		return &exitError{code: 1}
	}
	out.Successf("backed up user config to %s", path)
	return &exitError{code: 0}
}

func newConfigListBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-backups",
		Short: "List user config backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigListBackups(cmd)
		},
	}
}

func runConfigListBackups(cmd *cobra.Command) error {
	backups, err := config.ListUserConfigBackups()
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	for _, b := range backups {
		cmd.Println(b)
	}
	return &exitError{code: errors.ExitCode(nil, len(backups))}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-path>",
		Short: "Restore the user config from a backup, backing up the current one first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigRestore(cmd, args[0])
		},
	}
}

func runConfigRestore(cmd *cobra.Command, backupPath string) error {
	out := output.New(cmd.OutOrStdout())

	if err := config.RestoreUserConfig(backupPath); err != nil {
		return &exitError{code: 2, err: err}
	}
	out.Successf("restored user config from %s", backupPath)
	return &exitError{code: 0}
}
