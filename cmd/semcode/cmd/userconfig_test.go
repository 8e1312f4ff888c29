package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcode-dev/semcode/internal/config"
)

func withIsolatedUserConfigDir(t *testing.T) string {
	tmpDir := t.TempDir()
	orig := os.Getenv("XDG_CONFIG_HOME")
	require.NoError(t, os.Setenv("XDG_CONFIG_HOME", tmpDir))
	t.Cleanup(func() { _ = os.Setenv("XDG_CONFIG_HOME", orig) })
	return tmpDir
}

func TestRunConfigBackup_NoConfigYet(t *testing.T) {
	withIsolatedUserConfigDir(t)

	cmd := newConfigBackupCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := runConfigBackup(cmd)

	require.Error(t, err)
	assert.Equal(t, 1, err.(*exitError).code)
	assert.Contains(t, buf.String(), "no user config")
}

func TestRunConfigBackup_CreatesTimestampedCopy(t *testing.T) {
	withIsolatedUserConfigDir(t)
	require.NoError(t, os.MkdirAll(config.GetUserConfigDir(), 0755))
	require.NoError(t, os.WriteFile(config.GetUserConfigPath(), []byte("version: 1\n"), 0644))

	cmd := newConfigBackupCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := runConfigBackup(cmd)

	require.NoError(t, ignoreExit(err))
	backups, listErr := config.ListUserConfigBackups()
	require.NoError(t, listErr)
	assert.Len(t, backups, 1)
}

func TestRunConfigListBackups_PrintsBackupPath(t *testing.T) {
	withIsolatedUserConfigDir(t)
	require.NoError(t, os.MkdirAll(config.GetUserConfigDir(), 0755))
	require.NoError(t, os.WriteFile(config.GetUserConfigPath(), []byte("version: 1\n"), 0644))
	_, err := config.BackupUserConfig()
	require.NoError(t, err)

	cmd := newConfigListBackupsCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	runErr := runConfigListBackups(cmd)

	require.NoError(t, ignoreExit(runErr))
	assert.Contains(t, buf.String(), filepath.Join(config.GetUserConfigDir(), "config.yaml.bak."))
}

func TestRunConfigRestore_RoundTripsContent(t *testing.T) {
	withIsolatedUserConfigDir(t)
	backupSource := filepath.Join(t.TempDir(), "restore-source.yaml")
	require.NoError(t, os.WriteFile(backupSource, []byte("version: 1\nboost:\n  cap: 3.0\n"), 0644))

	cmd := newConfigRestoreCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := runConfigRestore(cmd, backupSource)

	require.NoError(t, ignoreExit(err))
	data, readErr := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, readErr)
	assert.Equal(t, "version: 1\nboost:\n  cap: 3.0\n", string(data))
}
