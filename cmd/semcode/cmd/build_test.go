package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcode-dev/semcode/internal/locator"
)

const sampleGoSource = `package sample

func Greet(name string) string {
	return "hello " + name
}
`

func writeFixture(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestRunBuild_CreatesIndex(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "main.go", sampleGoSource)

	cmd := newBuildCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	err := runBuild(cmd, root, false)

	require.Error(t, err) // carries exit code 0 via exitError, not a cobra failure
	ee, ok := err.(*exitError)
	require.True(t, ok)
	assert.Equal(t, 0, ee.code)
	assert.True(t, locator.IsIndexRoot(root))
	assert.Contains(t, buf.String(), "indexed 1 blocks")
}

func TestRunBuild_SecondRunUpdatesRatherThanRebuilds(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "main.go", sampleGoSource)

	cmd := newBuildCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	require.NoError(t, ignoreExit(runBuild(cmd, root, false)))

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	require.NoError(t, ignoreExit(runBuild(cmd, root, false)))

	assert.Contains(t, buf.String(), "1 unchanged")
}

func TestRunBuild_ForceRebuildsFromScratch(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "main.go", sampleGoSource)

	cmd := newBuildCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	require.NoError(t, ignoreExit(runBuild(cmd, root, false)))

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	require.NoError(t, ignoreExit(runBuild(cmd, root, true)))

	assert.Contains(t, buf.String(), "indexed 1 blocks")
	assert.NotContains(t, buf.String(), "1 unchanged")
}

// ignoreExit treats an *exitError with code 0 as success, matching how
// Execute() would report it to the OS.
func ignoreExit(err error) error {
	if ee, ok := err.(*exitError); ok && ee.code == 0 {
		return nil
	}
	return err
}
