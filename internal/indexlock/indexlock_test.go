package indexlock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BuildsLockFilePathUnderIndexDir(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	assert.Equal(t, filepath.Join(dir, ".write.lock"), l.Path())
}

func TestLock_AcquiresAndCreatesIndexDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "index")
	l := New(dir)

	require.NoError(t, l.Lock())
	assert.True(t, l.IsLocked())
	require.NoError(t, l.Unlock())
	assert.False(t, l.IsLocked())
}

func TestTryLock_SecondHolderFailsWhileFirstHolds(t *testing.T) {
	dir := t.TempDir()

	first := New(dir)
	ok, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer first.Unlock()

	second := New(dir)
	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnlock_IsSafeWhenNotLocked(t *testing.T) {
	l := New(t.TempDir())
	assert.NoError(t, l.Unlock())
}

func TestTryLock_SucceedsAfterFirstHolderReleases(t *testing.T) {
	dir := t.TempDir()

	first := New(dir)
	ok, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, first.Unlock())

	second := New(dir)
	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	defer second.Unlock()
}
