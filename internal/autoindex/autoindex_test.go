package autoindex

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrNewFreshDirectory(t *testing.T) {
	dir := t.TempDir()
	c := LoadOrNew(dir)
	require.Equal(t, int64(0), c.Current())
}

func TestLoadOrNewToleratesCorruption(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/auto_index", []byte("not json"), 0o644))
	c := LoadOrNew(dir)
	require.Equal(t, int64(0), c.Current())
}

func TestNextRollbackCommit(t *testing.T) {
	dir := t.TempDir()
	c := LoadOrNew(dir)

	require.Equal(t, int64(1), c.Next())
	require.Equal(t, int64(2), c.Next())
	require.NoError(t, c.Rollback())
	require.Equal(t, int64(1), c.Current())
	require.NoError(t, c.Commit())

	reloaded := LoadOrNew(dir)
	require.Equal(t, int64(1), reloaded.Current())
}

func TestRollbackAtZeroErrors(t *testing.T) {
	dir := t.TempDir()
	c := LoadOrNew(dir)
	require.Error(t, c.Rollback())
}
