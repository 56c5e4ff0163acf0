package fssafe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStableSettlesOnUnchangedSize(t *testing.T) {
	orig := StabilityPollInterval
	StabilityPollInterval = 10 * time.Millisecond
	StabilityIdleBudget = 1 * time.Second
	defer func() { StabilityPollInterval = orig }()

	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	stable, err := IsStable(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, stable)
}

func TestIsStableReturnsFalseOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	stable, err := IsStable(context.Background(), filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	assert.False(t, stable)
}

func TestAtomicRenameMovesFile(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "src.txt")
	to := filepath.Join(dir, "nested", "dst.txt")
	require.NoError(t, os.WriteFile(from, []byte("data"), 0644))

	require.NoError(t, AtomicRename(from, to))

	_, err := os.Stat(from)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(to)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestAtomicRenameMissingSource(t *testing.T) {
	orig := EnoentBackoffMin
	EnoentBackoffMin = time.Millisecond
	EnoentBackoffMax = 2 * time.Millisecond
	orig2 := RenameMaxAttempts
	RenameMaxAttempts = 2
	defer func() { EnoentBackoffMin = orig; RenameMaxAttempts = orig2 }()

	dir := t.TempDir()
	err := AtomicRename(filepath.Join(dir, "nope.txt"), filepath.Join(dir, "dst.txt"))
	require.Error(t, err)
}
