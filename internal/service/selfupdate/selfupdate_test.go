package selfupdate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFindStaged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := FindStaged(dir)
	require.ErrorIs(t, err, ErrNoStagedUpdate)

	older := filepath.Join(dir, "update-OpenLightsManager-0.3")
	newer := filepath.Join(dir, "update-OpenLightsManager-0.4")
	require.NoError(t, os.WriteFile(older, []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(newer, []byte("new"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	found, err := FindStaged(dir)
	require.NoError(t, err)
	require.Equal(t, newer, found)
}

func TestApply(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "lights-manager")
	staged := filepath.Join(dir, "update-lights-manager")

	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o755)) //nolint:gosec // Executable fixture.
	require.NoError(t, os.WriteFile(staged, []byte("v2"), 0o600))

	require.NoError(t, Apply(context.Background(), staged, target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))

	require.NoFileExists(t, staged)
	require.NoFileExists(t, target+".old")
}

func TestApplyMissingStaged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := Apply(context.Background(), filepath.Join(dir, "update-missing"), filepath.Join(dir, "target"))
	require.Error(t, err)
}
