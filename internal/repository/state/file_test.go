package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoadMissingFile verifies an absent store loads as the zero state.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, ControllerState{}, loaded)
}

// TestLoadCorruptFile verifies a damaged store loads as the zero state
// instead of failing.
func TestLoadCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	repo := NewFileRepository(path)

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, ControllerState{}, loaded)
}

// TestSaveLoadRoundTrip verifies the state survives a save/load cycle.
func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(path)
	ctx := context.Background()

	saved := ControllerState{
		LastActionKey:  "high_rh",
		LastActionTime: time.Now().UTC().Truncate(time.Second),
		LastActionsOK:  true,
	}

	require.NoError(t, repo.Save(ctx, saved))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, saved.LastActionKey, loaded.LastActionKey)
	require.True(t, saved.LastActionTime.Equal(loaded.LastActionTime))
	require.Equal(t, saved.LastActionsOK, loaded.LastActionsOK)
}

// TestSaveCreatesDirectory verifies the parent directory is created on
// first save.
func TestSaveCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.json")
	repo := NewFileRepository(path)

	require.NoError(t, repo.Save(context.Background(), ControllerState{LastActionKey: "normal"}))
	require.FileExists(t, path)
}

// TestSaveOverwritesWholeFile verifies a second save fully replaces the
// previous record and leaves no temp files behind.
func TestSaveOverwritesWholeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	repo := NewFileRepository(path)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, ControllerState{LastActionKey: "condensation_risk+high_rh", LastActionsOK: true}))
	require.NoError(t, repo.Save(ctx, ControllerState{LastActionKey: "normal"}))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "normal", loaded.LastActionKey)
	require.False(t, loaded.LastActionsOK)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files may survive a save")
}
