package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/tracker"
	"remindd/pkg/logx"
)

func openTestStore(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestOpenFileRequiresPath(t *testing.T) {
	_, err := Open(Config{Driver: "file"}, logx.Nop())
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	st, _ := openTestStore(t)
	_, ok, err := st.LoadState(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	deadline := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	it := tracker.NewItem("a", "Ship release", deadline)
	it.Tags = []string{"release"}
	it.RemindersSent = 2

	saved := State{
		Items:    []tracker.Item{it},
		Counters: Counters{ItemsMonitored: 5, RemindersSent: 3},
		SavedAt:  time.Now().Truncate(time.Second),
	}
	require.NoError(t, st.SaveState(ctx, saved))

	got, ok, err := st.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Ship release", got.Items[0].Title)
	assert.Equal(t, []string{"release"}, got.Items[0].Tags)
	assert.Equal(t, 2, got.Items[0].RemindersSent)
	assert.True(t, got.Items[0].Deadline.Equal(deadline))
	assert.Equal(t, 5, got.Counters.ItemsMonitored)
	assert.True(t, got.SavedAt.Equal(saved.SavedAt))
}

func TestSaveOverwritesAtomically(t *testing.T) {
	st, path := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveState(ctx, State{Items: []tracker.Item{
		tracker.NewItem("a", "first", time.Now().Add(time.Hour)),
	}}))
	require.NoError(t, st.SaveState(ctx, State{Items: []tracker.Item{
		tracker.NewItem("b", "second", time.Now().Add(time.Hour)),
	}}))

	got, ok, err := st.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "b", got.Items[0].ID)

	// No temp file left behind after a successful rename.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSaveStampsSavedAt(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveState(ctx, State{}))
	got, ok, err := st.LoadState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.SavedAt.IsZero())
}

func TestLoadCorruptFile(t *testing.T) {
	st, path := openTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, ok, err := st.LoadState(context.Background())
	require.Error(t, err)
	assert.False(t, ok)
}
