package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/spinneret"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	ctx := context.Background()

	// no snapshot yet
	cp, err := store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, cp)

	want := &spinneret.Checkpoint{
		Seq:   3,
		RunID: "run-123",
		Frontier: []spinneret.Request{
			*spinneret.NewRequest("https://example.com/a").WithPriority(5),
			*spinneret.NewRequest("https://example.com/b"),
		},
		DedupKeys: []string{"k1", "k2"},
	}
	want.Stats.RequestsSucceeded = 7
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, want.Seq, got.Seq)
	require.Equal(t, want.RunID, got.RunID)
	require.Equal(t, want.DedupKeys, got.DedupKeys)
	require.Len(t, got.Frontier, 2)
	require.Equal(t, "https://example.com/a", got.Frontier[0].URL)
	require.Equal(t, 5, got.Frontier[0].Priority)
	require.Equal(t, int64(7), got.Stats.RequestsSucceeded)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &spinneret.Checkpoint{Seq: 1, RunID: "r"}))
	require.NoError(t, store.Save(ctx, &spinneret.Checkpoint{Seq: 2, RunID: "r"}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Seq)

	// the temp file must not linger
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err = store.Load(context.Background())
	require.Error(t, err)
}
