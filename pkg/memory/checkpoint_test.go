package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawster/clawster/pkg/types"
)

func TestCheckpointStoreRoundTrip(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	checkpoints := []*types.MemoryCheckpoint{
		{Content: "first", Timestamp: now, AccessCount: 2, RelevanceScore: 0.9},
		{Content: "second", Timestamp: now.Add(-time.Hour), RelevanceScore: 0.5},
	}

	require.NoError(t, store.Save(checkpoints))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byContent := make(map[string]*types.MemoryCheckpoint)
	for _, cp := range loaded {
		byContent[cp.Content] = cp
	}
	assert.Equal(t, 2, byContent["first"].AccessCount)
	assert.InDelta(t, 0.5, byContent["second"].RelevanceScore, 0.001)
}

func TestCheckpointStoreSaveIsIdempotent(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	cp := &types.MemoryCheckpoint{Content: "same content", Timestamp: time.Now().UTC()}
	require.NoError(t, store.Save([]*types.MemoryCheckpoint{cp}))
	require.NoError(t, store.Save([]*types.MemoryCheckpoint{cp}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestCheckpointStorePrune(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	now := time.Now().UTC()
	keep := &types.MemoryCheckpoint{Content: "keep", Timestamp: now}
	drop := &types.MemoryCheckpoint{Content: "drop", Timestamp: now}
	require.NoError(t, store.Save([]*types.MemoryCheckpoint{keep, drop}))

	require.NoError(t, store.Prune([]*types.MemoryCheckpoint{keep}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "keep", loaded[0].Content)
}
