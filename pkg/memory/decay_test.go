package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawster/clawster/pkg/types"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAddAndAccess(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f := NewFilter(WithClock(fixedClock(now)))

	f.Add("m1", "observed peer latency spike", time.Time{})

	content, ok := f.Access("m1")
	require.True(t, ok)
	assert.Equal(t, "observed peer latency spike", content)

	_, ok = f.Access("missing")
	assert.False(t, ok)
}

func TestAddOverwrites(t *testing.T) {
	f := NewFilter()
	f.Add("m1", "first", time.Time{})
	f.Access("m1")
	f.Add("m1", "second", time.Time{})

	content, ok := f.Access("m1")
	require.True(t, ok)
	assert.Equal(t, "second", content)
	assert.Equal(t, 1, f.Len())
}

// Score decreases with age for a fixed access count and never leaves [0, 1].
func TestScoreMonotonicInAge(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f := NewFilter(WithClock(fixedClock(now)))

	var prev = 1.1
	for i, age := range []time.Duration{0, 24 * time.Hour, 10 * 24 * time.Hour, 100 * 24 * time.Hour} {
		id := string(rune('a' + i))
		f.Add(id, "content "+id, now.Add(-age))
		score, ok := f.Score(id)
		require.True(t, ok)
		assert.LessOrEqual(t, score, 1.0)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.Less(t, score, prev)
		prev = score
	}
}

// Score is non-decreasing in access count for fixed age.
func TestScoreMonotonicInAccessCount(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f := NewFilter(WithClock(fixedClock(now)))
	f.Add("m1", "content", now.Add(-20*24*time.Hour))

	prev, _ := f.Score("m1")
	for i := 0; i < 5; i++ {
		f.Access("m1")
		score, ok := f.Score("m1")
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, prev)
		assert.LessOrEqual(t, score, 1.0)
		prev = score
	}
}

// With the default 30-day half-life and 0.3 threshold, a 40-day-old
// untouched memory is kept (2^(-40/30) ~ 0.397) and a 70-day-old one is
// shed (2^(-70/30) ~ 0.198).
func TestFilterByRelevanceThreshold(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f := NewFilter(WithClock(fixedClock(now)))

	f.Add("fresh", "forty days old", now.Add(-40*24*time.Hour))
	f.Add("stale", "seventy days old", now.Add(-70*24*time.Hour))

	keep, shed := f.FilterByRelevance(now)
	assert.Equal(t, []string{"fresh"}, keep)
	assert.Equal(t, []string{"stale"}, shed)

	score, _ := f.Score("fresh")
	assert.InDelta(t, 0.397, score, 0.01)
	score, _ = f.Score("stale")
	assert.InDelta(t, 0.198, score, 0.01)
}

func TestFilterOrderIsStable(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f := NewFilter(WithClock(fixedClock(now)))

	for _, id := range []string{"c", "a", "b"} {
		f.Add(id, "content "+id, now)
	}

	keep, _ := f.FilterByRelevance(now)
	assert.Equal(t, []string{"c", "a", "b"}, keep)
}

func TestCheckpointAndRestore(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f := NewFilter(WithClock(fixedClock(now)))
	f.Add("m1", "payload", now.Add(-5*24*time.Hour))
	f.Access("m1")

	cp, ok := f.Checkpoint("m1")
	require.True(t, ok)
	assert.Equal(t, "payload", cp.Content)
	assert.Equal(t, 1, cp.AccessCount)
	assert.Greater(t, cp.RelevanceScore, 0.0)

	_, ok = f.Checkpoint("missing")
	assert.False(t, ok)

	restored := NewFilter(WithClock(fixedClock(now)))
	restored.Restore([]*types.MemoryCheckpoint{cp})
	assert.Equal(t, 1, restored.Len())

	id := "checkpoint-" + ContentID("payload")
	content, ok := restored.Access(id)
	require.True(t, ok)
	assert.Equal(t, "payload", content)
}

// Restoring the same content twice lands on the same identifier: the id is
// the full content hash.
func TestRestoreContentDerivedID(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f := NewFilter(WithClock(fixedClock(now)))

	cp := &types.MemoryCheckpoint{Content: "same", Timestamp: now}
	f.Restore([]*types.MemoryCheckpoint{cp, cp})
	assert.Equal(t, 1, f.Len())

	other := &types.MemoryCheckpoint{Content: "different", Timestamp: now}
	f.Restore([]*types.MemoryCheckpoint{other})
	assert.Equal(t, 2, f.Len())
}

func TestExportHighValue(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f := NewFilter(WithClock(fixedClock(now)))

	f.Add("keep", "recent", now.Add(-1*24*time.Hour))
	f.Add("shed", "ancient", now.Add(-200*24*time.Hour))

	exported := f.ExportHighValue()
	require.Len(t, exported, 1)
	assert.Equal(t, "recent", exported[0].Content)
}

func TestStats(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	f := NewFilter(WithClock(fixedClock(now)))

	f.Add("keep", "recent", now)
	f.Add("shed", "ancient", now.Add(-200*24*time.Hour))

	total, active := f.Stats()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, active)
}
