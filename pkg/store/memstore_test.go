package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	ok, err := s.SetIfAbsent(ctx, "k", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetIfAbsent(ctx, "k", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	value, exists, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "a", value)
}

// Given concurrent acquisition attempts against an empty key, exactly one
// caller wins.
func TestSetIfAbsentMutualExclusion(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan string, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			ok, err := s.SetIfAbsent(ctx, "lock", string('a'+id), time.Minute)
			require.NoError(t, err)
			if ok {
				wins <- string('a' + id)
			}
		}(byte(i))
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)

	value, exists, err := s.Get(ctx, "lock")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, winners[0], value)
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	ok, err := s.SetIfAbsent(ctx, "k", "a", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Before expiry the key blocks new acquirers.
	now = now.Add(9 * time.Second)
	ok, _ = s.SetIfAbsent(ctx, "k", "b", 10*time.Second)
	assert.False(t, ok)

	// After expiry it is reclaimable.
	now = now.Add(2 * time.Second)
	ok, _ = s.SetIfAbsent(ctx, "k", "b", 10*time.Second)
	assert.True(t, ok)
}

func TestExtendIfEquals(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	_, err := s.SetIfAbsent(ctx, "k", "holder", 10*time.Second)
	require.NoError(t, err)

	ok, err := s.ExtendIfEquals(ctx, "k", "holder", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ExtendIfEquals(ctx, "k", "intruder", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// After expiry nothing is left to extend.
	now = now.Add(11 * time.Second)
	ok, err = s.ExtendIfEquals(ctx, "k", "holder", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteIfEquals(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	_, err := s.SetIfAbsent(ctx, "k", "holder", time.Minute)
	require.NoError(t, err)

	ok, err := s.DeleteIfEquals(ctx, "k", "intruder")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.DeleteIfEquals(ctx, "k", "holder")
	require.NoError(t, err)
	assert.True(t, ok)

	_, exists, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHashOps(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.HSet(ctx, "nodes", "node-a", "1"))
	require.NoError(t, s.HSet(ctx, "nodes", "node-b", "2"))

	value, ok, err := s.HGet(ctx, "nodes", "node-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", value)

	all, err := s.HGetAll(ctx, "nodes")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"node-a": "1", "node-b": "2"}, all)

	require.NoError(t, s.HDel(ctx, "nodes", "node-a"))
	_, ok, err = s.HGet(ctx, "nodes", "node-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEventTrailBounded(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	for _, v := range []string{"e1", "e2", "e3", "e4"} {
		require.NoError(t, s.AppendEvent(ctx, "trail", v, 3))
	}

	events, err := s.ListEvents(ctx, "trail", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e4", "e3", "e2"}, events)

	limited, err := s.ListEvents(ctx, "trail", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e4", "e3"}, limited)
}

func TestPublishSubscribe(t *testing.T) {
	s := NewMemStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := s.Subscribe(ctx, "failover")
	require.NoError(t, err)

	require.NoError(t, s.Publish(context.Background(), "failover", "notice"))

	select {
	case msg := <-sub:
		assert.Equal(t, "notice", msg)
	case <-time.After(time.Second):
		t.Fatal("expected published message")
	}

	// Publishing with no subscriber on another channel must not block.
	require.NoError(t, s.Publish(context.Background(), "other", "dropped"))
}

func TestScanPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.Set(ctx, "sessions/s1", "a"))
	require.NoError(t, s.Set(ctx, "sessions/s2", "b"))
	require.NoError(t, s.Set(ctx, "nodes/n1", "c"))

	out, err := s.Scan(ctx, "sessions/")
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "a", out["sessions/s1"])
}
