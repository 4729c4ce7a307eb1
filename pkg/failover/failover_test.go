package failover

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawster/clawster/pkg/registry"
	"github.com/clawster/clawster/pkg/store"
	"github.com/clawster/clawster/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, *registry.Registry, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	reg := registry.New(st)
	return NewManager(st, reg), reg, st
}

func putSession(t *testing.T, st *store.MemStore, session types.Session) {
	t.Helper()
	data, err := json.Marshal(&session)
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), store.SessionPrefix+session.ID, string(data)))
}

func getSession(t *testing.T, st *store.MemStore, id string) types.Session {
	t.Helper()
	raw, ok, err := st.Get(context.Background(), store.SessionPrefix+id)
	require.NoError(t, err)
	require.True(t, ok)
	var session types.Session
	require.NoError(t, json.Unmarshal([]byte(raw), &session))
	return session
}

func TestMarkFailed(t *testing.T) {
	mgr, reg, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))
	require.NoError(t, mgr.MarkFailed(ctx, "node-a", "missed heartbeats"))

	node, err := reg.Get(ctx, "node-a")
	require.NoError(t, err)
	assert.Equal(t, types.NodeStateFailed, node.State)
	assert.Equal(t, "missed heartbeats", node.FailReason)
	require.NotNil(t, node.FailedAt)
}

func TestMarkFailed_Unregistered(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	err := mgr.MarkFailed(context.Background(), "ghost", "missed heartbeats")
	assert.Error(t, err)
}

func TestMarkFailed_AlreadyFailedIsIdempotent(t *testing.T) {
	mgr, reg, st := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))
	require.NoError(t, mgr.MarkFailed(ctx, "node-a", "missed heartbeats"))
	require.NoError(t, mgr.MarkFailed(ctx, "node-a", "missed heartbeats"))

	events, err := st.ListEvents(ctx, store.EventsTrail, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1, "a second MarkFailed should not re-record the failure")
}

func TestMarkFailed_MigratesSessions(t *testing.T) {
	mgr, reg, st := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-b"}))

	putSession(t, st, types.Session{ID: "s1", NodeID: "node-a", CreatedAt: time.Now()})
	putSession(t, st, types.Session{ID: "s2", NodeID: "node-a", CreatedAt: time.Now()})
	putSession(t, st, types.Session{ID: "s3", NodeID: "node-b", CreatedAt: time.Now()})

	require.NoError(t, mgr.MarkFailed(ctx, "node-a", "missed heartbeats"))

	for _, id := range []string{"s1", "s2"} {
		session := getSession(t, st, id)
		assert.Equal(t, types.SessionMigrating, session.NodeID)
		assert.Equal(t, "node-a", session.MigratedFrom)
		require.NotNil(t, session.MigratedAt)
	}

	// node-b's session is untouched.
	session := getSession(t, st, "s3")
	assert.Equal(t, "node-b", session.NodeID)
	assert.Empty(t, session.MigratedFrom)
}

func TestMarkFailed_BroadcastsNotice(t *testing.T) {
	mgr, reg, st := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))

	ch, err := st.Subscribe(ctx, store.FailoverChannel)
	require.NoError(t, err)

	require.NoError(t, mgr.MarkFailed(ctx, "node-a", "missed heartbeats"))

	select {
	case raw := <-ch:
		var notice types.FailoverNotice
		require.NoError(t, json.Unmarshal([]byte(raw), &notice))
		assert.Equal(t, "failover", notice.Type)
		assert.Equal(t, "node-a", notice.FailedNode)
		assert.Equal(t, "sessions_migrated", notice.Action)
	case <-time.After(time.Second):
		t.Fatal("no failover notice received")
	}
}

func TestRecoverNode(t *testing.T) {
	mgr, reg, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))
	require.NoError(t, mgr.MarkFailed(ctx, "node-a", "missed heartbeats"))
	require.NoError(t, mgr.RecoverNode(ctx, "node-a"))

	node, err := reg.Get(ctx, "node-a")
	require.NoError(t, err)

	// Recovery is conservative: suspected, not healthy.
	assert.Equal(t, types.NodeStateSuspected, node.State)
	assert.Nil(t, node.FailedAt)
	assert.Empty(t, node.FailReason)
	require.NotNil(t, node.RecoveredAt)

	// The prior failure survives as history.
	require.NotNil(t, node.PreviousFailure)
	assert.Equal(t, "missed heartbeats", node.PreviousFailure.Reason)
	require.NotNil(t, node.PreviousFailure.FailedAt)
}

func TestRecoverNode_NotFailed(t *testing.T) {
	mgr, reg, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))
	err := mgr.RecoverNode(ctx, "node-a")
	assert.Error(t, err)
}

func TestFailedNodes(t *testing.T) {
	mgr, reg, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-b"}))
	require.NoError(t, mgr.MarkFailed(ctx, "node-b", "missed heartbeats"))

	failed, err := mgr.FailedNodes(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "node-b", failed[0].ID)
}

func TestHealthCheck(t *testing.T) {
	mgr, reg, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-b"}))
	require.NoError(t, mgr.MarkFailed(ctx, "node-b", "missed heartbeats"))

	health, err := mgr.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, health.Total)
	assert.Equal(t, 1, health.Healthy)
	assert.Equal(t, 1, health.Failed)
}

func TestEvents_NewestFirst(t *testing.T) {
	mgr, reg, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))
	require.NoError(t, mgr.MarkFailed(ctx, "node-a", "missed heartbeats"))
	require.NoError(t, mgr.RecoverNode(ctx, "node-a"))

	events, err := mgr.Events(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "node_recovered", events[0].Event)
	assert.Equal(t, "node_failed", events[1].Event)
	assert.Equal(t, "missed heartbeats", events[1].Reason)
}

func TestMonitor_Sweep(t *testing.T) {
	st := store.NewMemStore()

	now := time.Now()
	st.SetClock(func() time.Time { return now })

	reg := registry.New(st)
	mgr := NewManager(st, reg)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-b"}))
	require.NoError(t, st.SetWithTTL(ctx, store.HeartbeatPrefix+"node-a", "{}", 15*time.Second))
	require.NoError(t, st.SetWithTTL(ctx, store.HeartbeatPrefix+"node-b", "{}", 15*time.Second))

	leading := true
	mon := NewMonitor(mgr, reg, func() bool { return leading })

	// Everyone alive: no failures.
	mon.Sweep(ctx)
	failed, err := mgr.FailedNodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)

	// node-b's heartbeat lapses.
	now = now.Add(16 * time.Second)
	require.NoError(t, st.SetWithTTL(ctx, store.HeartbeatPrefix+"node-a", "{}", 15*time.Second))

	mon.Sweep(ctx)
	failed, err = mgr.FailedNodes(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "node-b", failed[0].ID)
}

func TestMonitor_FollowerDoesNothing(t *testing.T) {
	st := store.NewMemStore()

	now := time.Now()
	st.SetClock(func() time.Time { return now })

	reg := registry.New(st)
	mgr := NewManager(st, reg)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))

	mon := NewMonitor(mgr, reg, func() bool { return false })
	mon.Sweep(ctx)

	failed, err := mgr.FailedNodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed, "a follower must not mark nodes failed")
}
