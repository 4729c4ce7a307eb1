package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawster/clawster/pkg/store"
	"github.com/clawster/clawster/pkg/types"
)

func TestRegisterAndGet(t *testing.T) {
	st := store.NewMemStore()
	reg := New(st)

	node := &types.Node{
		ID:           "node-a",
		Address:      "10.0.0.1:7946",
		Capabilities: []string{"code_review", "web_search"},
	}
	require.NoError(t, reg.Register(context.Background(), node))

	got, err := reg.Get(context.Background(), "node-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "node-a", got.ID)
	assert.Equal(t, types.NodeStateFollower, got.State)
	assert.Equal(t, []string{"code_review", "web_search"}, got.Capabilities)
	assert.False(t, got.RegisteredAt.IsZero())
}

func TestRegister_RequiresID(t *testing.T) {
	reg := New(store.NewMemStore())
	err := reg.Register(context.Background(), &types.Node{})
	assert.Error(t, err)
}

func TestRegister_PreservesRegistrationTime(t *testing.T) {
	st := store.NewMemStore()

	now := time.Now()
	reg := New(st, WithClock(func() time.Time { return now }))

	require.NoError(t, reg.Register(context.Background(), &types.Node{ID: "node-a"}))

	first, err := reg.Get(context.Background(), "node-a")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	require.NoError(t, reg.Register(context.Background(), &types.Node{ID: "node-a"}))

	second, err := reg.Get(context.Background(), "node-a")
	require.NoError(t, err)
	assert.Equal(t, first.RegisteredAt, second.RegisteredAt)
	assert.True(t, second.LastSeen.After(first.LastSeen))
}

func TestGet_Unregistered(t *testing.T) {
	reg := New(store.NewMemStore())
	got, err := reg.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestList_SortedByID(t *testing.T) {
	st := store.NewMemStore()
	reg := New(st)

	for _, id := range []string{"node-c", "node-a", "node-b"} {
		require.NoError(t, reg.Register(context.Background(), &types.Node{ID: id}))
	}

	nodes, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "node-a", nodes[0].ID)
	assert.Equal(t, "node-b", nodes[1].ID)
	assert.Equal(t, "node-c", nodes[2].ID)
}

func TestSetState(t *testing.T) {
	st := store.NewMemStore()
	reg := New(st)

	require.NoError(t, reg.Register(context.Background(), &types.Node{ID: "node-a"}))
	require.NoError(t, reg.SetState(context.Background(), "node-a", types.NodeStateLeader))

	got, err := reg.Get(context.Background(), "node-a")
	require.NoError(t, err)
	assert.Equal(t, types.NodeStateLeader, got.State)

	err = reg.SetState(context.Background(), "ghost", types.NodeStateFailed)
	assert.Error(t, err)
}

func TestDeregister(t *testing.T) {
	st := store.NewMemStore()
	reg := New(st)

	require.NoError(t, reg.Register(context.Background(), &types.Node{ID: "node-a"}))
	require.NoError(t, reg.Deregister(context.Background(), "node-a"))

	got, err := reg.Get(context.Background(), "node-a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAlivePeers(t *testing.T) {
	st := store.NewMemStore()
	reg := New(st)
	ctx := context.Background()

	for _, id := range []string{"node-a", "node-b", "node-c"} {
		require.NoError(t, reg.Register(ctx, &types.Node{ID: id}))
	}

	// Only node-b has a live heartbeat besides self.
	require.NoError(t, st.SetWithTTL(ctx, store.HeartbeatPrefix+"node-a", "{}", time.Minute))
	require.NoError(t, st.SetWithTTL(ctx, store.HeartbeatPrefix+"node-b", "{}", time.Minute))

	peers, err := reg.AlivePeers(ctx, "node-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"node-b"}, peers)
}

func TestExpiredPeers(t *testing.T) {
	st := store.NewMemStore()

	now := time.Now()
	st.SetClock(func() time.Time { return now })

	reg := New(st)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-b"}))
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-c", State: types.NodeStateFailed}))

	require.NoError(t, st.SetWithTTL(ctx, store.HeartbeatPrefix+"node-a", "{}", 15*time.Second))
	require.NoError(t, st.SetWithTTL(ctx, store.HeartbeatPrefix+"node-b", "{}", 15*time.Second))

	// No lapses yet.
	expired, err := reg.ExpiredPeers(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)

	// node-b's heartbeat lapses. node-c has no heartbeat either but is
	// already marked failed, so it is not re-reported.
	now = now.Add(16 * time.Second)
	require.NoError(t, st.SetWithTTL(ctx, store.HeartbeatPrefix+"node-a", "{}", 15*time.Second))

	expired, err = reg.ExpiredPeers(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "node-b", expired[0].ID)
}

func TestHealth(t *testing.T) {
	st := store.NewMemStore()
	reg := New(st)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a", State: types.NodeStateLeader}))
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-b", State: types.NodeStateFollower}))
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-c", State: types.NodeStateFailed}))
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-d", State: types.NodeStateSuspected}))

	health, err := reg.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, health.Total)
	assert.Equal(t, 2, health.Healthy)
	assert.Equal(t, 1, health.Failed)
	assert.Equal(t, 1, health.Suspected)
	assert.Len(t, health.Nodes, 4)
}

func TestHeartbeater_Beat(t *testing.T) {
	st := store.NewMemStore()
	reg := New(st)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))

	h := NewHeartbeater("node-a", st, reg, func() types.Heartbeat {
		return types.Heartbeat{
			State:         types.NodeStateLeader,
			IsLeader:      true,
			CurrentLeader: "node-a",
		}
	}, WithTTL(15*time.Second))

	require.NoError(t, h.Beat(ctx))

	raw, ok, err := st.Get(ctx, store.HeartbeatPrefix+"node-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"is_leader":true`)
}

func TestHeartbeater_RecordExpires(t *testing.T) {
	st := store.NewMemStore()

	now := time.Now()
	st.SetClock(func() time.Time { return now })

	reg := New(st)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))

	h := NewHeartbeater("node-a", st, reg, func() types.Heartbeat {
		return types.Heartbeat{State: types.NodeStateFollower}
	}, WithTTL(15*time.Second))

	require.NoError(t, h.Beat(ctx))

	now = now.Add(16 * time.Second)
	_, ok, err := st.Get(ctx, store.HeartbeatPrefix+"node-a")
	require.NoError(t, err)
	assert.False(t, ok, "heartbeat record should expire on its own")
}

func TestHeartbeater_Loop(t *testing.T) {
	st := store.NewMemStore()
	reg := New(st)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, &types.Node{ID: "node-a"}))

	h := NewHeartbeater("node-a", st, reg, func() types.Heartbeat {
		return types.Heartbeat{State: types.NodeStateFollower}
	}, WithInterval(20*time.Millisecond), WithTTL(time.Minute))

	h.Start(ctx)
	defer h.Stop()

	require.Eventually(t, func() bool {
		_, ok, err := st.Get(ctx, store.HeartbeatPrefix+"node-a")
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)
}
