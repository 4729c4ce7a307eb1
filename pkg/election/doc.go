/*
Package election implements lease-based leader election for Clawster.

One node at a time holds a TTL-bounded lease on a single shared key; that
node is the leader. This is a lease, not a consensus protocol: after a
leader crashes, no other node may lead until the TTL expires, trading a
window of unavailability for an upper bound on staleness.

# Lease Protocol

All mutual exclusion rests on three conditional operations against the
shared store, each executing as one indivisible step:

	┌───────────────────── LEASE LIFECYCLE ─────────────────────┐
	│                                                           │
	│   FOLLOWER ──try_acquire──▶ LEADER                        │
	│      ▲     (set if absent,    │                           │
	│      │      with expiry)      │ renew every TTL/2         │
	│      │                        │ (extend only if value     │
	│      │                        │  still equals ours)       │
	│      │                        ▼                           │
	│      └──── renewal failed ◀── ● ──── release ────▶ gone   │
	│            or released        │   (delete only if value   │
	│                               │    still equals ours)     │
	└───────────────────────────────────────────────────────────┘

The lease value is "<node id>:<acquisition nonce>". The nonce makes each
acquisition unique, so a restarted node cannot mistake a previous
incarnation's lease for its own, and a node that lost the lease cannot
renew or delete a subsequent holder's claim.

Failure to acquire is not an error. It is the normal follower outcome, and
the Watcher simply tries again next tick.

# Components

  - Election: the lease operations (TryAcquire, Renew, Release,
    CurrentHolder) plus local role tracking, change callbacks, and the
    bounded leader-change history trail.
  - Watcher: the periodic loop. Followers contend every tick; the leader
    renews once half the TTL has elapsed.

# Usage

	e := election.New(nodeID, st, election.WithLockTTL(10*time.Second))
	e.OnChange(func(isLeader bool) {
		if isLeader {
			failoverMonitor.Resume()
		} else {
			failoverMonitor.Pause()
		}
	})

	w := election.NewWatcher(e)
	w.Start(ctx)
	defer w.Stop()

CurrentHolder is a non-authoritative read: the answer can be stale the
moment it returns. Callers must never treat it as proof of exclusivity.
*/
package election
