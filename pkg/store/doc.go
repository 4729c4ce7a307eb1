/*
Package store defines the narrow interface Clawster requires from the shared
coordination store, with an etcd-backed implementation for production and an
in-memory implementation for tests.

The coordination core never talks to the store client directly; everything
goes through the Store interface, a handful of verbs: three atomic
conditional operations (set-if-absent, extend-if-equals, delete-if-equals),
plain get/set, hash operations for registry bookkeeping, bounded append-only
event trails, and fire-and-forget publish/subscribe. Keeping the interface
this small is what makes the election, registry, and failover logic testable
against MemStore without an etcd cluster.

# Architecture

	┌──────────────────── COORDINATION STORE ───────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐           │
	│  │              Store interface                │           │
	│  │  SetIfAbsent / ExtendIfEquals /             │           │
	│  │  DeleteIfEquals (lease primitives)          │           │
	│  │  Get / Set / SetWithTTL / Delete / Scan     │           │
	│  │  HSet / HGet / HGetAll / HDel (registry)    │           │
	│  │  AppendEvent / ListEvents (bounded trails)  │           │
	│  │  Publish / Subscribe (failover notices)     │           │
	│  └──────────┬──────────────────────┬──────────┘           │
	│             │                      │                       │
	│  ┌──────────▼──────────┐ ┌─────────▼─────────┐            │
	│  │      EtcdStore       │ │      MemStore     │            │
	│  │  Txn compare-and-set │ │  single mutex     │            │
	│  │  leases for TTL      │ │  deadline expiry  │            │
	│  │  watch for pub/sub   │ │  channel fan-out  │            │
	│  └─────────────────────┘ └───────────────────┘            │
	└────────────────────────────────────────────────────────────┘

# Atomicity

The three conditional operations are the entire basis of split-brain
avoidance, so each must execute as one indivisible step against the shared
store:

  - EtcdStore guards SetIfAbsent and DeleteIfEquals with transactions, and
    implements ExtendIfEquals as a keepalive on the lease granted at
    acquisition. A lease belongs to exactly one acquirer, so extending it
    can never extend a subsequent holder's claim.
  - MemStore holds its mutex across check and mutation, which is the same
    guarantee in process-local form.

An ordinary get-then-set sequence does not satisfy the interface contract:
the lease can expire and be claimed between the two steps.

# Key Layout

All implementations share one flat namespace (constants in this package):
the leader lock key, the node registry hash, session records, per-node
heartbeat keys, the bounded leader-history and cluster-event trails, and
the failover broadcast channel.

# Usage

	st, err := store.NewEtcdStore(store.EtcdConfig{
		Endpoints: []string{"127.0.0.1:2379"},
	})
	if err != nil {
		return err
	}
	defer st.Close()

	won, err := st.SetIfAbsent(ctx, store.LeaderLockKey, lockValue, 30*time.Second)

# Integration Points

  - pkg/election: lease acquire/renew/release, leader history trail
  - pkg/registry: node hash, heartbeat keys
  - pkg/failover: sessions, event trail, failover channel
  - pkg/agent: wires the chosen implementation into everything above
*/
package store
