/*
Package failover handles node failure and recovery for Clawster.

Failure detection is leader-gated: only the current lease holder sweeps
the registry for lapsed heartbeats, so a partitioned follower cannot mark
half the cluster failed. Marking a node failed flips its registry state,
moves every session it owned into a transient migrating state that keeps
the prior owner as provenance, appends to the bounded cluster event trail,
and broadcasts a fire-and-forget failover notice.

Recovery is conservative by contract: a recovered node re-enters as
suspected and must earn back healthy state through fresh heartbeats. Its
prior failure is kept as history, not erased.
*/
package failover
