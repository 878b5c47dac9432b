/*
Package dslc implements the Data Stream Lifecycle Controller: the
master-node control loop that drives every managed data stream through
rollover, merge-policy adjustment, force-merge, and retention-delete.

	┌──────────────────────── DSLC ────────────────────────────┐
	│                                                            │
	│  clusterstate.Service.State() ──► Run(state)               │
	│                                      │                     │
	│              ┌───────────────────────┼────────────────────┐│
	│              ▼                       ▼                    ││
	│      errorstore.Store.Reconcile   for each managed         ││
	│                                    data stream:             ││
	│                                      │                     ││
	│                    ┌─────────────────┼──────────────────┐  ││
	│                    ▼                 ▼                  ▼  ││
	│              write index      non-write indices    (insertion││
	│              → rollover       → delete/settings/      order) ││
	│                                  force-merge, one               │
	│                                  phase per index per run        │
	│                                      │                          │
	│                                      ▼                          │
	│                           dedup.Deduplicator.Execute             │
	│                                      │                          │
	│                                      ▼                          │
	│                           client.ActionClient.Execute            │
	│                           (fire-and-forget, async completion)    │
	└────────────────────────────────────────────────────────────────┘

Run is invoked by a listener goroutine in cmd/clustercored once per change
event from clusterstate.Service.Subscribe, and it never blocks: every
outbound request is dispatched through the deduplicator and returns
immediately, with completion handled on whatever goroutine the action
client's RPC resolves on. A force-merge that completes successfully
submits an UpdateForceMergeCompleteTask, which re-enters the Raft log via
clusterstate.Service.ApplyAsync to stamp the index's custom metadata;
completion is therefore itself just another committed command, replayed
identically to followers.

Run is a no-op unless the local node currently holds Raft leadership
(state.IsLocalNodeMaster), matching the "only the current master
executes" non-goal: Run may be called on any node, but only the leader
dispatches anything.
*/
package dslc
