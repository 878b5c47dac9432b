/*
Package clusterstate is clustercore's Raft-backed control plane. A
clustercore deployment runs one Service per manager node; the nodes form
a Raft quorum and agree on a single replicated ClusterState (data
streams, backing indices, deployment assignments, and the tombstone
graveyard) through a small FSM command set.

	┌──────────────────── clustercored process ───────────────────┐
	│                                                                │
	│  clusterstate.Service                                         │
	│    - Apply(cmd) proposes a command through Raft               │
	│    - IsLeader() gates the DSLC and AAS control loops           │
	│    - Subscribe() notifies listeners after every command       │
	│      this node's Apply commits; listeners re-read State()     │
	│                     │                                          │
	│  ┌──────────────────▼────────────────────┐                    │
	│  │        hashicorp/raft consensus         │                    │
	│  │  - leader election, log replication     │                    │
	│  └──────────────────┬────────────────────┘                    │
	│                     │                                          │
	│  ┌──────────────────▼────────────────────┐                    │
	│  │              FSM                        │                    │
	│  │  - Apply(): commits a Command            │                    │
	│  │  - Snapshot()/Restore(): via pkg/storage │                    │
	│  └──────────────────┬────────────────────┘                    │
	│                     │                                          │
	│              pkg/storage (BoltDB)                              │
	└────────────────────────────────────────────────────────────┘

Only the elected leader's DSLC and AAS control loops are expected to
dispatch actions, per the "only current master executes" invariant,
but every node's FSM applies every committed command, so followers
stay ready to take over without a state transfer.
*/
package clusterstate
