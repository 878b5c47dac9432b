/*
Package storage persists the Raft-replicated cluster state clustercore's
FSM applies: data streams (with their backing indices and lifecycle
specs), the tombstone graveyard of deleted index names, and inference
deployment assignments. Every manager node runs its own copy via
BoltStore; only the Raft leader's writes matter, but followers keep an
up-to-date copy so a new leader can serve reads immediately after
election.
*/
package storage
