/*
Package events is an in-memory pub/sub broker used to announce
cluster-state changes: a backing index force-merge completing, a data
stream rolling over, or an inference deployment's target allocation
count changing. Delivery to subscribers never blocks; a subscriber whose
buffer is full simply misses the event rather than stalling the broker
(Publish itself waits only for room in the broker's queue), so events here are a side-channel for observability and
reactive tooling (CLI watch, audit logging), never the system of record
for the cluster state they describe; that lives in pkg/storage via
pkg/clusterstate.
*/
package events
