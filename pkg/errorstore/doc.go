/*
Package errorstore holds the DSLC's per-index transient error memory.

Entries are lazily cleared when an action against the index succeeds,
when the index is deleted and appears in the cluster's tombstone
graveyard, or when the index leaves DSLC management (foreign lifecycle
policy applied, or its stream's lifecycle removed). See Reconcile.
*/
package errorstore
