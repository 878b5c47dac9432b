/*
Package dedup collapses logically-identical in-flight outbound actions
into a single dispatch, fanning the eventual result out to every caller
that asked for it. It generalizes the teacher's events.Broker (one
registration, N waiters) from broadcast-by-event-type to
register-by-logical-key, since deduplication keys here (index sets,
force-merge flags) are not an enumerable event taxonomy.
*/
package dedup
