/*
Package types defines the core data structures shared across clustercore.

It holds two domain models side by side: the data stream lifecycle model
(data streams, backing indices, lifecycle specs, force-merge completion
metadata) consumed by the DSLC, and the inference deployment model
(deployment assignments, per-node stats, scaler bounds) consumed by the
AAS. Types here are plain structs with only the small arithmetic helpers
(Stats.Add/Sub) that spec invariants require; orchestration logic lives
in pkg/dslc and pkg/aas.

# Managed index invariant

An index is managed by the DSLC iff its stream carries a non-nil
Lifecycle and its settings carry no ForeignLifecyclePolicy. See
DataStream.IsManaged.

# Stats arithmetic

Stats.Add and Stats.Sub recompute AvgInferenceTime as
TotalInferenceTime/SuccessCount, yielding NaN when the new SuccessCount
is <= 0. Sub clamps its argument to the zero value when the receiver's
SuccessCount would otherwise go negative (counter reset), per the
spec's resolution of that open question.
*/
package types
