package types

import (
	"math"
	"strconv"
	"time"
)

// DataStream is a named collection of backing indices with a distinguished
// write index (the last entry in BackingIndices).
type DataStream struct {
	Name            string
	BackingIndices  []*BackingIndex
	Lifecycle       *LifecycleSpec // nil if the stream has no managed lifecycle
	RolloverAliases map[string]bool
}

// WriteIndex returns the stream's current write index, or nil if the
// stream has no backing indices.
func (d *DataStream) WriteIndex() *BackingIndex {
	if len(d.BackingIndices) == 0 {
		return nil
	}
	return d.BackingIndices[len(d.BackingIndices)-1]
}

// NonWriteIndices returns every backing index except the write index, in
// the stream's insertion order.
func (d *DataStream) NonWriteIndices() []*BackingIndex {
	if len(d.BackingIndices) <= 1 {
		return nil
	}
	return d.BackingIndices[:len(d.BackingIndices)-1]
}

// IsManaged reports whether idx is managed by the DSLC: the stream must
// carry a non-nil lifecycle and idx's settings must not name a foreign
// lifecycle policy.
func (d *DataStream) IsManaged(idx *BackingIndex) bool {
	return d.Lifecycle != nil && idx.ForeignLifecyclePolicy == ""
}

// ManagedBackingIndices returns the subset of BackingIndices currently
// managed by the DSLC.
func (d *DataStream) ManagedBackingIndices() []*BackingIndex {
	if d.Lifecycle == nil {
		return nil
	}
	var managed []*BackingIndex
	for _, idx := range d.BackingIndices {
		if d.IsManaged(idx) {
			managed = append(managed, idx)
		}
	}
	return managed
}

// LifecycleSpec is a data stream's lifecycle configuration.
type LifecycleSpec struct {
	// DataRetention is the age at which non-write backing indices are
	// deleted. Nil means indices are never deleted on age alone.
	DataRetention *time.Duration

	// ConfiguredMaxAge is an explicit rollover max-age condition. Nil
	// means max-age is "automatic": the DSLC substitutes a default of
	// 30 days, capped to DataRetention when retention is shorter.
	ConfiguredMaxAge *time.Duration

	// ConfiguredMaxDocs is an explicit rollover max-docs condition,
	// passed through to the rollover request unchanged. Nil means no
	// doc-count condition is configured.
	ConfiguredMaxDocs *int64
}

// BackingIndex is one physical index underlying a data stream.
type BackingIndex struct {
	Name      string
	CreatedAt time.Time

	// ForeignLifecyclePolicy names an external lifecycle manager policy
	// applied to this index's settings, if any. A non-empty value takes
	// the index out of DSLC management.
	ForeignLifecyclePolicy string

	MergePolicy *MergePolicySettings

	// RolloverConditionsMet lists the conditions already satisfied and
	// the time each was satisfied, as reported by the index's rollover
	// info.
	RolloverConditionsMet map[string]time.Time

	// CustomMetadata is the free-form per-index metadata map, namespaced
	// by key. The DSLC reads/writes the "data_stream_lifecycle" namespace.
	CustomMetadata map[string]map[string]string
}

// ForceMergeCompletedAt returns the force-merge completion timestamp
// recorded in CustomMetadata, or the zero time if absent.
func (b *BackingIndex) ForceMergeCompletedAt() (time.Time, bool) {
	ns, ok := b.CustomMetadata[lifecycleMetadataNamespace]
	if !ok {
		return time.Time{}, false
	}
	raw, ok := ns[forceMergeCompletedKey]
	if !ok || raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Age returns the elapsed duration since the index was created, measured
// against now.
func (b *BackingIndex) Age(now time.Time) time.Duration {
	return now.Sub(b.CreatedAt)
}

// MergePolicySettings is the subset of index settings the DSLC inspects
// to decide whether a merge-policy update is required.
type MergePolicySettings struct {
	FloorSegmentBytes int64
	MergeFactor       int
}

// Matches reports whether s already matches the target merge policy.
func (s *MergePolicySettings) Matches(target MergePolicySettings) bool {
	if s == nil {
		return false
	}
	return s.FloorSegmentBytes == target.FloorSegmentBytes && s.MergeFactor == target.MergeFactor
}

const (
	lifecycleMetadataNamespace = "data_stream_lifecycle"
	forceMergeCompletedKey     = "force_merge_completed_timestamp"
)

// ClusterState is an immutable snapshot of the cluster metadata the DSLC
// and AAS reason over. Callers must copy out any fields they retain past
// the snapshot's lifetime.
type ClusterState struct {
	DataStreams          map[string]*DataStream
	Tombstones           map[string]time.Time // deleted index name -> deletion time
	DeploymentAssignments map[string]*DeploymentAssignment
	IsLocalNodeMaster    bool
}

// DeploymentAssignment is the cluster-level record of one inference
// deployment's adaptive-allocation configuration.
type DeploymentAssignment struct {
	DeploymentID           string
	AdaptiveAllocations    bool
	MinAllocations         *int
	MaxAllocations         *int
	TotalTargetAllocations int
}

// Stats is a per-(deployment,node) snapshot of inference load.
type Stats struct {
	SuccessCount      int64
	PendingCount      int64
	FailedCount       int64 // errors + timeouts + rejections
	AvgInferenceTime  float64 // seconds
}

// TotalInferenceTime recovers the total time spent on successful
// inferences, the inverse of the average.
func (s Stats) TotalInferenceTime() float64 {
	return float64(s.SuccessCount) * s.AvgInferenceTime
}

// Add combines two snapshots, recomputing the average inference time from
// the combined total. Yields NaN for AvgInferenceTime when the combined
// SuccessCount is <= 0.
func (s Stats) Add(other Stats) Stats {
	total := s.TotalInferenceTime() + other.TotalInferenceTime()
	successCount := s.SuccessCount + other.SuccessCount
	return Stats{
		SuccessCount:     successCount,
		PendingCount:     s.PendingCount + other.PendingCount,
		FailedCount:      s.FailedCount + other.FailedCount,
		AvgInferenceTime: avgOrNaN(total, successCount),
	}
}

// Sub computes the delta between a current snapshot (s) and a prior one
// (last). When last's SuccessCount exceeds s's (a counter reset on the
// serving node), last is treated as the zero value and s is returned
// unchanged, per the spec's resolution of that open question.
func (s Stats) Sub(last Stats) Stats {
	if last.SuccessCount > s.SuccessCount {
		return s
	}
	total := s.TotalInferenceTime() - last.TotalInferenceTime()
	successCount := s.SuccessCount - last.SuccessCount
	return Stats{
		SuccessCount:     successCount,
		PendingCount:     s.PendingCount - last.PendingCount,
		FailedCount:      s.FailedCount - last.FailedCount,
		AvgInferenceTime: avgOrNaN(total, successCount),
	}
}

func avgOrNaN(total float64, count int64) float64 {
	if count <= 0 {
		return math.NaN()
	}
	return total / float64(count)
}

