package dslc

import (
	"sort"
	"strings"

	"github.com/fluxstream/clustercore/pkg/client"
)

// ForceMergeRequestKey is a value-equality wrapper over a
// client.ForceMergeRequest so the deduplicator recognizes two logically
// identical requests as the same in-flight dispatch. []string indices
// are not themselves comparable, so the target set is canonicalized
// into a sorted, NUL-joined string; every other equality-bearing field
// from spec is carried as a plain comparable value.
//
// ParentTaskID and StoreResult are deliberately excluded: two
// supervisory tasks retrying the same logical force-merge must collapse
// into the same dispatch regardless of which task asked for it or
// whether it wants the result persisted.
type ForceMergeRequestKey struct {
	indices            string
	onlyExpungeDeletes bool
	flush              bool
	maxNumSegments     int
	requestID          string
}

// NewForceMergeRequestKey builds the dedup key for req.
func NewForceMergeRequestKey(req client.ForceMergeRequest) ForceMergeRequestKey {
	return ForceMergeRequestKey{
		indices:            canonicalIndexSet(req.Indices),
		onlyExpungeDeletes: req.OnlyExpungeDeletes,
		flush:              req.Flush,
		maxNumSegments:     req.MaxNumSegments,
		requestID:          req.RequestID,
	}
}

func canonicalIndexSet(indices []string) string {
	sorted := append([]string(nil), indices...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

// forceMergeRequestID derives a deterministic request ID from the target
// index set, rather than a random UUID, so that the same logical
// force-merge re-issued on a later DSLC run produces an identical
// ForceMergeRequestKey and collapses into any copy still in flight.
func forceMergeRequestID(indices []string) string {
	return "fm:" + canonicalIndexSet(indices)
}
