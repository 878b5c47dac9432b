package dslc

import (
	"time"

	"github.com/fluxstream/clustercore/pkg/client"
	"github.com/fluxstream/clustercore/pkg/types"
)

// defaultMaxAge is the rollover max-age condition substituted when a
// stream's lifecycle marks max-age as automatic.
const defaultMaxAge = 30 * 24 * time.Hour

// RolloverRequestBuilder produces a RolloverRequest merging a stream's
// configured conditions with the default max-age rule: 30 days, or the
// stream's data retention when that is shorter.
type RolloverRequestBuilder struct{}

// Build constructs the rollover request for ds's write index.
func (RolloverRequestBuilder) Build(ds *types.DataStream) client.RolloverRequest {
	lc := ds.Lifecycle

	maxAge := lc.ConfiguredMaxAge
	if maxAge == nil {
		automatic := defaultMaxAge
		if lc.DataRetention != nil && *lc.DataRetention < automatic {
			automatic = *lc.DataRetention
		}
		maxAge = &automatic
	}

	ms := maxAge.Milliseconds()
	return client.RolloverRequest{
		DataStream: ds.Name,
		Conditions: client.RolloverCondition{
			MaxAge:  &ms,
			MaxDocs: lc.ConfiguredMaxDocs,
		},
	}
}
