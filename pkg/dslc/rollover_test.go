package dslc

import (
	"testing"
	"time"

	"github.com/fluxstream/clustercore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRolloverRequestBuilder_Build(t *testing.T) {
	t.Run("automatic max-age uses the 30-day default", func(t *testing.T) {
		ds := &types.DataStream{Name: "logs", Lifecycle: &types.LifecycleSpec{}}
		req := RolloverRequestBuilder{}.Build(ds)

		require.NotNil(t, req.Conditions.MaxAge)
		assert.Equal(t, defaultMaxAge.Milliseconds(), *req.Conditions.MaxAge)
		assert.Nil(t, req.Conditions.MaxDocs)
		assert.Equal(t, "logs", req.DataStream)
	})

	t.Run("automatic max-age capped to a shorter retention", func(t *testing.T) {
		retention := 5 * 24 * time.Hour
		ds := &types.DataStream{Name: "logs", Lifecycle: &types.LifecycleSpec{DataRetention: &retention}}
		req := RolloverRequestBuilder{}.Build(ds)

		require.NotNil(t, req.Conditions.MaxAge)
		assert.Equal(t, retention.Milliseconds(), *req.Conditions.MaxAge)
	})

	t.Run("configured max-age overrides automatic and retention", func(t *testing.T) {
		retention := 5 * 24 * time.Hour
		configured := 10 * 24 * time.Hour
		ds := &types.DataStream{Name: "logs", Lifecycle: &types.LifecycleSpec{
			DataRetention:    &retention,
			ConfiguredMaxAge: &configured,
		}}
		req := RolloverRequestBuilder{}.Build(ds)

		require.NotNil(t, req.Conditions.MaxAge)
		assert.Equal(t, configured.Milliseconds(), *req.Conditions.MaxAge)
	})

	t.Run("configured max-docs passed through unchanged", func(t *testing.T) {
		maxDocs := int64(1_000_000)
		ds := &types.DataStream{Name: "logs", Lifecycle: &types.LifecycleSpec{ConfiguredMaxDocs: &maxDocs}}
		req := RolloverRequestBuilder{}.Build(ds)

		require.NotNil(t, req.Conditions.MaxDocs)
		assert.Equal(t, maxDocs, *req.Conditions.MaxDocs)
	})
}
