package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataStream_WriteIndex(t *testing.T) {
	t.Run("no backing indices", func(t *testing.T) {
		ds := &DataStream{Name: "logs"}
		assert.Nil(t, ds.WriteIndex())
	})

	t.Run("returns last index", func(t *testing.T) {
		a := &BackingIndex{Name: "logs-000001"}
		b := &BackingIndex{Name: "logs-000002"}
		ds := &DataStream{Name: "logs", BackingIndices: []*BackingIndex{a, b}}
		assert.Same(t, b, ds.WriteIndex())
	})
}

func TestDataStream_NonWriteIndices(t *testing.T) {
	a := &BackingIndex{Name: "logs-000001"}
	b := &BackingIndex{Name: "logs-000002"}
	c := &BackingIndex{Name: "logs-000003"}

	t.Run("single index has none", func(t *testing.T) {
		ds := &DataStream{BackingIndices: []*BackingIndex{a}}
		assert.Nil(t, ds.NonWriteIndices())
	})

	t.Run("multiple indices excludes the write index", func(t *testing.T) {
		ds := &DataStream{BackingIndices: []*BackingIndex{a, b, c}}
		assert.Equal(t, []*BackingIndex{a, b}, ds.NonWriteIndices())
	})
}

func TestDataStream_IsManaged(t *testing.T) {
	lifecycle := &LifecycleSpec{}

	tests := []struct {
		name      string
		stream    *DataStream
		idx       *BackingIndex
		wantValue bool
	}{
		{
			name:      "no lifecycle means unmanaged",
			stream:    &DataStream{Lifecycle: nil},
			idx:       &BackingIndex{},
			wantValue: false,
		},
		{
			name:      "lifecycle present and no foreign policy",
			stream:    &DataStream{Lifecycle: lifecycle},
			idx:       &BackingIndex{},
			wantValue: true,
		},
		{
			name:      "foreign lifecycle policy excludes the index",
			stream:    &DataStream{Lifecycle: lifecycle},
			idx:       &BackingIndex{ForeignLifecyclePolicy: "ilm-policy"},
			wantValue: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantValue, tt.stream.IsManaged(tt.idx))
		})
	}
}

func TestDataStream_ManagedBackingIndices(t *testing.T) {
	managed := &BackingIndex{Name: "logs-000001"}
	foreign := &BackingIndex{Name: "logs-000002", ForeignLifecyclePolicy: "ilm-policy"}

	ds := &DataStream{
		Lifecycle:      &LifecycleSpec{},
		BackingIndices: []*BackingIndex{managed, foreign},
	}
	assert.Equal(t, []*BackingIndex{managed}, ds.ManagedBackingIndices())

	unmanagedStream := &DataStream{BackingIndices: []*BackingIndex{managed}}
	assert.Nil(t, unmanagedStream.ManagedBackingIndices())
}

func TestBackingIndex_ForceMergeCompletedAt(t *testing.T) {
	t.Run("absent namespace", func(t *testing.T) {
		idx := &BackingIndex{}
		_, ok := idx.ForceMergeCompletedAt()
		assert.False(t, ok)
	})

	t.Run("absent key", func(t *testing.T) {
		idx := &BackingIndex{CustomMetadata: map[string]map[string]string{
			lifecycleMetadataNamespace: {},
		}}
		_, ok := idx.ForceMergeCompletedAt()
		assert.False(t, ok)
	})

	t.Run("present and parseable", func(t *testing.T) {
		want := time.UnixMilli(1700000000123).UTC()
		idx := &BackingIndex{CustomMetadata: map[string]map[string]string{
			lifecycleMetadataNamespace: {forceMergeCompletedKey: "1700000000123"},
		}}
		got, ok := idx.ForceMergeCompletedAt()
		require.True(t, ok)
		assert.True(t, want.Equal(got))
	})

	t.Run("unparseable value", func(t *testing.T) {
		idx := &BackingIndex{CustomMetadata: map[string]map[string]string{
			lifecycleMetadataNamespace: {forceMergeCompletedKey: "not-a-number"},
		}}
		_, ok := idx.ForceMergeCompletedAt()
		assert.False(t, ok)
	})
}

func TestBackingIndex_Age(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := &BackingIndex{CreatedAt: created}
	now := created.Add(72 * time.Hour)
	assert.Equal(t, 72*time.Hour, idx.Age(now))
}

func TestMergePolicySettings_Matches(t *testing.T) {
	target := MergePolicySettings{FloorSegmentBytes: 100 * 1024 * 1024, MergeFactor: 16}

	t.Run("nil settings never match", func(t *testing.T) {
		var s *MergePolicySettings
		assert.False(t, s.Matches(target))
	})

	t.Run("matching settings", func(t *testing.T) {
		s := &MergePolicySettings{FloorSegmentBytes: target.FloorSegmentBytes, MergeFactor: target.MergeFactor}
		assert.True(t, s.Matches(target))
	})

	t.Run("differing merge factor", func(t *testing.T) {
		s := &MergePolicySettings{FloorSegmentBytes: target.FloorSegmentBytes, MergeFactor: 8}
		assert.False(t, s.Matches(target))
	})
}

func TestStats_Add(t *testing.T) {
	a := Stats{SuccessCount: 10, PendingCount: 2, FailedCount: 1, AvgInferenceTime: 0.1}
	b := Stats{SuccessCount: 5, PendingCount: 1, FailedCount: 0, AvgInferenceTime: 0.2}

	sum := a.Add(b)
	assert.Equal(t, int64(15), sum.SuccessCount)
	assert.Equal(t, int64(3), sum.PendingCount)
	assert.Equal(t, int64(1), sum.FailedCount)

	wantTotal := a.TotalInferenceTime() + b.TotalInferenceTime()
	assert.InDelta(t, wantTotal/15, sum.AvgInferenceTime, 1e-9)
}

func TestStats_Add_ZeroSuccessCountYieldsNaN(t *testing.T) {
	sum := Stats{}.Add(Stats{})
	assert.True(t, math.IsNaN(sum.AvgInferenceTime))
}

func TestStats_Sub(t *testing.T) {
	t.Run("normal delta", func(t *testing.T) {
		last := Stats{SuccessCount: 100, PendingCount: 1, FailedCount: 2, AvgInferenceTime: 0.1}
		current := Stats{SuccessCount: 150, PendingCount: 3, FailedCount: 4, AvgInferenceTime: 0.12}

		delta := current.Sub(last)
		assert.Equal(t, int64(50), delta.SuccessCount)
		assert.Equal(t, int64(2), delta.PendingCount)
		assert.Equal(t, int64(2), delta.FailedCount)
	})

	t.Run("counter reset treats last as zero", func(t *testing.T) {
		last := Stats{SuccessCount: 1000, PendingCount: 5, FailedCount: 5, AvgInferenceTime: 0.2}
		current := Stats{SuccessCount: 10, PendingCount: 1, FailedCount: 0, AvgInferenceTime: 0.05}

		delta := current.Sub(last)
		assert.Equal(t, current, delta)
	})
}

func TestStats_TotalInferenceTime(t *testing.T) {
	s := Stats{SuccessCount: 4, AvgInferenceTime: 0.25}
	assert.Equal(t, 1.0, s.TotalInferenceTime())
}
