package aas

import (
	"testing"

	"github.com/fluxstream/clustercore/pkg/types"
	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestPerDeploymentScaler_SeedsFromInitialAllocations(t *testing.T) {
	s := NewPerDeploymentScaler("model-a", 4, nil, nil)
	assert.Equal(t, 4, s.CurrentAllocations())
}

func TestPerDeploymentScaler_ScaleReturnsNilWhenUnchanged(t *testing.T) {
	s := NewPerDeploymentScaler("model-a", 4, nil, nil)
	s.Process(types.Stats{}, 10, 4)
	assert.Nil(t, s.Scale())
}

func TestPerDeploymentScaler_ScalesUpUnderLoad(t *testing.T) {
	s := NewPerDeploymentScaler("model-a", 1, nil, nil)
	heavy := types.Stats{SuccessCount: 100, AvgInferenceTime: 1}
	for i := 0; i < 10; i++ {
		s.Process(heavy, 1, s.CurrentAllocations())
		if got := s.Scale(); got != nil {
			s.current = *got
		}
	}
	assert.Greater(t, s.CurrentAllocations(), 1)
}

func TestPerDeploymentScaler_ClampsToMax(t *testing.T) {
	s := NewPerDeploymentScaler("model-a", 1, nil, intPtr(3))
	heavy := types.Stats{SuccessCount: 1000, AvgInferenceTime: 1}
	for i := 0; i < 10; i++ {
		s.Process(heavy, 1, s.CurrentAllocations())
		if got := s.Scale(); got != nil {
			s.current = *got
		}
	}
	assert.Equal(t, 3, s.CurrentAllocations())
}

func TestPerDeploymentScaler_ClampsToMin(t *testing.T) {
	s := NewPerDeploymentScaler("model-a", 5, intPtr(2), nil)
	// Sustained near-zero load (real completions, negligible duration)
	// over several ticks, not a single quiet tick, is what drives the
	// estimate down.
	light := types.Stats{SuccessCount: 1, AvgInferenceTime: 0}
	for i := 0; i < 10; i++ {
		s.Process(light, 10, s.CurrentAllocations())
		if got := s.Scale(); got != nil {
			s.current = *got
		}
	}
	assert.Equal(t, 2, s.CurrentAllocations())
}

func TestPerDeploymentScaler_NeverScalesBelowOneWithNoMin(t *testing.T) {
	s := NewPerDeploymentScaler("model-a", 5, nil, nil)
	light := types.Stats{SuccessCount: 1, AvgInferenceTime: 0}
	for i := 0; i < 10; i++ {
		s.Process(light, 10, s.CurrentAllocations())
		if got := s.Scale(); got != nil {
			s.current = *got
		}
	}
	assert.Equal(t, 1, s.CurrentAllocations())
}

func TestPerDeploymentScaler_SetBoundsAppliesOnNextScale(t *testing.T) {
	s := NewPerDeploymentScaler("model-a", 5, nil, nil)
	s.SetBounds(nil, intPtr(2))
	s.Process(types.Stats{SuccessCount: 1000, AvgInferenceTime: 1}, 1, 5)
	got := s.Scale()
	assert.NotNil(t, got)
	assert.Equal(t, 2, *got)
}

func TestEstimateLoad_ZeroIntervalHasNoSignal(t *testing.T) {
	_, ok := estimateLoad(types.Stats{SuccessCount: 10, AvgInferenceTime: 1}, 0)
	assert.False(t, ok)
}

func TestEstimateLoad_IncludesPendingBacklog(t *testing.T) {
	got, ok := estimateLoad(types.Stats{PendingCount: 7}, 10)
	assert.True(t, ok)
	assert.Equal(t, float64(7), got)
}

func TestEstimateLoad_NoCompletionsAndNoBacklogHasNoSignal(t *testing.T) {
	_, ok := estimateLoad(types.Stats{}, 10)
	assert.False(t, ok)
}
