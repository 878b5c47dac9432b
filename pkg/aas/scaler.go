package aas

import (
	"math"

	"github.com/fluxstream/clustercore/pkg/types"
)

// PerDeploymentScaler is a stateful estimator deciding a deployment's
// target allocation count from recent load. Its internals are
// intentionally simple (an exponentially-smoothed concurrency estimate
// via Little's law: average concurrent inferences equals throughput
// times average duration, plus any immediate backlog), but
// deterministic given its inputs and prior state, and always clamped
// to [min, max] when both are configured.
type PerDeploymentScaler struct {
	deploymentID string
	min          *int
	max          *int

	current int
	emaLoad float64
}

// smoothing weights how quickly the load estimate reacts to a new
// tick's observation versus its running average.
const smoothing = 0.5

// NewPerDeploymentScaler creates a scaler for deploymentID, seeded with
// its current target allocation count and bounds.
func NewPerDeploymentScaler(deploymentID string, initialAllocations int, min, max *int) *PerDeploymentScaler {
	return &PerDeploymentScaler{
		deploymentID: deploymentID,
		min:          min,
		max:          max,
		current:      initialAllocations,
		emaLoad:      float64(initialAllocations),
	}
}

// SetBounds updates the scaler's min/max allocation bounds in place,
// as reported by the latest cluster-state reconciliation.
func (s *PerDeploymentScaler) SetBounds(min, max *int) {
	s.min = min
	s.max = max
}

// CurrentAllocations returns the allocation count the scaler last
// produced (or was seeded with).
func (s *PerDeploymentScaler) CurrentAllocations() int {
	return s.current
}

// Process feeds one tick's aggregated recent load into the estimator.
// observedAllocations is the allocation count AAS currently believes is
// in effect for this deployment. A tick that carried no observation at
// all (no completions, nothing pending) leaves the running estimate
// untouched rather than decaying it toward zero, so a single quiet tick
// never by itself produces a scale-down.
func (s *PerDeploymentScaler) Process(recent types.Stats, intervalSeconds float64, observedAllocations int) {
	s.current = observedAllocations
	load, ok := estimateLoad(recent, intervalSeconds)
	if !ok {
		return
	}
	s.emaLoad = s.emaLoad*(1-smoothing) + load*smoothing
}

// estimateLoad computes a concurrency estimate for the tick: the
// average number of concurrent inferences in flight (throughput times
// average duration, Little's law), plus any still-pending requests as
// an immediate backlog signal. ok is false when recent carries no
// signal whatsoever (interval is non-positive, or nothing completed and
// nothing is pending), meaning the caller has nothing new to fold in.
func estimateLoad(recent types.Stats, intervalSeconds float64) (load float64, ok bool) {
	if intervalSeconds <= 0 {
		return 0, false
	}
	if recent.SuccessCount == 0 && recent.PendingCount == 0 {
		return 0, false
	}
	concurrency := recent.TotalInferenceTime() / intervalSeconds
	if math.IsNaN(concurrency) {
		concurrency = 0
	}
	return concurrency + float64(recent.PendingCount), true
}

// Scale returns the new allocation target clamped to [min, max], or nil
// if the clamped target is unchanged from the scaler's current value.
// Callers must not dispatch a no-op allocation request.
func (s *PerDeploymentScaler) Scale() *int {
	target := int(math.Ceil(s.emaLoad))
	if target < 1 {
		target = 1
	}
	if s.min != nil && target < *s.min {
		target = *s.min
	}
	if s.max != nil && target > *s.max {
		target = *s.max
	}
	if target == s.current {
		return nil
	}
	s.current = target
	return &target
}
