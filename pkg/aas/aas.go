package aas

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluxstream/clustercore/pkg/client"
	"github.com/fluxstream/clustercore/pkg/clusterstate"
	"github.com/fluxstream/clustercore/pkg/events"
	"github.com/fluxstream/clustercore/pkg/metrics"
	"github.com/fluxstream/clustercore/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is the AAS tick period used when Config.PollInterval
// is zero or negative.
const DefaultPollInterval = 10 * time.Second

// Config configures an AAS instance.
type Config struct {
	PollInterval time.Duration
}

// AAS is the Adaptive Allocation Scaler. A single instance reconciles
// its set of PerDeploymentScalers against cluster state and, while any
// scaler exists, ticks on an interval to poll load and dispatch
// allocation updates.
type AAS struct {
	service  *clusterstate.Service
	client   client.ActionClient
	interval time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	scalers   map[string]*PerDeploymentScaler
	lastStats map[string]map[string]types.Stats // deploymentID -> nodeID -> Stats
	ticker    *time.Ticker
	tickStop  chan struct{}

	sub        events.Subscriber
	listenStop chan struct{}
	started    bool
}

// New wires an AAS instance. It does not start anything until Start is
// called.
func New(service *clusterstate.Service, actionClient client.ActionClient, cfg Config, log zerolog.Logger) *AAS {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &AAS{
		service:   service,
		client:    actionClient,
		interval:  interval,
		log:       log.With().Str("component", "aas").Logger(),
		scalers:   make(map[string]*PerDeploymentScaler),
		lastStats: make(map[string]map[string]types.Stats),
	}
}

// Start reconciles scalers against the current cluster state, begins
// ticking if at least one scaler exists, and subscribes to future
// cluster-state changes. Calling Start twice without an intervening
// Stop is a no-op.
func (a *AAS) Start() error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	state, err := a.service.State()
	if err != nil {
		return fmt.Errorf("read initial cluster state: %w", err)
	}

	a.mu.Lock()
	a.reconcileScalers(state)
	a.mu.Unlock()

	a.sub = a.service.Subscribe()
	a.listenStop = make(chan struct{})
	go a.listen()

	return nil
}

// Stop cancels the periodic tick and the cluster-change subscription.
// Idempotent.
func (a *AAS) Stop() {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	if a.ticker != nil {
		a.stopTickingLocked()
	}
	listenStop := a.listenStop
	sub := a.sub
	a.listenStop = nil
	a.sub = nil
	a.mu.Unlock()

	if listenStop != nil {
		close(listenStop)
	}
	if sub != nil {
		a.service.Unsubscribe(sub)
	}
}

func (a *AAS) listen() {
	for {
		select {
		case _, ok := <-a.sub:
			if !ok {
				return
			}
			a.clusterChanged()
		case <-a.listenStop:
			return
		}
	}
}

// clusterChanged reconciles scalers against the latest cluster state.
// Exported behavior matches spec's clusterChanged(event): the event
// payload itself carries no information AAS needs beyond "something
// changed, re-read state."
func (a *AAS) clusterChanged() {
	state, err := a.service.State()
	if err != nil {
		a.log.Error().Err(err).Msg("failed to read cluster state")
		return
	}
	a.mu.Lock()
	a.reconcileScalers(state)
	a.mu.Unlock()
}

// reconcileScalers must be called with a.mu held. For every deployment
// assignment with adaptive allocations enabled, it ensures a scaler
// exists (seeding a new one with the assignment's current target
// allocation count) and propagates the latest bounds. Assignments that
// no longer enable adaptive allocations lose their scaler.
func (a *AAS) reconcileScalers(state *types.ClusterState) {
	live := make(map[string]bool, len(state.DeploymentAssignments))
	for id, assignment := range state.DeploymentAssignments {
		if !assignment.AdaptiveAllocations {
			continue
		}
		live[id] = true
		if scaler, ok := a.scalers[id]; ok {
			scaler.SetBounds(assignment.MinAllocations, assignment.MaxAllocations)
			continue
		}
		a.scalers[id] = NewPerDeploymentScaler(id, assignment.TotalTargetAllocations, assignment.MinAllocations, assignment.MaxAllocations)
	}

	for id := range a.scalers {
		if !live[id] {
			delete(a.scalers, id)
			delete(a.lastStats, id)
		}
	}

	a.syncTickingLocked()
}

func (a *AAS) syncTickingLocked() {
	switch {
	case len(a.scalers) > 0 && a.ticker == nil:
		a.ticker = time.NewTicker(a.interval)
		a.tickStop = make(chan struct{})
		go a.runTicks(a.ticker, a.tickStop)
	case len(a.scalers) == 0 && a.ticker != nil:
		a.stopTickingLocked()
	}
}

// stopTickingLocked must be called with a.mu held. Nulling the ticker
// out after stopping it is what makes a later restart (a new scaler
// appearing) legal: syncTickingLocked only starts a new one when
// a.ticker is nil.
func (a *AAS) stopTickingLocked() {
	a.ticker.Stop()
	close(a.tickStop)
	a.ticker = nil
	a.tickStop = nil
}

func (a *AAS) runTicks(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C:
			a.tick()
		case <-stop:
			return
		}
	}
}

// tick issues one round of GetDeploymentStats for every deployment
// currently scaled; it is a no-op unless this node is the Raft leader.
// The RPC is dispatched fire-and-forget; its
// completion (handleStats) takes the AAS mutex before touching shared
// state, since a cluster-change reconciliation may have interleaved
// with the in-flight request.
func (a *AAS) tick() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ScaleTickDuration)

	if !a.service.IsLeader() {
		return
	}

	a.mu.Lock()
	ids := make([]string, 0, len(a.scalers))
	for id := range a.scalers {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	req := client.GetDeploymentStatsRequest{DeploymentIDs: ids}
	a.client.Execute(context.Background(), req, func(resp any, err error) {
		if err != nil {
			a.log.Error().Err(err).Msg("get deployment stats failed")
			return
		}
		statsResp, ok := resp.(client.GetDeploymentStatsResponse)
		if !ok {
			a.log.Error().Msg("unexpected get-deployment-stats response type")
			return
		}
		a.handleStats(statsResp)
	})
}

func (a *AAS) handleStats(resp client.GetDeploymentStatsResponse) {
	a.mu.Lock()
	defer a.mu.Unlock()

	recentByDeployment := make(map[string]types.Stats)
	for _, node := range resp.Nodes {
		if _, ok := a.scalers[node.DeploymentID]; !ok {
			// Scaler removed since the request was issued; drop.
			continue
		}

		nodeStats := a.lastStats[node.DeploymentID]
		if nodeStats == nil {
			nodeStats = make(map[string]types.Stats)
			a.lastStats[node.DeploymentID] = nodeStats
		}
		last := nodeStats[node.NodeID]
		recent := node.Stats.Sub(last)
		nodeStats[node.NodeID] = node.Stats

		recentByDeployment[node.DeploymentID] = recentByDeployment[node.DeploymentID].Add(recent)
	}

	intervalSeconds := a.interval.Seconds()
	for deploymentID, recent := range recentByDeployment {
		scaler, ok := a.scalers[deploymentID]
		if !ok {
			continue
		}

		before := scaler.CurrentAllocations()
		scaler.Process(recent, intervalSeconds, before)
		newCount := scaler.Scale()
		if newCount == nil {
			continue
		}

		direction := "up"
		if *newCount < before {
			direction = "down"
		}
		metrics.ScaleDecisionsTotal.WithLabelValues(direction).Inc()
		metrics.DeploymentTargetAllocations.WithLabelValues(deploymentID).Set(float64(*newCount))

		a.dispatchScale(deploymentID, *newCount)
	}
}

func (a *AAS) dispatchScale(deploymentID string, newCount int) {
	req := client.UpdateTrainedModelDeploymentRequest{
		DeploymentID:        deploymentID,
		NumberOfAllocations: newCount,
	}
	a.client.Execute(context.Background(), req, func(_ any, err error) {
		if err != nil {
			a.log.Error().Err(err).Str("deployment_id", deploymentID).Msg("failed to update deployment allocation count")
			return
		}
		a.service.Publish(&events.Event{
			Type:     events.EventDeploymentRescaled,
			Message:  fmt.Sprintf("deployment %s target allocations set to %d", deploymentID, newCount),
			Metadata: map[string]string{"deployment_id": deploymentID},
		})
	})
}
