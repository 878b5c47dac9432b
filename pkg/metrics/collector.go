package metrics

import (
	"time"

	"github.com/fluxstream/clustercore/pkg/clusterstate"
	"github.com/fluxstream/clustercore/pkg/dedup"
	"github.com/fluxstream/clustercore/pkg/errorstore"
)

// Collector periodically samples clustercore's in-memory state
// (Raft leadership, error-store occupancy, deduplicator backlog) into
// the gauges metrics.go declares. Declarative per-request metrics
// (ActionsDispatchedTotal, ScaleDecisionsTotal) are incremented directly
// by pkg/dslc and pkg/aas as events happen; Collector only handles the
// gauges that need periodic resampling.
type Collector struct {
	service  *clusterstate.Service
	errStore *errorstore.Store
	dedups   map[string]*dedup.Deduplicator
	stopCh   chan struct{}
}

// NewCollector builds a Collector. dedups maps a label name (e.g.
// "dslc", "aas") to the deduplicator whose backlog it should report as
// clustercore_dedup_inflight{deduplicator=<name>}.
func NewCollector(service *clusterstate.Service, errStore *errorstore.Store, dedups map[string]*dedup.Deduplicator) *Collector {
	return &Collector{
		service:  service,
		errStore: errStore,
		dedups:   dedups,
		stopCh:   make(chan struct{}),
	}
}

// Start begins sampling on a 15-second interval, collecting once
// immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectRaftMetrics()
	c.collectErrorStoreMetrics()
	c.collectDedupMetrics()
}

func (c *Collector) collectRaftMetrics() {
	if c.service.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
	RaftPeers.Set(float64(c.service.PeerCount()))
}

func (c *Collector) collectErrorStoreMetrics() {
	ErrorStoreSize.Set(float64(c.errStore.Size()))
}

func (c *Collector) collectDedupMetrics() {
	for name, d := range c.dedups {
		DedupInFlight.WithLabelValues(name).Set(float64(d.Size()))
	}
}
