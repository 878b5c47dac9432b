package dslc

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxstream/clustercore/pkg/client"
	"github.com/fluxstream/clustercore/pkg/clusterstate"
	"github.com/fluxstream/clustercore/pkg/dedup"
	"github.com/fluxstream/clustercore/pkg/errorstore"
	"github.com/fluxstream/clustercore/pkg/events"
	"github.com/fluxstream/clustercore/pkg/metrics"
	"github.com/fluxstream/clustercore/pkg/types"
	"github.com/rs/zerolog"
)

// Clock abstracts the current time so tests can drive index age without
// sleeping.
type Clock func() time.Time

// DSLC orchestrates per-data-stream lifecycle on every cluster-state
// tick. A single instance is shared by every call to Run; its fields
// (error store, deduplicator) are safe for concurrent use because
// completions arrive from whatever goroutine the action client resolves
// requests on, even though Run itself is only ever invoked by the
// single cluster-state applier thread.
type DSLC struct {
	service  *clusterstate.Service
	client   client.ActionClient
	errStore *errorstore.Store
	dedup    *dedup.Deduplicator
	rollover RolloverRequestBuilder
	target   types.MergePolicySettings
	log      zerolog.Logger
	now      Clock
}

// New wires a DSLC instance. target is the merge policy every managed
// non-write index is driven toward (spec default: floor_segment=100MB,
// merge_factor=16).
func New(service *clusterstate.Service, actionClient client.ActionClient, errStore *errorstore.Store, deduper *dedup.Deduplicator, target types.MergePolicySettings, log zerolog.Logger) *DSLC {
	return &DSLC{
		service:  service,
		client:   actionClient,
		errStore: errStore,
		dedup:    deduper,
		target:   target,
		log:      log.With().Str("component", "dslc").Logger(),
		now:      time.Now,
	}
}

// Run executes one reconciliation pass over state. It is a no-op unless
// the local node is the current Raft leader. Every outbound action is
// keyed by the deduplicator, so a second Run on an unchanged state issues
// no new request while the first pass's requests are still in flight.
// Once those have completed, a later Run on the same state dispatches the
// write index's rollover again, along with any delete or merge-policy
// update whose condition the state still shows; the "force-merge already
// stamped complete" check is the only phase skip recorded in state.
func (d *DSLC) Run(state *types.ClusterState) {
	if !state.IsLocalNodeMaster {
		return
	}

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	d.errStore.Reconcile(state, managedIndexSet(state))

	for _, ds := range state.DataStreams {
		if ds.Lifecycle == nil {
			continue
		}
		d.reconcileStream(ds)
	}
}

func managedIndexSet(state *types.ClusterState) map[string]bool {
	managed := make(map[string]bool)
	for _, ds := range state.DataStreams {
		for _, idx := range ds.ManagedBackingIndices() {
			managed[idx.Name] = true
		}
	}
	return managed
}

// reconcileStream issues at most one rollover request for ds's write
// index, then walks its non-write indices in insertion order, emitting
// at most one of {delete, update-settings, force-merge} per index.
func (d *DSLC) reconcileStream(ds *types.DataStream) {
	if write := ds.WriteIndex(); write != nil && ds.IsManaged(write) {
		d.dispatchRollover(ds)
	}

	for _, idx := range ds.NonWriteIndices() {
		if !ds.IsManaged(idx) {
			continue
		}
		d.reconcileNonWriteIndex(ds, idx)
	}
}

func (d *DSLC) reconcileNonWriteIndex(ds *types.DataStream, idx *types.BackingIndex) {
	now := d.now()

	if ds.Lifecycle.DataRetention != nil && idx.Age(now) >= *ds.Lifecycle.DataRetention {
		d.dispatchDelete(ds, idx)
		return
	}
	if !idx.MergePolicy.Matches(d.target) {
		d.dispatchSettings(idx)
		return
	}
	if _, stamped := idx.ForceMergeCompletedAt(); !stamped {
		d.dispatchForceMerge(ds, idx)
		return
	}
}

func (d *DSLC) dispatchRollover(ds *types.DataStream) {
	req := d.rollover.Build(ds)
	d.execute(ds.Name, "rollover:"+ds.Name, req, func(_ any, err error) {
		if err == nil {
			d.service.Publish(&events.Event{
				Type:     events.EventStreamRolledOver,
				Message:  fmt.Sprintf("rollover dispatched for data stream %s", ds.Name),
				Metadata: map[string]string{"data_stream": ds.Name},
			})
		}
	})
}

func (d *DSLC) dispatchDelete(ds *types.DataStream, idx *types.BackingIndex) {
	req := client.DeleteIndexRequest{Index: idx.Name}
	d.execute(idx.Name, "delete:"+idx.Name, req, func(_ any, err error) {
		if err != nil {
			return
		}
		cmd, encErr := deleteBackingIndexCommand(ds.Name, idx.Name)
		if encErr != nil {
			d.log.Error().Err(encErr).Str("index", idx.Name).Msg("failed to encode backing index deletion")
			return
		}
		d.service.ApplyAsync(cmd, func(applyErr error) {
			if applyErr != nil {
				d.log.Error().Err(applyErr).Str("index", idx.Name).Msg("failed to record backing index deletion")
				return
			}
			d.service.Publish(&events.Event{
				Type:     events.EventBackingIndexDeleted,
				Message:  fmt.Sprintf("deleted backing index %s", idx.Name),
				Metadata: map[string]string{"index": idx.Name, "data_stream": ds.Name},
			})
		})
	})
}

func (d *DSLC) dispatchSettings(idx *types.BackingIndex) {
	req := client.UpdateSettingsRequest{Index: idx.Name, MergePolicy: d.target}
	d.execute(idx.Name, "settings:"+idx.Name, req, func(_ any, err error) {
		if err == nil {
			d.service.Publish(&events.Event{
				Type:     events.EventMergePolicyUpdated,
				Message:  fmt.Sprintf("merge policy updated for index %s", idx.Name),
				Metadata: map[string]string{"index": idx.Name},
			})
		}
	})
}

func (d *DSLC) dispatchForceMerge(ds *types.DataStream, idx *types.BackingIndex) {
	req := client.ForceMergeRequest{
		RequestID:      forceMergeRequestID([]string{idx.Name}),
		Indices:        []string{idx.Name},
		MaxNumSegments: 1,
	}
	key := NewForceMergeRequestKey(req)

	d.dedup.Execute(key, func(done dedup.Completion) {
		d.client.Execute(context.Background(), req, func(resp any, err error) {
			done(resp, err)
		})
	}, func(resp any, err error) {
		d.handleForceMergeResult(ds, idx, resp, err)
	})
}

func (d *DSLC) handleForceMergeResult(ds *types.DataStream, idx *types.BackingIndex, resp any, err error) {
	if err == nil {
		if fmResp, ok := resp.(client.ForceMergeResponse); !ok || !fmResp.Succeeded() {
			err = fmt.Errorf("force merge of %s did not complete successfully", idx.Name)
		}
	}

	if err != nil {
		d.errStore.Record(idx.Name, err)
		metrics.ActionsDispatchedTotal.WithLabelValues(string(client.ActionForceMerge), "failure").Inc()
		d.service.Publish(&events.Event{
			Type:     events.EventForceMergeFailed,
			Message:  err.Error(),
			Metadata: map[string]string{"index": idx.Name},
		})
		return
	}

	metrics.ActionsDispatchedTotal.WithLabelValues(string(client.ActionForceMerge), "success").Inc()
	d.errStore.Clear(idx.Name)

	task := &UpdateForceMergeCompleteTask{Service: d.service}
	task.Execute(ds.Name, idx.Name, d.now(), func(applyErr error) {
		if applyErr != nil {
			d.log.Error().Err(applyErr).Str("index", idx.Name).Msg("failed to stamp force-merge completion")
			return
		}
		d.service.Publish(&events.Event{
			Type:     events.EventForceMergeCompleted,
			Message:  fmt.Sprintf("force merge completed for index %s", idx.Name),
			Metadata: map[string]string{"index": idx.Name},
		})
	})
}

// execute runs req through the deduplicator keyed by key, recording the
// outcome to the error store (keyed by subject, an index or stream
// name) and to the action-dispatch counter before handing control to
// onComplete.
func (d *DSLC) execute(subject string, key any, req client.Request, onComplete func(resp any, err error)) {
	d.dedup.Execute(key, func(done dedup.Completion) {
		d.client.Execute(context.Background(), req, func(resp any, err error) {
			done(resp, err)
		})
	}, func(resp any, err error) {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			d.errStore.Record(subject, err)
		} else {
			d.errStore.Clear(subject)
		}
		metrics.ActionsDispatchedTotal.WithLabelValues(string(req.ActionType()), outcome).Inc()
		onComplete(resp, err)
	})
}
