package clusterstate

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/fluxstream/clustercore/pkg/storage"
	"github.com/fluxstream/clustercore/pkg/types"
	"github.com/hashicorp/raft"
)

// Op names a command the FSM knows how to apply.
type Op string

const (
	OpUpsertDataStream           Op = "upsert_data_stream"
	OpDeleteBackingIndex         Op = "delete_backing_index"
	OpStampForceMergeComplete    Op = "stamp_force_merge_complete"
	OpUpsertDeploymentAssignment Op = "upsert_deployment_assignment"
	OpDeleteDeploymentAssignment Op = "delete_deployment_assignment"
)

// Command is one entry in the Raft log.
type Command struct {
	Op   Op              `json:"op"`
	Data json.RawMessage `json:"data"`
}

type deleteBackingIndexPayload struct {
	StreamName string `json:"stream_name"`
	IndexName  string `json:"index_name"`
}

type stampForceMergeCompletePayload struct {
	StreamName        string `json:"stream_name"`
	IndexName         string `json:"index_name"`
	CompletedAtMillis int64  `json:"completed_at_millis"`
}

type deleteDeploymentAssignmentPayload struct {
	DeploymentID string `json:"deployment_id"`
}

// fsm implements raft.FSM on top of a storage.Store.
type fsm struct {
	mu    sync.RWMutex
	store storage.Store
}

func newFSM(store storage.Store) *fsm {
	return &fsm{store: store}
}

// Apply applies one committed Raft log entry, returning an error value
// (never panicking) so Service.Apply's ApplyFuture.Response() can surface
// domain-level failures (e.g. "no such data stream") to the caller.
func (f *fsm) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case OpUpsertDataStream:
		var ds types.DataStream
		if err := json.Unmarshal(cmd.Data, &ds); err != nil {
			return err
		}
		return f.store.UpsertDataStream(&ds)

	case OpDeleteBackingIndex:
		var p deleteBackingIndexPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.deleteBackingIndex(p)

	case OpStampForceMergeComplete:
		var p stampForceMergeCompletePayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.stampForceMergeComplete(p)

	case OpUpsertDeploymentAssignment:
		var a types.DeploymentAssignment
		if err := json.Unmarshal(cmd.Data, &a); err != nil {
			return err
		}
		return f.store.UpsertDeploymentAssignment(&a)

	case OpDeleteDeploymentAssignment:
		var p deleteDeploymentAssignmentPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.store.DeleteDeploymentAssignment(p.DeploymentID)

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

func (f *fsm) deleteBackingIndex(p deleteBackingIndexPayload) error {
	ds, err := f.store.GetDataStream(p.StreamName)
	if err != nil {
		return err
	}
	kept := ds.BackingIndices[:0]
	for _, idx := range ds.BackingIndices {
		if idx.Name != p.IndexName {
			kept = append(kept, idx)
		}
	}
	ds.BackingIndices = kept
	if err := f.store.UpsertDataStream(ds); err != nil {
		return err
	}
	return f.store.RecordTombstone(p.IndexName, time.Now())
}

func (f *fsm) stampForceMergeComplete(p stampForceMergeCompletePayload) error {
	ds, err := f.store.GetDataStream(p.StreamName)
	if err != nil {
		return err
	}
	for _, idx := range ds.BackingIndices {
		if idx.Name != p.IndexName {
			continue
		}
		if idx.CustomMetadata == nil {
			idx.CustomMetadata = make(map[string]map[string]string)
		}
		ns, ok := idx.CustomMetadata["data_stream_lifecycle"]
		if !ok {
			ns = make(map[string]string)
			idx.CustomMetadata["data_stream_lifecycle"] = ns
		}
		ns["force_merge_completed_timestamp"] = strconv.FormatInt(p.CompletedAtMillis, 10)
		return f.store.UpsertDataStream(ds)
	}
	return fmt.Errorf("backing index %s not found in stream %s", p.IndexName, p.StreamName)
}

// Snapshot captures the full cluster state for Raft log compaction.
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	state, err := f.store.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	return &fsmSnapshot{state: state}, nil
}

// Restore replaces the FSM's backing state from a previously-persisted
// snapshot, e.g. after a node restart or when joining an existing
// cluster.
func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var state types.ClusterState
	if err := json.NewDecoder(rc).Decode(&state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ds := range state.DataStreams {
		if err := f.store.UpsertDataStream(ds); err != nil {
			return fmt.Errorf("restore data stream %s: %w", ds.Name, err)
		}
	}
	for _, a := range state.DeploymentAssignments {
		if err := f.store.UpsertDeploymentAssignment(a); err != nil {
			return fmt.Errorf("restore deployment assignment %s: %w", a.DeploymentID, err)
		}
	}
	for index, deletedAt := range state.Tombstones {
		if err := f.store.RecordTombstone(index, deletedAt); err != nil {
			return fmt.Errorf("restore tombstone %s: %w", index, err)
		}
	}
	return nil
}

type fsmSnapshot struct {
	state *types.ClusterState
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s.state); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *fsmSnapshot) Release() {}
