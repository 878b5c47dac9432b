package dslc

import (
	"encoding/json"
	"time"

	"github.com/fluxstream/clustercore/pkg/clusterstate"
)

// deleteBackingIndexPayload mirrors clusterstate's unexported command
// payload shape for OpDeleteBackingIndex; dslc builds the wire command
// directly since it owns the decision to delete, not clusterstate.
type deleteBackingIndexPayload struct {
	StreamName string `json:"stream_name"`
	IndexName  string `json:"index_name"`
}

func deleteBackingIndexCommand(streamName, indexName string) (clusterstate.Command, error) {
	data, err := json.Marshal(deleteBackingIndexPayload{StreamName: streamName, IndexName: indexName})
	if err != nil {
		return clusterstate.Command{}, err
	}
	return clusterstate.Command{Op: clusterstate.OpDeleteBackingIndex, Data: data}, nil
}

// forceMergeCompletePayload mirrors clusterstate's unexported command
// payload shape for OpStampForceMergeComplete.
type forceMergeCompletePayload struct {
	StreamName        string `json:"stream_name"`
	IndexName         string `json:"index_name"`
	CompletedAtMillis int64  `json:"completed_at_millis"`
}

// UpdateForceMergeCompleteTask stamps a backing index's
// data_stream_lifecycle custom metadata with a force-merge completion
// timestamp, preserving any other pre-existing entries in that
// namespace. The stamp itself is just another committed Raft command;
// Execute's onComplete fires exactly once, driven by the publication
// acknowledgment (clusterstate.Service.ApplyAsync), never by the
// transform itself.
type UpdateForceMergeCompleteTask struct {
	Service *clusterstate.Service
}

// Execute submits the stamp for (streamName, indexName) with
// completedAt as the completion time, invoking onComplete exactly once
// with any error from command encoding or Raft application.
func (t *UpdateForceMergeCompleteTask) Execute(streamName, indexName string, completedAt time.Time, onComplete func(error)) {
	data, err := json.Marshal(forceMergeCompletePayload{
		StreamName:        streamName,
		IndexName:         indexName,
		CompletedAtMillis: completedAt.UnixMilli(),
	})
	if err != nil {
		onComplete(err)
		return
	}
	cmd := clusterstate.Command{Op: clusterstate.OpStampForceMergeComplete, Data: data}
	t.Service.ApplyAsync(cmd, onComplete)
}
