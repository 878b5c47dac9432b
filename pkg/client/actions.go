package client

import "github.com/fluxstream/clustercore/pkg/types"

// ActionType identifies the kind of request carried by an Action.
type ActionType string

const (
	ActionRollover                     ActionType = "rollover"
	ActionDeleteIndex                  ActionType = "delete_index"
	ActionUpdateSettings               ActionType = "update_settings"
	ActionForceMerge                   ActionType = "force_merge"
	ActionUpdateTrainedModelDeployment ActionType = "update_trained_model_deployment"
	ActionGetDeploymentStats           ActionType = "get_deployment_stats"
)

// Request is implemented by every concrete request type so a Deduplicator
// key or a log field can identify which action it carries without a type
// switch at every call site.
type Request interface {
	ActionType() ActionType
}

// RolloverCondition names one of the conditions RolloverRequest asks the
// data node to evaluate before creating a new write index.
type RolloverCondition struct {
	MaxAge  *int64 // milliseconds; nil if not configured
	MaxDocs *int64 // nil if not configured
}

// RolloverRequest asks for the data stream's write index to roll over if
// any configured condition is satisfied.
type RolloverRequest struct {
	DataStream string
	Conditions RolloverCondition
}

func (RolloverRequest) ActionType() ActionType { return ActionRollover }

// DeleteIndexRequest asks for a single backing index to be deleted.
type DeleteIndexRequest struct {
	Index string
}

func (DeleteIndexRequest) ActionType() ActionType { return ActionDeleteIndex }

// UpdateSettingsRequest asks for an index's merge policy settings to be
// updated in place.
type UpdateSettingsRequest struct {
	Index       string
	MergePolicy types.MergePolicySettings
}

func (UpdateSettingsRequest) ActionType() ActionType { return ActionUpdateSettings }

// ForceMergeRequest asks for one or more indices to be force-merged down
// to MaxNumSegments. RequestID is derived deterministically from the
// target index set (not a random UUID) so that the same logical request
// re-issued on a later DSLC run carries an identical
// ForceMergeRequestKey and collapses into any copy still in flight.
type ForceMergeRequest struct {
	RequestID          string
	Indices            []string
	MaxNumSegments     int
	OnlyExpungeDeletes bool
	Flush              bool

	// ParentTaskID and StoreResult identify the supervisory task that
	// triggered this request and whether it wants the result persisted.
	// Both are carried for observability only, excluded from
	// ForceMergeRequestKey equality so that two supervisory tasks
	// retrying the same logical force-merge still collapse into one
	// dispatch.
	ParentTaskID string
	StoreResult  bool
}

func (ForceMergeRequest) ActionType() ActionType { return ActionForceMerge }

// ForceMergeResponse reports how many shards participated and how many
// completed successfully. A request succeeds iff TotalShards > 0,
// SuccessfulShards equals TotalShards and FailedShards is zero.
type ForceMergeResponse struct {
	RequestID        string
	TotalShards      int
	SuccessfulShards int
	FailedShards     int
}

// Succeeded reports whether every shard targeted by the force-merge
// completed without error. A response reporting FailedShards > 0 is
// treated as a failure even when SuccessfulShards == TotalShards, per
// the resolution of spec's force-merge-completion open question.
func (r ForceMergeResponse) Succeeded() bool {
	return r.TotalShards > 0 && r.SuccessfulShards == r.TotalShards && r.FailedShards == 0
}

// UpdateTrainedModelDeploymentRequest asks for a deployment's target
// allocation count to change.
type UpdateTrainedModelDeploymentRequest struct {
	DeploymentID        string
	NumberOfAllocations int
}

func (UpdateTrainedModelDeploymentRequest) ActionType() ActionType {
	return ActionUpdateTrainedModelDeployment
}

// GetDeploymentStatsRequest asks for the latest per-node inference load
// for the named deployments. An empty DeploymentIDs asks for all.
type GetDeploymentStatsRequest struct {
	DeploymentIDs []string
}

func (GetDeploymentStatsRequest) ActionType() ActionType { return ActionGetDeploymentStats }

// NodeDeploymentStats is one node's reported load for one deployment.
type NodeDeploymentStats struct {
	DeploymentID string
	NodeID       string
	Stats        types.Stats
}

// GetDeploymentStatsResponse is the full per-node breakdown returned for
// a GetDeploymentStatsRequest.
type GetDeploymentStatsResponse struct {
	Nodes []NodeDeploymentStats
}
