package storage

import (
	"time"

	"github.com/fluxstream/clustercore/pkg/types"
)

// Store defines the persistence interface backing clustercore's FSM. It
// is deliberately narrow, a bucket per top-level entity, upsert plus
// get/list/delete, mirroring the teacher's one-method-per-entity Store
// shape rather than a generic key/value API.
type Store interface {
	UpsertDataStream(ds *types.DataStream) error
	GetDataStream(name string) (*types.DataStream, error)
	ListDataStreams() ([]*types.DataStream, error)
	DeleteDataStream(name string) error

	UpsertDeploymentAssignment(a *types.DeploymentAssignment) error
	GetDeploymentAssignment(deploymentID string) (*types.DeploymentAssignment, error)
	ListDeploymentAssignments() ([]*types.DeploymentAssignment, error)
	DeleteDeploymentAssignment(deploymentID string) error

	RecordTombstone(index string, deletedAt time.Time) error
	ListTombstones() (map[string]time.Time, error)

	// Snapshot loads the full cluster state in one pass, for Raft
	// snapshotting and for read paths that need a consistent view.
	Snapshot() (*types.ClusterState, error)

	Close() error
}
