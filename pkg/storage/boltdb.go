package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fluxstream/clustercore/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketDataStreams          = []byte("data_streams")
	bucketDeploymentAssignments = []byte("deployment_assignments")
	bucketTombstones           = []byte("tombstones")
)

// BoltStore implements Store on top of a single BoltDB file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the clustercore database under
// dataDir and ensures every bucket exists.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "clustercore.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketDataStreams, bucketDeploymentAssignments, bucketTombstones} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) UpsertDataStream(ds *types.DataStream) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(ds)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDataStreams).Put([]byte(ds.Name), data)
	})
}

func (s *BoltStore) GetDataStream(name string) (*types.DataStream, error) {
	var ds types.DataStream
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDataStreams).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("data stream not found: %s", name)
		}
		return json.Unmarshal(data, &ds)
	})
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (s *BoltStore) ListDataStreams() ([]*types.DataStream, error) {
	var streams []*types.DataStream
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDataStreams).ForEach(func(k, v []byte) error {
			var ds types.DataStream
			if err := json.Unmarshal(v, &ds); err != nil {
				return err
			}
			streams = append(streams, &ds)
			return nil
		})
	})
	return streams, err
}

func (s *BoltStore) DeleteDataStream(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDataStreams).Delete([]byte(name))
	})
}

func (s *BoltStore) UpsertDeploymentAssignment(a *types.DeploymentAssignment) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDeploymentAssignments).Put([]byte(a.DeploymentID), data)
	})
}

func (s *BoltStore) GetDeploymentAssignment(deploymentID string) (*types.DeploymentAssignment, error) {
	var a types.DeploymentAssignment
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDeploymentAssignments).Get([]byte(deploymentID))
		if data == nil {
			return fmt.Errorf("deployment assignment not found: %s", deploymentID)
		}
		return json.Unmarshal(data, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *BoltStore) ListDeploymentAssignments() ([]*types.DeploymentAssignment, error) {
	var assignments []*types.DeploymentAssignment
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeploymentAssignments).ForEach(func(k, v []byte) error {
			var a types.DeploymentAssignment
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			assignments = append(assignments, &a)
			return nil
		})
	})
	return assignments, err
}

func (s *BoltStore) DeleteDeploymentAssignment(deploymentID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeploymentAssignments).Delete([]byte(deploymentID))
	})
}

func (s *BoltStore) RecordTombstone(index string, deletedAt time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		ms := strconv.FormatInt(deletedAt.UnixMilli(), 10)
		return tx.Bucket(bucketTombstones).Put([]byte(index), []byte(ms))
	})
}

func (s *BoltStore) ListTombstones() (map[string]time.Time, error) {
	tombstones := make(map[string]time.Time)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTombstones).ForEach(func(k, v []byte) error {
			ms, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return err
			}
			tombstones[string(k)] = time.UnixMilli(ms)
			return nil
		})
	})
	return tombstones, err
}

// Snapshot assembles the full cluster state from every bucket in one
// read transaction, for Raft FSM snapshots and fresh-leader reads.
func (s *BoltStore) Snapshot() (*types.ClusterState, error) {
	streams, err := s.ListDataStreams()
	if err != nil {
		return nil, fmt.Errorf("list data streams: %w", err)
	}
	assignments, err := s.ListDeploymentAssignments()
	if err != nil {
		return nil, fmt.Errorf("list deployment assignments: %w", err)
	}
	tombstones, err := s.ListTombstones()
	if err != nil {
		return nil, fmt.Errorf("list tombstones: %w", err)
	}

	state := &types.ClusterState{
		DataStreams:           make(map[string]*types.DataStream, len(streams)),
		DeploymentAssignments: make(map[string]*types.DeploymentAssignment, len(assignments)),
		Tombstones:            tombstones,
	}
	for _, ds := range streams {
		state.DataStreams[ds.Name] = ds
	}
	for _, a := range assignments {
		state.DeploymentAssignments[a.DeploymentID] = a
	}
	return state, nil
}
