package clusterstate

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fluxstream/clustercore/pkg/events"
	"github.com/fluxstream/clustercore/pkg/metrics"
	"github.com/fluxstream/clustercore/pkg/storage"
	"github.com/fluxstream/clustercore/pkg/types"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
)

// Config configures a single Service instance.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Service wraps a Raft quorum member over a storage.Store. Exactly one
// member of the quorum is leader at a time; DSLC and AAS gate their
// control loops on Service.IsLeader so that only the current master
// executes actions against the cluster.
type Service struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft   *raft.Raft
	fsm    *fsm
	store  storage.Store
	broker *events.Broker
	log    zerolog.Logger
}

// New wires a Service around store without starting Raft. Call Bootstrap
// for a brand-new cluster or Join to attach to an existing one.
func New(cfg Config, store storage.Store, log zerolog.Logger) *Service {
	broker := events.NewBroker()
	broker.Start()
	return &Service{
		nodeID:   cfg.NodeID,
		bindAddr: cfg.BindAddr,
		dataDir:  cfg.DataDir,
		fsm:      newFSM(store),
		store:    store,
		broker:   broker,
		log:      log.With().Str("component", "clusterstate").Logger(),
	}
}

// Bootstrap starts Raft and bootstraps a brand-new single-node cluster.
// Tuned for faster LAN failover than hashicorp/raft's WAN-oriented
// defaults, matching the quorum timing clustercore expects between
// leader loss and a replacement master resuming DSLC/AAS dispatch.
func (s *Service) Bootstrap() error {
	r, transport, err := s.newRaft()
	if err != nil {
		return err
	}
	s.raft = r

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(s.nodeID), Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}
	return nil
}

// Join starts Raft for a node that will be added to an existing cluster
// by the current leader's AddVoter call. clustercore leaves the
// transport for requesting that addition to an external operator tool;
// joining here only brings this node's own Raft instance up so it is
// ready to receive log entries once voted in.
func (s *Service) Join() error {
	r, _, err := s.newRaft()
	if err != nil {
		return err
	}
	s.raft = r
	return nil
}

func (s *Service) newRaft() (*raft.Raft, *raft.NetworkTransport, error) {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(s.nodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", s.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(s.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(s.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(s.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(s.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create stable store: %w", err)
	}

	r, err := raft.NewRaft(config, s.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("create raft: %w", err)
	}
	return r, transport, nil
}

// AddVoter adds another manager node to the Raft quorum. Only the leader
// may call this successfully.
func (s *Service) AddVoter(nodeID, addr string) error {
	if !s.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", s.LeaderAddr())
	}
	future := s.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second)
	return future.Error()
}

// IsLeader reports whether this node is the current Raft leader. AAS
// calls this at the top of every tick; DSLC sees it as
// ClusterState.IsLocalNodeMaster, which State fills in from it.
func (s *Service) IsLeader() bool {
	return s.raft != nil && s.raft.State() == raft.Leader
}

// LeaderAddr returns the bind address of the current leader, or "" if
// unknown.
func (s *Service) LeaderAddr() string {
	if s.raft == nil {
		return ""
	}
	return string(s.raft.Leader())
}

// PeerCount returns the number of servers in the current Raft
// configuration, or 0 if Raft has not started.
func (s *Service) PeerCount() int {
	if s.raft == nil {
		return 0
	}
	future := s.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return 0
	}
	return len(future.Configuration().Servers)
}

// Apply proposes cmd through Raft and blocks until it is committed and
// applied, surfacing any domain error the FSM returned.
func (s *Service) Apply(cmd Command) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftApplyDuration)

	if s.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	future := s.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("apply command: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	// Announce the commit to Subscribe listeners; they re-read State().
	s.broker.Publish(&events.Event{Type: events.EventType(cmd.Op), Message: "committed " + string(cmd.Op)})
	return nil
}

// ApplyAsync runs Apply on its own goroutine and passes the result to
// onComplete, so the caller does not block on commit. An
// UpdateForceMergeCompleteTask uses it to learn whether its stamp
// committed. It exists for parity with spec.md's "fire and continue"
// reconciliation passes that do not want a single slow Apply to stall
// the rest of a reconcile tick.
func (s *Service) ApplyAsync(cmd Command, onComplete func(error)) {
	go func() {
		onComplete(s.Apply(cmd))
	}()
}

// State returns a fresh snapshot of the replicated cluster state as read
// from local storage. Safe to call on any node, leader or follower.
func (s *Service) State() (*types.ClusterState, error) {
	state, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	state.IsLocalNodeMaster = s.IsLeader()
	return state, nil
}

// Subscribe returns a channel of change events: one after every command
// committed through this node's Apply or ApplyAsync, plus every event
// passed to Publish. Callers must Unsubscribe to release the channel.
func (s *Service) Subscribe() events.Subscriber {
	return s.broker.Subscribe()
}

// Unsubscribe releases a channel obtained from Subscribe.
func (s *Service) Unsubscribe(sub events.Subscriber) {
	s.broker.Unsubscribe(sub)
}

// Publish fans event out to every subscriber. Exported so pkg/dslc and
// pkg/aas can announce the outcome of actions they dispatch, not just
// the FSM's own committed commands.
func (s *Service) Publish(event *events.Event) {
	s.broker.Publish(event)
}

// NodeID returns this service's Raft server ID.
func (s *Service) NodeID() string {
	return s.nodeID
}

// Shutdown stops Raft, the event broker, and closes the store.
func (s *Service) Shutdown() error {
	s.broker.Stop()
	if s.raft != nil {
		if err := s.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("shutdown raft: %w", err)
		}
	}
	return s.store.Close()
}
