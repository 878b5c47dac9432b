package aas

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fluxstream/clustercore/pkg/client"
	"github.com/fluxstream/clustercore/pkg/clusterstate"
	"github.com/fluxstream/clustercore/pkg/events"
	"github.com/fluxstream/clustercore/pkg/storage"
	"github.com/fluxstream/clustercore/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeActionClient records every dispatched request and replies
// according to a per-action-type responder, defaulting to a
// fire-and-forget success.
type fakeActionClient struct {
	mu        sync.Mutex
	requests  []client.Request
	responder func(req client.Request) (any, error)
}

func (f *fakeActionClient) Execute(_ context.Context, req client.Request, onComplete client.Completion) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	responder := f.responder
	f.mu.Unlock()

	if responder != nil {
		resp, err := responder(req)
		onComplete(resp, err)
		return
	}
	onComplete(nil, nil)
}

func (f *fakeActionClient) requestsOfType(action client.ActionType) []client.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []client.Request
	for _, r := range f.requests {
		if r.ActionType() == action {
			out = append(out, r)
		}
	}
	return out
}

func waitForLeader(t *testing.T, svc *clusterstate.Service) {
	t.Helper()
	for i := 0; i < 50; i++ {
		if svc.IsLeader() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("node failed to become leader")
}

func newTestAAS(t *testing.T, fake *fakeActionClient, interval time.Duration) (*AAS, *clusterstate.Service, storage.Store) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping raft integration test in short mode")
	}

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := clusterstate.New(clusterstate.Config{NodeID: "node-1", BindAddr: "127.0.0.1:0", DataDir: t.TempDir()}, store, zerolog.Nop())
	t.Cleanup(func() { svc.Shutdown() })

	require.NoError(t, svc.Bootstrap())
	waitForLeader(t, svc)

	a := New(svc, fake, Config{PollInterval: interval}, zerolog.Nop())
	return a, svc, store
}

func TestAAS_StartReconcilesScalersFromExistingState(t *testing.T) {
	fake := &fakeActionClient{}
	a, svc, store := newTestAAS(t, fake, time.Hour)

	require.NoError(t, store.UpsertDeploymentAssignment(&types.DeploymentAssignment{
		DeploymentID:           "model-a",
		AdaptiveAllocations:    true,
		TotalTargetAllocations: 3,
	}))

	require.NoError(t, a.Start())
	defer a.Stop()

	a.mu.Lock()
	scaler, ok := a.scalers["model-a"]
	a.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, 3, scaler.CurrentAllocations())

	_ = svc
}

func TestAAS_ClusterChangedAddsScaler(t *testing.T) {
	fake := &fakeActionClient{}
	a, svc, store := newTestAAS(t, fake, time.Hour)
	require.NoError(t, a.Start())
	defer a.Stop()

	require.NoError(t, store.UpsertDeploymentAssignment(&types.DeploymentAssignment{
		DeploymentID:           "model-a",
		AdaptiveAllocations:    true,
		TotalTargetAllocations: 2,
	}))
	svc.Publish(&events.Event{Type: events.EventStreamRolledOver, Message: "triggering reconcile"})

	require.Eventually(t, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		_, ok := a.scalers["model-a"]
		return ok
	}, 2*time.Second, 50*time.Millisecond)
}

func TestAAS_HandleStatsDispatchesScaleRequest(t *testing.T) {
	fake := &fakeActionClient{}
	a, _, _ := newTestAAS(t, fake, time.Second)

	a.mu.Lock()
	a.scalers["model-a"] = NewPerDeploymentScaler("model-a", 1, nil, nil)
	a.mu.Unlock()

	a.handleStats(client.GetDeploymentStatsResponse{
		Nodes: []client.NodeDeploymentStats{
			{DeploymentID: "model-a", NodeID: "node-1", Stats: types.Stats{SuccessCount: 100, AvgInferenceTime: 1}},
		},
	})

	require.Eventually(t, func() bool {
		return len(fake.requestsOfType(client.ActionUpdateTrainedModelDeployment)) == 1
	}, 2*time.Second, 50*time.Millisecond)

	reqs := fake.requestsOfType(client.ActionUpdateTrainedModelDeployment)
	assert.Equal(t, "model-a", reqs[0].(client.UpdateTrainedModelDeploymentRequest).DeploymentID)
}

func TestAAS_HandleStatsSkipsRemovedScaler(t *testing.T) {
	fake := &fakeActionClient{}
	a, _, _ := newTestAAS(t, fake, time.Second)

	a.handleStats(client.GetDeploymentStatsResponse{
		Nodes: []client.NodeDeploymentStats{
			{DeploymentID: "model-a", NodeID: "node-1", Stats: types.Stats{SuccessCount: 100, AvgInferenceTime: 1}},
		},
	})

	assert.Empty(t, fake.requestsOfType(client.ActionUpdateTrainedModelDeployment))
}

func TestAAS_StartIsIdempotent(t *testing.T) {
	fake := &fakeActionClient{}
	a, _, _ := newTestAAS(t, fake, time.Hour)

	require.NoError(t, a.Start())
	require.NoError(t, a.Start())
	a.Stop()
}

func TestAAS_StopIsIdempotent(t *testing.T) {
	fake := &fakeActionClient{}
	a, _, _ := newTestAAS(t, fake, time.Hour)

	require.NoError(t, a.Start())
	a.Stop()
	a.Stop()
}
