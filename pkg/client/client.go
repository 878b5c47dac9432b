package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Completion receives the outcome of a dispatched action. resp is one of
// ForceMergeResponse or GetDeploymentStatsResponse for actions that return
// data, and nil for fire-and-forget actions (rollover, delete, settings,
// update-deployment).
type Completion func(resp any, err error)

// ActionClient dispatches a Request against the node that owns the
// target resource and invokes onComplete exactly once with the result.
// Implementations must not block past ctx's deadline.
type ActionClient interface {
	Execute(ctx context.Context, req Request, onComplete Completion)
}

// GRPCActionClient implements ActionClient over a single generic RPC
// method, encoding each Request as a structpb.Struct envelope rather than
// a hand-generated protobuf message, since wire schema evolution for
// these actions is out of scope here.
type GRPCActionClient struct {
	conn *grpc.ClientConn
	log  zerolog.Logger
}

// Dial opens a plaintext (non-mTLS) gRPC connection to addr. clustercore
// talks to data/inference nodes inside a trusted cluster network; mTLS
// between cluster members is out of scope for this client.
func Dial(addr string, log zerolog.Logger) (*GRPCActionClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &GRPCActionClient{conn: conn, log: log.With().Str("component", "action_client").Logger()}, nil
}

// Close releases the underlying connection.
func (c *GRPCActionClient) Close() error {
	return c.conn.Close()
}

const executeMethod = "/clustercore.actions.v1.Executor/Execute"

// Execute encodes req into a structpb envelope, invokes the Executor
// service's single RPC method, and decodes the reply into the response
// type appropriate for req's action type.
func (c *GRPCActionClient) Execute(ctx context.Context, req Request, onComplete Completion) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	envelope, err := toEnvelope(req)
	if err != nil {
		onComplete(nil, fmt.Errorf("encode %s request: %w", req.ActionType(), err))
		return
	}

	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, executeMethod, envelope, reply); err != nil {
		c.log.Error().Err(err).Str("action", string(req.ActionType())).Msg("action dispatch failed")
		onComplete(nil, err)
		return
	}

	resp, err := fromEnvelope(req.ActionType(), reply)
	if err != nil {
		onComplete(nil, fmt.Errorf("decode %s response: %w", req.ActionType(), err))
		return
	}
	onComplete(resp, nil)
}

// toEnvelope round-trips req through JSON into a structpb.Struct, which
// only accepts map[string]any: there is no direct Go-struct-to-Struct
// conversion in the protobuf runtime.
func toEnvelope(req Request) (*structpb.Struct, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["action_type"] = string(req.ActionType())
	return structpb.NewStruct(fields)
}

func fromEnvelope(action ActionType, reply *structpb.Struct) (any, error) {
	raw, err := reply.MarshalJSON()
	if err != nil {
		return nil, err
	}
	switch action {
	case ActionForceMerge:
		var resp ForceMergeResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, err
		}
		return resp, nil
	case ActionGetDeploymentStats:
		var resp GetDeploymentStatsResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, err
		}
		return resp, nil
	default:
		return nil, nil
	}
}

// DefaultTimeout bounds a single action dispatch when the caller has not
// already set a deadline on its context.
const DefaultTimeout = 10 * time.Second
