package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestToEnvelope_RoundTripsFields(t *testing.T) {
	req := ForceMergeRequest{
		RequestID:      "fm:logs-000001",
		Indices:        []string{"logs-000001"},
		MaxNumSegments: 1,
	}

	envelope, err := toEnvelope(req)
	require.NoError(t, err)

	fields := envelope.AsMap()
	assert.Equal(t, "fm:logs-000001", fields["RequestID"])
	assert.Equal(t, string(ActionForceMerge), fields["action_type"])
	assert.Equal(t, float64(1), fields["MaxNumSegments"])
}

func TestFromEnvelope_ForceMerge(t *testing.T) {
	req := ForceMergeRequest{RequestID: "fm:logs-000001", Indices: []string{"logs-000001"}}
	envelope, err := toEnvelope(req)
	require.NoError(t, err)

	// Simulate a reply carrying the response fields.
	reply := envelope
	reply.Fields["TotalShards"] = structpb.NewNumberValue(5)
	reply.Fields["SuccessfulShards"] = structpb.NewNumberValue(5)
	reply.Fields["FailedShards"] = structpb.NewNumberValue(0)

	resp, err := fromEnvelope(ActionForceMerge, reply)
	require.NoError(t, err)

	fmResp, ok := resp.(ForceMergeResponse)
	require.True(t, ok)
	assert.Equal(t, 5, fmResp.TotalShards)
	assert.True(t, fmResp.Succeeded())
}

func TestFromEnvelope_UnrecognizedActionReturnsNil(t *testing.T) {
	req := RolloverRequest{DataStream: "logs"}
	envelope, err := toEnvelope(req)
	require.NoError(t, err)

	resp, err := fromEnvelope(ActionRollover, envelope)
	require.NoError(t, err)
	assert.Nil(t, resp)
}
