package facade_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Exzender/tatum-v3-fork/internal/facade"
)

type fakeCaller struct {
	lastRequest []byte
	lastArchive bool
	response    json.RawMessage
	err         error
}

func (f *fakeCaller) RawRPCCall(ctx context.Context, request []byte, archive bool) (json.RawMessage, error) {
	f.lastRequest = request
	f.lastArchive = archive
	return f.response, f.err
}

func (f *fakeCaller) RawBatchRPCCall(ctx context.Context, requests []byte) (json.RawMessage, error) {
	return f.response, f.err
}

func (f *fakeCaller) Post(ctx context.Context, path string, body []byte) (json.RawMessage, error) {
	return f.response, f.err
}

func TestPrepareAndCall_SerializesEnvelopeAndForwardsArchiveFlag(t *testing.T) {
	caller := &fakeCaller{response: json.RawMessage(`{"result":"ok"}`)}
	rpc := facade.NewGenericRpc(caller)

	result, err := rpc.PrepareAndCall(context.Background(), "getblockcount", []any{}, true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"ok"}`, string(result))
	assert.True(t, caller.lastArchive)

	var envelope struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Method  string `json:"method"`
	}
	require.NoError(t, json.Unmarshal(caller.lastRequest, &envelope))
	assert.Equal(t, "2.0", envelope.JSONRPC)
	assert.Equal(t, "getblockcount", envelope.Method)
	assert.Equal(t, 1, envelope.ID)
}

func TestPrepareAndCall_IncrementsRequestID(t *testing.T) {
	caller := &fakeCaller{response: json.RawMessage(`{}`)}
	rpc := facade.NewGenericRpc(caller)

	_, err := rpc.PrepareAndCall(context.Background(), "eth_blockNumber", nil, false)
	require.NoError(t, err)
	_, err = rpc.PrepareAndCall(context.Background(), "eth_blockNumber", nil, false)
	require.NoError(t, err)

	var second struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(caller.lastRequest, &second))
	assert.Equal(t, 2, second.ID)
}

func TestPrepareAndCall_PropagatesCallerError(t *testing.T) {
	caller := &fakeCaller{err: assert.AnError}
	rpc := facade.NewGenericRpc(caller)

	_, err := rpc.PrepareAndCall(context.Background(), "getblockcount", nil, false)
	assert.ErrorIs(t, err, assert.AnError)
}
