package rpc

import (
	"encoding/json"
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/state"
	"github.com/0xSpaceShard/starknet-devnet-go/vm"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockIDUnmarshal(t *testing.T) {
	tests := map[string]struct {
		input string
		check func(t *testing.T, id BlockID)
	}{
		"latest": {
			input: `"latest"`,
			check: func(t *testing.T, id BlockID) { assert.True(t, id.Latest) },
		},
		"pending alias": {
			input: `"pending"`,
			check: func(t *testing.T, id BlockID) { assert.True(t, id.PreConfirmed) },
		},
		"pre_confirmed": {
			input: `"pre_confirmed"`,
			check: func(t *testing.T, id BlockID) { assert.True(t, id.PreConfirmed) },
		},
		"number": {
			input: `{"block_number":7}`,
			check: func(t *testing.T, id BlockID) {
				assert.True(t, id.HasNumber)
				assert.EqualValues(t, 7, id.Number)
			},
		},
		"hash": {
			input: `{"block_hash":"0xabc"}`,
			check: func(t *testing.T, id BlockID) {
				require.NotNil(t, id.Hash)
				assert.Equal(t, "0xabc", id.Hash.String())
			},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var id BlockID
			require.NoError(t, json.Unmarshal([]byte(test.input), &id))
			test.check(t, id)
		})
	}

	var id BlockID
	assert.Error(t, json.Unmarshal([]byte(`"oldest"`), &id))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{blockchain.ErrBlockNotFound, 24},
		{blockchain.ErrTxnNotFound, 29},
		{blockchain.ErrNoBlocks, 32},
		{core.ErrContractNotDeployed, 20},
		{core.ErrClassNotFound, 28},
		{vm.ErrInvalidTransactionNonce, 52},
		{vm.ErrInsufficientMaxFee, 53},
		{vm.ErrInsufficientAccountBalance, 54},
		{vm.ErrValidationFailure, 55},
		{sequencer.ErrClassAlreadyDeclared, 51},
		{sequencer.ErrExecutionReverted, 40},
		{sequencer.ErrExecutorFailure, 40},
		{sequencer.ErrInvalidContinuationToken, 33},
		{state.ErrNoHistory, 24},
		{errors.New("anything else"), -32603},
	}
	for _, test := range tests {
		assert.Equal(t, test.code, mapError(test.err).Code, "error %v", test.err)
	}

	// Wrapped errors keep their codes.
	wrapped := errors.Wrap(vm.ErrValidationFailure, "signature mismatch")
	assert.Equal(t, 55, mapError(wrapped).Code)
}

func TestBroadcastDecodeKeepsRaw(t *testing.T) {
	raw := `{"type":"INVOKE","version":"0x1","sender_address":"0xacc",` +
		`"max_fee":"0x10","nonce":"0x0","signature":[],"calldata":["0x1","0x2"]}`

	var broadcast BroadcastedTransaction
	require.NoError(t, json.Unmarshal([]byte(raw), &broadcast))

	item, rpcErr := broadcast.ToItem()
	require.Nil(t, rpcErr)
	assert.JSONEq(t, raw, string(item.Raw))

	invoke, ok := item.Transaction.(*core.InvokeTransaction)
	require.True(t, ok)
	assert.Equal(t, "0xacc", invoke.SenderAddress.String())
	assert.Len(t, invoke.CallData, 2)
}

func TestBroadcastUnknownType(t *testing.T) {
	var broadcast BroadcastedTransaction
	require.NoError(t, json.Unmarshal([]byte(`{"type":"DEPLOY"}`), &broadcast))
	_, rpcErr := broadcast.ToItem()
	require.NotNil(t, rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
}

func TestSpecVersionSatisfies(t *testing.T) {
	assert.True(t, SpecVersionSatisfies(">= 0.8.0"))
	assert.False(t, SpecVersionSatisfies(">= 9.0.0"))
}
