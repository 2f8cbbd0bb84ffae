package state_test

import (
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contract = felt.New(0xabc)
	slot     = felt.New(0x1)
)

func writeStorage(t *testing.T, layers *state.Layers, value uint64) {
	t.Helper()
	scope, err := layers.BeginTxScope()
	require.NoError(t, err)
	v := felt.New(value)
	require.NoError(t, scope.SetContractStorage(&contract, &slot, &v))
	scope.Commit()
}

func sealAt(t *testing.T, layers *state.Layers, number uint64) {
	t.Helper()
	_, err := layers.SealBlock(number)
	require.NoError(t, err)
}

func TestAbsentReadsAreZero(t *testing.T) {
	layers := state.New(state.CapacityFull)
	sealAt(t, layers, 0)

	value, err := layers.Committed().ContractStorage(&contract, &slot)
	require.NoError(t, err)
	assert.True(t, value.IsZero())

	nonce, err := layers.Committed().ContractNonce(&contract)
	require.NoError(t, err)
	assert.True(t, nonce.IsZero())

	_, err = layers.Committed().ContractClassHash(&contract)
	assert.ErrorIs(t, err, core.ErrContractNotDeployed)
}

func TestPendingOverlayShadowsCommitted(t *testing.T) {
	layers := state.New(state.CapacityFull)
	writeStorage(t, layers, 1)
	sealAt(t, layers, 0)
	writeStorage(t, layers, 2)

	committed, err := layers.Committed().ContractStorage(&contract, &slot)
	require.NoError(t, err)
	assert.Equal(t, "0x1", committed.String())

	pending, err := layers.PreConfirmed().ContractStorage(&contract, &slot)
	require.NoError(t, err)
	assert.Equal(t, "0x2", pending.String())
}

func TestSealFoldsPendingIntoCommitted(t *testing.T) {
	layers := state.New(state.CapacityFull)
	writeStorage(t, layers, 7)
	diff, err := layers.SealBlock(0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, diff.Length())

	value, err := layers.Committed().ContractStorage(&contract, &slot)
	require.NoError(t, err)
	assert.Equal(t, "0x7", value.String())

	// Pending is empty again.
	pendingView, err := layers.PreConfirmed().ContractStorage(&contract, &slot)
	require.NoError(t, err)
	assert.Equal(t, "0x7", pendingView.String())
}

func TestHistoricalReads(t *testing.T) {
	layers := state.New(state.CapacityFull)
	writeStorage(t, layers, 1)
	sealAt(t, layers, 0)
	writeStorage(t, layers, 2)
	sealAt(t, layers, 1)
	writeStorage(t, layers, 3)
	sealAt(t, layers, 2)

	for block, want := range map[uint64]string{0: "0x1", 1: "0x2", 2: "0x3"} {
		reader, err := layers.AtBlock(block)
		require.NoError(t, err)
		value, err := reader.ContractStorage(&contract, &slot)
		require.NoError(t, err)
		assert.Equal(t, want, value.String(), "block %d", block)
	}

	_, err := layers.AtBlock(3)
	assert.ErrorIs(t, err, state.ErrFutureBlock)
}

func TestArchiveNoneRefusesHistory(t *testing.T) {
	layers := state.New(state.CapacityNone)
	writeStorage(t, layers, 1)
	sealAt(t, layers, 0)
	writeStorage(t, layers, 2)
	sealAt(t, layers, 1)

	_, err := layers.AtBlock(0)
	assert.ErrorIs(t, err, state.ErrNoHistory)

	// The latest block stays readable.
	_, err = layers.AtBlock(1)
	assert.NoError(t, err)
}

func TestSingleScope(t *testing.T) {
	layers := state.New(state.CapacityFull)
	scope, err := layers.BeginTxScope()
	require.NoError(t, err)

	_, err = layers.BeginTxScope()
	assert.ErrorIs(t, err, state.ErrScopeAlreadyOpen)

	scope.Discard()
	_, err = layers.BeginTxScope()
	assert.NoError(t, err)
}

func TestDiscardDropsWrites(t *testing.T) {
	layers := state.New(state.CapacityFull)
	sealAt(t, layers, 0)

	scope, err := layers.BeginTxScope()
	require.NoError(t, err)
	v := felt.New(9)
	require.NoError(t, scope.SetContractStorage(&contract, &slot, &v))
	scope.Discard()

	value, err := layers.PreConfirmed().ContractStorage(&contract, &slot)
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}

func TestAbortBlocksFrom(t *testing.T) {
	layers := state.New(state.CapacityFull)
	sealAt(t, layers, 0)
	writeStorage(t, layers, 1)
	sealAt(t, layers, 1)
	writeStorage(t, layers, 2)
	sealAt(t, layers, 2)

	require.NoError(t, layers.AbortBlocksFrom(2))

	value, err := layers.Committed().ContractStorage(&contract, &slot)
	require.NoError(t, err)
	assert.Equal(t, "0x1", value.String())

	latest, ok := layers.LatestSealed()
	require.True(t, ok)
	assert.EqualValues(t, 1, latest)

	require.NoError(t, layers.AbortBlocksFrom(1))
	value, err = layers.Committed().ContractStorage(&contract, &slot)
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}

func TestAbortRefusals(t *testing.T) {
	full := state.New(state.CapacityFull)
	sealAt(t, full, 0)
	writeStorage(t, full, 1)
	sealAt(t, full, 1)

	assert.ErrorIs(t, full.AbortBlocksFrom(0), state.ErrCannotAbortGenesis)
	assert.ErrorIs(t, full.AbortBlocksFrom(5), state.ErrUnknownAbortBlock)

	require.NoError(t, full.AbortBlocksFrom(1))
	// Aborting the same block again must fail.
	assert.ErrorIs(t, full.AbortBlocksFrom(1), state.ErrUnknownAbortBlock)

	none := state.New(state.CapacityNone)
	sealAt(t, none, 0)
	writeStorage(t, none, 1)
	sealAt(t, none, 1)
	assert.ErrorIs(t, none.AbortBlocksFrom(1), state.ErrNoHistory)
}

func TestClassVisibilityByDeclarationHeight(t *testing.T) {
	layers := state.New(state.CapacityFull)
	sealAt(t, layers, 0)
	writeStorage(t, layers, 1) // unrelated write so block 1 has a record
	sealAt(t, layers, 1)

	classHash := felt.New(0xc1a)
	scope, err := layers.BeginTxScope()
	require.NoError(t, err)
	require.NoError(t, scope.PutClass(&classHash, &core.Cairo0Class{Program: "{}"}))
	scope.Commit()
	sealAt(t, layers, 2)

	_, err = layers.Committed().Class(&classHash)
	require.NoError(t, err)

	older, err := layers.AtBlock(1)
	require.NoError(t, err)
	_, err = older.Class(&classHash)
	assert.ErrorIs(t, err, core.ErrClassNotFound)
}

func TestScopeReadsThroughLayers(t *testing.T) {
	layers := state.New(state.CapacityFull)
	writeStorage(t, layers, 1)
	sealAt(t, layers, 0)
	writeStorage(t, layers, 2) // stays pending

	scope, err := layers.BeginTxScope()
	require.NoError(t, err)

	// Sees pending before its own writes exist.
	value, err := scope.ContractStorage(&contract, &slot)
	require.NoError(t, err)
	assert.Equal(t, "0x2", value.String())

	v3 := felt.New(3)
	require.NoError(t, scope.SetContractStorage(&contract, &slot, &v3))
	value, err = scope.ContractStorage(&contract, &slot)
	require.NoError(t, err)
	assert.Equal(t, "0x3", value.String())
	scope.Discard()
}
