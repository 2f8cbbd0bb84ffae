package blockchain_test

import (
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChain() *blockchain.Blockchain {
	chain := blockchain.New(utils.NewNopZapLogger())
	sequencer := felt.New(0x5e9)
	price := felt.New(1)
	chain.StartPreConfirmed(core.Header{
		Number:           0,
		SequencerAddress: &sequencer,
		GasPrices: core.GasPrices{
			L1GasPriceWEI: &price, L1GasPriceFRI: &price,
			L1DataGasPriceWEI: &price, L1DataGasPriceFRI: &price,
			L2GasPriceWEI: &price, L2GasPriceFRI: &price,
		},
	})
	return chain
}

func nextPreConfirmed(chain *blockchain.Blockchain, sealed *core.Block) {
	header := sealed.Header
	header.Hash = nil
	header.Number = sealed.Number + 1
	header.ParentHash = sealed.Hash
	header.TransactionCount = 0
	header.EventCount = 0
	header.TransactionCommitment = nil
	header.EventCommitment = nil
	chain.StartPreConfirmed(header)
}

func addTx(t *testing.T, chain *blockchain.Blockchain, hashValue uint64) *felt.Felt {
	t.Helper()
	hash := felt.New(hashValue)
	sender := felt.New(0xacc)
	one := felt.New(1)
	chain.AddPreConfirmedTransaction(&blockchain.TransactionEntry{
		Transaction: &core.InvokeTransaction{
			TransactionHash: &hash,
			Version:         &one,
			SenderAddress:   &sender,
		},
		Receipt: &core.TransactionReceipt{
			TransactionHash: &hash,
			ActualFee:       &felt.Zero,
			FinalityStatus:  core.TxnPreConfirmed,
		},
		Trace: &core.TransactionTrace{Type: core.TxnInvoke},
	})
	return &hash
}

func seal(t *testing.T, chain *blockchain.Blockchain) *core.Block {
	t.Helper()
	diff := core.EmptyStateDiff()
	block, err := chain.Seal(&diff)
	require.NoError(t, err)
	nextPreConfirmed(chain, block)
	return block
}

func TestSealAssignsHashAndBackfillsReceipts(t *testing.T) {
	chain := newChain()
	txHash := addTx(t, chain, 0xaa)

	block := seal(t, chain)
	require.NotNil(t, block.Hash)
	assert.Equal(t, core.BlockAcceptedOnL2, block.Status)

	entry, err := chain.TransactionByHash(txHash)
	require.NoError(t, err)
	require.NotNil(t, entry.BlockNumber)
	assert.EqualValues(t, 0, *entry.BlockNumber)
	assert.True(t, entry.BlockHash.Equal(block.Hash))
	assert.Equal(t, core.TxnAcceptedOnL2, entry.Receipt.FinalityStatus)

	// Pre-confirmed moved to number 1 with the sealed hash as parent.
	pre := chain.PreConfirmed()
	assert.EqualValues(t, 1, pre.Number)
	assert.True(t, pre.ParentHash.Equal(block.Hash))
}

func TestParentHashChains(t *testing.T) {
	chain := newChain()
	addTx(t, chain, 1)
	first := seal(t, chain)
	addTx(t, chain, 2)
	second := seal(t, chain)

	assert.True(t, second.ParentHash.Equal(first.Hash))
	assert.False(t, first.Hash.Equal(second.Hash))

	height, ok := chain.Height()
	require.True(t, ok)
	assert.EqualValues(t, 1, height)
}

func TestBlockLookups(t *testing.T) {
	chain := newChain()
	addTx(t, chain, 1)
	block := seal(t, chain)

	byNumber, err := chain.BlockByNumber(0)
	require.NoError(t, err)
	byHash, err := chain.BlockByHash(block.Hash)
	require.NoError(t, err)
	assert.Same(t, byNumber, byHash)

	_, err = chain.BlockByNumber(9)
	assert.ErrorIs(t, err, blockchain.ErrBlockNotFound)

	missing := felt.New(0xdead)
	_, err = chain.BlockByHash(&missing)
	assert.ErrorIs(t, err, blockchain.ErrBlockNotFound)
}

func TestAcceptOnL1(t *testing.T) {
	chain := newChain()
	addTx(t, chain, 1)
	first := seal(t, chain)
	addTx(t, chain, 2)
	second := seal(t, chain)

	accepted, err := chain.AcceptOnL1(1)
	require.NoError(t, err)
	// Newest first.
	require.Len(t, accepted, 2)
	assert.True(t, accepted[0].Equal(second.Hash))
	assert.True(t, accepted[1].Equal(first.Hash))

	entry, err := chain.TransactionByHash(second.TransactionHashes[0])
	require.NoError(t, err)
	assert.Equal(t, core.TxnAcceptedOnL1, entry.Receipt.FinalityStatus)

	// Accepting again refuses.
	_, err = chain.AcceptOnL1(1)
	assert.ErrorIs(t, err, blockchain.ErrAlreadyOnL1)
}

func TestAbortFrom(t *testing.T) {
	chain := newChain()
	addTx(t, chain, 1)
	seal(t, chain)
	txHash := addTx(t, chain, 2)
	second := seal(t, chain)

	aborted, err := chain.AbortFrom(1)
	require.NoError(t, err)
	require.Len(t, aborted, 1)
	assert.True(t, aborted[0].Equal(second.Hash))

	// Gone from the public indexes.
	_, err = chain.BlockByNumber(1)
	assert.ErrorIs(t, err, blockchain.ErrBlockNotFound)
	_, err = chain.TransactionByHash(txHash)
	assert.ErrorIs(t, err, blockchain.ErrTxnNotFound)

	// Still reachable for tracing, with rejected status.
	entry, err := chain.TraceByHash(txHash)
	require.NoError(t, err)
	assert.Equal(t, core.TxnRejected, entry.Receipt.FinalityStatus)

	height, ok := chain.Height()
	require.True(t, ok)
	assert.EqualValues(t, 0, height)
}

func TestAcceptedEntriesInChainOrder(t *testing.T) {
	chain := newChain()
	addTx(t, chain, 1)
	seal(t, chain)
	addTx(t, chain, 2)
	addTx(t, chain, 3)
	seal(t, chain)

	entries := chain.AcceptedEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "0x1", entries[0].Transaction.Hash().String())
	assert.Equal(t, "0x3", entries[2].Transaction.Hash().String())
}

func TestTransactionInBlock(t *testing.T) {
	chain := newChain()
	addTx(t, chain, 1)
	block := seal(t, chain)

	entry, err := chain.TransactionInBlock(block, 0)
	require.NoError(t, err)
	assert.Equal(t, "0x1", entry.Transaction.Hash().String())

	_, err = chain.TransactionInBlock(block, 1)
	assert.ErrorIs(t, err, blockchain.ErrTxnNotFound)
}
