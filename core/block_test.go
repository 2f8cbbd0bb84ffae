package core_test

import (
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gasPrices(v uint64) core.GasPrices {
	p := felt.New(v)
	return core.GasPrices{
		L1GasPriceWEI:     &p,
		L1GasPriceFRI:     &p,
		L1DataGasPriceWEI: &p,
		L1DataGasPriceFRI: &p,
		L2GasPriceWEI:     &p,
		L2GasPriceFRI:     &p,
	}
}

func TestBlockHashCommitsToHeader(t *testing.T) {
	sequencer := felt.New(0x5e9)
	parent := felt.New(0xdad)

	block := &core.Block{
		Header: core.Header{
			Number:           3,
			ParentHash:       &parent,
			SequencerAddress: &sequencer,
			Timestamp:        1000,
			GasPrices:        gasPrices(1),
		},
	}

	h1 := core.BlockHash(block)
	h2 := core.BlockHash(block)
	require.True(t, h1.Equal(h2))

	block.Timestamp++
	assert.False(t, core.BlockHash(block).Equal(h1))

	block.Timestamp--
	block.Number++
	assert.False(t, core.BlockHash(block).Equal(h1))
}

func TestBlockHashCommitsToTransactions(t *testing.T) {
	sequencer := felt.New(1)
	txHash := felt.New(0xbeef)

	block := &core.Block{
		Header: core.Header{SequencerAddress: &sequencer, GasPrices: gasPrices(1)},
	}
	empty := core.BlockHash(block)

	block.TransactionHashes = []*felt.Felt{&txHash}
	block.TransactionCount = 1
	assert.False(t, core.BlockHash(block).Equal(empty))
}

func TestEventsBloom(t *testing.T) {
	filter := core.NewEventsBloom()
	from := felt.New(0xa)
	transferKey := felt.New(0x7e5)

	core.AddEventToBloom(filter, &core.Event{From: &from, Keys: []*felt.Felt{&transferKey}})

	assert.True(t, filter.Test(from.Marshal()))
	assert.True(t, filter.Test(transferKey.Marshal()))

	other := felt.New(0xffff)
	assert.False(t, filter.Test(other.Marshal()))
}
