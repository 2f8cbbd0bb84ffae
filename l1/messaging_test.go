package l1_test

import (
	"context"
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/l1"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	latest    uint64
	hasBlocks bool
	messages  map[uint64][]*core.L2ToL1Message
}

func (s *stubSource) LatestBlockNumber() (uint64, bool) {
	return s.latest, s.hasBlocks
}

func (s *stubSource) MessagesOfBlock(number uint64) ([]*core.L2ToL1Message, error) {
	return s.messages[number], nil
}

func message(fromValue uint64) *core.L2ToL1Message {
	from := felt.New(fromValue)
	to := felt.New(0xe7b)
	payload := felt.New(42)
	return &core.L2ToL1Message{From: &from, To: &to, Payload: []*felt.Felt{&payload}}
}

func TestMessageHashDeterministic(t *testing.T) {
	first := l1.MessageHash(message(1))
	second := l1.MessageHash(message(1))
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, l1.MessageHash(message(2)))
}

func TestCollectAdvancesHighWaterMark(t *testing.T) {
	broker := l1.NewBroker(utils.NewNopZapLogger())
	source := &stubSource{
		latest:    1,
		hasBlocks: true,
		messages:  map[uint64][]*core.L2ToL1Message{1: {message(1)}},
	}

	collected, err := broker.CollectMessagesToL1(source)
	require.NoError(t, err)
	assert.Len(t, collected, 1)

	// A second collection without new blocks must not double-count.
	collected, err = broker.CollectMessagesToL1(source)
	require.NoError(t, err)
	assert.Len(t, collected, 1)

	// A new block adds to the queue.
	source.latest = 2
	source.messages[2] = []*core.L2ToL1Message{message(2)}
	collected, err = broker.CollectMessagesToL1(source)
	require.NoError(t, err)
	assert.Len(t, collected, 2)
}

func TestConsumeDecrementsRefcount(t *testing.T) {
	broker := l1.NewBroker(utils.NewNopZapLogger())
	source := &stubSource{
		latest:    1,
		hasBlocks: true,
		messages:  map[uint64][]*core.L2ToL1Message{1: {message(1), message(1)}},
	}

	_, err := broker.CollectMessagesToL1(source)
	require.NoError(t, err)

	// Collected twice, consumable twice, not a third time.
	_, err = broker.ConsumeMessageFromL2(message(1))
	require.NoError(t, err)
	_, err = broker.ConsumeMessageFromL2(message(1))
	require.NoError(t, err)
	_, err = broker.ConsumeMessageFromL2(message(1))
	assert.ErrorIs(t, err, l1.ErrMessageNotPresent)

	// Never-collected message fails immediately.
	_, err = broker.ConsumeMessageFromL2(message(9))
	assert.ErrorIs(t, err, l1.ErrMessageNotPresent)
}

func TestFlushClearsQueueWithoutNode(t *testing.T) {
	broker := l1.NewBroker(utils.NewNopZapLogger())
	source := &stubSource{
		latest:    1,
		hasBlocks: true,
		messages:  map[uint64][]*core.L2ToL1Message{1: {message(1)}},
	}
	_, err := broker.CollectMessagesToL1(source)
	require.NoError(t, err)

	flushed, err := broker.Flush(context.Background())
	require.NoError(t, err)
	assert.Len(t, flushed, 1)

	flushed, err = broker.Flush(context.Background())
	require.NoError(t, err)
	assert.Empty(t, flushed)

	// Refcounts survive the flush: consumption still works.
	_, err = broker.ConsumeMessageFromL2(message(1))
	assert.NoError(t, err)
}

func TestBuildL1HandlerTransaction(t *testing.T) {
	l1Contract := felt.New(0xaaa)
	l2Contract := felt.New(0xbbb)
	selector := felt.New(0xccc)
	nonce := felt.New(5)
	fee := felt.New(1)
	arg := felt.New(7)

	tx := l1.BuildL1HandlerTransaction(&l1.L1HandlerPayload{
		L1ContractAddress:  &l1Contract,
		L2ContractAddress:  &l2Contract,
		EntryPointSelector: &selector,
		Payload:            []*felt.Felt{&arg},
		Nonce:              &nonce,
		PaidFeeOnL1:        &fee,
	})

	assert.Equal(t, core.TxnL1Handler, tx.Type())
	assert.True(t, tx.Nonce.Equal(&nonce))
	assert.True(t, tx.PaidFeeOnL1.Equal(&fee))
	// The L1 sender is prepended to the calldata.
	require.Len(t, tx.CallData, 2)
	assert.True(t, tx.CallData[0].Equal(&l1Contract))
	assert.True(t, tx.CallData[1].Equal(&arg))
}
