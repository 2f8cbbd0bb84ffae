package sequencer

import (
	"context"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/l1"
	"github.com/ethereum/go-ethereum/common"
)

// WithBroker installs the postman broker; without one the postman
// endpoints answer not-configured.
func (s *Sequencer) WithBroker(broker *l1.Broker) *Sequencer {
	s.broker = broker
	return s
}

// ConfigureMessaging connects the broker to an L1 node.
func (s *Sequencer) ConfigureMessaging(node l1.EthereumNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broker == nil {
		return l1.ErrNotConfigured
	}
	s.broker.Configure(node)
	return nil
}

// lockedBlockSource adapts the chain to the broker while the handle is
// already held.
type lockedBlockSource struct {
	s *Sequencer
}

func (b lockedBlockSource) LatestBlockNumber() (uint64, bool) {
	return b.s.chain.Height()
}

func (b lockedBlockSource) MessagesOfBlock(number uint64) ([]*core.L2ToL1Message, error) {
	block, err := b.s.chain.BlockByNumber(number)
	if err != nil {
		// Gaps below a fork point carry no local messages.
		return nil, nil
	}

	var messages []*core.L2ToL1Message
	for _, entry := range b.s.chain.EntriesOf(block) {
		// Reverted transactions never ship their messages to L1.
		if entry.Receipt.ExecutionStatus == core.TxnReverted {
			continue
		}
		messages = append(messages, entry.Receipt.L2ToL1Messages...)
	}
	return messages, nil
}

// PostmanFlush collects everything up to the latest block and ships it to
// the L1 node; with dryRun the queue is only reported. The collection runs
// under the handle, the network send does not.
func (s *Sequencer) PostmanFlush(ctx context.Context, dryRun bool) ([]*core.L2ToL1Message, error) {
	s.mu.Lock()
	if s.broker == nil {
		s.mu.Unlock()
		return nil, l1.ErrNotConfigured
	}
	messages, err := s.broker.CollectMessagesToL1(lockedBlockSource{s})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if dryRun {
		return messages, nil
	}
	return s.broker.Flush(ctx)
}

// PostmanConsume consumes one L2->L1 message, collecting pending blocks
// first so freshly sealed messages are visible.
func (s *Sequencer) PostmanConsume(message *core.L2ToL1Message) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broker == nil {
		return common.Hash{}, l1.ErrNotConfigured
	}
	if _, err := s.broker.CollectMessagesToL1(lockedBlockSource{s}); err != nil {
		return common.Hash{}, err
	}
	return s.broker.ConsumeMessageFromL2(message)
}

// PostmanSendMessageToL2 injects an L1->L2 message as a synthetic L1
// handler transaction through the regular pipeline.
func (s *Sequencer) PostmanSendMessageToL2(payload *l1.L1HandlerPayload) (*felt.Felt, error) {
	tx := l1.BuildL1HandlerTransaction(payload)
	return s.AddTransaction(BroadcastItem{
		Transaction: tx,
		PaidFeeOnL1: payload.PaidFeeOnL1,
	})
}
