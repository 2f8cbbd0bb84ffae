package sequencer

import (
	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

// Reorg describes one abort: the contiguous range of blocks rolled back.
type Reorg struct {
	FirstHash   *felt.Felt
	LastHash    *felt.Felt
	FirstNumber uint64
	LastNumber  uint64
	// Hashes of every transaction the abort removed; status notifications
	// for them are suppressed afterwards.
	AbortedTxns []*felt.Felt
}

// Listener observes the sequencer's state-changing commits. Callbacks run
// synchronously inside the commit, in transition order; implementations
// must hand work off to their own queues instead of blocking.
type Listener interface {
	OnTransactionAdmitted(entry *blockchain.TransactionEntry)
	OnBlockSealed(block *core.Block, entries []*blockchain.TransactionEntry)
	OnL1Accepted(hashes []*felt.Felt, entries []*blockchain.TransactionEntry)
	OnReorg(reorg *Reorg)
}

// AddListener registers a commit listener. Not safe to call concurrently
// with running traffic; wire listeners before serving.
func (s *Sequencer) AddListener(listener Listener) {
	s.listeners = append(s.listeners, listener)
}

func (s *Sequencer) notifyAdmitted(entry *blockchain.TransactionEntry) {
	for _, listener := range s.listeners {
		listener.OnTransactionAdmitted(entry)
	}
}

func (s *Sequencer) notifySealed(block *core.Block, entries []*blockchain.TransactionEntry) {
	for _, listener := range s.listeners {
		listener.OnBlockSealed(block, entries)
	}
}

func (s *Sequencer) notifyL1Accepted(hashes []*felt.Felt, entries []*blockchain.TransactionEntry) {
	for _, listener := range s.listeners {
		listener.OnL1Accepted(hashes, entries)
	}
}

func (s *Sequencer) notifyReorg(reorg *Reorg) {
	for _, listener := range s.listeners {
		listener.OnReorg(reorg)
	}
}
