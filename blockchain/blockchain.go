// Package blockchain keeps the devnet's block log and transaction store in
// memory: the strictly-ordered sealed blocks, the single pre-confirmed
// block collecting in-flight transactions, and the hash-indexed
// transactions with their receipts and traces.
package blockchain

import (
	"encoding/json"
	"errors"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
)

var (
	ErrBlockNotFound      = errors.New("block not found")
	ErrTxnNotFound        = errors.New("transaction not found")
	ErrNoBlocks           = errors.New("no blocks")
	ErrBlockAborted       = errors.New("block was aborted")
	ErrAlreadyOnL1        = errors.New("block already accepted on L1")
	ErrPreConfirmedTarget = errors.New("operation targets the pre-confirmed block")
)

// TransactionEntry denormalizes everything known about one transaction:
// the typed transaction, its receipt, its trace, the containing block once
// sealed, and the original broadcast form kept for the dump file.
type TransactionEntry struct {
	Transaction core.Transaction
	Receipt     *core.TransactionReceipt
	Trace       *core.TransactionTrace
	BlockNumber *uint64
	BlockHash   *felt.Felt
	Broadcast   json.RawMessage
}

type Blockchain struct {
	byNumber     map[uint64]*core.Block
	byHash       map[felt.Felt]*core.Block
	stateUpdates map[uint64]*core.StateDiff

	preConfirmed *core.Block

	txns        map[felt.Felt]*TransactionEntry
	abortedTxns map[felt.Felt]*TransactionEntry
	aborted     map[felt.Felt]*core.Block

	height    uint64
	hasBlocks bool

	log utils.SimpleLogger
}

func New(log utils.SimpleLogger) *Blockchain {
	return &Blockchain{
		byNumber:     make(map[uint64]*core.Block),
		byHash:       make(map[felt.Felt]*core.Block),
		stateUpdates: make(map[uint64]*core.StateDiff),
		txns:         make(map[felt.Felt]*TransactionEntry),
		abortedTxns:  make(map[felt.Felt]*TransactionEntry),
		aborted:      make(map[felt.Felt]*core.Block),
		log:          log,
	}
}

// StartPreConfirmed installs a fresh pre-confirmed block built from the
// given header. The header's number must be one above the latest sealed
// block.
func (b *Blockchain) StartPreConfirmed(header core.Header) {
	b.preConfirmed = &core.Block{
		Header:      header,
		Status:      core.BlockPreConfirmed,
		EventsBloom: core.NewEventsBloom(),
	}
}

func (b *Blockchain) PreConfirmed() *core.Block {
	return b.preConfirmed
}

// Height returns the latest sealed block number; false before genesis.
func (b *Blockchain) Height() (uint64, bool) {
	return b.height, b.hasBlocks
}

func (b *Blockchain) Latest() (*core.Block, error) {
	if !b.hasBlocks {
		return nil, ErrNoBlocks
	}
	return b.byNumber[b.height], nil
}

func (b *Blockchain) BlockByNumber(number uint64) (*core.Block, error) {
	block, ok := b.byNumber[number]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return block, nil
}

func (b *Blockchain) BlockByHash(hash *felt.Felt) (*core.Block, error) {
	block, ok := b.byHash[*hash]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return block, nil
}

func (b *Blockchain) StateUpdate(number uint64) (*core.StateDiff, error) {
	diff, ok := b.stateUpdates[number]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return diff, nil
}

// AddPreConfirmedTransaction admits one executed transaction into the
// pre-confirmed block and the transaction index.
func (b *Blockchain) AddPreConfirmedTransaction(entry *TransactionEntry) {
	hash := entry.Transaction.Hash()
	b.txns[*hash] = entry

	b.preConfirmed.TransactionHashes = append(b.preConfirmed.TransactionHashes, hash)
	b.preConfirmed.TransactionCount++
	b.preConfirmed.EventCount += uint64(len(entry.Receipt.Events))
	for i := range entry.Receipt.Events {
		core.AddEventToBloom(b.preConfirmed.EventsBloom, &entry.Receipt.Events[i])
	}
}

// Seal closes the pre-confirmed block: assigns commitments and the block
// hash, flips it to accepted-on-L2, backfills every receipt and indexes the
// block. The caller installs the next pre-confirmed block afterwards.
func (b *Blockchain) Seal(stateDiff *core.StateDiff) (*core.Block, error) {
	block := b.preConfirmed
	if block == nil {
		return nil, ErrBlockNotFound
	}

	var eventElems []*felt.Felt
	for _, txHash := range block.TransactionHashes {
		entry := b.txns[*txHash]
		for i := range entry.Receipt.Events {
			event := &entry.Receipt.Events[i]
			eventElems = append(eventElems, event.From)
			eventElems = append(eventElems, event.Keys...)
		}
	}

	block.TransactionCommitment = core.PedersenCommitment(block.TransactionHashes)
	block.EventCommitment = core.PedersenCommitment(eventElems)
	block.Hash = core.BlockHash(block)
	block.Status = core.BlockAcceptedOnL2

	number := block.Number
	for _, txHash := range block.TransactionHashes {
		entry := b.txns[*txHash]
		entry.BlockNumber = &number
		entry.BlockHash = block.Hash
		entry.Receipt.BlockNumber = &number
		entry.Receipt.BlockHash = block.Hash
		entry.Receipt.FinalityStatus = core.TxnAcceptedOnL2
	}

	b.byNumber[number] = block
	b.byHash[*block.Hash] = block
	if stateDiff != nil {
		b.stateUpdates[number] = stateDiff
	}
	b.height = number
	b.hasBlocks = true
	b.preConfirmed = nil

	b.log.Debugw("Sealed block", "number", number, "hash", block.Hash.ShortString(),
		"txs", block.TransactionCount)
	return block, nil
}

// AcceptOnL1 marks every block from genesis up to the given number that is
// accepted-on-L2 as accepted-on-L1, and mirrors the status onto the
// receipts. Returns the newly accepted hashes, newest first.
func (b *Blockchain) AcceptOnL1(number uint64) ([]*felt.Felt, error) {
	target, ok := b.byNumber[number]
	if !ok {
		return nil, ErrBlockNotFound
	}
	if target.Status == core.BlockAcceptedOnL1 {
		return nil, ErrAlreadyOnL1
	}
	if target.Status == core.BlockRejected {
		return nil, ErrBlockAborted
	}

	var accepted []*felt.Felt
	for n := int64(number); n >= 0; n-- {
		block := b.byNumber[uint64(n)]
		if block == nil || block.Status != core.BlockAcceptedOnL2 {
			continue
		}
		block.Status = core.BlockAcceptedOnL1
		for _, txHash := range block.TransactionHashes {
			b.txns[*txHash].Receipt.FinalityStatus = core.TxnAcceptedOnL1
		}
		accepted = append(accepted, block.Hash)
	}
	return accepted, nil
}

// AbortFrom removes every sealed block with number >= from from the public
// indexes, newest first. The blocks and their transactions stay retrievable
// by the trace subsystem only. Returns the aborted hashes, newest first.
func (b *Blockchain) AbortFrom(from uint64) ([]*felt.Felt, error) {
	if !b.hasBlocks || from > b.height {
		return nil, ErrBlockNotFound
	}

	var abortedHashes []*felt.Felt
	for n := b.height; n >= from; n-- {
		block, ok := b.byNumber[n]
		if !ok {
			return nil, ErrBlockAborted
		}
		block.Status = core.BlockRejected
		for _, txHash := range block.TransactionHashes {
			entry := b.txns[*txHash]
			entry.Receipt.FinalityStatus = core.TxnRejected
			b.abortedTxns[*txHash] = entry
			delete(b.txns, *txHash)
		}
		b.aborted[*block.Hash] = block
		delete(b.byNumber, n)
		delete(b.byHash, *block.Hash)
		delete(b.stateUpdates, n)
		abortedHashes = append(abortedHashes, block.Hash)

		if n == 0 {
			break
		}
	}

	b.height = from - 1
	return abortedHashes, nil
}

// TransactionByHash resolves a non-aborted transaction.
func (b *Blockchain) TransactionByHash(hash *felt.Felt) (*TransactionEntry, error) {
	entry, ok := b.txns[*hash]
	if !ok {
		return nil, ErrTxnNotFound
	}
	return entry, nil
}

// TraceByHash also serves aborted transactions, for debugging.
func (b *Blockchain) TraceByHash(hash *felt.Felt) (*TransactionEntry, error) {
	if entry, ok := b.txns[*hash]; ok {
		return entry, nil
	}
	if entry, ok := b.abortedTxns[*hash]; ok {
		return entry, nil
	}
	return nil, ErrTxnNotFound
}

// TransactionInBlock resolves the index-th transaction of a sealed or
// pre-confirmed block.
func (b *Blockchain) TransactionInBlock(block *core.Block, index uint64) (*TransactionEntry, error) {
	if index >= uint64(len(block.TransactionHashes)) {
		return nil, ErrTxnNotFound
	}
	return b.TransactionByHash(block.TransactionHashes[index])
}

// EntriesOf resolves the entries of every transaction in the block, in
// block order.
func (b *Blockchain) EntriesOf(block *core.Block) []*TransactionEntry {
	entries := make([]*TransactionEntry, 0, len(block.TransactionHashes))
	for _, txHash := range block.TransactionHashes {
		if entry, ok := b.txns[*txHash]; ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// AcceptedEntries returns every transaction living in a sealed block, in
// chain order; the dump file serializes this log.
func (b *Blockchain) AcceptedEntries() []*TransactionEntry {
	if !b.hasBlocks {
		return nil
	}
	var entries []*TransactionEntry
	for n := uint64(0); n <= b.height; n++ {
		block, ok := b.byNumber[n]
		if !ok {
			continue
		}
		entries = append(entries, b.EntriesOf(block)...)
	}
	return entries
}
