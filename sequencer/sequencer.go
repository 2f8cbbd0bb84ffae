// Package sequencer implements the devnet's single actor: it admits,
// validates, executes and commits transactions, seals blocks in the
// configured generation mode, and serves every consistent read under one
// exclusive handle.
package sequencer

import (
	"sync"
	"time"

	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/l1"
	"github.com/0xSpaceShard/starknet-devnet-go/state"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/0xSpaceShard/starknet-devnet-go/vm"
)

// SequencerAddress is the address block headers carry as the block
// producer.
var SequencerAddress, _ = new(felt.Felt).SetString(
	"0x1000000000000000000000000000000000000000000000000000000000000001")

// BlockID identifies a point in the block log.
type BlockID struct {
	Latest       bool
	PreConfirmed bool
	Hash         *felt.Felt
	Number       uint64
	HasNumber    bool
}

func LatestBlockID() BlockID       { return BlockID{Latest: true} }
func PreConfirmedBlockID() BlockID { return BlockID{PreConfirmed: true} }

func NumberBlockID(number uint64) BlockID {
	return BlockID{Number: number, HasNumber: true}
}

func HashBlockID(hash *felt.Felt) BlockID {
	return BlockID{Hash: hash}
}

// ForkReader resolves blocks and transactions the local log does not have
// from the fork origin.
type ForkReader interface {
	BlockByNumber(number uint64) (*core.Block, error)
	BlockByHash(hash *felt.Felt) (*core.Block, error)
	TransactionByHash(hash *felt.Felt) (*blockchain.TransactionEntry, error)
	ForkBlock() uint64
}

// Sequencer owns the mutable handles to the state layers, the block log,
// the transaction store and the messaging broker. All public methods take
// the handle's exclusive lock.
type Sequencer struct {
	mu sync.Mutex

	cfg      Config
	log      utils.Logger
	layers   *state.Layers
	chain    *blockchain.Blockchain
	executor vm.VM

	chainID   *felt.Felt
	gasPrices core.GasPrices // prices of the next sealed block

	fork   ForkReader
	broker *l1.Broker

	accounts   []*Account
	chargeable *Account

	impersonated    map[felt.Felt]struct{}
	autoImpersonate bool

	listeners []Listener

	dumpMode DumpMode
	dumpPath string

	now func() time.Time
}

// New builds a sequencer, predeploys the system contracts and accounts, and
// seals the genesis block.
func New(cfg Config, executor vm.VM, log utils.Logger) (*Sequencer, error) {
	s := &Sequencer{
		cfg:          cfg,
		log:          log,
		chain:        blockchain.New(log),
		layers:       state.New(cfg.Archive),
		executor:     executor,
		chainID:      cfg.ChainID(),
		gasPrices:    cfg.GasPrices.Clone(),
		impersonated: make(map[felt.Felt]struct{}),
		now:          time.Now,
	}

	if err := s.genesis(); err != nil {
		return nil, err
	}
	return s, nil
}

// WithForkReader installs the fork overlay for block and transaction
// lookups. The state-level origin is installed on the layers separately.
func (s *Sequencer) WithForkReader(fork ForkReader) *Sequencer {
	s.fork = fork
	return s
}

// WithStateOrigin installs the fork origin for state reads.
func (s *Sequencer) WithStateOrigin(origin core.StateReader) *Sequencer {
	s.layers.WithOrigin(origin)
	return s
}

// WithDump configures the dump trigger and target path.
func (s *Sequencer) WithDump(mode DumpMode, path string) *Sequencer {
	s.dumpMode = mode
	s.dumpPath = path
	return s
}

// WithClock injects the timestamp source; tests pin it.
func (s *Sequencer) WithClock(now func() time.Time) *Sequencer {
	s.now = now
	return s
}

func (s *Sequencer) Config() Config {
	return s.cfg
}

// genesis predeploys the fee tokens, the UDC and the seeded accounts, then
// seals block 0. The genesis number is offset past the fork block when
// forking.
func (s *Sequencer) genesis() error {
	genesisNumber := uint64(0)
	if s.cfg.Forked() && s.cfg.ForkBlock != nil {
		genesisNumber = *s.cfg.ForkBlock + 1
	}

	scope, err := s.layers.BeginTxScope()
	if err != nil {
		return err
	}
	if err := s.predeploy(scope); err != nil {
		scope.Discard()
		return err
	}
	scope.Commit()

	s.chain.StartPreConfirmed(core.Header{
		Number:           genesisNumber,
		SequencerAddress: SequencerAddress,
		Timestamp:        uint64(s.now().Unix()),
		GasPrices:        s.gasPrices.Clone(),
	})

	_, err = s.sealLocked()
	return err
}

// blockContext assembles the executor's view of the block under
// construction.
func (s *Sequencer) blockContext() *vm.BlockContext {
	pre := s.chain.PreConfirmed()
	return &vm.BlockContext{
		BlockNumber:      pre.Number,
		Timestamp:        pre.Timestamp,
		SequencerAddress: pre.SequencerAddress,
		GasPrices:        pre.GasPrices,
		ChainID:          s.chainID,
	}
}

// sealLocked seals the pre-confirmed block and opens the next one with the
// current gas prices. Callers hold the lock.
func (s *Sequencer) sealLocked() (*core.Block, error) {
	pre := s.chain.PreConfirmed()
	diff, err := s.layers.SealBlock(pre.Number)
	if err != nil {
		return nil, err
	}

	block, err := s.chain.Seal(&diff)
	if err != nil {
		return nil, err
	}

	s.chain.StartPreConfirmed(core.Header{
		Number:           block.Number + 1,
		ParentHash:       block.Hash,
		SequencerAddress: SequencerAddress,
		Timestamp:        uint64(s.now().Unix()),
		GasPrices:        s.gasPrices.Clone(),
	})

	s.notifySealed(block, s.chain.EntriesOf(block))

	if s.dumpMode == DumpOnBlock {
		if err := s.dumpLocked(s.dumpPath); err != nil {
			s.log.Errorw("Dump on block failed", "err", err)
		}
	}
	return block, nil
}

// CreateBlock seals the pre-confirmed block on demand. Sealing an empty
// block is allowed.
func (s *Sequencer) CreateBlock() (*core.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealLocked()
}

// Tick is the periodic generation hook; it seals whatever accumulated,
// empty included.
func (s *Sequencer) Tick() {
	if _, err := s.CreateBlock(); err != nil {
		s.log.Errorw("Periodic block generation failed", "err", err)
	}
}

// BlockByID resolves a block id against the local log, falling back to the
// fork origin for pre-fork numbers and unknown hashes.
func (s *Sequencer) BlockByID(id BlockID) (*core.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockByIDLocked(id)
}

func (s *Sequencer) blockByIDLocked(id BlockID) (*core.Block, error) {
	switch {
	case id.PreConfirmed:
		return s.chain.PreConfirmed(), nil
	case id.Latest:
		return s.chain.Latest()
	case id.Hash != nil:
		block, err := s.chain.BlockByHash(id.Hash)
		if err != nil && s.fork != nil {
			return s.fork.BlockByHash(id.Hash)
		}
		return block, err
	default:
		if s.fork != nil && id.Number <= s.fork.ForkBlock() {
			return s.fork.BlockByNumber(id.Number)
		}
		return s.chain.BlockByNumber(id.Number)
	}
}

// stateByIDLocked resolves the state view a block id denotes.
func (s *Sequencer) stateByIDLocked(id BlockID) (core.StateReader, error) {
	switch {
	case id.PreConfirmed:
		return s.layers.PreConfirmed(), nil
	case id.Latest:
		return s.layers.Committed(), nil
	case id.Hash != nil:
		block, err := s.chain.BlockByHash(id.Hash)
		if err != nil {
			return nil, err
		}
		return s.layers.AtBlock(block.Number)
	default:
		return s.layers.AtBlock(id.Number)
	}
}

// Nonce serves starknet_getNonce.
func (s *Sequencer) Nonce(id BlockID, address *felt.Felt) (*felt.Felt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, err := s.stateByIDLocked(id)
	if err != nil {
		return nil, err
	}
	// An undeployed contract has no nonce to report.
	if _, err := reader.ContractClassHash(address); err != nil {
		return nil, err
	}
	return reader.ContractNonce(address)
}

// StorageAt serves starknet_getStorageAt.
func (s *Sequencer) StorageAt(id BlockID, address, key *felt.Felt) (*felt.Felt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, err := s.stateByIDLocked(id)
	if err != nil {
		return nil, err
	}
	if _, err := reader.ContractClassHash(address); err != nil {
		return nil, err
	}
	return reader.ContractStorage(address, key)
}

// ClassHashAt serves starknet_getClassHashAt.
func (s *Sequencer) ClassHashAt(id BlockID, address *felt.Felt) (*felt.Felt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, err := s.stateByIDLocked(id)
	if err != nil {
		return nil, err
	}
	return reader.ContractClassHash(address)
}

// ClassByHash serves starknet_getClass.
func (s *Sequencer) ClassByHash(id BlockID, classHash *felt.Felt) (*core.DeclaredClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, err := s.stateByIDLocked(id)
	if err != nil {
		return nil, err
	}
	return reader.Class(classHash)
}

// ClassAt serves starknet_getClassAt.
func (s *Sequencer) ClassAt(id BlockID, address *felt.Felt) (*core.DeclaredClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, err := s.stateByIDLocked(id)
	if err != nil {
		return nil, err
	}
	classHash, err := reader.ContractClassHash(address)
	if err != nil {
		return nil, err
	}
	return reader.Class(classHash)
}

// StateUpdate serves starknet_getStateUpdate.
func (s *Sequencer) StateUpdate(id BlockID) (*core.Block, *core.StateDiff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, err := s.blockByIDLocked(id)
	if err != nil {
		return nil, nil, err
	}
	if block.Status == core.BlockPreConfirmed {
		pending := s.layers.PendingDiff()
		return block, pending, nil
	}
	diff, err := s.chain.StateUpdate(block.Number)
	if err != nil {
		return nil, nil, err
	}
	return block, diff, nil
}

// TransactionByHash resolves locally, then against the fork origin.
func (s *Sequencer) TransactionByHash(hash *felt.Felt) (*blockchain.TransactionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactionByHashLocked(hash)
}

func (s *Sequencer) transactionByHashLocked(hash *felt.Felt) (*blockchain.TransactionEntry, error) {
	entry, err := s.chain.TransactionByHash(hash)
	if err != nil && s.fork != nil {
		return s.fork.TransactionByHash(hash)
	}
	return entry, err
}

// TraceByHash also resolves aborted transactions.
func (s *Sequencer) TraceByHash(hash *felt.Felt) (*blockchain.TransactionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.TraceByHash(hash)
}

// TransactionInBlock serves starknet_getTransactionByBlockIdAndIndex.
func (s *Sequencer) TransactionInBlock(id BlockID, index uint64) (*blockchain.TransactionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, err := s.blockByIDLocked(id)
	if err != nil {
		return nil, err
	}
	return s.chain.TransactionInBlock(block, index)
}

// BlockEntries returns a block and its transaction entries in one
// consistent read.
func (s *Sequencer) BlockEntries(id BlockID) (*core.Block, []*blockchain.TransactionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, err := s.blockByIDLocked(id)
	if err != nil {
		return nil, nil, err
	}
	return block, s.chain.EntriesOf(block), nil
}

// Height serves starknet_blockNumber.
func (s *Sequencer) Height() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	height, ok := s.chain.Height()
	if !ok {
		return 0, blockchain.ErrNoBlocks
	}
	return height, nil
}

// LatestBlock serves starknet_blockHashAndNumber.
func (s *Sequencer) LatestBlock() (*core.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.Latest()
}

func (s *Sequencer) ChainID() *felt.Felt {
	return s.chainID
}

// AcceptOnL1 marks the chain up to the identified block as accepted on L1.
func (s *Sequencer) AcceptOnL1(id BlockID) ([]*felt.Felt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.PreConfirmed {
		return nil, blockchain.ErrPreConfirmedTarget
	}
	block, err := s.blockByIDLocked(id)
	if err != nil {
		return nil, err
	}
	if block.Status == core.BlockPreConfirmed {
		return nil, blockchain.ErrPreConfirmedTarget
	}

	hashes, err := s.chain.AcceptOnL1(block.Number)
	if err != nil {
		return nil, err
	}

	var entries []*blockchain.TransactionEntry
	for _, hash := range hashes {
		if accepted, err := s.chain.BlockByHash(hash); err == nil {
			entries = append(entries, s.chain.EntriesOf(accepted)...)
		}
	}
	s.notifyL1Accepted(hashes, entries)
	return hashes, nil
}

// AbortBlocks rolls back every block from the identified one to the tip.
// Their state mutations are reversed and their transactions survive only in
// the trace store.
func (s *Sequencer) AbortBlocks(id BlockID) ([]*felt.Felt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, err := s.blockByIDLocked(id)
	if err != nil {
		return nil, err
	}
	if block.Status == core.BlockPreConfirmed {
		return nil, blockchain.ErrPreConfirmedTarget
	}
	if block.Status == core.BlockRejected {
		return nil, blockchain.ErrBlockAborted
	}
	from := block.Number

	// Gather the transactions about to be removed before the indexes drop
	// them.
	var abortedTxns []*felt.Felt
	if height, ok := s.chain.Height(); ok {
		for n := from; n <= height; n++ {
			if doomed, err := s.chain.BlockByNumber(n); err == nil {
				abortedTxns = append(abortedTxns, doomed.TransactionHashes...)
			}
		}
	}

	if err := s.layers.AbortBlocksFrom(from); err != nil {
		return nil, err
	}

	hashes, err := s.chain.AbortFrom(from)
	if err != nil {
		return nil, err
	}

	latest, err := s.chain.Latest()
	if err != nil {
		return nil, err
	}
	s.chain.StartPreConfirmed(core.Header{
		Number:           latest.Number + 1,
		ParentHash:       latest.Hash,
		SequencerAddress: SequencerAddress,
		Timestamp:        uint64(s.now().Unix()),
		GasPrices:        s.gasPrices.Clone(),
	})

	// hashes are newest-first; the reorg event reports the range oldest..newest.
	reorg := &Reorg{
		FirstHash:   hashes[len(hashes)-1],
		LastHash:    hashes[0],
		FirstNumber: from,
		LastNumber:  from + uint64(len(hashes)) - 1,
		AbortedTxns: abortedTxns,
	}
	s.notifyReorg(reorg)

	return hashes, nil
}

// Restart rebuilds the chain and state from genesis, keeping the
// configuration.
func (s *Sequencer) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chain = blockchain.New(s.log)
	s.layers = state.New(s.cfg.Archive)
	s.impersonated = make(map[felt.Felt]struct{})
	s.autoImpersonate = false
	return s.genesis()
}
