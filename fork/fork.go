// Package fork is the read-through overlay over a remote origin. It is
// consulted only when a local read misses. Storage, nonce and class-hash
// reads are pinned at the fork block and cached for the process lifetime,
// keyed by the query, misses included; classes and blocks fetched by number
// are cached once found. Block and transaction lookups by hash are not
// cached and go to the origin on every call. Writes never reach the origin.
package fork

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/clients/origin"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/pkg/errors"
)

// Overlay resolves state, blocks and transactions from the origin at the
// pinned fork block. It is shared between the sequencer and the RPC facade
// and internally synchronized.
type Overlay struct {
	client    *origin.Client
	forkBlock uint64
	log       utils.SimpleLogger

	mu         sync.Mutex
	feltCache  map[string]*felt.Felt
	classCache map[felt.Felt]*core.DeclaredClass
	blockCache map[uint64]*core.Block
	missCache  map[string]struct{}
}

func NewOverlay(client *origin.Client, forkBlock uint64, log utils.SimpleLogger) *Overlay {
	return &Overlay{
		client:     client,
		forkBlock:  forkBlock,
		log:        log,
		feltCache:  make(map[string]*felt.Felt),
		classCache: make(map[felt.Felt]*core.DeclaredClass),
		blockCache: make(map[uint64]*core.Block),
		missCache:  make(map[string]struct{}),
	}
}

func (o *Overlay) ForkBlock() uint64 {
	return o.forkBlock
}

// cachedFelt memoizes one felt-valued origin query, including its misses.
func (o *Overlay) cachedFelt(key string, fetch func(ctx context.Context) (*felt.Felt, error)) (*felt.Felt, error) {
	o.mu.Lock()
	if value, ok := o.feltCache[key]; ok {
		o.mu.Unlock()
		return value, nil
	}
	if _, ok := o.missCache[key]; ok {
		o.mu.Unlock()
		return nil, errors.Errorf("origin miss for %s", key)
	}
	o.mu.Unlock()

	value, err := fetch(context.Background())

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.missCache[key] = struct{}{}
		return nil, err
	}
	o.feltCache[key] = value
	return value, nil
}

var _ core.StateReader = (*Overlay)(nil)

func (o *Overlay) ContractStorage(addr, key *felt.Felt) (*felt.Felt, error) {
	cacheKey := "storage:" + addr.String() + ":" + key.String()
	return o.cachedFelt(cacheKey, func(ctx context.Context) (*felt.Felt, error) {
		return o.client.StorageAt(ctx, addr, key, o.forkBlock)
	})
}

func (o *Overlay) ContractNonce(addr *felt.Felt) (*felt.Felt, error) {
	return o.cachedFelt("nonce:"+addr.String(), func(ctx context.Context) (*felt.Felt, error) {
		return o.client.Nonce(ctx, addr, o.forkBlock)
	})
}

func (o *Overlay) ContractClassHash(addr *felt.Felt) (*felt.Felt, error) {
	value, err := o.cachedFelt("classhash:"+addr.String(), func(ctx context.Context) (*felt.Felt, error) {
		return o.client.ClassHashAt(ctx, addr, o.forkBlock)
	})
	if err != nil {
		return nil, core.ErrContractNotDeployed
	}
	return value, nil
}

func (o *Overlay) Class(classHash *felt.Felt) (*core.DeclaredClass, error) {
	o.mu.Lock()
	if declared, ok := o.classCache[*classHash]; ok {
		o.mu.Unlock()
		return declared, nil
	}
	o.mu.Unlock()

	raw, err := o.client.ClassByHash(context.Background(), classHash, o.forkBlock)
	if err != nil {
		return nil, core.ErrClassNotFound
	}
	class, err := AdaptClass(raw)
	if err != nil {
		return nil, err
	}
	// Everything on the origin was declared at or before the fork point.
	declared := &core.DeclaredClass{At: o.forkBlock, Class: class}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.classCache[*classHash] = declared
	return declared, nil
}

func (o *Overlay) CompiledClassHash(classHash *felt.Felt) (*felt.Felt, error) {
	// The origin does not expose the compiled class hash mapping; treat it
	// as absent and let local declarations shadow.
	return nil, core.ErrNoCompiledClassHash
}

// AdaptClass converts an origin class definition to the core
// representation; the Sierra program field decides the flavor.
func AdaptClass(raw json.RawMessage) (core.Class, error) {
	var probe struct {
		SierraProgram []*felt.Felt `json:"sierra_program"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, errors.Wrap(err, "probe origin class")
	}

	if len(probe.SierraProgram) > 0 {
		var sierra struct {
			Abi             string                 `json:"abi"`
			SierraProgram   []*felt.Felt           `json:"sierra_program"`
			ContractVersion string                 `json:"contract_class_version"`
			EntryPoints     core.SierraEntryPoints `json:"entry_points_by_type"`
		}
		if err := json.Unmarshal(raw, &sierra); err != nil {
			return nil, errors.Wrap(err, "decode origin sierra class")
		}
		return &core.Cairo1Class{
			Abi:             sierra.Abi,
			Program:         sierra.SierraProgram,
			SemanticVersion: sierra.ContractVersion,
			EntryPoints:     sierra.EntryPoints,
		}, nil
	}

	var legacy struct {
		Abi         json.RawMessage `json:"abi"`
		Program     string          `json:"program"`
		EntryPoints struct {
			External    []core.EntryPoint `json:"EXTERNAL"`
			L1Handler   []core.EntryPoint `json:"L1_HANDLER"`
			Constructor []core.EntryPoint `json:"CONSTRUCTOR"`
		} `json:"entry_points_by_type"`
	}
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, errors.Wrap(err, "decode origin legacy class")
	}
	return &core.Cairo0Class{
		Abi:          legacy.Abi,
		Program:      legacy.Program,
		Externals:    legacy.EntryPoints.External,
		L1Handlers:   legacy.EntryPoints.L1Handler,
		Constructors: legacy.EntryPoints.Constructor,
	}, nil
}

// BlockByNumber serves pre-fork blocks from the origin, cached.
func (o *Overlay) BlockByNumber(number uint64) (*core.Block, error) {
	if number > o.forkBlock {
		return nil, blockchain.ErrBlockNotFound
	}

	o.mu.Lock()
	if block, ok := o.blockCache[number]; ok {
		o.mu.Unlock()
		return block, nil
	}
	o.mu.Unlock()

	remote, err := o.client.BlockByNumber(context.Background(), number)
	if err != nil {
		return nil, blockchain.ErrBlockNotFound
	}
	block := adaptBlock(remote)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.blockCache[number] = block
	return block, nil
}

// BlockByHash resolves a block wherever the origin finds it; the number
// gate does not apply to hash lookups.
func (o *Overlay) BlockByHash(hash *felt.Felt) (*core.Block, error) {
	remote, err := o.client.BlockByHash(context.Background(), hash)
	if err != nil {
		return nil, blockchain.ErrBlockNotFound
	}
	return adaptBlock(remote), nil
}

// TransactionByHash reports only existence; origin transactions are
// returned as opaque entries without local receipts.
func (o *Overlay) TransactionByHash(hash *felt.Felt) (*blockchain.TransactionEntry, error) {
	raw, err := o.client.TransactionByHash(context.Background(), hash)
	if err != nil || raw == nil {
		return nil, blockchain.ErrTxnNotFound
	}
	return &blockchain.TransactionEntry{
		Broadcast: raw,
		Receipt: &core.TransactionReceipt{
			TransactionHash: hash,
			FinalityStatus:  core.TxnAcceptedOnL2,
			ExecutionStatus: core.TxnSucceeded,
		},
	}, nil
}

func adaptBlock(remote *origin.Block) *core.Block {
	status := core.BlockAcceptedOnL2
	if remote.Status == "ACCEPTED_ON_L1" {
		status = core.BlockAcceptedOnL1
	}
	return &core.Block{
		Header: core.Header{
			Hash:             remote.BlockHash,
			ParentHash:       remote.ParentHash,
			Number:           remote.BlockNumber,
			SequencerAddress: remote.SequencerAddress,
			Timestamp:        remote.Timestamp,
			TransactionCount: uint64(len(remote.Transactions)),
		},
		Status:            status,
		TransactionHashes: remote.Transactions,
	}
}
