package rpc

import (
	"encoding/json"

	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/pkg/errors"
)

// BlockID is the wire form of a block identifier: "latest",
// "pre_confirmed" ("pending" accepted as its legacy alias), or an object
// carrying a number or hash.
type BlockID struct {
	Latest       bool
	PreConfirmed bool
	Hash         *felt.Felt
	Number       uint64
	HasNumber    bool
}

func (id *BlockID) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case "latest":
			id.Latest = true
		case "pending", "pre_confirmed":
			id.PreConfirmed = true
		default:
			return errors.Errorf("unknown block tag %q", tag)
		}
		return nil
	}

	var object struct {
		Hash   *felt.Felt `json:"block_hash"`
		Number *uint64    `json:"block_number"`
	}
	if err := json.Unmarshal(data, &object); err != nil {
		return err
	}
	switch {
	case object.Hash != nil:
		id.Hash = object.Hash
	case object.Number != nil:
		id.Number = *object.Number
		id.HasNumber = true
	default:
		return errors.New("block id must carry block_hash or block_number")
	}
	return nil
}

func (id BlockID) toSequencer() sequencer.BlockID {
	switch {
	case id.Latest:
		return sequencer.LatestBlockID()
	case id.PreConfirmed:
		return sequencer.PreConfirmedBlockID()
	case id.Hash != nil:
		return sequencer.HashBlockID(id.Hash)
	default:
		return sequencer.NumberBlockID(id.Number)
	}
}

// ResourcePrice is the Starknet RPC spec's two-denomination price pair.
type ResourcePrice struct {
	PriceInWei *felt.Felt `json:"price_in_wei"`
	PriceInFri *felt.Felt `json:"price_in_fri"`
}

type BlockHeader struct {
	Hash             *felt.Felt    `json:"block_hash,omitempty"`
	ParentHash       *felt.Felt    `json:"parent_hash"`
	Number           *uint64       `json:"block_number,omitempty"`
	NewRoot          *felt.Felt    `json:"new_root,omitempty"`
	Timestamp        uint64        `json:"timestamp"`
	SequencerAddress *felt.Felt    `json:"sequencer_address"`
	L1GasPrice       ResourcePrice `json:"l1_gas_price"`
	L1DataGasPrice   ResourcePrice `json:"l1_data_gas_price"`
	L2GasPrice       ResourcePrice `json:"l2_gas_price"`
}

type Block struct {
	Status string `json:"status"`
	BlockHeader
	Transactions any `json:"transactions"`
}

func adaptBlockHeader(block *core.Block) BlockHeader {
	header := BlockHeader{
		ParentHash:       block.ParentHash,
		Timestamp:        block.Timestamp,
		SequencerAddress: block.SequencerAddress,
		L1GasPrice: ResourcePrice{
			PriceInWei: block.GasPrices.L1GasPriceWEI,
			PriceInFri: block.GasPrices.L1GasPriceFRI,
		},
		L1DataGasPrice: ResourcePrice{
			PriceInWei: block.GasPrices.L1DataGasPriceWEI,
			PriceInFri: block.GasPrices.L1DataGasPriceFRI,
		},
		L2GasPrice: ResourcePrice{
			PriceInWei: block.GasPrices.L2GasPriceWEI,
			PriceInFri: block.GasPrices.L2GasPriceFRI,
		},
	}
	// The pre-confirmed block carries its number but no hash or root.
	number := block.Number
	header.Number = &number
	if block.Status != core.BlockPreConfirmed {
		header.Hash = block.Hash
		header.NewRoot = block.StateRoot
		if header.NewRoot == nil {
			header.NewRoot = &felt.Zero
		}
	}
	return header
}

func blockStatusString(status core.BlockStatus) string {
	text, _ := status.MarshalText()
	return string(text)
}

func (h *Handler) ChainID() (*felt.Felt, *jsonrpc.Error) {
	return h.sequencer.ChainID(), nil
}

func (h *Handler) BlockNumber() (uint64, *jsonrpc.Error) {
	height, err := h.sequencer.Height()
	if err != nil {
		return 0, ErrNoBlock
	}
	return height, nil
}

type BlockHashAndNumber struct {
	Hash   *felt.Felt `json:"block_hash"`
	Number uint64     `json:"block_number"`
}

func (h *Handler) BlockHashAndNumber() (*BlockHashAndNumber, *jsonrpc.Error) {
	block, err := h.sequencer.LatestBlock()
	if err != nil {
		return nil, ErrNoBlock
	}
	return &BlockHashAndNumber{Hash: block.Hash, Number: block.Number}, nil
}

// Syncing always reports not-syncing: the devnet is its own source of
// truth.
func (h *Handler) Syncing() (bool, *jsonrpc.Error) {
	return false, nil
}

func (h *Handler) blockWithEntries(id BlockID) (*core.Block, []*blockchain.TransactionEntry, *jsonrpc.Error) {
	block, entries, err := h.sequencer.BlockEntries(id.toSequencer())
	if err != nil {
		return nil, nil, mapError(err)
	}
	return block, entries, nil
}

func (h *Handler) BlockWithTxHashes(id BlockID) (*Block, *jsonrpc.Error) {
	block, _, rpcErr := h.blockWithEntries(id)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &Block{
		Status:       blockStatusString(block.Status),
		BlockHeader:  adaptBlockHeader(block),
		Transactions: block.TransactionHashes,
	}, nil
}

func (h *Handler) BlockWithTxs(id BlockID) (*Block, *jsonrpc.Error) {
	block, entries, rpcErr := h.blockWithEntries(id)
	if rpcErr != nil {
		return nil, rpcErr
	}

	transactions := make([]*Transaction, len(entries))
	for i, entry := range entries {
		transactions[i] = AdaptTransaction(entry.Transaction)
	}
	return &Block{
		Status:       blockStatusString(block.Status),
		BlockHeader:  adaptBlockHeader(block),
		Transactions: transactions,
	}, nil
}

type TransactionWithReceipt struct {
	Transaction *Transaction        `json:"transaction"`
	Receipt     *TransactionReceipt `json:"receipt"`
}

func (h *Handler) BlockWithReceipts(id BlockID) (*Block, *jsonrpc.Error) {
	block, entries, rpcErr := h.blockWithEntries(id)
	if rpcErr != nil {
		return nil, rpcErr
	}

	withReceipts := make([]*TransactionWithReceipt, len(entries))
	for i, entry := range entries {
		withReceipts[i] = &TransactionWithReceipt{
			Transaction: AdaptTransaction(entry.Transaction),
			Receipt:     AdaptReceipt(entry.Receipt),
		}
	}
	return &Block{
		Status:       blockStatusString(block.Status),
		BlockHeader:  adaptBlockHeader(block),
		Transactions: withReceipts,
	}, nil
}

func (h *Handler) BlockTransactionCount(id BlockID) (uint64, *jsonrpc.Error) {
	block, _, rpcErr := h.blockWithEntries(id)
	if rpcErr != nil {
		return 0, rpcErr
	}
	return block.TransactionCount, nil
}

// State update wire shapes.
type StorageEntry struct {
	Key   *felt.Felt `json:"key"`
	Value *felt.Felt `json:"value"`
}

type StorageDiff struct {
	Address        *felt.Felt     `json:"address"`
	StorageEntries []StorageEntry `json:"storage_entries"`
}

type NonceUpdate struct {
	ContractAddress *felt.Felt `json:"contract_address"`
	Nonce           *felt.Felt `json:"nonce"`
}

type DeployedContract struct {
	Address   *felt.Felt `json:"address"`
	ClassHash *felt.Felt `json:"class_hash"`
}

type DeclaredClass struct {
	ClassHash         *felt.Felt `json:"class_hash"`
	CompiledClassHash *felt.Felt `json:"compiled_class_hash"`
}

type ThinStateDiff struct {
	StorageDiffs              []StorageDiff      `json:"storage_diffs"`
	Nonces                    []NonceUpdate      `json:"nonces"`
	DeployedContracts         []DeployedContract `json:"deployed_contracts"`
	DeclaredClasses           []DeclaredClass    `json:"declared_classes"`
	DeprecatedDeclaredClasses []*felt.Felt       `json:"deprecated_declared_classes"`
	ReplacedClasses           []DeployedContract `json:"replaced_classes"`
}

type StateUpdate struct {
	BlockHash *felt.Felt    `json:"block_hash,omitempty"`
	OldRoot   *felt.Felt    `json:"old_root"`
	NewRoot   *felt.Felt    `json:"new_root,omitempty"`
	StateDiff ThinStateDiff `json:"state_diff"`
}

func adaptStateDiff(diff *core.StateDiff) ThinStateDiff {
	thin := ThinStateDiff{
		StorageDiffs:              []StorageDiff{},
		Nonces:                    []NonceUpdate{},
		DeployedContracts:         []DeployedContract{},
		DeclaredClasses:           []DeclaredClass{},
		DeprecatedDeclaredClasses: diff.DeclaredV0Classes,
		ReplacedClasses:           []DeployedContract{},
	}
	if thin.DeprecatedDeclaredClasses == nil {
		thin.DeprecatedDeclaredClasses = []*felt.Felt{}
	}
	for addr, contractStorage := range diff.StorageDiffs {
		address := addr
		entries := make([]StorageEntry, 0, len(contractStorage))
		for key, value := range contractStorage {
			k := key
			entries = append(entries, StorageEntry{Key: k.Felt(), Value: value})
		}
		thin.StorageDiffs = append(thin.StorageDiffs, StorageDiff{
			Address:        address.Felt(),
			StorageEntries: entries,
		})
	}
	for addr, nonce := range diff.Nonces {
		address := addr
		thin.Nonces = append(thin.Nonces, NonceUpdate{ContractAddress: address.Felt(), Nonce: nonce})
	}
	for addr, classHash := range diff.DeployedContracts {
		address := addr
		thin.DeployedContracts = append(thin.DeployedContracts, DeployedContract{
			Address:   address.Felt(),
			ClassHash: classHash,
		})
	}
	for classHash, compiled := range diff.DeclaredV1Classes {
		hash := classHash
		thin.DeclaredClasses = append(thin.DeclaredClasses, DeclaredClass{
			ClassHash:         hash.Felt(),
			CompiledClassHash: compiled,
		})
	}
	return thin
}

func (h *Handler) StateUpdate(id BlockID) (*StateUpdate, *jsonrpc.Error) {
	block, diff, err := h.sequencer.StateUpdate(id.toSequencer())
	if err != nil {
		return nil, mapError(err)
	}

	update := &StateUpdate{
		OldRoot:   &felt.Zero,
		StateDiff: adaptStateDiff(diff),
	}
	if block.Status != core.BlockPreConfirmed {
		update.BlockHash = block.Hash
		update.NewRoot = &felt.Zero
	}
	return update, nil
}
