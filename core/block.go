package core

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core/crypto"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/bits-and-blooms/bloom/v3"
	"github.com/pkg/errors"
)

type BlockStatus uint8

const (
	BlockPreConfirmed BlockStatus = iota
	BlockAcceptedOnL2
	BlockAcceptedOnL1
	BlockRejected
)

func (s BlockStatus) MarshalText() ([]byte, error) {
	switch s {
	case BlockPreConfirmed:
		return []byte("PRE_CONFIRMED"), nil
	case BlockAcceptedOnL2:
		return []byte("ACCEPTED_ON_L2"), nil
	case BlockAcceptedOnL1:
		return []byte("ACCEPTED_ON_L1"), nil
	case BlockRejected:
		return []byte("REJECTED"), nil
	default:
		return nil, errors.New("unknown block status")
	}
}

// GasPrices carries the unit prices for every purchasable resource, in both
// fee denominations.
type GasPrices struct {
	L1GasPriceWEI     *felt.Felt `json:"l1_gas_price_wei" validate:"required"`
	L1GasPriceFRI     *felt.Felt `json:"l1_gas_price_fri" validate:"required"`
	L1DataGasPriceWEI *felt.Felt `json:"l1_data_gas_price_wei" validate:"required"`
	L1DataGasPriceFRI *felt.Felt `json:"l1_data_gas_price_fri" validate:"required"`
	L2GasPriceWEI     *felt.Felt `json:"l2_gas_price_wei" validate:"required"`
	L2GasPriceFRI     *felt.Felt `json:"l2_gas_price_fri" validate:"required"`
}

func (g GasPrices) Clone() GasPrices {
	return GasPrices{
		L1GasPriceWEI:     g.L1GasPriceWEI.Clone(),
		L1GasPriceFRI:     g.L1GasPriceFRI.Clone(),
		L1DataGasPriceWEI: g.L1DataGasPriceWEI.Clone(),
		L1DataGasPriceFRI: g.L1DataGasPriceFRI.Clone(),
		L2GasPriceWEI:     g.L2GasPriceWEI.Clone(),
		L2GasPriceFRI:     g.L2GasPriceFRI.Clone(),
	}
}

type Header struct {
	Hash             *felt.Felt
	ParentHash       *felt.Felt
	Number           uint64
	SequencerAddress *felt.Felt
	Timestamp        uint64
	TransactionCount uint64
	EventCount       uint64
	StateRoot        *felt.Felt
	GasPrices        GasPrices

	TransactionCommitment *felt.Felt
	EventCommitment       *felt.Felt
}

// Block is one entry of the block log. The pre-confirmed block has no Hash
// and status BlockPreConfirmed; everything else is sealed.
type Block struct {
	Header
	Status            BlockStatus
	TransactionHashes []*felt.Felt
	EventsBloom       *bloom.BloomFilter
}

const (
	eventsBloomCapacity = 2048
	eventsBloomFPRate   = 0.01
)

func NewEventsBloom() *bloom.BloomFilter {
	return bloom.NewWithEstimates(eventsBloomCapacity, eventsBloomFPRate)
}

// AddEventToBloom registers an event's origin and keys, the dimensions the
// getEvents filter matches on.
func AddEventToBloom(filter *bloom.BloomFilter, event *Event) {
	if event.From != nil {
		filter.Add(event.From.Marshal())
	}
	for _, key := range event.Keys {
		filter.Add(key.Marshal())
	}
}

// PedersenCommitment folds an ordered element list into one commitment
// felt.
func PedersenCommitment(elems []*felt.Felt) *felt.Felt {
	return crypto.PedersenArray(elems...)
}

// BlockHash derives the sealed block's hash from its header. The two zero
// slots are the protocol's reserved fields.
func BlockHash(b *Block) *felt.Felt {
	txCommitment := b.TransactionCommitment
	if txCommitment == nil {
		txCommitment = crypto.PedersenArray(b.TransactionHashes...)
	}
	eventCommitment := b.EventCommitment
	if eventCommitment == nil {
		eventCommitment = &felt.Zero
	}
	stateRoot := b.StateRoot
	if stateRoot == nil {
		stateRoot = &felt.Zero
	}
	parentHash := b.ParentHash
	if parentHash == nil {
		parentHash = &felt.Zero
	}

	return crypto.PedersenArray(
		new(felt.Felt).SetUint64(b.Number),
		stateRoot,
		b.SequencerAddress,
		new(felt.Felt).SetUint64(b.Timestamp),
		new(felt.Felt).SetUint64(b.TransactionCount),
		txCommitment,
		new(felt.Felt).SetUint64(b.EventCount),
		eventCommitment,
		&felt.Zero,
		&felt.Zero,
		parentHash,
	)
}
