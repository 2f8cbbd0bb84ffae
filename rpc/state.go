package rpc

import (
	"encoding/json"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
)

// Nonce returns the nonce associated with the given address in the given
// block.
func (h *Handler) Nonce(id BlockID, address *felt.Felt) (*felt.Felt, *jsonrpc.Error) {
	nonce, err := h.sequencer.Nonce(id.toSequencer(), address)
	if err != nil {
		return nil, mapError(err)
	}
	return nonce, nil
}

// StorageAt gets the value of the storage at the given address and key.
func (h *Handler) StorageAt(address, key *felt.Felt, id BlockID) (*felt.Felt, *jsonrpc.Error) {
	value, err := h.sequencer.StorageAt(id.toSequencer(), address, key)
	if err != nil {
		return nil, mapError(err)
	}
	return value, nil
}

// ClassHashAt gets the class hash for the contract deployed at the given
// address in the given block.
func (h *Handler) ClassHashAt(id BlockID, address *felt.Felt) (*felt.Felt, *jsonrpc.Error) {
	classHash, err := h.sequencer.ClassHashAt(id.toSequencer(), address)
	if err != nil {
		return nil, mapError(err)
	}
	return classHash, nil
}

type EntryPoint struct {
	Offset   *felt.Felt `json:"offset,omitempty"`
	Selector *felt.Felt `json:"selector"`
	Index    *uint64    `json:"function_idx,omitempty"`
}

type EntryPoints struct {
	Constructor []EntryPoint `json:"CONSTRUCTOR"`
	External    []EntryPoint `json:"EXTERNAL"`
	L1Handler   []EntryPoint `json:"L1_HANDLER"`
}

type Class struct {
	SierraProgram        []*felt.Felt    `json:"sierra_program,omitempty"`
	Program              string          `json:"program,omitempty"`
	ContractClassVersion string          `json:"contract_class_version,omitempty"`
	EntryPoints          EntryPoints     `json:"entry_points_by_type"`
	Abi                  json.RawMessage `json:"abi,omitempty"`
}

// Class gets the contract class definition in the given block associated
// with the given hash.
func (h *Handler) Class(id BlockID, classHash *felt.Felt) (*Class, *jsonrpc.Error) {
	declared, err := h.sequencer.ClassByHash(id.toSequencer(), classHash)
	if err != nil {
		return nil, mapError(err)
	}
	return adaptClass(declared)
}

// ClassAt gets the contract class definition instantiated by the given
// contract address.
func (h *Handler) ClassAt(id BlockID, address *felt.Felt) (*Class, *jsonrpc.Error) {
	declared, err := h.sequencer.ClassAt(id.toSequencer(), address)
	if err != nil {
		return nil, mapError(err)
	}
	return adaptClass(declared)
}

func adaptClass(declared *core.DeclaredClass) (*Class, *jsonrpc.Error) {
	switch c := declared.Class.(type) {
	case *core.Cairo0Class:
		adaptEntryPoint := func(ep core.EntryPoint) EntryPoint {
			return EntryPoint{
				Offset:   ep.Offset,
				Selector: ep.Selector,
			}
		}
		return &Class{
			Abi:     c.Abi,
			Program: c.Program,
			EntryPoints: EntryPoints{
				Constructor: nonNil(utils.Map(c.Constructors, adaptEntryPoint)),
				External:    nonNil(utils.Map(c.Externals, adaptEntryPoint)),
				L1Handler:   nonNil(utils.Map(c.L1Handlers, adaptEntryPoint)),
			},
		}, nil
	case *core.Cairo1Class:
		adaptEntryPoint := func(ep core.SierraEntryPoint) EntryPoint {
			index := ep.Index
			return EntryPoint{
				Index:    &index,
				Selector: ep.Selector,
			}
		}
		return &Class{
			Abi:                  json.RawMessage(c.Abi),
			SierraProgram:        c.Program,
			ContractClassVersion: c.SemanticVersion,
			EntryPoints: EntryPoints{
				Constructor: nonNil(utils.Map(c.EntryPoints.Constructor, adaptEntryPoint)),
				External:    nonNil(utils.Map(c.EntryPoints.External, adaptEntryPoint)),
				L1Handler:   nonNil(utils.Map(c.EntryPoints.L1Handler, adaptEntryPoint)),
			},
		}, nil
	default:
		return nil, ErrClassHashNotFound
	}
}

// nonNil keeps the API-required entry point arrays present even when
// empty.
func nonNil(entryPoints []EntryPoint) []EntryPoint {
	if entryPoints == nil {
		return []EntryPoint{}
	}
	return entryPoints
}
