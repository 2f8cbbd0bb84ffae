package core

import (
	"encoding/json"

	"github.com/0xSpaceShard/starknet-devnet-go/core/crypto"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/pkg/errors"
)

// Class is a contract class in one of its two flavors. Equality is by class
// hash.
type Class interface {
	Version() uint64
	Hash() (*felt.Felt, error)
}

// DeclaredClass records when a class entered the state, so lookups at
// historical blocks can refuse classes declared later.
type DeclaredClass struct {
	At    uint64
	Class Class
}

type EntryPoint struct {
	Selector *felt.Felt `json:"selector"`
	Offset   *felt.Felt `json:"offset"`
}

// Cairo0Class is a legacy (pre-Sierra) class.
type Cairo0Class struct {
	Abi          json.RawMessage `json:"abi"`
	Externals    []EntryPoint    `json:"entry_points_by_type_external"`
	L1Handlers   []EntryPoint    `json:"entry_points_by_type_l1_handler"`
	Constructors []EntryPoint    `json:"entry_points_by_type_constructor"`
	Program      string          `json:"program"`
}

func (c *Cairo0Class) Version() uint64 {
	return 0
}

// Hash digests the canonical (ordered-keys) form of the class: Keccak of the
// program, Pedersen over the entry-point tables.
func (c *Cairo0Class) Hash() (*felt.Felt, error) {
	programBytes, err := canonicalJSON([]byte(c.Program))
	if err != nil {
		return nil, errors.Wrap(err, "canonicalize cairo0 program")
	}
	programHash := crypto.StarknetKeccak(programBytes)

	return crypto.PedersenArray(
		&felt.Zero, // api version
		entryPointsHash(c.Externals),
		entryPointsHash(c.L1Handlers),
		entryPointsHash(c.Constructors),
		programHash,
	), nil
}

func entryPointsHash(entryPoints []EntryPoint) *felt.Felt {
	elems := make([]*felt.Felt, 0, len(entryPoints)*2)
	for _, ep := range entryPoints {
		elems = append(elems, ep.Selector, ep.Offset)
	}
	return crypto.PedersenArray(elems...)
}

// canonicalJSON re-serializes a JSON document with object keys sorted, the
// form class hashes are defined over. Non-JSON input hashes as-is.
func canonicalJSON(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return raw, nil //nolint:nilerr // raw (non-JSON) programs hash byte-wise
	}
	return json.Marshal(decoded)
}

type SierraEntryPoint struct {
	Index    uint64     `json:"function_idx"`
	Selector *felt.Felt `json:"selector"`
}

type SierraEntryPoints struct {
	Constructor []SierraEntryPoint `json:"CONSTRUCTOR"`
	External    []SierraEntryPoint `json:"EXTERNAL"`
	L1Handler   []SierraEntryPoint `json:"L1_HANDLER"`
}

// Cairo1Class is a Sierra class. Compiled carries the casm produced at
// declaration time, when available.
type Cairo1Class struct {
	Abi             string            `json:"abi"`
	EntryPoints     SierraEntryPoints `json:"entry_points_by_type"`
	Program         []*felt.Felt      `json:"sierra_program"`
	SemanticVersion string            `json:"contract_class_version"`
	Compiled        json.RawMessage   `json:"-"`
}

var sierraVersionPrefix = new(felt.Felt).SetBytes([]byte("CONTRACT_CLASS_V0.1.0"))

func (c *Cairo1Class) Version() uint64 {
	return 1
}

// Hash digests the Sierra program and ABI with Poseidon.
func (c *Cairo1Class) Hash() (*felt.Felt, error) {
	return crypto.PoseidonArray(
		sierraVersionPrefix,
		sierraEntryPointsHash(c.EntryPoints.External),
		sierraEntryPointsHash(c.EntryPoints.L1Handler),
		sierraEntryPointsHash(c.EntryPoints.Constructor),
		crypto.StarknetKeccak([]byte(c.Abi)),
		crypto.PoseidonArray(c.Program...),
	), nil
}

func sierraEntryPointsHash(entryPoints []SierraEntryPoint) *felt.Felt {
	elems := make([]*felt.Felt, 0, len(entryPoints)*2)
	for _, ep := range entryPoints {
		elems = append(elems, ep.Selector, new(felt.Felt).SetUint64(ep.Index))
	}
	return crypto.PoseidonArray(elems...)
}
