package core

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

// StateDiff is the materialized delta a transaction or block applies over
// the four state mappings, plus the classes it declares. Diffs compose by
// pointwise override via Extend; composition is associative, not
// commutative.
type StateDiff struct {
	// StorageDiffs maps contract address -> storage key -> new value.
	StorageDiffs map[ContractAddress]map[StorageKey]*felt.Felt `json:"storage_diffs"`
	// Nonces maps contract address -> new nonce.
	Nonces map[ContractAddress]*felt.Felt `json:"nonces"`
	// DeployedContracts maps contract address -> class hash it instantiates.
	DeployedContracts map[ContractAddress]*felt.Felt `json:"deployed_contracts"`
	// DeclaredV1Classes maps a Sierra class hash -> its compiled class hash.
	DeclaredV1Classes map[ClassHash]*felt.Felt `json:"declared_v1_classes"`
	// DeclaredV0Classes lists legacy class hashes declared in this diff.
	DeclaredV0Classes []*felt.Felt `json:"declared_v0_classes"`
}

func EmptyStateDiff() StateDiff {
	return StateDiff{
		StorageDiffs:      make(map[ContractAddress]map[StorageKey]*felt.Felt),
		Nonces:            make(map[ContractAddress]*felt.Felt),
		DeployedContracts: make(map[ContractAddress]*felt.Felt),
		DeclaredV1Classes: make(map[ClassHash]*felt.Felt),
	}
}

func (d *StateDiff) SetStorage(addr ContractAddress, key StorageKey, value *felt.Felt) {
	contractStorage, ok := d.StorageDiffs[addr]
	if !ok {
		contractStorage = make(map[StorageKey]*felt.Felt)
		d.StorageDiffs[addr] = contractStorage
	}
	contractStorage[key] = value.Clone()
}

func (d *StateDiff) SetNonce(addr ContractAddress, nonce *felt.Felt) {
	d.Nonces[addr] = nonce.Clone()
}

func (d *StateDiff) SetDeployedContract(addr ContractAddress, classHash *felt.Felt) {
	d.DeployedContracts[addr] = classHash.Clone()
}

func (d *StateDiff) DeclareV0(classHash *felt.Felt) {
	d.DeclaredV0Classes = append(d.DeclaredV0Classes, classHash.Clone())
}

func (d *StateDiff) DeclareV1(classHash ClassHash, compiledClassHash *felt.Felt) {
	d.DeclaredV1Classes[classHash] = compiledClassHash.Clone()
}

func (d *StateDiff) StorageAt(addr ContractAddress, key StorageKey) (*felt.Felt, bool) {
	if contractStorage, ok := d.StorageDiffs[addr]; ok {
		if value, ok := contractStorage[key]; ok {
			return value, true
		}
	}
	return nil, false
}

func (d *StateDiff) NonceAt(addr ContractAddress) (*felt.Felt, bool) {
	nonce, ok := d.Nonces[addr]
	return nonce, ok
}

func (d *StateDiff) ClassHashAt(addr ContractAddress) (*felt.Felt, bool) {
	classHash, ok := d.DeployedContracts[addr]
	return classHash, ok
}

func (d *StateDiff) CompiledClassHash(classHash ClassHash) (*felt.Felt, bool) {
	compiled, ok := d.DeclaredV1Classes[classHash]
	return compiled, ok
}

// Extend overrides this diff pointwise with the entries of other.
func (d *StateDiff) Extend(other *StateDiff) {
	for addr, otherStorage := range other.StorageDiffs {
		contractStorage, ok := d.StorageDiffs[addr]
		if !ok {
			contractStorage = make(map[StorageKey]*felt.Felt, len(otherStorage))
			d.StorageDiffs[addr] = contractStorage
		}
		for key, value := range otherStorage {
			contractStorage[key] = value.Clone()
		}
	}
	for addr, nonce := range other.Nonces {
		d.Nonces[addr] = nonce.Clone()
	}
	for addr, classHash := range other.DeployedContracts {
		d.DeployedContracts[addr] = classHash.Clone()
	}
	for classHash, compiled := range other.DeclaredV1Classes {
		d.DeclaredV1Classes[classHash] = compiled.Clone()
	}
	d.DeclaredV0Classes = append(d.DeclaredV0Classes, other.DeclaredV0Classes...)
}

func (d *StateDiff) IsEmpty() bool {
	return len(d.StorageDiffs) == 0 &&
		len(d.Nonces) == 0 &&
		len(d.DeployedContracts) == 0 &&
		len(d.DeclaredV1Classes) == 0 &&
		len(d.DeclaredV0Classes) == 0
}

// Length counts the individual entries, the measure the RPC state update
// reports.
func (d *StateDiff) Length() uint64 {
	var count uint64
	for _, contractStorage := range d.StorageDiffs {
		count += uint64(len(contractStorage))
	}
	count += uint64(len(d.Nonces))
	count += uint64(len(d.DeployedContracts))
	count += uint64(len(d.DeclaredV1Classes))
	count += uint64(len(d.DeclaredV0Classes))
	return count
}

// Clone deep-copies the diff; Extend already clones every felt it takes.
func (d *StateDiff) Clone() (StateDiff, error) {
	clone := EmptyStateDiff()
	clone.Extend(d)
	return clone, nil
}
