package state

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

var (
	_ core.StateReader = (*committedReader)(nil)
	_ core.StateReader = (*pendingReader)(nil)
	_ core.StateReader = (*historicalReader)(nil)
)

// Committed returns the read view at the latest sealed block.
func (l *Layers) Committed() core.StateReader {
	return &committedReader{layers: l}
}

// PreConfirmed returns the read view including the pending overlay.
func (l *Layers) PreConfirmed() core.StateReader {
	return &pendingReader{layers: l}
}

// AtBlock returns the read view at a past sealed block. Only available with
// a full archive, except for the latest block itself.
func (l *Layers) AtBlock(number uint64) (core.StateReader, error) {
	if !l.hasSealed || number > l.lastSealed {
		return nil, ErrFutureBlock
	}
	if number == l.lastSealed {
		return l.Committed(), nil
	}
	if l.archive != CapacityFull {
		return nil, ErrNoHistory
	}
	return &historicalReader{layers: l, number: number}, nil
}

type committedReader struct {
	layers *Layers
}

func (r *committedReader) ContractStorage(addr, key *felt.Felt) (*felt.Felt, error) {
	storageKey := core.ContractStorageKey{
		Address: core.ToContractAddress(addr),
		Key:     core.ToStorageKey(key),
	}
	if value, ok := r.layers.committed.storage[storageKey]; ok {
		return value, nil
	}
	if r.layers.origin != nil {
		if value, err := r.layers.origin.ContractStorage(addr, key); err == nil {
			return value, nil
		}
	}
	return &felt.Zero, nil
}

func (r *committedReader) ContractNonce(addr *felt.Felt) (*felt.Felt, error) {
	if nonce, ok := r.layers.committed.nonces[core.ToContractAddress(addr)]; ok {
		return nonce, nil
	}
	if r.layers.origin != nil {
		if nonce, err := r.layers.origin.ContractNonce(addr); err == nil {
			return nonce, nil
		}
	}
	return &felt.Zero, nil
}

func (r *committedReader) ContractClassHash(addr *felt.Felt) (*felt.Felt, error) {
	if classHash, ok := r.layers.committed.classHashes[core.ToContractAddress(addr)]; ok {
		return classHash, nil
	}
	if r.layers.origin != nil {
		if classHash, err := r.layers.origin.ContractClassHash(addr); err == nil {
			return classHash, nil
		}
	}
	return nil, core.ErrContractNotDeployed
}

func (r *committedReader) Class(classHash *felt.Felt) (*core.DeclaredClass, error) {
	if declared, ok := r.layers.committed.classes[core.ToClassHash(classHash)]; ok {
		return declared, nil
	}
	if r.layers.origin != nil {
		if declared, err := r.layers.origin.Class(classHash); err == nil {
			return declared, nil
		}
	}
	return nil, core.ErrClassNotFound
}

func (r *committedReader) CompiledClassHash(classHash *felt.Felt) (*felt.Felt, error) {
	if compiled, ok := r.layers.committed.compiled[core.ToClassHash(classHash)]; ok {
		return compiled, nil
	}
	if r.layers.origin != nil {
		if compiled, err := r.layers.origin.CompiledClassHash(classHash); err == nil {
			return compiled, nil
		}
	}
	return nil, core.ErrNoCompiledClassHash
}

type pendingReader struct {
	layers *Layers
}

func (r *pendingReader) ContractStorage(addr, key *felt.Felt) (*felt.Felt, error) {
	if value, ok := r.layers.pending.StorageAt(core.ToContractAddress(addr), core.ToStorageKey(key)); ok {
		return value, nil
	}
	return (&committedReader{layers: r.layers}).ContractStorage(addr, key)
}

func (r *pendingReader) ContractNonce(addr *felt.Felt) (*felt.Felt, error) {
	if nonce, ok := r.layers.pending.NonceAt(core.ToContractAddress(addr)); ok {
		return nonce, nil
	}
	return (&committedReader{layers: r.layers}).ContractNonce(addr)
}

func (r *pendingReader) ContractClassHash(addr *felt.Felt) (*felt.Felt, error) {
	if classHash, ok := r.layers.pending.ClassHashAt(core.ToContractAddress(addr)); ok {
		return classHash, nil
	}
	return (&committedReader{layers: r.layers}).ContractClassHash(addr)
}

func (r *pendingReader) Class(classHash *felt.Felt) (*core.DeclaredClass, error) {
	if declared, ok := r.layers.pendingClasses[core.ToClassHash(classHash)]; ok {
		return declared, nil
	}
	return (&committedReader{layers: r.layers}).Class(classHash)
}

func (r *pendingReader) CompiledClassHash(classHash *felt.Felt) (*felt.Felt, error) {
	if compiled, ok := r.layers.pending.CompiledClassHash(core.ToClassHash(classHash)); ok {
		return compiled, nil
	}
	return (&committedReader{layers: r.layers}).CompiledClassHash(classHash)
}

// historicalReader serves reads at a past block by looking for the oldest
// reverse record above it: the reverse diff of block N holds the value as
// of N-1.
type historicalReader struct {
	layers *Layers
	number uint64
}

func (r *historicalReader) ContractStorage(addr, key *felt.Felt) (*felt.Felt, error) {
	address := core.ToContractAddress(addr)
	storageKey := core.ToStorageKey(key)
	for _, record := range r.layers.history {
		if record.number <= r.number {
			continue
		}
		if old, ok := record.reverse.StorageAt(address, storageKey); ok {
			return old, nil
		}
	}
	return (&committedReader{layers: r.layers}).ContractStorage(addr, key)
}

func (r *historicalReader) ContractNonce(addr *felt.Felt) (*felt.Felt, error) {
	address := core.ToContractAddress(addr)
	for _, record := range r.layers.history {
		if record.number <= r.number {
			continue
		}
		if old, ok := record.reverse.NonceAt(address); ok {
			return old, nil
		}
	}
	return (&committedReader{layers: r.layers}).ContractNonce(addr)
}

func (r *historicalReader) ContractClassHash(addr *felt.Felt) (*felt.Felt, error) {
	address := core.ToContractAddress(addr)
	for _, record := range r.layers.history {
		if record.number <= r.number {
			continue
		}
		if old, ok := record.reverse.ClassHashAt(address); ok {
			if old.IsZero() {
				return nil, core.ErrContractNotDeployed
			}
			return old, nil
		}
	}
	return (&committedReader{layers: r.layers}).ContractClassHash(addr)
}

func (r *historicalReader) Class(classHash *felt.Felt) (*core.DeclaredClass, error) {
	declared, err := (&committedReader{layers: r.layers}).Class(classHash)
	if err != nil {
		return nil, err
	}
	if declared.At > r.number {
		return nil, core.ErrClassNotFound
	}
	return declared, nil
}

func (r *historicalReader) CompiledClassHash(classHash *felt.Felt) (*felt.Felt, error) {
	hash := core.ToClassHash(classHash)
	for _, record := range r.layers.history {
		if record.number <= r.number {
			continue
		}
		if old, ok := record.reverse.CompiledClassHash(hash); ok {
			if old.IsZero() {
				return nil, core.ErrNoCompiledClassHash
			}
			return old, nil
		}
	}
	return (&committedReader{layers: r.layers}).CompiledClassHash(classHash)
}
