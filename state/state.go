// Package state implements the layered devnet state: a fully-applied
// committed level, a per-block diff history used for point-in-time reads and
// block abortion, and a pending overlay collecting the writes of the
// pre-confirmed block. Each layer holds a reference to the one below; reads
// recurse down, writes stay in the top layer.
package state

import (
	"encoding"
	"errors"
	"fmt"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/spf13/pflag"
)

var (
	ErrNoHistory          = errors.New("historical state is not available with state-archive-capacity=none")
	ErrFutureBlock        = errors.New("block not yet sealed")
	ErrScopeAlreadyOpen   = errors.New("a transaction scope is already open")
	ErrCannotAbortGenesis = errors.New("genesis block cannot be aborted")
	ErrUnknownAbortBlock  = errors.New("no sealed block at or above the requested number")
)

// Capacity selects how much history the state retains.
type Capacity uint8

const (
	CapacityNone Capacity = iota
	CapacityFull
)

var (
	_ pflag.Value              = (*Capacity)(nil)
	_ encoding.TextUnmarshaler = (*Capacity)(nil)
)

func (c Capacity) String() string {
	if c == CapacityFull {
		return "full"
	}
	return "none"
}

func (c *Capacity) Set(s string) error {
	switch s {
	case "none":
		*c = CapacityNone
	case "full":
		*c = CapacityFull
	default:
		return fmt.Errorf("unknown state archive capacity %q (known: none, full)", s)
	}
	return nil
}

func (c *Capacity) Type() string {
	return "Capacity"
}

func (c *Capacity) UnmarshalText(text []byte) error {
	return c.Set(string(text))
}

// committedState is the bottom layer: the state as of the latest sealed
// block.
type committedState struct {
	storage     map[core.ContractStorageKey]*felt.Felt
	nonces      map[core.ContractAddress]*felt.Felt
	classHashes map[core.ContractAddress]*felt.Felt
	classes     map[core.ClassHash]*core.DeclaredClass
	compiled    map[core.ClassHash]*felt.Felt
}

func newCommittedState() committedState {
	return committedState{
		storage:     make(map[core.ContractStorageKey]*felt.Felt),
		nonces:      make(map[core.ContractAddress]*felt.Felt),
		classHashes: make(map[core.ContractAddress]*felt.Felt),
		classes:     make(map[core.ClassHash]*core.DeclaredClass),
		compiled:    make(map[core.ClassHash]*felt.Felt),
	}
}

// blockRecord is one history entry: the forward diff a block applied and
// the reverse diff that undoes it (old values, zero meaning absent).
type blockRecord struct {
	number     uint64
	diff       core.StateDiff
	reverse    core.StateDiff
	newClasses []core.ClassHash
}

// Layers owns the three state levels. It is not internally synchronized:
// the sequencer serializes access behind its handle.
type Layers struct {
	archive   Capacity
	committed committedState

	history []*blockRecord

	pending        core.StateDiff
	pendingClasses map[core.ClassHash]*core.DeclaredClass

	origin core.StateReader // fork fallback, may be nil

	scopeOpen  bool
	lastSealed uint64
	hasSealed  bool
}

func New(archive Capacity) *Layers {
	return &Layers{
		archive:        archive,
		committed:      newCommittedState(),
		pending:        core.EmptyStateDiff(),
		pendingClasses: make(map[core.ClassHash]*core.DeclaredClass),
	}
}

// WithOrigin installs a fork origin consulted when a committed read misses.
func (l *Layers) WithOrigin(origin core.StateReader) *Layers {
	l.origin = origin
	return l
}

// LatestSealed returns the number of the last sealed block, false before
// genesis seals.
func (l *Layers) LatestSealed() (uint64, bool) {
	return l.lastSealed, l.hasSealed
}

// PendingDiff exposes the writes accumulated in the pre-confirmed overlay.
func (l *Layers) PendingDiff() *core.StateDiff {
	return &l.pending
}

// SealBlock closes the pending overlay as the diff of the given block:
// records forward and reverse diffs in history, folds the overlay into the
// committed level and resets it. Returns the sealed diff.
func (l *Layers) SealBlock(number uint64) (core.StateDiff, error) {
	if l.scopeOpen {
		return core.StateDiff{}, ErrScopeAlreadyOpen
	}

	record := &blockRecord{
		number:  number,
		diff:    l.pending,
		reverse: l.reverseOf(&l.pending),
	}

	// Fold storage, nonces and deployments.
	for addr, contractStorage := range l.pending.StorageDiffs {
		for key, value := range contractStorage {
			l.committed.storage[core.ContractStorageKey{Address: addr, Key: key}] = value
		}
	}
	for addr, nonce := range l.pending.Nonces {
		l.committed.nonces[addr] = nonce
	}
	for addr, classHash := range l.pending.DeployedContracts {
		l.committed.classHashes[addr] = classHash
	}
	for classHash, compiled := range l.pending.DeclaredV1Classes {
		l.committed.compiled[classHash] = compiled
	}

	// Classes become visible at this block.
	for classHash, declared := range l.pendingClasses {
		declared.At = number
		l.committed.classes[classHash] = declared
		record.newClasses = append(record.newClasses, classHash)
	}

	l.history = append(l.history, record)
	if l.archive == CapacityNone && len(l.history) > 1 {
		l.history = l.history[len(l.history)-1:]
	}

	l.pending = core.EmptyStateDiff()
	l.pendingClasses = make(map[core.ClassHash]*core.DeclaredClass)
	l.lastSealed = number
	l.hasSealed = true
	return record.diff, nil
}

// reverseOf captures the committed values every key of diff currently
// shadows. Zero records an absent entry.
func (l *Layers) reverseOf(diff *core.StateDiff) core.StateDiff {
	reverse := core.EmptyStateDiff()
	for addr, contractStorage := range diff.StorageDiffs {
		for key := range contractStorage {
			old := l.committed.storage[core.ContractStorageKey{Address: addr, Key: key}]
			if old == nil {
				old = &felt.Zero
			}
			reverse.SetStorage(addr, key, old)
		}
	}
	for addr := range diff.Nonces {
		old := l.committed.nonces[addr]
		if old == nil {
			old = &felt.Zero
		}
		reverse.SetNonce(addr, old)
	}
	for addr := range diff.DeployedContracts {
		old := l.committed.classHashes[addr]
		if old == nil {
			old = &felt.Zero
		}
		reverse.SetDeployedContract(addr, old)
	}
	for classHash := range diff.DeclaredV1Classes {
		old := l.committed.compiled[classHash]
		if old == nil {
			old = &felt.Zero
		}
		reverse.DeclareV1(classHash, old)
	}
	return reverse
}

// AbortBlocksFrom reverses every sealed block with number >= from, highest
// first, and drops their history records. The pending overlay is discarded
// with them. Genesis, the first sealed block, is inviolable.
func (l *Layers) AbortBlocksFrom(from uint64) error {
	if l.archive != CapacityFull {
		return ErrNoHistory
	}
	if from == 0 || (len(l.history) > 0 && from == l.history[0].number) {
		return ErrCannotAbortGenesis
	}
	if !l.hasSealed || from > l.lastSealed {
		return ErrUnknownAbortBlock
	}
	if len(l.history) == 0 || l.history[0].number > from {
		// The target is below the retained range: it was already aborted.
		return ErrUnknownAbortBlock
	}

	l.pending = core.EmptyStateDiff()
	l.pendingClasses = make(map[core.ClassHash]*core.DeclaredClass)

	for len(l.history) > 0 {
		record := l.history[len(l.history)-1]
		if record.number < from {
			break
		}
		l.applyReverse(record)
		l.history = l.history[:len(l.history)-1]
	}

	l.lastSealed = from - 1
	return nil
}

func (l *Layers) applyReverse(record *blockRecord) {
	for addr, contractStorage := range record.reverse.StorageDiffs {
		for key, old := range contractStorage {
			storageKey := core.ContractStorageKey{Address: addr, Key: key}
			if old.IsZero() {
				delete(l.committed.storage, storageKey)
			} else {
				l.committed.storage[storageKey] = old
			}
		}
	}
	for addr, old := range record.reverse.Nonces {
		if old.IsZero() {
			delete(l.committed.nonces, addr)
		} else {
			l.committed.nonces[addr] = old
		}
	}
	for addr, old := range record.reverse.DeployedContracts {
		if old.IsZero() {
			delete(l.committed.classHashes, addr)
		} else {
			l.committed.classHashes[addr] = old
		}
	}
	for classHash, old := range record.reverse.DeclaredV1Classes {
		if old.IsZero() {
			delete(l.committed.compiled, classHash)
		} else {
			l.committed.compiled[classHash] = old
		}
	}
	for _, classHash := range record.newClasses {
		delete(l.committed.classes, classHash)
	}
}
