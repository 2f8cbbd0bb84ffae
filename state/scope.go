package state

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

var _ core.StateReadWriter = (*TxScope)(nil)

// TxScope is the overlay one transaction executes against. Reads fall
// through its own writes to the pending overlay and below; writes stay in
// the scope until Commit merges them into pending. At most one scope is
// open at a time.
type TxScope struct {
	layers  *Layers
	diff    core.StateDiff
	classes map[core.ClassHash]*core.DeclaredClass
	closed  bool
}

func (l *Layers) BeginTxScope() (*TxScope, error) {
	if l.scopeOpen {
		return nil, ErrScopeAlreadyOpen
	}
	l.scopeOpen = true
	return &TxScope{
		layers:  l,
		diff:    core.EmptyStateDiff(),
		classes: make(map[core.ClassHash]*core.DeclaredClass),
	}, nil
}

// Commit merges the scope into the pending overlay and closes it. The
// merged diff is returned so the caller can attach it to the transaction.
func (s *TxScope) Commit() core.StateDiff {
	if s.closed {
		return core.EmptyStateDiff()
	}
	s.layers.pending.Extend(&s.diff)
	for classHash, declared := range s.classes {
		s.layers.pendingClasses[classHash] = declared
	}
	s.close()
	return s.diff
}

// Discard drops the scope's writes and closes it.
func (s *TxScope) Discard() {
	if s.closed {
		return
	}
	s.close()
}

func (s *TxScope) close() {
	s.closed = true
	s.layers.scopeOpen = false
}

// Diff exposes the scope's accumulated writes without closing it; used for
// simulation traces.
func (s *TxScope) Diff() *core.StateDiff {
	return &s.diff
}

func (s *TxScope) ContractStorage(addr, key *felt.Felt) (*felt.Felt, error) {
	if value, ok := s.diff.StorageAt(core.ToContractAddress(addr), core.ToStorageKey(key)); ok {
		return value, nil
	}
	return s.layers.PreConfirmed().ContractStorage(addr, key)
}

func (s *TxScope) ContractNonce(addr *felt.Felt) (*felt.Felt, error) {
	if nonce, ok := s.diff.NonceAt(core.ToContractAddress(addr)); ok {
		return nonce, nil
	}
	return s.layers.PreConfirmed().ContractNonce(addr)
}

func (s *TxScope) ContractClassHash(addr *felt.Felt) (*felt.Felt, error) {
	if classHash, ok := s.diff.ClassHashAt(core.ToContractAddress(addr)); ok {
		return classHash, nil
	}
	return s.layers.PreConfirmed().ContractClassHash(addr)
}

func (s *TxScope) Class(classHash *felt.Felt) (*core.DeclaredClass, error) {
	if declared, ok := s.classes[core.ToClassHash(classHash)]; ok {
		return declared, nil
	}
	return s.layers.PreConfirmed().Class(classHash)
}

func (s *TxScope) CompiledClassHash(classHash *felt.Felt) (*felt.Felt, error) {
	if compiled, ok := s.diff.CompiledClassHash(core.ToClassHash(classHash)); ok {
		return compiled, nil
	}
	return s.layers.PreConfirmed().CompiledClassHash(classHash)
}

func (s *TxScope) SetContractStorage(addr, key, value *felt.Felt) error {
	s.diff.SetStorage(core.ToContractAddress(addr), core.ToStorageKey(key), value)
	return nil
}

func (s *TxScope) SetContractNonce(addr, nonce *felt.Felt) error {
	s.diff.SetNonce(core.ToContractAddress(addr), nonce)
	return nil
}

func (s *TxScope) SetContractClassHash(addr, classHash *felt.Felt) error {
	s.diff.SetDeployedContract(core.ToContractAddress(addr), classHash)
	return nil
}

func (s *TxScope) PutClass(classHash *felt.Felt, class core.Class) error {
	if class.Version() == 0 {
		s.diff.DeclareV0(classHash)
	}
	s.classes[core.ToClassHash(classHash)] = &core.DeclaredClass{Class: class}
	return nil
}

func (s *TxScope) SetCompiledClassHash(classHash, compiledClassHash *felt.Felt) error {
	s.diff.DeclareV1(core.ToClassHash(classHash), compiledClassHash)
	return nil
}
