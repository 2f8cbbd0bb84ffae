package core

import (
	"errors"

	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

var (
	ErrContractNotDeployed = errors.New("contract not deployed")
	ErrClassNotFound       = errors.New("class not found")
	ErrNoCompiledClassHash = errors.New("no compiled class hash")
)

// StateReader is the read view of the four state mappings. Storage and
// nonce reads on absent keys return zero; class_at on an undeployed address
// returns ErrContractNotDeployed.
type StateReader interface {
	ContractClassHash(addr *felt.Felt) (*felt.Felt, error)
	ContractNonce(addr *felt.Felt) (*felt.Felt, error)
	ContractStorage(addr, key *felt.Felt) (*felt.Felt, error)
	Class(classHash *felt.Felt) (*DeclaredClass, error)
	CompiledClassHash(classHash *felt.Felt) (*felt.Felt, error)
}

// StateWriter is the mutation surface the executor drives while a
// transaction scope is open.
type StateWriter interface {
	SetContractStorage(addr, key, value *felt.Felt) error
	SetContractNonce(addr, nonce *felt.Felt) error
	SetContractClassHash(addr, classHash *felt.Felt) error
	PutClass(classHash *felt.Felt, class Class) error
	SetCompiledClassHash(classHash, compiledClassHash *felt.Felt) error
}

type StateReadWriter interface {
	StateReader
	StateWriter
}
