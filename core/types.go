package core

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

// ContractAddress, ClassHash and StorageKey are distinct newtypes over Felt.
// They are comparable and usable as map keys; JSON and text codecs delegate
// to the underlying felt so map keys serialize as canonical hex.

type ContractAddress felt.Felt

func ToContractAddress(f *felt.Felt) ContractAddress {
	return ContractAddress(*f)
}

func (a *ContractAddress) Felt() *felt.Felt {
	return (*felt.Felt)(a)
}

func (a ContractAddress) String() string {
	f := felt.Felt(a)
	return f.String()
}

func (a ContractAddress) MarshalText() ([]byte, error) {
	f := felt.Felt(a)
	return f.MarshalText()
}

func (a *ContractAddress) UnmarshalText(text []byte) error {
	return (*felt.Felt)(a).UnmarshalText(text)
}

type ClassHash felt.Felt

func ToClassHash(f *felt.Felt) ClassHash {
	return ClassHash(*f)
}

func (h *ClassHash) Felt() *felt.Felt {
	return (*felt.Felt)(h)
}

func (h ClassHash) String() string {
	f := felt.Felt(h)
	return f.String()
}

func (h ClassHash) MarshalText() ([]byte, error) {
	f := felt.Felt(h)
	return f.MarshalText()
}

func (h *ClassHash) UnmarshalText(text []byte) error {
	return (*felt.Felt)(h).UnmarshalText(text)
}

type StorageKey felt.Felt

func ToStorageKey(f *felt.Felt) StorageKey {
	return StorageKey(*f)
}

func (k *StorageKey) Felt() *felt.Felt {
	return (*felt.Felt)(k)
}

func (k StorageKey) String() string {
	f := felt.Felt(k)
	return f.String()
}

func (k StorageKey) MarshalText() ([]byte, error) {
	f := felt.Felt(k)
	return f.MarshalText()
}

func (k *StorageKey) UnmarshalText(text []byte) error {
	return (*felt.Felt)(k).UnmarshalText(text)
}

// ContractStorageKey addresses one storage cell of one contract.
type ContractStorageKey struct {
	Address ContractAddress
	Key     StorageKey
}
