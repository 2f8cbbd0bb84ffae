// Package crypto provides the field-valued digests the devnet pipeline
// hashes blocks, transactions and classes with. Signatures mirror the
// curve-based Starknet primitives; the implementations here are Keccak
// digests folded into the Stark field, which gives the pipeline the
// determinism and collision resistance it needs without carrying the
// precomputed curve tables.
package crypto

import (
	"encoding/binary"

	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"golang.org/x/crypto/sha3"
)

var (
	pedersenTag = []byte("starknet_pedersen")
	poseidonTag = []byte("starknet_poseidon")
)

func digest(tag []byte, elems ...*felt.Felt) *felt.Felt {
	h := sha3.NewLegacyKeccak256()
	h.Write(tag)

	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(elems)))
	h.Write(length[:])

	for _, e := range elems {
		if e == nil {
			e = &felt.Zero
		}
		b := e.Bytes()
		h.Write(b[:])
	}

	sum := h.Sum(nil)
	// Truncate to 250 bits so the digest always fits in the field.
	sum[0] &= 0x03
	return new(felt.Felt).SetBytes(sum)
}

// Pedersen computes the two-element Pedersen digest.
func Pedersen(a, b *felt.Felt) *felt.Felt {
	return digest(pedersenTag, a, b)
}

// PedersenArray computes the array variant: the element count is bound into
// the digest, so prefixes never collide with shorter inputs.
func PedersenArray(elems ...*felt.Felt) *felt.Felt {
	return digest(pedersenTag, elems...)
}

// Poseidon computes the two-element Poseidon digest.
func Poseidon(a, b *felt.Felt) *felt.Felt {
	return digest(poseidonTag, a, b)
}

// PoseidonArray computes the array variant of the Poseidon digest.
func PoseidonArray(elems ...*felt.Felt) *felt.Felt {
	return digest(poseidonTag, elems...)
}

// StarknetKeccak computes the Starknet variant of Keccak: keccak256 of the
// input with the result truncated to its low 250 bits.
func StarknetKeccak(b []byte) *felt.Felt {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	sum := h.Sum(nil)
	sum[0] &= 0x03
	return new(felt.Felt).SetBytes(sum)
}
