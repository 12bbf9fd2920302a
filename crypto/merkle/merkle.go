package merkle

import (
	"bytes"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ComputeRoot folds a leaf through the sibling path using sorted-pair
// concatenation: at every level the smaller hash is placed first before
// hashing, so proofs carry no left/right position bits.
func ComputeRoot(leaf [32]byte, proof [][32]byte) [32]byte {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed
}

// Verify reports whether the leaf and sibling path recompute the root.
func Verify(root, leaf [32]byte, proof [][32]byte) bool {
	return ComputeRoot(leaf, proof) == root
}

func hashPair(a, b [32]byte) [32]byte {
	var out [32]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(out[:], ethcrypto.Keccak256(a[:], b[:]))
	} else {
		copy(out[:], ethcrypto.Keccak256(b[:], a[:]))
	}
	return out
}
