// Package merkle implements the layered, order-independent Merkle tree used
// to seal batches of checkpoint hashes.
//
// Unlike a Merkle Mountain Range, this tree is rebuilt from scratch for every
// batch: layer 0 is the caller-supplied leaf order, each following layer
// pairs adjacent elements, and an odd element out is promoted unchanged
// rather than duplicated. Pair hashing is order independent, so a proof
// carries no left/right bits — the verifier always sorts the two hashes
// before combining them.
package merkle

import (
	"bytes"
	"errors"

	"github.com/jacqueswww/logproof/internal/keccak"
)

var (
	// ErrLeafNotFound is returned by ProofFor when the requested leaf is not
	// present in layer 0 of the tree.
	ErrLeafNotFound = errors.New("merkle: leaf not found in tree")
	// ErrEmptyLeaves is returned by BuildLayers when called with no leaves.
	ErrEmptyLeaves = errors.New("merkle: no leaves supplied")
)

// Tree holds every layer of a constructed Merkle tree, layer 0 being the
// leaves in their original, caller-supplied order.
type Tree struct {
	Layers [][][]byte
}

// BuildLayers constructs every layer of the tree bottom-up from leaves.
//
// Layer 0 is exactly the input slice (order preserved, duplicates allowed).
// Each subsequent layer halves the previous one, pairing elements at
// positions 2i and 2i+1; an odd element at the end of a layer is promoted
// to the next layer unchanged, not duplicated. Construction stops once a
// layer of length 1 is reached.
func BuildLayers(leaves [][]byte) (Tree, error) {
	if len(leaves) == 0 {
		return Tree{}, ErrEmptyLeaves
	}

	layer := make([][]byte, len(leaves))
	copy(layer, leaves)

	layers := [][][]byte{layer}
	for len(layer) > 1 {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i+1 < len(layer); i += 2 {
			next = append(next, pairHash(layer[i], layer[i+1]))
		}
		if len(layer)%2 == 1 {
			next = append(next, layer[len(layer)-1])
		}
		layers = append(layers, next)
		layer = next
	}

	return Tree{Layers: layers}, nil
}

// Root returns the single element of the tree's topmost layer.
//
// For an empty leaf list, callers should not reach here: BuildLayers
// rejects that case, and the batch worker never builds trees for empty
// collections.
func Root(t Tree) []byte {
	top := t.Layers[len(t.Layers)-1]
	return top[0]
}

// ProofFor returns the ordered list of sibling hashes encountered while
// walking leaf's index up to the root. If, at some layer, the node being
// walked has no sibling (it was the odd one promoted unchanged), no sibling
// hash is emitted for that layer.
func ProofFor(t Tree, leaf []byte) ([][]byte, error) {
	idx := indexOf(t.Layers[0], leaf)
	if idx < 0 {
		return nil, ErrLeafNotFound
	}

	var proof [][]byte
	for layer := 0; layer < len(t.Layers)-1; layer++ {
		cur := t.Layers[layer]
		var sibling int
		if idx%2 == 0 {
			sibling = idx + 1
		} else {
			sibling = idx - 1
		}
		if sibling < len(cur) {
			proof = append(proof, cur[sibling])
		}
		idx = idx / 2
	}
	return proof, nil
}

// ValidateProof recomputes the root from leaf and proof using the same
// order-independent pair hash used during construction, and reports whether
// the result equals root.
func ValidateProof(proof [][]byte, root []byte, leaf []byte) bool {
	h := leaf
	for _, sibling := range proof {
		h = pairHash(h, sibling)
	}
	return bytes.Equal(h, root)
}

// pairHash combines two node hashes order-independently: the lexicographically
// smaller of the two is hashed first. This makes the resulting tree's
// inclusion proofs symmetric, since the verifier never needs to know which
// side of a pair a sibling hash came from.
func pairHash(a, b []byte) []byte {
	if bytes.Compare(a, b) <= 0 {
		return keccak.Sum(a, b)
	}
	return keccak.Sum(b, a)
}

func indexOf(layer [][]byte, leaf []byte) int {
	for i, v := range layer {
		if bytes.Equal(v, leaf) {
			return i
		}
	}
	return -1
}
