// Package merkle implements the append-only Merkle tree over move records
// (spec.md §4.2) and the move vault that feeds it.
package merkle

import (
	"fmt"

	"github.com/kasparena/anchorcore/internal/cryptoprim"
	"github.com/kasparena/anchorcore/model"
)

// ProofStep is one element of a Merkle inclusion proof.
type ProofStep struct {
	Position string // "left" or "right"
	Hash     string
}

// Tree is an append-only binary Merkle tree over move leaf hashes. When a
// level has odd cardinality, the last element is paired with itself. The
// root of an empty tree is the empty string.
type Tree struct {
	leaves []string
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// Add appends one leaf hash and returns the tree's new root.
func (t *Tree) Add(leafHex string) string {
	t.leaves = append(t.leaves, leafHex)
	return t.Root()
}

// Root recomputes the root from scratch over the current leaf set. This is
// deliberately not cached: spec.md §8's cumulativity property requires
// that an incrementally-built root equal the from-scratch root over the
// same prefix, and recomputation is the simplest way to guarantee that by
// construction rather than by careful cache invalidation.
func (t *Tree) Root() string {
	return RootOf(t.leaves)
}

// Leaves returns the current leaf hash set (read-only use by callers).
func (t *Tree) Leaves() []string {
	out := make([]string, len(t.leaves))
	copy(out, t.leaves)
	return out
}

// Len reports how many leaves have been added.
func (t *Tree) Len() int {
	return len(t.leaves)
}

// RootOf computes the Merkle root over an explicit leaf slice without
// mutating a Tree, used by the audit verifier to rebuild roots at
// arbitrary move-count boundaries.
func RootOf(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)

		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, cryptoprim.SimpleHashHex([]byte(left+right)))
		}

		level = next
	}

	return level[0]
}

// Proof returns an ordered list of sibling hashes such that iteratively
// folding with simpleHashHex(concat) from the leaf at index reconstructs
// the root.
func Proof(leaves []string, index int) ([]ProofStep, error) {
	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("merkle: index %d out of range [0,%d)", index, len(leaves))
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	var steps []ProofStep
	idx := index

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)

		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}

			if i == idx || i+1 == idx {
				if idx == i {
					steps = append(steps, ProofStep{Position: "right", Hash: right})
				} else {
					steps = append(steps, ProofStep{Position: "left", Hash: left})
				}
			}

			next = append(next, cryptoprim.SimpleHashHex([]byte(left+right)))
		}

		idx /= 2
		level = next
	}

	return steps, nil
}

// VerifyProof folds a leaf hash with its proof steps and reports whether
// the result matches root.
func VerifyProof(leafHex, root string, steps []ProofStep) bool {
	cur := leafHex

	for _, s := range steps {
		if s.Position == "left" {
			cur = cryptoprim.SimpleHashHex([]byte(s.Hash + cur))
		} else {
			cur = cryptoprim.SimpleHashHex([]byte(cur + s.Hash))
		}
	}

	return cur == root
}

// LeafHash is the canonical per-move leaf formula of spec.md §4.2, bound to
// the audit contract: MOVE actions hash {action,x,y,z,timeDelta,
// vrfFragment}; all other actions hash {action,lane,timeDelta,vrfFragment}.
func LeafHash(mv *model.Move) string {
	var payload string

	if mv.IsCoordinateAction() {
		payload = fmt.Sprintf("%s|%.2f|%.2f|%.2f|%d|%x", mv.Action, mv.X, mv.Y, mv.Z, mv.TimeDelta, mv.VrfFragment)
	} else {
		payload = fmt.Sprintf("%s|%d|%d|%x", mv.Action, mv.Lane, mv.TimeDelta, mv.VrfFragment)
	}

	return cryptoprim.SimpleHashHex([]byte(payload))
}
