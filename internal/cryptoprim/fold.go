package cryptoprim

import (
	"crypto/sha256"
	"fmt"
)

// FoldBounds mirror spec.md §4.4's validated ranges.
const (
	MinPositions = 1
	MaxPositions = 4096
	MinIterations = 1
	MaxIterations = 32
	MinBlocks    = 1
	MaxBlocks    = 32

	DefaultIterations = 2
	DefaultPositions  = 256
	DefaultBlocks     = 2
)

// FoldError is returned by Fold on bound violations or zero-bit
// extractions, carrying the failing iteration/position per spec.md §7.
type FoldError struct {
	Validation bool // true: bad bounds; false: zero-bit extraction
	Iteration  int
	Detail     string
}

func (e *FoldError) Error() string {
	if e.Validation {
		return fmt.Sprintf("folding validation error: %s", e.Detail)
	}
	return fmt.Sprintf("folding extraction error at iteration %d: %s", e.Iteration, e.Detail)
}

type foldBlock struct {
	bits  []byte
	valid bool
}

// Fold takes two hex strings (hmac and entropy hashes), normalizes both to
// 256-bit blocks, and performs the bounded recursive bit-extraction defined
// in spec.md §4.4. It is part of the audit wire contract and must be
// reproduced exactly.
func Fold(hexA, hexB, seed string) (string, error) {
	return FoldWithParams(hexA, hexB, seed, DefaultPositions, DefaultIterations, DefaultBlocks)
}

// FoldWithParams is Fold with explicit bound parameters, exposed so tests
// (and a future caller needing non-default tuning) can drive the full
// parameter space without re-deriving it.
func FoldWithParams(hexA, hexB, seed string, numPositions, iterations, numBlocks int) (string, error) {
	if numPositions < MinPositions || numPositions > MaxPositions {
		return "", &FoldError{Validation: true, Detail: fmt.Sprintf("numPositions %d out of [%d,%d]", numPositions, MinPositions, MaxPositions)}
	}
	if iterations < MinIterations || iterations > MaxIterations {
		return "", &FoldError{Validation: true, Detail: fmt.Sprintf("iterations %d out of [%d,%d]", iterations, MinIterations, MaxIterations)}
	}
	if numBlocks < MinBlocks || numBlocks > MaxBlocks {
		return "", &FoldError{Validation: true, Detail: fmt.Sprintf("numBlocks %d out of [%d,%d]", numBlocks, MinBlocks, MaxBlocks)}
	}

	blockA := NormalizeHex256(hexA)
	blockB := NormalizeHex256(hexB)

	blocks := make([]foldBlock, numBlocks)
	for i := range blocks {
		if i%2 == 0 {
			blocks[i] = foldBlock{bits: BytesToBits(blockA[:]), valid: true}
		} else {
			blocks[i] = foldBlock{bits: BytesToBits(blockB[:]), valid: true}
		}
	}
	blockBitLen := len(blocks[0].bits) // 256

	seedSum := sha256.Sum256([]byte(seed))
	positions := derivePositions(seedSum[:], numPositions, blockBitLen)

	var bitstring []byte

	for iter := 0; iter < iterations; iter++ {
		extracted := make([]byte, 0, len(positions))

		blockIdx := 0
		for _, pos := range positions {
			// Round-robin across blocks, skipping invalid ones.
			attempts := 0
			for !blocks[blockIdx%numBlocks].valid && attempts < numBlocks {
				blockIdx++
				attempts++
			}
			b := blocks[blockIdx%numBlocks]
			blockIdx++

			if !b.valid {
				continue
			}

			extracted = append(extracted, b.bits[pos%len(b.bits)])
		}

		if len(extracted) == 0 {
			return "", &FoldError{Iteration: iter, Detail: "zero bits extracted"}
		}

		bitstring = extracted

		if iter < iterations-1 {
			nextSeed := BitsToHexString(bitstring)
			positions = derivePositions([]byte(nextSeed), numPositions, blockBitLen)
		}
	}

	whitened := sha256.Sum256([]byte(BitsToHexString(bitstring)))
	return fmt.Sprintf("%x", whitened), nil
}

// derivePositions maps a byte seed to numPositions indices in
// [0, blockBitLen), by repeatedly re-hashing with SHA-256 until enough
// bytes are available.
func derivePositions(seed []byte, numPositions, blockBitLen int) []int {
	positions := make([]int, numPositions)

	needed := numPositions * 2 // 2 bytes per position index
	buf := make([]byte, 0, needed+sha256.Size)

	cur := seed
	for len(buf) < needed {
		sum := sha256.Sum256(cur)
		buf = append(buf, sum[:]...)
		cur = sum[:]
	}

	for i := 0; i < numPositions; i++ {
		v := int(buf[2*i])<<8 | int(buf[2*i+1])
		positions[i] = v % blockBitLen
	}

	return positions
}
