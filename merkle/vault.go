package merkle

import (
	"encoding/binary"
	"hash/fnv"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/greatroar/blobloom"

	"github.com/kasparena/anchorcore/anchorerrors"
	"github.com/kasparena/anchorcore/model"
)

// MoveVault is the append-only store of moves recorded during a match. It
// owns the Merkle tree over those moves (spec.md §3 "AnchorOrchestrator
// exclusively owns ... the Merkle tree, move vault"). Moves are appended
// strictly in the order RecordMove is called (spec.md §5).
//
// Grounded on services/blockassembly/subtreeprocessor/queue.go's
// append-only LockFreeQueue, generalized to carry full Move records and a
// Merkle accumulator instead of a fee-sorted tx queue.
type MoveVault struct {
	mu       sync.Mutex
	moves    []model.Move
	tree     *Tree
	emitted  int // count of moves already drained into a sent heartbeat
	seen     *blobloom.Filter
	nextSeq  uint32
}

// NewMoveVault returns an empty vault sized for an expected move count
// (used only to size the duplicate-detection filter; the vault itself
// grows without bound).
func NewMoveVault(expectedMoves int) *MoveVault {
	if expectedMoves <= 0 {
		expectedMoves = 1024
	}

	return &MoveVault{
		tree: New(),
		seen: blobloom.NewOptimized(blobloom.Config{
			Capacity: uint64(expectedMoves),
			FPRate:   0.01,
		}),
	}
}

func moveFingerprint(mv *model.Move) uint64 {
	h := fnv.New64a()
	var seqBuf [4]byte
	binary.BigEndian.PutUint32(seqBuf[:], mv.Sequence)
	_, _ = h.Write(seqBuf[:])
	_, _ = h.Write(mv.VrfFragment[:])
	return h.Sum64()
}

// RecordMove appends a move to the vault and folds its leaf hash into the
// Merkle tree. It rejects a re-emitted sequence number fast, via a bloom
// filter, ahead of the O(n) check an audit replay would otherwise need.
func (v *MoveVault) RecordMove(mv model.Move) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if mv.Sequence != v.nextSeq {
		return anchorerrors.New(anchorerrors.CodeMoveRunTruncated,
			"move sequence %d is not the next expected sequence %d", mv.Sequence, v.nextSeq)
	}

	fp := moveFingerprint(&mv)
	if v.seen.Has(fp) {
		return anchorerrors.New(anchorerrors.CodeMoveRunTruncated, "move %d already recorded", mv.Sequence)
	}
	v.seen.Add(fp)

	v.moves = append(v.moves, mv)
	v.tree.Add(LeafHash(&mv))
	v.nextSeq++

	return nil
}

// DrainNewMoves returns the moves appended since the last drain, capped at
// maxCount per spec.md §4.5, and advances the emitted watermark. The
// returned slice is a prefix of the vault's history: no move is re-emitted
// and no gap is left (spec.md §3 invariant).
func (v *MoveVault) DrainNewMoves(maxCount int) []model.Move {
	v.mu.Lock()
	defer v.mu.Unlock()

	available := v.moves[v.emitted:]
	if len(available) > maxCount {
		available = available[:maxCount]
	}

	out := make([]model.Move, len(available))
	copy(out, available)

	v.emitted += len(out)

	return out
}

// EmittedCount reports how many moves have been drained into a sent
// heartbeat so far.
func (v *MoveVault) EmittedCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.emitted
}

// RootAt returns the Merkle root over the first n recorded moves (n=0
// yields the empty-tree root), used by heartbeat packing to embed the
// cumulative root at the heartbeat's move boundary. The audit verifier
// rebuilds the same value from anchored moves with RootOf.
func (v *MoveVault) RootAt(n int) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	if n > len(v.moves) {
		n = len(v.moves)
	}

	leaves := make([]string, n)
	for i := 0; i < n; i++ {
		leaves[i] = LeafHash(&v.moves[i])
	}

	return RootOf(leaves)
}

// Root returns the cumulative root over every recorded move.
func (v *MoveVault) Root() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tree.Root()
}

// Moves returns a copy of every recorded move, in sequence order.
func (v *MoveVault) Moves() []model.Move {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]model.Move, len(v.moves))
	copy(out, v.moves)
	return out
}

// snapshot is the crash-recovery persistence format (SPEC_FULL.md §1.3),
// not part of the original wire contract.
type snapshot struct {
	Moves   []model.Move `json:"moves"`
	Emitted int          `json:"emitted"`
}

// Snapshot serializes the full move history plus the emitted watermark so
// a client crash mid-match does not lose anchored-but-unflushed moves.
func (v *MoveVault) Snapshot() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := snapshot{Moves: v.moves, Emitted: v.emitted}
	return jsoniter.ConfigFastest.Marshal(snap)
}

// Restore rebuilds a vault from a Snapshot blob, replaying the Merkle tree
// and duplicate-detection filter over the restored moves.
func Restore(blob []byte, expectedMoves int) (*MoveVault, error) {
	var snap snapshot
	if err := jsoniter.ConfigFastest.Unmarshal(blob, &snap); err != nil {
		return nil, anchorerrors.New(anchorerrors.CodePayloadTooShort, "invalid vault snapshot", err)
	}

	v := NewMoveVault(expectedMoves)
	for _, mv := range snap.Moves {
		if err := v.RecordMove(mv); err != nil {
			return nil, err
		}
	}
	v.emitted = snap.Emitted

	return v, nil
}
