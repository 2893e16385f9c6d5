package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasparena/anchorcore/model"
)

func TestCumulativity(t *testing.T) {
	tree := New()
	var all []string

	for i := 0; i < 10; i++ {
		leaf := LeafHash(&model.Move{Action: "move", Sequence: uint32(i), TimeDelta: uint8(i)})
		all = append(all, leaf)
		tree.Add(leaf)

		assert.Equal(t, RootOf(all), tree.Root())
	}
}

func TestProofVerifies(t *testing.T) {
	var leaves []string
	for i := 0; i < 7; i++ {
		leaves = append(leaves, LeafHash(&model.Move{Action: "jump", Lane: uint8(i % 4), Sequence: uint32(i)}))
	}

	root := RootOf(leaves)

	for i := range leaves {
		proof, err := Proof(leaves, i)
		require.NoError(t, err)
		assert.True(t, VerifyProof(leaves[i], root, proof), "index %d", i)
	}
}

func TestEmptyTreeRoot(t *testing.T) {
	assert.Equal(t, "", New().Root())
}

func TestVaultRejectsDuplicateSequence(t *testing.T) {
	v := NewMoveVault(16)
	require.NoError(t, v.RecordMove(model.Move{Sequence: 0, Action: "move"}))
	err := v.RecordMove(model.Move{Sequence: 0, Action: "move"})
	assert.Error(t, err)
}

func TestVaultDrainRespectsCapAndWatermark(t *testing.T) {
	v := NewMoveVault(16)
	for i := 0; i < 5; i++ {
		require.NoError(t, v.RecordMove(model.Move{Sequence: uint32(i), Action: "move"}))
	}

	first := v.DrainNewMoves(3)
	assert.Len(t, first, 3)

	second := v.DrainNewMoves(10)
	assert.Len(t, second, 2)

	assert.Equal(t, 5, v.EmittedCount())
}

func TestVaultSnapshotRestore(t *testing.T) {
	v := NewMoveVault(16)
	for i := 0; i < 4; i++ {
		require.NoError(t, v.RecordMove(model.Move{Sequence: uint32(i), Action: "move"}))
	}
	v.DrainNewMoves(2)

	blob, err := v.Snapshot()
	require.NoError(t, err)

	restored, err := Restore(blob, 16)
	require.NoError(t, err)

	assert.Equal(t, v.Root(), restored.Root())
	assert.Equal(t, v.EmittedCount(), restored.EmittedCount())
}
