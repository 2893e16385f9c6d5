package vrf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasparena/anchorcore/model"
)

func TestChainDeterminism(t *testing.T) {
	inputs := []StepInput{
		{ActionCode: model.ActionMove, X: 1, Y: 2, Z: 3, TimeDelta: 5},
		{ActionCode: 10, Lane: 2, TimeDelta: 7},
	}

	run := func() [][32]byte {
		c := New("player-1", "game-1")
		c.NotifyGenesisTxID("deadbeef")

		var outs [][32]byte
		for _, in := range inputs {
			out, err := c.Step(in, 1000)
			require.NoError(t, err)
			outs = append(outs, out)
		}
		return outs
	}

	a := run()
	b := run()
	assert.Equal(t, a, b)
}

func TestGenesisReinforcementChangesChain(t *testing.T) {
	in := StepInput{ActionCode: 10, Lane: 1, TimeDelta: 1}

	c1 := New("p", "g")
	out1, err := c1.Step(in, 100)
	require.NoError(t, err)
	assert.False(t, c1.GenesisReinforced())

	c2 := New("p", "g")
	c2.NotifyGenesisTxID("abc123")
	out2, err := c2.Step(in, 100)
	require.NoError(t, err)

	assert.True(t, c2.GenesisReinforced())
	assert.NotEqual(t, out1, out2)
}

func TestStepIgnoresCallerSuppliedReinforcementFlag(t *testing.T) {
	// The fold seed must come from the chain's own genesisReinforced
	// state, set by reinforceIfDue, never from a caller-supplied snapshot
	// flag a client could forget to set or desync from reality.
	in := StepInput{ActionCode: 10, Lane: 1, TimeDelta: 1}
	in.Snapshot.IsGenesisReinforced = true

	c := New("p", "g")
	out, err := c.Step(in, 100)
	require.NoError(t, err)

	unreinforced := New("p", "g")
	want, err := unreinforced.Step(StepInput{ActionCode: 10, Lane: 1, TimeDelta: 1}, 100)
	require.NoError(t, err)

	assert.Equal(t, want, out)
}
