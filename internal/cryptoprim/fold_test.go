package cryptoprim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldDeterministic(t *testing.T) {
	a, err := Fold("aa", "bb", "seed")
	require.NoError(t, err)

	b, err := Fold("aa", "bb", "seed")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFoldDifferentSeedDifferentOutput(t *testing.T) {
	a, err := Fold("aa", "bb", "seed1")
	require.NoError(t, err)
	b, err := Fold("aa", "bb", "seed2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFoldValidatesBounds(t *testing.T) {
	_, err := FoldWithParams("aa", "bb", "seed", 0, 2, 2)
	require.Error(t, err)

	_, err = FoldWithParams("aa", "bb", "seed", 256, 0, 2)
	require.Error(t, err)

	_, err = FoldWithParams("aa", "bb", "seed", 256, 2, 0)
	require.Error(t, err)
}

func TestSimpleHashHexDeterministic(t *testing.T) {
	a := SimpleHashHex([]byte("hello"))
	b := SimpleHashHex([]byte("hello"))
	c := SimpleHashHex([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
