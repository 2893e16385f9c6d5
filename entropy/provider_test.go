package entropy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	cb         func(hash [32]byte)
	unsubbed   int
	subscribed int
}

func (f *fakeSub) OnNewBlock(cb func(hash [32]byte)) (func(), error) {
	f.subscribed++
	f.cb = cb
	return func() { f.unsubbed++ }, nil
}

func TestSubscribeAndCleanupAreIdempotent(t *testing.T) {
	sub := &fakeSub{}
	p := NewProvider(nil, sub, time.Minute)

	require.NoError(t, p.Subscribe())
	require.NoError(t, p.Subscribe())
	assert.Equal(t, 1, sub.subscribed)

	p.Cleanup()
	p.Cleanup()
	assert.Equal(t, 1, sub.unsubbed)
}

func TestGetCurrentBlockHashFallsBackToSessionHash(t *testing.T) {
	sub := &fakeSub{}
	p := NewProvider(nil, sub, time.Minute)

	_, err := p.GetCurrentBlockHash()
	assert.Error(t, err)

	session := [32]byte{9}
	p.CaptureSessionHash(session)

	bh, err := p.GetCurrentBlockHash()
	require.NoError(t, err)
	assert.Equal(t, SourceSession, bh.Source)
	assert.Equal(t, session, bh.Hash)
}

func TestOnBlockFeedsTheRollingWindow(t *testing.T) {
	sub := &fakeSub{}
	p := NewProvider(nil, sub, time.Minute)
	require.NoError(t, p.Subscribe())

	first := [32]byte{1}
	sub.cb(first)

	bh, err := p.GetCurrentBlockHash()
	require.NoError(t, err)
	assert.Equal(t, SourceLive, bh.Source)
	assert.Equal(t, first, bh.Hash)
	assert.Equal(t, int64(1), p.CurrentWindowSequence())

	second := [32]byte{2}
	sub.cb(second)

	bh, err = p.GetCurrentBlockHash()
	require.NoError(t, err)
	assert.Equal(t, second, bh.Hash)

	gotFirst, ok := p.BlockHashAtSequence(1)
	require.True(t, ok)
	assert.Equal(t, first, gotFirst)
}

func TestGetCachedBlockHashNeverFails(t *testing.T) {
	sub := &fakeSub{}
	p := NewProvider(nil, sub, time.Minute)

	assert.Equal(t, [32]byte{}, p.GetCachedBlockHash())
}
