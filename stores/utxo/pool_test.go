package utxo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasparena/anchorcore/model"
)

func addN(p *Pool, n int) {
	for i := 0; i < n; i++ {
		p.Add(model.UtxoEntry{
			Outpoint:  model.Outpoint{TransactionID: "tx", OutputIndex: uint32(i)},
			AmountKAS: 1.0,
		})
	}
}

func TestReserveIsExclusive(t *testing.T) {
	p := New(5, 2, time.Second)
	addN(p, 1)

	e, err := p.Reserve()
	require.NoError(t, err)
	assert.Equal(t, model.UtxoReserved, e.Status)

	_, err = p.Reserve()
	assert.Error(t, err)
}

func TestReleaseRestoresAvailability(t *testing.T) {
	p := New(5, 2, time.Second)
	addN(p, 1)

	e, err := p.Reserve()
	require.NoError(t, err)
	assert.Equal(t, 0, p.AvailableCount())

	require.NoError(t, p.Release(e.Outpoint))
	assert.Equal(t, 1, p.AvailableCount())
}

func TestMarkSpentIsTerminal(t *testing.T) {
	p := New(5, 2, time.Second)
	addN(p, 1)

	e, err := p.Reserve()
	require.NoError(t, err)

	require.NoError(t, p.MarkSpent(e.Outpoint))
	assert.Error(t, p.Release(e.Outpoint))
}

func TestReleaseStaleReservations(t *testing.T) {
	p := New(5, 2, time.Second)
	addN(p, 1)

	e, err := p.Reserve()
	require.NoError(t, err)
	e.ReservedAt = time.Now().Add(-time.Hour)

	released := p.ReleaseStaleReservations(time.Minute)
	assert.Equal(t, 0, released, "Reserve returns a copy; pool-internal timestamp is unaffected by mutating it")
}

func TestPoolEvents(t *testing.T) {
	var events []Event
	p := New(3, 1, time.Second, WithOnEvent(func(e Event) {
		events = append(events, e)
	}))

	addN(p, 3)
	assert.Contains(t, events, EventReady)

	_, _ = p.Reserve()
	_, _ = p.Reserve()
	_, _ = p.Reserve()
	assert.Contains(t, events, EventEmpty)
}
