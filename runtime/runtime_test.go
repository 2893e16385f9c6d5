package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasparena/anchorcore/anchor/orchestrator"
	"github.com/kasparena/anchorcore/ledger"
	"github.com/kasparena/anchorcore/ledger/mockledger"
	"github.com/kasparena/anchorcore/model"
	"github.com/kasparena/anchorcore/runtime"
	"github.com/kasparena/anchorcore/settings"
	"github.com/kasparena/anchorcore/ulogger"
)

func newTestSettings() *settings.Settings {
	s := settings.NewSettings()
	s.UtxoSplitCount = 5
	s.UtxoLowThreshold = 1
	return s
}

func TestNewSubscribesEntropyAndCloseUnsubscribes(t *testing.T) {
	led := mockledger.New()
	led.Fund("player-addr", 5, 5.0)

	rt, err := runtime.New(newTestSettings(), ulogger.NewZeroLogger("test"), led)
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.Ledger())
	assert.NotNil(t, rt.Settings())
	assert.NotNil(t, rt.Logger())

	ent := rt.NewGame("game-1", "player-1", "player-addr", []string{"pk"}, nil).Entropy()
	_, err = led.ManualSend(context.Background(), ledger.SendRequest{FromAddress: "player-addr"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ent.CurrentWindowSequence())

	rt.Close()
	_, err = led.ManualSend(context.Background(), ledger.SendRequest{FromAddress: "player-addr"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ent.CurrentWindowSequence())
}

type recordingSink struct {
	events []orchestrator.Event
}

func (r *recordingSink) Publish(ev orchestrator.Event) {
	r.events = append(r.events, ev)
}

func TestNewGamePublishesPoolLowAndEmptyThroughTheSink(t *testing.T) {
	led := mockledger.New()
	led.Fund("player-addr", 10, 5.0)

	s := newTestSettings()
	s.UtxoSplitCount = 2
	s.UtxoLowThreshold = 2

	rt, err := runtime.New(s, ulogger.NewZeroLogger("test"), led)
	require.NoError(t, err)
	defer rt.Close()

	sink := &recordingSink{}
	o := rt.NewGame("game-1", "player-1", "player-addr", []string{"pk"}, sink)
	require.NoError(t, o.Start(context.Background()))

	o.Pool().Add(model.UtxoEntry{Outpoint: model.Outpoint{TransactionID: "tx", OutputIndex: 0}, AmountKAS: 1.0})
	_, err = o.Pool().Reserve()
	require.NoError(t, err)

	var kinds []orchestrator.EventKind
	for _, ev := range sink.events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, orchestrator.EventPoolLow)
	assert.Contains(t, kinds, orchestrator.EventPoolEmpty)
}

func TestNewGameProducesAnIndependentOrchestratorPerCall(t *testing.T) {
	led := mockledger.New()
	led.Fund("player-addr", 10, 5.0)

	rt, err := runtime.New(newTestSettings(), ulogger.NewZeroLogger("test"), led)
	require.NoError(t, err)
	defer rt.Close()

	first := rt.NewGame("game-1", "player-1", "player-addr", []string{"pk"}, nil)
	second := rt.NewGame("game-2", "player-1", "player-addr", []string{"pk"}, nil)

	require.NoError(t, first.Start(context.Background()))
	require.NoError(t, second.Start(context.Background()))

	assert.Equal(t, orchestrator.StateAwaitingGenesis, first.CurrentState())
	assert.Equal(t, orchestrator.StateAwaitingGenesis, second.CurrentState())
}
