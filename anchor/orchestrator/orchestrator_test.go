package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasparena/anchorcore/entropy"
	"github.com/kasparena/anchorcore/ledger/mockledger"
	"github.com/kasparena/anchorcore/merkle"
	"github.com/kasparena/anchorcore/model"
	"github.com/kasparena/anchorcore/settings"
	"github.com/kasparena/anchorcore/stores/utxo"
	"github.com/kasparena/anchorcore/ulogger"
	"github.com/kasparena/anchorcore/vrf"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *mockledger.Ledger) {
	t.Helper()

	led := mockledger.New()
	led.Fund("player-addr", 5, 5.0)

	s := &settings.Settings{
		AnchorBatch:            20 * time.Millisecond,
		MaxMovesPerHeartbeat:   255,
		GenesisMaxAttempts:     3,
		GenesisBaseBackoff:     time.Millisecond,
		GenesisMaxBackoff:      5 * time.Millisecond,
		GenesisAttemptDeadline: time.Second,
		FinalMaxAttempts:       3,
		FinalBaseBackoff:       time.Millisecond,
		FinalMaxBackoff:        5 * time.Millisecond,
		FinalInFlightWait:      50 * time.Millisecond,
		FinalConsolidateAttempts: 1,
		HeartbeatFailureLimit:  5,
		HeartbeatRearmDelay:    10 * time.Millisecond,
		UtxoSplitCount:         5,
	}

	log := ulogger.NewZeroLogger("test")
	pool := utxo.New(5, 1, time.Second)
	vault := merkle.NewMoveVault(64)
	chain := vrf.New("player-1", "game-1")
	ent := entropy.NewProvider(log, led, time.Minute)
	require.NoError(t, ent.Subscribe())

	o := New("game-1", "player-addr", []string{"pk"}, s, log, led, pool, vault, chain, ent, nil)
	return o, led
}

func TestOrchestratorGenesisAndHeartbeatLifecycle(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.Start(ctx))
	assert.Equal(t, StateAwaitingGenesis, o.CurrentState())

	require.NoError(t, o.AnchorGenesisSeed(ctx, GenesisRequest{VrfSeed: "seed"}))
	assert.Equal(t, StateRunning, o.CurrentState())

	require.NoError(t, o.vault.RecordMove(model.Move{Sequence: 0, Action: "move", ActionCode: model.ActionMove}))

	o.StartHeartbeats(ctx)
	time.Sleep(60 * time.Millisecond)
	o.Stop()

	assert.GreaterOrEqual(t, len(o.anchorChain), 2, "expect at least genesis + one heartbeat")
}

func TestOrchestratorFinalizeCompletesChain(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.Start(ctx))
	require.NoError(t, o.AnchorGenesisSeed(ctx, GenesisRequest{VrfSeed: "seed"}))

	require.NoError(t, o.AnchorFinalState(ctx, FinalRequest{FinalScore: 10, OutcomeCode: model.OutcomeComplete}))
	assert.Equal(t, StateComplete, o.CurrentState())

	var finals int
	for _, e := range o.anchorChain {
		if e.Type == model.AnchorTypeFinal {
			finals++
		}
	}
	assert.Equal(t, 1, finals)
}

func TestOrchestratorMempoolConflictRetrySucceeds(t *testing.T) {
	o, led := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.Start(ctx))
	require.NoError(t, o.AnchorGenesisSeed(ctx, GenesisRequest{VrfSeed: "seed"}))

	led.FailNextSends = 1
	led.NextSendErr = assertAlreadySpentError{}

	require.NoError(t, o.AnchorFinalState(ctx, FinalRequest{FinalScore: 1}))

	var finals int
	for _, e := range o.anchorChain {
		if e.Type == model.AnchorTypeFinal {
			finals++
		}
	}
	assert.Equal(t, 1, finals)
}

type assertAlreadySpentError struct{}

func (assertAlreadySpentError) Error() string { return "tx already spent in mempool" }
