// Package orchestrator drives the three-phase anchor state machine
// {Genesis → Heartbeat* → Final} (spec.md §4.5), owning the VRF chain,
// Merkle move vault, and UTXO pool for the duration of one game.
//
// Grounded on services/blockchain/Server.go's finiteStateMachine *fsm.FSM
// field and SendFSMEvent/GetFSMCurrentState wiring style for state
// transitions, and on util/distributor/Distributor.go's exponential
// backoff send loop for manualSend/anchorFinalState retry semantics.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/kpango/fastime"
	"github.com/looplab/fsm"
	"github.com/opentracing/opentracing-go"

	"github.com/kasparena/anchorcore/anchor/codec"
	"github.com/kasparena/anchorcore/anchorerrors"
	"github.com/kasparena/anchorcore/entropy"
	"github.com/kasparena/anchorcore/ledger"
	"github.com/kasparena/anchorcore/merkle"
	"github.com/kasparena/anchorcore/model"
	"github.com/kasparena/anchorcore/settings"
	"github.com/kasparena/anchorcore/stores/utxo"
	"github.com/kasparena/anchorcore/ulogger"
	"github.com/kasparena/anchorcore/vrf"
)

// FSM states, spec.md §4.5.
const (
	StateIdle            = "idle"
	StateStarting        = "starting"
	StateAwaitingGenesis = "awaiting_genesis"
	StateRunning         = "running"
	StateFinalizing      = "finalizing"
	StateComplete        = "complete"
	StateAborted         = "aborted"
)

// FSM events.
const (
	evStart            = "start"
	evAwaitGenesis     = "await_genesis"
	evGenesisConfirmed = "genesis_confirmed"
	evGenesisFailed    = "genesis_failed"
	evFinalize         = "finalize"
	evComplete         = "complete"
	evAbort            = "abort"
)

// GenesisRequest carries anchorGenesisSeed's parameters (spec.md §4.5).
type GenesisRequest struct {
	VrfSeed             string
	StartDaaScore       uint64
	EndDaaScore         uint64
	PrefetchedEntropy   *model.EntropySnapshot
	BtcBlockHashes      [6][32]byte
	Nist                model.NistPulse
}

// FinalRequest carries anchorFinalState's end-of-match record.
type FinalRequest struct {
	FinalScore     uint32
	CoinsCollected uint32
	RaceTimeMs     uint32
	OutcomeCode    model.OutcomeCode
}

// Orchestrator is the per-game anchor state machine. It exclusively owns
// the VRF chain, Merkle move vault, and UTXO pool for the duration of a
// game (spec.md §3 "Ownership").
type Orchestrator struct {
	mu sync.Mutex

	gameID      string
	address     string
	privateKeys []string

	settings *settings.Settings
	logger   ulogger.Logger
	ledger   ledger.Adapter
	pool     *utxo.Pool
	vault    *merkle.MoveVault
	chain    *vrf.Chain
	entropy  *entropy.Provider
	sink     EventSink

	fsm *fsm.FSM

	anchorChain []model.AnchorChainEntry

	rootCtx              context.Context
	heartbeatCancel      context.CancelFunc
	heartbeatSending     bool
	consecutiveFailures  int
	lastAnchoredMoveCount int

	genesisTxID string

	lastFinalBytes []byte
	lastFinalHex   string
}

// New builds an Orchestrator for one game. The pool, vault, and chain are
// provided by the caller (normally freshly constructed per game) so their
// lifetimes are explicit rather than hidden inside this constructor.
func New(gameID, address string, privateKeys []string, s *settings.Settings, log ulogger.Logger, led ledger.Adapter, pool *utxo.Pool, vault *merkle.MoveVault, chain *vrf.Chain, ent *entropy.Provider, sink EventSink) *Orchestrator {
	initPrometheusMetrics()

	if sink == nil {
		sink = NewNoopSink()
	}

	o := &Orchestrator{
		gameID:      gameID,
		address:     address,
		privateKeys: privateKeys,
		settings:    s,
		logger:      log,
		ledger:      led,
		pool:        pool,
		vault:       vault,
		chain:       chain,
		entropy:     ent,
		sink:        sink,
	}

	o.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evStart, Src: []string{StateIdle}, Dst: StateStarting},
			{Name: evAwaitGenesis, Src: []string{StateStarting}, Dst: StateAwaitingGenesis},
			{Name: evGenesisConfirmed, Src: []string{StateStarting, StateAwaitingGenesis}, Dst: StateRunning},
			{Name: evGenesisFailed, Src: []string{StateStarting, StateAwaitingGenesis}, Dst: StateAborted},
			{Name: evFinalize, Src: []string{StateRunning}, Dst: StateFinalizing},
			{Name: evComplete, Src: []string{StateFinalizing}, Dst: StateComplete},
			{Name: evAbort, Src: []string{StateStarting, StateAwaitingGenesis, StateRunning, StateFinalizing}, Dst: StateAborted},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugf("anchor orchestrator %s: %s -> %s", gameID, e.Src, e.Dst)
			},
		},
	)

	return o
}

// CurrentState reports the FSM's current state name.
func (o *Orchestrator) CurrentState() string {
	return o.fsm.Current()
}

// Start moves Idle->Starting->AwaitingGenesis. It does not arm the
// heartbeat ticker; StartHeartbeats does, and ticks are skipped while the
// state is not Running.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.fsm.Event(ctx, evStart); err != nil {
		return anchorerrors.New(anchorerrors.CodeSendUnknown, "start orchestrator", err)
	}
	if err := o.fsm.Event(ctx, evAwaitGenesis); err != nil {
		return anchorerrors.New(anchorerrors.CodeSendUnknown, "await genesis", err)
	}
	return nil
}

// AnchorGenesisSeed builds and sends the genesis anchor, retrying with
// exponential backoff per spec.md §4.5. On success it enables heartbeats
// and notifies the VRF chain of the confirmed genesis transaction id.
func (o *Orchestrator) AnchorGenesisSeed(ctx context.Context, req GenesisRequest) error {
	gameIDTag := codec.GameIDTag(o.gameID)

	if req.PrefetchedEntropy != nil {
		o.entropy.CaptureSessionHash(req.PrefetchedEntropy.KaspaBlockHash)
	}

	payload := &model.GenesisPayload{
		Version:        codec.GenesisVersion,
		GameIDHash:     sha256Of([]byte(o.gameID)),
		VrfSeedHash:    sha256Of([]byte(req.VrfSeed)),
		BtcBlockHashes: req.BtcBlockHashes,
		StartDaaScore:  req.StartDaaScore,
		EndDaaScore:    req.EndDaaScore,
		Nist:           req.Nist,
	}

	body, err := codec.EncodeGenesis(payload)
	if err != nil {
		return err
	}

	payloadHex, err := codec.Frame(model.AnchorTypeGenesis, gameIDTag, body)
	if err != nil {
		return err
	}

	policy := backoffPolicy{
		base:       o.settings.GenesisBaseBackoff,
		multiplier: 1.5,
		max:        o.settings.GenesisMaxBackoff,
		attempts:   o.settings.GenesisMaxAttempts,
	}

	span, spanCtx := opentracing.StartSpanFromContext(ctx, "Orchestrator:AnchorGenesisSeed")
	defer span.Finish()

	var txID string
	sendErr := withRetry(spanCtx, policy, o.settings.GenesisAttemptDeadline, func(attemptCtx context.Context) error {
		start := time.Now()
		res, err := o.ledger.ManualSend(attemptCtx, ledger.SendRequest{
			FromAddress: o.address,
			PriorityFee: 0,
			PayloadHex:  payloadHex,
			PrivateKeys: o.privateKeys,
		})
		prometheusSendDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			prometheusAnchorsFailed.WithLabelValues("genesis", classificationLabel(classifySendError(err))).Inc()
			return err
		}
		txID = res.TransactionID
		return nil
	})

	if sendErr != nil {
		_ = o.fsm.Event(ctx, evGenesisFailed)
		o.sink.Publish(Event{Kind: EventGenesisAnchorFailed, GameID: o.gameID, Reason: sendErr.Error()})
		return sendErr
	}

	prometheusAnchorsSent.WithLabelValues("genesis").Inc()

	o.mu.Lock()
	o.genesisTxID = txID
	o.anchorChain = append(o.anchorChain, model.AnchorChainEntry{
		TxID:        txID,
		PayloadHex:  payloadHex,
		Type:        model.AnchorTypeGenesis,
		TimestampMs: fastime.Now().UnixMilli(),
	})
	o.mu.Unlock()

	o.chain.NotifyGenesisTxID(txID)

	return o.fsm.Event(ctx, evGenesisConfirmed)
}

func classificationLabel(c sendClassification) string {
	switch c {
	case classMempoolConflict:
		return "mempool_conflict"
	case classInsufficientFunds:
		return "insufficient_funds"
	default:
		return "unknown"
	}
}

func sha256Of(b []byte) [32]byte {
	return sha256.Sum256(b)
}
