package orchestrator

import (
	"context"
	"time"

	"github.com/kpango/fastime"
	"github.com/opentracing/opentracing-go"

	"github.com/kasparena/anchorcore/anchor/codec"
	"github.com/kasparena/anchorcore/ledger"
	"github.com/kasparena/anchorcore/model"
)

// StartHeartbeats arms the recurring heartbeat ticker (spec.md §4.5
// "fires every 500ms while Running"), cancellable via Stop.
func (o *Orchestrator) StartHeartbeats(ctx context.Context) {
	o.mu.Lock()
	if o.rootCtx == nil {
		o.rootCtx = ctx
	}
	hbCtx, cancel := context.WithCancel(o.rootCtx)
	o.heartbeatCancel = cancel
	o.mu.Unlock()

	go o.heartbeatLoop(hbCtx)
}

func (o *Orchestrator) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(o.settings.AnchorBatch)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sendHeartbeatAnchor(ctx)
		}
	}
}

// sendHeartbeatAnchor is one 500ms tick: it skips if already sending,
// degraded, or genesis unconfirmed; drains new moves and pending deltas;
// packs, signs, sends; and updates chain/failure bookkeeping.
func (o *Orchestrator) sendHeartbeatAnchor(ctx context.Context) {
	o.mu.Lock()
	if o.heartbeatSending || o.fsm.Current() != StateRunning || o.pool.Degraded() {
		o.mu.Unlock()
		return
	}
	o.heartbeatSending = true
	prevTxID := o.lastAnchorTxIDLocked()
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.heartbeatSending = false
		o.mu.Unlock()
	}()

	moves := o.vault.DrainNewMoves(o.settings.MaxMovesPerHeartbeat)
	prometheusHeartbeatMoves.Observe(float64(len(moves)))

	deltaFlags := uint8(0)
	var deltaBtc *[32]byte
	var deltaNist *model.NistPulse

	if btc := o.chain.TakePendingBTC(); btc != nil {
		deltaFlags |= model.DeltaFlagBTC
		deltaBtc = btc
	}
	if nist := o.chain.TakePendingNIST(); nist != nil {
		deltaFlags |= model.DeltaFlagNIST
		deltaNist = nist
	}

	if len(moves) == 0 && deltaFlags == 0 {
		return
	}

	packets := make([]model.HeartbeatMovePacket, 0, len(moves))
	for _, mv := range moves {
		packets = append(packets, model.HeartbeatMovePacket{
			ActionCode:  mv.ActionCode,
			Lane:        mv.Lane,
			X:           mv.X,
			Y:           mv.Y,
			Z:           mv.Z,
			TimeDelta:   mv.TimeDelta,
			VrfFragment: mv.VrfFragment,
		})
	}

	payload := &model.HeartbeatPayload{
		Version:      codec.HeartbeatVersion,
		MerkleRoot:   merkleRootBytes(o.vault.RootAt(o.vault.EmittedCount())),
		PrevTxID:     prevTxID,
		DeltaFlags:   deltaFlags,
		MoveCount:    uint8(len(moves)),
		Moves:        packets,
		DeltaBtcHash: deltaBtc,
		DeltaNist:    deltaNist,
	}

	body, err := codec.EncodeHeartbeat(payload)
	if err != nil {
		o.onHeartbeatFailure(ctx, err)
		return
	}

	payloadHex, err := codec.Frame(model.AnchorTypeHeartbeat, codec.GameIDTag(o.gameID), body)
	if err != nil {
		o.onHeartbeatFailure(ctx, err)
		return
	}

	span, spanCtx := opentracing.StartSpanFromContext(ctx, "Orchestrator:sendHeartbeatAnchor")

	start := time.Now()
	res, err := o.ledger.ManualSend(spanCtx, ledger.SendRequest{
		FromAddress: o.address,
		PrivateKeys: o.privateKeys,
		PayloadHex:  payloadHex,
	})
	prometheusSendDuration.Observe(time.Since(start).Seconds())
	span.Finish()

	if err != nil {
		prometheusAnchorsFailed.WithLabelValues("heartbeat", classificationLabel(classifySendError(err))).Inc()
		o.onHeartbeatFailure(ctx, err)
		return
	}

	prometheusAnchorsSent.WithLabelValues("heartbeat").Inc()

	o.mu.Lock()
	o.consecutiveFailures = 0
	o.lastAnchoredMoveCount += len(moves)
	o.anchorChain = append(o.anchorChain, model.AnchorChainEntry{
		TxID:        res.TransactionID,
		PayloadHex:  payloadHex,
		Type:        model.AnchorTypeHeartbeat,
		TimestampMs: fastime.Now().UnixMilli(),
		MoveCount:   len(moves),
		DeltaFlags:  deltaFlags,
	})
	o.mu.Unlock()
}

// onHeartbeatFailure increments the consecutive-failure counter and, after
// the configured limit, stops and re-arms the ticker (spec.md §4.5).
func (o *Orchestrator) onHeartbeatFailure(ctx context.Context, err error) {
	o.logger.Warnf("heartbeat anchor failed for %s: %v", o.gameID, err)
	o.sink.Publish(Event{Kind: EventAnchorFailed, GameID: o.gameID, Reason: err.Error()})

	o.mu.Lock()
	o.consecutiveFailures++
	limitHit := o.consecutiveFailures >= o.settings.HeartbeatFailureLimit
	cancel := o.heartbeatCancel
	o.mu.Unlock()

	if !limitHit {
		return
	}

	if cancel != nil {
		cancel()
	}

	o.sink.Publish(Event{Kind: EventAnchorRetryNeeded, GameID: o.gameID, Reason: "heartbeat failure limit reached"})

	time.AfterFunc(o.settings.HeartbeatRearmDelay, func() {
		o.mu.Lock()
		o.consecutiveFailures = 0
		o.mu.Unlock()
		o.StartHeartbeats(ctx)
	})
}

func (o *Orchestrator) lastAnchorTxIDLocked() [32]byte {
	if len(o.anchorChain) == 0 {
		return [32]byte{}
	}
	return hexToBytes32(o.anchorChain[len(o.anchorChain)-1].TxID)
}

func merkleRootBytes(rootHex string) [32]byte {
	var out [32]byte
	b := hexDecodeLoose(rootHex)
	copy(out[:], b)
	return out
}

func hexToBytes32(s string) [32]byte {
	var out [32]byte
	b := hexDecodeLoose(s)
	copy(out[:], b)
	return out
}

func hexDecodeLoose(s string) []byte {
	out := make([]byte, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		out = append(out, hexVal(s[i])<<4|hexVal(s[i+1]))
	}
	return out
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
