package orchestrator

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/kpango/fastime"
	"github.com/opentracing/opentracing-go"

	"github.com/kasparena/anchorcore/anchor/codec"
	"github.com/kasparena/anchorcore/anchorerrors"
	"github.com/kasparena/anchorcore/ledger"
	"github.com/kasparena/anchorcore/model"
)

// Stop cancels the heartbeat timer. It does not abort an in-flight
// manualSend (spec.md §5 "Cancellation").
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.heartbeatCancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// AnchorFinalState moves Running->Finalizing, stops the heartbeat timer,
// waits for any in-flight heartbeat to settle, then retries the final send
// up to FinalMaxAttempts times with exponential backoff. On success it
// attempts UTXO consolidation, treating mempool conflicts as retryable
// (spec.md §4.5).
func (o *Orchestrator) AnchorFinalState(ctx context.Context, req FinalRequest) error {
	if err := o.fsm.Event(ctx, evFinalize); err != nil {
		return anchorerrors.New(anchorerrors.CodeSendUnknown, "finalize orchestrator", err)
	}

	o.Stop()
	o.waitForInFlightHeartbeat(ctx)

	body, payloadHex, err := o.buildFinalPayload(req)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.lastFinalBytes = body
	o.lastFinalHex = payloadHex
	o.mu.Unlock()

	return o.sendFinal(ctx, payloadHex)
}

// RetryFinalAnchor permits a user-initiated retry using the previously
// packed bytes if AnchorFinalState exhausted its attempts.
func (o *Orchestrator) RetryFinalAnchor(ctx context.Context) error {
	o.mu.Lock()
	payloadHex := o.lastFinalHex
	o.mu.Unlock()

	if payloadHex == "" {
		return anchorerrors.New(anchorerrors.CodeSendUnknown, "no previously packed final anchor to retry")
	}

	return o.sendFinal(ctx, payloadHex)
}

func (o *Orchestrator) buildFinalPayload(req FinalRequest) ([]byte, string, error) {
	o.mu.Lock()
	genesisTxID := o.genesisTxID
	prevTxID := o.lastAnchorTxIDLocked()
	totalMoves := o.lastAnchoredMoveCount
	o.mu.Unlock()

	resultHash := sha256.Sum256([]byte(fmt.Sprintf("RESULT:%d:%d:%d:%d",
		req.FinalScore, req.CoinsCollected, uint8(req.OutcomeCode), req.RaceTimeMs)))

	payload := &model.FinalPayload{
		Version:         codec.FinalVersion,
		FinalMerkleRoot: merkleRootBytes(o.vault.Root()),
		GenesisTxID:     hexToBytes32(genesisTxID),
		PrevTxID:        prevTxID,
		ResultLeafHash:  resultHash,
		FinalScore:      req.FinalScore,
		CoinsCollected:  req.CoinsCollected,
		RaceTimeMs:      req.RaceTimeMs,
		OutcomeCode:     req.OutcomeCode,
		TotalMoves:      uint8(clampByte(totalMoves)),
	}

	body, err := codec.EncodeFinal(payload)
	if err != nil {
		return nil, "", err
	}

	payloadHex, err := codec.Frame(model.AnchorTypeFinal, codec.GameIDTag(o.gameID), body)
	if err != nil {
		return nil, "", err
	}

	return body, payloadHex, nil
}

func (o *Orchestrator) sendFinal(ctx context.Context, payloadHex string) error {
	policy := backoffPolicy{
		base:       o.settings.FinalBaseBackoff,
		multiplier: 2,
		max:        o.settings.FinalMaxBackoff,
		attempts:   o.settings.FinalMaxAttempts,
	}

	span, spanCtx := opentracing.StartSpanFromContext(ctx, "Orchestrator:sendFinal")
	defer span.Finish()

	var txID string
	err := withRetry(spanCtx, policy, 30*time.Second, func(attemptCtx context.Context) error {
		start := time.Now()
		res, err := o.ledger.ManualSend(attemptCtx, ledger.SendRequest{
			FromAddress: o.address,
			PrivateKeys: o.privateKeys,
			PayloadHex:  payloadHex,
		})
		prometheusSendDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			prometheusAnchorsFailed.WithLabelValues("final", classificationLabel(classifySendError(err))).Inc()
			return err
		}
		txID = res.TransactionID
		return nil
	})

	if err != nil {
		o.sink.Publish(Event{Kind: EventAnchorRetryNeeded, GameID: o.gameID, Reason: err.Error()})
		return err
	}

	prometheusAnchorsSent.WithLabelValues("final").Inc()

	o.mu.Lock()
	o.anchorChain = append(o.anchorChain, model.AnchorChainEntry{
		TxID:        txID,
		PayloadHex:  payloadHex,
		Type:        model.AnchorTypeFinal,
		TimestampMs: fastime.Now().UnixMilli(),
	})
	o.mu.Unlock()

	if cerr := o.consolidate(ctx); cerr != nil {
		o.logger.Warnf("post-final consolidation failed for %s: %v", o.gameID, cerr)
	}

	return o.fsm.Event(ctx, evComplete)
}

func (o *Orchestrator) consolidate(ctx context.Context) error {
	policy := backoffPolicy{
		base:       500 * time.Millisecond,
		multiplier: 2,
		max:        5 * time.Second,
		attempts:   o.settings.FinalConsolidateAttempts,
	}

	return withRetry(ctx, policy, 10*time.Second, func(attemptCtx context.Context) error {
		return o.ledger.ConsolidateUtxos(attemptCtx, ledger.ConsolidateRequest{
			Address:     o.address,
			PrivateKeys: o.privateKeys,
			TargetCount: o.settings.UtxoSplitCount,
		})
	})
}

func (o *Orchestrator) waitForInFlightHeartbeat(ctx context.Context) {
	deadline := time.Now().Add(o.settings.FinalInFlightWait)

	for time.Now().Before(deadline) {
		o.mu.Lock()
		sending := o.heartbeatSending
		o.mu.Unlock()

		if !sending {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func clampByte(n int) int {
	if n > 255 {
		return 255
	}
	if n < 0 {
		return 0
	}
	return n
}
