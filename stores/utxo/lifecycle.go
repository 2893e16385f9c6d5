package utxo

import (
	"context"
	"time"

	"github.com/kasparena/anchorcore/model"
	"github.com/kasparena/anchorcore/ulogger"
)

// usabilityThresholdKAS is the minimum output amount a fetched UTXO must
// carry to count toward the pool (spec.md §4.6).
const usabilityThresholdKAS = 0.6

// LedgerClient is the narrow slice of the ledger adapter the pool's
// lifecycle methods need. ledger.Adapter does not satisfy it directly: its
// GetUtxos also takes an address and its SplitUtxos takes a SplitRequest.
type LedgerClient interface {
	GetUtxos(ctx context.Context, minAmountKAS float64) ([]LedgerUtxo, error)
	SplitUtxos(ctx context.Context, count int) error
}

// LedgerUtxo is a raw fetched output, shaped independently of model.UtxoEntry
// so this package does not need to import ledger's wire types.
type LedgerUtxo struct {
	TransactionID string
	OutputIndex   uint32
	AmountKAS     float64
}

// EnsurePoolReady is the pool's only method permitted to block on network
// I/O (spec.md §4.6). It fetches usable outputs, refills the in-memory
// pool, and issues a single split transaction if still under target.
func (p *Pool) EnsurePoolReady(ctx context.Context, ledger LedgerClient, log ulogger.Logger) error {
	utxos, err := ledger.GetUtxos(ctx, usabilityThresholdKAS)
	if err != nil {
		return err
	}

	for _, u := range utxos {
		p.Add(toEntry(u))
	}

	if p.AvailableCount() < p.minReadyCount {
		log.Infof("utxo pool below target (%d/%d), issuing split", p.AvailableCount(), p.minReadyCount)
		if err := ledger.SplitUtxos(ctx, p.minReadyCount); err != nil {
			return err
		}
	}

	p.SetDegraded(false)
	return nil
}

// PrepareForGame is the instant, non-blocking lobby-entry check. On an
// empty pool it attempts one best-effort recovery fetch with a short
// deadline; if still empty it enters degraded mode and starts a background
// replenishment ticker (spec.md §4.6).
func (p *Pool) PrepareForGame(ctx context.Context, ledger LedgerClient, log ulogger.Logger) {
	if p.AvailableCount() > 0 {
		p.SetDegraded(false)
		return
	}

	recoveryCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()

	if utxos, err := ledger.GetUtxos(recoveryCtx, usabilityThresholdKAS); err == nil {
		for _, u := range utxos {
			p.Add(toEntry(u))
		}
	}

	if p.AvailableCount() > 0 {
		p.SetDegraded(false)
		return
	}

	log.Warnf("utxo pool empty entering game, degraded mode engaged")
	p.SetDegraded(true)
	go p.replenishmentLoop(ctx, ledger, log)
}

func (p *Pool) replenishmentLoop(ctx context.Context, ledger LedgerClient, log ulogger.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.Degraded() {
				return
			}
			if utxos, err := ledger.GetUtxos(ctx, usabilityThresholdKAS); err == nil {
				for _, u := range utxos {
					p.Add(toEntry(u))
				}
			}
			if p.AvailableCount() > 0 {
				p.SetDegraded(false)
				log.Infof("utxo pool recovered from degraded mode")
				return
			}
		}
	}
}

// NotifyTxResult schedules a delayed refresh after a successful send, to
// pick up the change output the ledger will have produced.
func (p *Pool) NotifyTxResult(ctx context.Context, success bool, ledger LedgerClient, log ulogger.Logger) {
	if !success {
		return
	}

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}

		utxos, err := ledger.GetUtxos(ctx, usabilityThresholdKAS)
		if err != nil {
			log.Warnf("post-send pool refresh failed: %v", err)
			return
		}
		for _, u := range utxos {
			p.Add(toEntry(u))
		}
	}()
}

func toEntry(u LedgerUtxo) model.UtxoEntry {
	return model.UtxoEntry{
		Outpoint:  model.Outpoint{TransactionID: u.TransactionID, OutputIndex: u.OutputIndex},
		AmountKAS: u.AmountKAS,
	}
}
