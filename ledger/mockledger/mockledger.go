// Package mockledger is an in-process, simulated blockDAG ledger. It
// stands in for a real ledger RPC client in the CLI demo and in tests:
// production ledger transport is out of scope (spec.md §1, Non-goals).
//
// Grounded on services/blockchain/Server.go's block-notification fanout
// (a registry of subscriber channels fed by a single producer loop) and on
// stores/utxo/memory/memory.go's map-backed UTXO store.
package mockledger

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kasparena/anchorcore/anchorerrors"
	"github.com/kasparena/anchorcore/ledger"
)

// recordedTx is a confirmed send, kept so WalkDagRange can scan it.
type recordedTx struct {
	txID       string
	payloadHex string
	blockHash  [32]byte
}

// Ledger simulates a blockDAG payment ledger entirely in memory. DAA score
// advances with each confirmed send; a background ticker emits synthetic
// blocks to subscribers, mimicking the cadence a real block producer would.
type Ledger struct {
	mu sync.Mutex

	utxosByAddr map[string][]ledger.Utxo
	txLog       []recordedTx
	daaScore    uint64

	blockSubs map[string]func(hash [32]byte)

	// FailNextSends, when > 0, makes the next N ManualSend calls fail with
	// the given error before decrementing; used by orchestrator retry
	// tests to simulate transient mempool conflicts (spec.md §8 S5).
	FailNextSends int
	NextSendErr   error

	// upgrader/conns back an optional websocket broadcast of new blocks,
	// so an external demo UI can watch the simulated chain tick over the
	// same transport spec.md's demo client would use.
	upgrader websocket.Upgrader
	conns    []*websocket.Conn
}

// New returns an empty ledger. Call Fund to seed an address with spendable
// outputs before use.
func New() *Ledger {
	return &Ledger{
		utxosByAddr: make(map[string][]ledger.Utxo),
		blockSubs:   make(map[string]func(hash [32]byte)),
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

// Fund seeds address with count outputs of amountKAS each.
func (l *Ledger) Fund(address string, count int, amountKAS float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := 0; i < count; i++ {
		l.utxosByAddr[address] = append(l.utxosByAddr[address], ledger.Utxo{
			TransactionID: uuid.NewString(),
			OutputIndex:   0,
			AmountKAS:     amountKAS,
		})
	}
}

func (l *Ledger) ManualSend(ctx context.Context, req ledger.SendRequest) (*ledger.SendResult, error) {
	l.mu.Lock()

	if l.FailNextSends > 0 {
		l.FailNextSends--
		err := l.NextSendErr
		l.mu.Unlock()
		if err == nil {
			err = anchorerrors.New(anchorerrors.CodeSendUnknown, "simulated send failure")
		}
		return nil, err
	}

	outs := l.utxosByAddr[req.FromAddress]
	if len(outs) == 0 {
		l.mu.Unlock()
		return nil, anchorerrors.New(anchorerrors.CodeInsufficientFunds, "no funds for %s", req.FromAddress)
	}

	// Spend the first available output, simulating a change output back to
	// the sender at a reduced amount (fee deducted).
	spent := outs[0]
	l.utxosByAddr[req.FromAddress] = outs[1:]

	changeAmount := spent.AmountKAS - req.PriorityFee
	txID := uuid.NewString()

	if changeAmount > 0 {
		l.utxosByAddr[req.FromAddress] = append(l.utxosByAddr[req.FromAddress], ledger.Utxo{
			TransactionID: txID,
			OutputIndex:   1,
			AmountKAS:     changeAmount,
		})
	}

	l.daaScore++
	blockHash := sha256.Sum256([]byte(fmt.Sprintf("block-%d-%s", l.daaScore, txID)))
	l.txLog = append(l.txLog, recordedTx{txID: txID, payloadHex: req.PayloadHex, blockHash: blockHash})

	subs := make([]func(hash [32]byte), 0, len(l.blockSubs))
	for _, cb := range l.blockSubs {
		subs = append(subs, cb)
	}
	l.mu.Unlock()

	for _, cb := range subs {
		cb(blockHash)
	}
	l.broadcastBlock(blockHash)

	return &ledger.SendResult{TransactionID: txID}, nil
}

func (l *Ledger) GetUtxos(ctx context.Context, address string, minAmountKAS float64) ([]ledger.Utxo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ledger.Utxo
	for _, u := range l.utxosByAddr[address] {
		if u.AmountKAS >= minAmountKAS {
			out = append(out, u)
		}
	}
	return out, nil
}

func (l *Ledger) SplitUtxos(ctx context.Context, req ledger.SplitRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	outs := l.utxosByAddr[req.Address]
	if len(outs) == 0 {
		return anchorerrors.New(anchorerrors.CodeInsufficientFunds, "nothing to split for %s", req.Address)
	}

	total := 0.0
	for _, o := range outs {
		total += o.AmountKAS
	}

	if req.SplitCount <= 0 {
		return anchorerrors.New(anchorerrors.CodeSendUnknown, "split count must be positive")
	}

	piece := total / float64(req.SplitCount)

	fresh := make([]ledger.Utxo, 0, req.SplitCount)
	for i := 0; i < req.SplitCount; i++ {
		fresh = append(fresh, ledger.Utxo{
			TransactionID: uuid.NewString(),
			OutputIndex:   uint32(i),
			AmountKAS:     piece,
		})
	}

	l.utxosByAddr[req.Address] = fresh
	return nil
}

func (l *Ledger) ConsolidateUtxos(ctx context.Context, req ledger.ConsolidateRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	outs := l.utxosByAddr[req.Address]
	if len(outs) <= req.TargetCount {
		return nil
	}

	total := 0.0
	for _, o := range outs {
		total += o.AmountKAS
	}

	piece := total / float64(req.TargetCount)
	fresh := make([]ledger.Utxo, 0, req.TargetCount)
	for i := 0; i < req.TargetCount; i++ {
		fresh = append(fresh, ledger.Utxo{
			TransactionID: uuid.NewString(),
			OutputIndex:   uint32(i),
			AmountKAS:     piece,
		})
	}

	l.utxosByAddr[req.Address] = fresh
	return nil
}

func (l *Ledger) OnNewBlock(cb func(hash [32]byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := uuid.NewString()
	l.blockSubs[id] = cb

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.blockSubs, id)
	}, nil
}

// WalkDagRange scans the recorded send log for payloads beginning with any
// of the requested prefixes, invoking onMatch for each. StartHash/EndHash
// are accepted for interface parity but unused: the simulated ledger keeps
// no block index, only send order.
func (l *Ledger) WalkDagRange(ctx context.Context, req ledger.DagWalkRequest) error {
	l.mu.Lock()
	txs := make([]recordedTx, len(l.txLog))
	copy(txs, l.txLog)
	l.mu.Unlock()

	for _, tx := range txs {
		if len(tx.payloadHex) < 8 {
			continue
		}

		for _, prefix := range req.Prefixes {
			if payloadHasPrefix(tx.payloadHex, prefix) {
				req.OnMatch(ledger.DagMatch{
					TransactionID: tx.txID,
					PayloadHex:    tx.payloadHex,
					BlockHash:     tx.blockHash,
				})
				break
			}
		}
	}

	return nil
}

func payloadHasPrefix(payloadHex string, prefix [4]byte) bool {
	if len(payloadHex) < 8 {
		return false
	}
	for i, b := range prefix {
		hi := "0123456789abcdef"[b>>4]
		lo := "0123456789abcdef"[b&0xF]
		if payloadHex[i*2] != hi || payloadHex[i*2+1] != lo {
			return false
		}
	}
	return true
}

// StartBlockTicker emits a synthetic empty block every interval, useful for
// feeding the entropy provider in the CLI demo without any real traffic.
func (l *Ledger) StartBlockTicker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var hash [32]byte
				if _, err := rand.Read(hash[:]); err != nil {
					continue
				}

				l.mu.Lock()
				l.daaScore++
				subs := make([]func(hash [32]byte), 0, len(l.blockSubs))
				for _, cb := range l.blockSubs {
					subs = append(subs, cb)
				}
				l.mu.Unlock()

				for _, cb := range subs {
					cb(hash)
				}
				l.broadcastBlock(hash)
			}
		}
	}()
}

func (l *Ledger) broadcastBlock(hash [32]byte) {
	l.mu.Lock()
	conns := make([]*websocket.Conn, len(l.conns))
	copy(conns, l.conns)
	l.mu.Unlock()

	msg := fmt.Sprintf("%x", hash)
	for _, c := range conns {
		_ = c.WriteMessage(websocket.TextMessage, []byte(msg))
	}
}

// ServeWS upgrades an HTTP connection and registers it to receive every
// broadcast block hash as a text frame, letting the CLI demo watch the
// simulated chain tick over the same transport a real demo client would.
func (l *Ledger) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	l.mu.Lock()
	l.conns = append(l.conns, conn)
	l.mu.Unlock()

	go func() {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

var _ ledger.Adapter = (*Ledger)(nil)
