// Package utxo is the pre-split pool of spendable outputs that keeps
// reserve() free of network I/O during gameplay (spec.md §4.6). Reserve
// scans the entry index for an Available entry, so its cost grows with the
// number of tracked entries.
// Grounded on stores/utxo/memory/memory.go's map-backed store, generalized
// from a single Get/Store pair to full pool lifecycle semantics.
package utxo

import (
	"context"
	"sync"
	"time"

	"github.com/dolthub/swiss"
	"github.com/jellydator/ttlcache/v3"

	"github.com/kasparena/anchorcore/anchorerrors"
	"github.com/kasparena/anchorcore/model"
)

// Event is emitted on pool size transitions (spec.md §4.6 "Pool events").
type Event string

const (
	EventReady Event = "ready"
	EventLow   Event = "low"
	EventEmpty Event = "empty"
)

func outpointKey(o model.Outpoint) string {
	return o.TransactionID + ":" + itoa(o.OutputIndex)
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Pool is the UTXO reservation pool. All mutation goes through its
// reserve/release/markSpent/add interface; callers never iterate entries
// directly (spec.md §5 "Shared-resource policy").
type Pool struct {
	mu sync.Mutex

	entries *swiss.Map[string, *model.UtxoEntry]

	lowThreshold     int
	minReadyCount    int
	staleAge         time.Duration
	reservationTTL   *ttlcache.Cache[string, time.Time]

	degraded bool

	onEvent func(Event)
}

// Option configures a Pool at construction.
type Option func(*Pool)

// WithOnEvent registers a callback for ready/low/empty transitions.
func WithOnEvent(fn func(Event)) Option {
	return func(p *Pool) { p.onEvent = fn }
}

// New builds an empty pool. minReadyCount is the target split count
// (UTXO_SPLIT_COUNT), lowThreshold is UTXO_LOW_THRESHOLD, staleAge is the
// default age releaseStaleReservations reverts.
func New(minReadyCount, lowThreshold int, staleAge time.Duration, opts ...Option) *Pool {
	p := &Pool{
		entries:       swiss.NewMap[string, *model.UtxoEntry](uint32(minReadyCount * 2)),
		lowThreshold:  lowThreshold,
		minReadyCount: minReadyCount,
		staleAge:      staleAge,
		reservationTTL: ttlcache.New[string, time.Time](
			ttlcache.WithTTL[string, time.Time](staleAge),
		),
	}

	p.reservationTTL.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, time.Time]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		p.revertStaleReservation(item.Key())
	})

	for _, opt := range opts {
		opt(p)
	}

	go p.reservationTTL.Start()

	return p
}

// revertStaleReservation is the reservationTTL eviction callback: once a
// reservation's TTL elapses the cache itself tells the pool to revert it,
// rather than the pool polling for expiry.
func (p *Pool) revertStaleReservation(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries.Get(key)
	if !ok || e.Status != model.UtxoReserved {
		return
	}

	e.Status = model.UtxoAvailable
	e.ReservedAt = time.Time{}
	p.emitLocked()
}

// Add inserts a fresh Available entry, used by ensurePoolReady and by
// post-send replenishment.
func (p *Pool) Add(entry model.UtxoEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry.Status = model.UtxoAvailable
	p.entries.Put(outpointKey(entry.Outpoint), &entry)

	p.emitLocked()
}

// Reserve picks any Available entry, marks it Reserved with a timestamp,
// and returns it. It scans the entry index until it finds an Available
// entry, so it is not O(1); it never performs network I/O. Fails with
// CodePoolEmpty when none is available.
func (p *Pool) Reserve() (*model.UtxoEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var found *model.UtxoEntry

	p.entries.Iter(func(_ string, e *model.UtxoEntry) (stop bool) {
		if e.Status == model.UtxoAvailable {
			found = e
			return true
		}
		return false
	})

	if found == nil {
		p.emitLocked()
		return nil, anchorerrors.New(anchorerrors.CodePoolEmpty, "no available utxo entries")
	}

	found.Status = model.UtxoReserved
	found.ReservedAt = time.Now()
	p.reservationTTL.Set(outpointKey(found.Outpoint), found.ReservedAt, ttlcache.DefaultTTL)

	p.emitLocked()

	cp := *found
	return &cp, nil
}

// Release restores a Reserved entry to Available, used on send failure.
// Spent entries are terminal and cannot be released.
func (p *Pool) Release(op model.Outpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries.Get(outpointKey(op))
	if !ok {
		return anchorerrors.New(anchorerrors.CodePoolEmpty, "release: outpoint not tracked")
	}

	if e.Status == model.UtxoSpent {
		return anchorerrors.New(anchorerrors.CodePoolEmpty, "release: outpoint already spent")
	}

	e.Status = model.UtxoAvailable
	e.ReservedAt = time.Time{}
	p.reservationTTL.Delete(outpointKey(op))

	p.emitLocked()
	return nil
}

// MarkSpent terminalizes a Reserved entry.
func (p *Pool) MarkSpent(op model.Outpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries.Get(outpointKey(op))
	if !ok {
		return anchorerrors.New(anchorerrors.CodePoolEmpty, "markSpent: outpoint not tracked")
	}

	e.Status = model.UtxoSpent
	p.reservationTTL.Delete(outpointKey(op))

	p.emitLocked()
	return nil
}

// ReleaseStaleReservations reverts Reserved entries older than age back to
// Available. Default age is 10s (spec.md §4.6). A reservation whose TTL has
// already elapsed is reverted automatically by the reservationTTL eviction
// callback and never reaches here; this covers an age tighter than the
// cache's configured TTL, read from the reservationTTL table itself rather
// than rescanning entries.
func (p *Pool) ReleaseStaleReservations(age time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-age)
	released := 0

	for key, item := range p.reservationTTL.Items() {
		if item.Value().After(cutoff) {
			continue
		}

		e, ok := p.entries.Get(key)
		if !ok || e.Status != model.UtxoReserved {
			continue
		}

		e.Status = model.UtxoAvailable
		e.ReservedAt = time.Time{}
		p.reservationTTL.Delete(key)
		released++
	}

	if released > 0 {
		p.emitLocked()
	}

	return released
}

// AvailableCount reports how many entries are currently Available.
func (p *Pool) AvailableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.availableCountLocked()
}

func (p *Pool) availableCountLocked() int {
	n := 0
	p.entries.Iter(func(_ string, e *model.UtxoEntry) (stop bool) {
		if e.Status == model.UtxoAvailable {
			n++
		}
		return false
	})
	return n
}

// Degraded reports whether the pool has entered degraded mode (spec.md
// §4.6 prepareForGame), in which the orchestrator must skip heartbeats.
func (p *Pool) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

// SetDegraded flips degraded mode explicitly (used by PrepareForGame).
func (p *Pool) SetDegraded(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.degraded = v
}

func (p *Pool) emitLocked() {
	if p.onEvent == nil {
		return
	}

	n := p.availableCountLocked()

	switch {
	case n == 0:
		p.onEvent(EventEmpty)
	case n < p.lowThreshold:
		p.onEvent(EventLow)
	case n >= p.minReadyCount:
		p.onEvent(EventReady)
	}
}
