// Package entropy exposes the most recent ledger block hash usable as one
// of the three entropy inputs to each VRF step (spec.md §4.3). It buffers a
// rolling window of blocks so the VRF chain never blocks on network I/O.
package entropy

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/kasparena/anchorcore/anchorerrors"
	"github.com/kasparena/anchorcore/ulogger"
)

// Source reports where a block hash came from.
type Source string

const (
	SourceLive    Source = "live"
	SourceSession Source = "session"
)

// BlockHash is a single observed block hash plus its provenance.
type BlockHash struct {
	Hash   [32]byte
	Hex    string
	Source Source
}

// Subscription abstracts the ledger's onNewBlock callback registration.
type Subscription interface {
	OnNewBlock(cb func(hash [32]byte)) (unsubscribe func(), err error)
}

// Provider is the entropy source the VRF chain reads from. Its block
// subscription is scoped: acquired on Subscribe, released on Cleanup,
// idempotent for both (spec.md §4.3), grounded on the
// subscribe/cleanup lifecycle shape of util/p2p/P2PNode.go.
type Provider struct {
	mu          sync.Mutex
	logger      ulogger.Logger
	sub         Subscription
	unsubscribe func()
	subscribed  bool
	sessionHash *[32]byte
	window      *ttlcache.Cache[int64, [32]byte]
	windowSeq   int64
}

// NewProvider builds a Provider backed by the given Subscription. Each
// observed block stays in the rolling window for windowTTL; the window has
// no block-count limit.
func NewProvider(logger ulogger.Logger, sub Subscription, windowTTL time.Duration) *Provider {
	window := ttlcache.New[int64, [32]byte](
		ttlcache.WithTTL[int64, [32]byte](windowTTL),
	)
	go window.Start()

	return &Provider{
		logger: logger,
		sub:    sub,
		window: window,
	}
}

// Subscribe acquires the live block subscription. Idempotent.
func (p *Provider) Subscribe() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subscribed {
		return nil
	}

	unsub, err := p.sub.OnNewBlock(p.onBlock)
	if err != nil {
		return anchorerrors.New(anchorerrors.CodeEntropyUnreachable, "subscribe to live blocks", err)
	}

	p.unsubscribe = unsub
	p.subscribed = true

	return nil
}

// Cleanup releases the live block subscription. Idempotent.
func (p *Provider) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.subscribed {
		return
	}

	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.subscribed = false
}

func (p *Provider) onBlock(hash [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.windowSeq++
	p.window.Set(p.windowSeq, hash, ttlcache.DefaultTTL)
}

// CaptureSessionHash records a hash the host process fetched out-of-band
// (e.g. at lobby time), used as a fallback before any live block arrives.
func (p *Provider) CaptureSessionHash(hash [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := hash
	p.sessionHash = &h
}

// GetCurrentBlockHash returns the most recent block hash still within the
// rolling window, falling back to a session-captured hash once the newest
// block has aged out. Fails with CodeEntropyMissing if neither is
// available.
func (p *Provider) GetCurrentBlockHash() (*BlockHash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.windowSeq > 0 {
		if item := p.window.Get(p.windowSeq); item != nil {
			h := item.Value()
			return &BlockHash{Hash: h, Hex: hexOf(h), Source: SourceLive}, nil
		}
	}

	if p.sessionHash != nil {
		return &BlockHash{Hash: *p.sessionHash, Hex: hexOf(*p.sessionHash), Source: SourceSession}, nil
	}

	return nil, anchorerrors.New(anchorerrors.CodeEntropyMissing, "no live block hash available")
}

// BlockHashAtSequence looks up a specific block observed earlier in the
// rolling window, used by an auditor reconciling which block was current
// when a given move's snapshot was taken. Returns ok=false once that
// block has aged out of the window.
func (p *Provider) BlockHashAtSequence(seq int64) (hash [32]byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item := p.window.Get(seq)
	if item == nil {
		return [32]byte{}, false
	}
	return item.Value(), true
}

// CurrentWindowSequence returns the sequence number of the most recent
// block buffered in the window, or 0 before any block has arrived.
func (p *Provider) CurrentWindowSequence() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.windowSeq
}

// GetCachedBlockHash never fails: it returns 32 zero bytes when no hash is
// known yet, so the VRF chain remains deterministic before external data
// arrives (spec.md §3 EntropySnapshot).
func (p *Provider) GetCachedBlockHash() [32]byte {
	bh, err := p.GetCurrentBlockHash()
	if err != nil {
		return [32]byte{}
	}
	return bh.Hash
}

func hexOf(b [32]byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0xF]
	}
	return string(out)
}
