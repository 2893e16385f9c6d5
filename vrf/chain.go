// Package vrf implements the stateful VRF chain engine of spec.md §4.4: a
// deterministic, replayable 32-byte output per move, chained across moves
// and reinforced once by the confirmed genesis transaction id.
package vrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/kasparena/anchorcore/anchor/codec"
	"github.com/kasparena/anchorcore/anchorerrors"
	"github.com/kasparena/anchorcore/internal/cryptoprim"
	"github.com/kasparena/anchorcore/model"
)

// foldSeedSuffix is the literal constant spec.md §9 names as the fold
// seed's default tail when no genesis txid is available yet. Open
// Question #4 (DESIGN.md) is resolved literally: pre-genesis moves chain
// under this seed alone, post-genesis moves chain under
// genesisTxId||gameId||foldSeedSuffix, and genesis reinforcement does not
// retroactively reseed already-chained moves.
const foldSeedSuffix = "kktp"

// StepInput is everything the engine needs to advance one move.
type StepInput struct {
	ActionCode uint8
	Lane       uint8 // used when ActionCode != model.ActionMove
	X, Y, Z    float64
	TimeDelta  uint8
	Snapshot   model.EntropySnapshot
}

// Chain is a single 32-byte VRF state baton plus the one-time genesis
// reinforcement flag, guarded by a coalescing mutex (spec.md §5.1): a
// single-slot lock whose holder's completion every other caller awaits, so
// two concurrent moves can never interleave state reads and writes.
type Chain struct {
	mu sync.Mutex // acts as the single-slot coalescing lock directly;
	// Go's sync.Mutex already blocks a second acquirer until the first
	// releases, which is exactly the single-slot semantics spec.md asks
	// for — no separate channel-based lock is needed on top of it.

	playerID    string
	gameID      string
	initialized bool
	state       [32]byte

	genesisTxID       string
	genesisReinforced bool

	lastBtcHash  [32]byte
	lastNistHash [64]byte
	pendingBTC   *[32]byte
	pendingNIST  *model.NistPulse
}

// New returns an uninitialized chain for one player/game pair. The state
// is seeded lazily on the first move.
func New(playerID, gameID string) *Chain {
	return &Chain{playerID: playerID, gameID: gameID}
}

// NotifyGenesisTxID reports the confirmed genesis transaction id. The next
// Step call folds it into the chain state exactly once.
func (c *Chain) NotifyGenesisTxID(txID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genesisTxID = txID
}

func (c *Chain) seedIfNeeded(firstMoveTimestampMs int64) {
	if c.initialized {
		return
	}

	material := fmt.Sprintf("%s:%s:%d", c.playerID, c.gameID, firstMoveTimestampMs)
	c.state = sha256.Sum256([]byte(material))
	c.initialized = true
}

func (c *Chain) reinforceIfDue() {
	if c.genesisTxID == "" || c.genesisReinforced {
		return
	}

	h := sha256.New()
	h.Write(c.state[:])
	h.Write([]byte(c.genesisTxID))
	copy(c.state[:], h.Sum(nil))

	c.genesisReinforced = true
}

// Step advances the chain by one move and returns the 32-byte VRF output
// (the caller takes fragment = output[:4]). firstMoveTimestampMs seeds the
// chain on the very first call and is ignored thereafter.
func (c *Chain) Step(in StepInput, firstMoveTimestampMs int64) ([32]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seedIfNeeded(firstMoveTimestampMs)
	c.reinforceIfDue()

	c.trackDeltas(in.Snapshot)

	dataBuffer := buildDataBuffer(c.state, in)

	mac := hmac.New(sha256.New, c.state[:])
	mac.Write(dataBuffer)
	hmacSum := mac.Sum(nil)

	entropyHashInput := append(append(append([]byte{}, in.Snapshot.KaspaBlockHash[:]...), in.Snapshot.NistOutputHash[:]...), in.Snapshot.BtcHash[:]...)
	entropyHash := sha256.Sum256(entropyHashInput)

	seed := c.foldSeed(c.genesisReinforced)

	foldedHex, err := cryptoprim.Fold(fmt.Sprintf("%x", hmacSum), fmt.Sprintf("%x", entropyHash), seed)
	if err != nil {
		return [32]byte{}, anchorerrors.New(anchorerrors.CodeFoldingExtraction, "vrf fold failed", err)
	}

	out := sha256.Sum256([]byte(foldedHex))
	c.state = out

	return out, nil
}

// foldSeed reproduces the discontinuity spec.md §9 flags as load-bearing:
// the seed depends on genesis-txid availability at fold time, and genesis
// reinforcement never retroactively reseeds moves chained before it.
func (c *Chain) foldSeed(reinforced bool) string {
	if reinforced && c.genesisTxID != "" {
		return c.genesisTxID + c.gameID + foldSeedSuffix
	}
	return foldSeedSuffix
}

func buildDataBuffer(state [32]byte, in StepInput) []byte {
	buf := make([]byte, 0, 136)
	buf = append(buf, state[:]...)
	buf = append(buf, in.ActionCode)

	if in.ActionCode == model.ActionMove {
		xRaw := codec.EncodeCoord14(in.X)
		yRaw := codec.EncodeCoord14(in.Y)
		zRaw := codec.EncodeCoord14(in.Z)
		buf = append(buf, byte(xRaw>>8), byte(xRaw))
		buf = append(buf, byte(yRaw>>8), byte(yRaw))
		buf = append(buf, byte(zRaw>>8), byte(zRaw))
		buf = append(buf, in.TimeDelta)
	} else {
		buf = append(buf, in.Lane, in.TimeDelta)
	}

	nistHash := sha256.Sum256(nistOrZero(in.Snapshot.NistOutputHash))
	buf = append(buf, nistHash[:]...)
	buf = append(buf, in.Snapshot.BtcHash[:]...)
	buf = append(buf, in.Snapshot.KaspaBlockHash[:]...)

	return buf
}

func nistOrZero(h [64]byte) []byte {
	var zero [64]byte
	if h == zero {
		return make([]byte, 64)
	}
	return h[:]
}

// trackDeltas records a pending BTC/NIST delta when the observed value
// changes compared to the last anchored one (spec.md §4.4 "Delta
// tracking"). The orchestrator drains and clears these via TakePendingBTC
// / TakePendingNIST each heartbeat.
func (c *Chain) trackDeltas(snap model.EntropySnapshot) {
	if snap.BtcHash != c.lastBtcHash {
		h := snap.BtcHash
		c.pendingBTC = &h
		c.lastBtcHash = snap.BtcHash
	}

	if snap.NistOutputHash != c.lastNistHash {
		c.lastNistHash = snap.NistOutputHash
		// A full pulse record isn't available from the snapshot alone
		// (only its output hash is); a pending NIST delta exists only once a
		// caller supplies the full record via RecordNistPulse.
	}
}

// RecordNistPulse supplies the full NIST pulse record the heartbeat delta
// needs. The orchestrator does not call it; it only drains the pending
// delta via TakePendingNIST.
func (c *Chain) RecordNistPulse(p model.NistPulse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingNIST = &p
}

// TakePendingBTC returns and clears the pending BTC delta, if any.
func (c *Chain) TakePendingBTC() *[32]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pendingBTC
	c.pendingBTC = nil
	return p
}

// TakePendingNIST returns and clears the pending NIST delta, if any.
func (c *Chain) TakePendingNIST() *model.NistPulse {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pendingNIST
	c.pendingNIST = nil
	return p
}

// GenesisReinforced reports whether the genesis txid has been folded in
// yet.
func (c *Chain) GenesisReinforced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.genesisReinforced
}
