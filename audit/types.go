// Package audit implements the mirror pipeline of spec.md §4.7: given the
// three anchor categories, replay the VRF chain, rebuild the move Merkle
// tree, and cross-check external entropy, producing a verdict without ever
// mutating game state (spec.md §3 "AuditVerifier owns only read-only
// views").
package audit

import (
	"context"
	"fmt"

	"github.com/kasparena/anchorcore/model"
)

// Verdict is the accumulated outcome of the five ordered checks of
// spec.md §4.7. It is clean iff Reasons is empty; Warnings are advisory
// and never affect cleanliness.
type Verdict struct {
	OK       bool
	Reasons  []string
	Warnings []string
}

func (v *Verdict) fail(format string, args ...any) {
	v.Reasons = append(v.Reasons, fmt.Sprintf(format, args...))
	v.OK = false
}

func (v *Verdict) warn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// NistPulseRecord is a decoded NIST beacon pulse, fetched externally at
// audit time (spec.md §6 "Entropy providers").
type NistPulseRecord struct {
	PulseIndex   uint64
	OutputValue  [64]byte
	SignatureHex string
	HasSignature bool

	// SignedBuffer is the reconstructed partial signed buffer (pulseIndex
	// + outputValue only, see reconstructBeaconBuffer) used to verify
	// SignatureHex against a caller-supplied beta public key.
	SignedBuffer []byte
}

// EntropySource is the audit-time external collaborator for spec.md §4.7
// check 2: resolving genesis/delta BTC block hashes and NIST pulses. It is
// never consulted on the orchestrator's hot path (spec.md §5).
type EntropySource interface {
	FetchBtcBlock(ctx context.Context, blockHashHex string) (bool, error)
	FetchNistPulse(ctx context.Context, index uint64) (*NistPulseRecord, error)
}

// AnchorRecord pairs a sent anchor's transaction id with its payload hex,
// the shape a DAG walk (ledger.DagMatch) or an in-process orchestrator
// recording both naturally produce.
type AnchorRecord struct {
	TxID       string
	PayloadHex string
}

// Bundle is the input to Verify: anchors walked from the ledger DAG
// (Genesis/Heartbeats/Final, in chain order) plus, optionally, the richer
// in-memory state an orchestrator produced directly during play (Moves,
// carrying each move's authoritative EntropySnapshot). The anchors alone
// drive the structural/entropy/result/merkle checks; the VRF replay check
// additionally needs Moves, because only a Move's EntropySnapshot carries
// KaspaBlockHash (the wire framing never transmits it, spec.md §4.1) — a
// Bundle without Moves still runs checks 1-4 and reports
// vrf_chain_integrity_failed rather than skipping check 5 silently.
type Bundle struct {
	GameID string

	Genesis    AnchorRecord
	Heartbeats []AnchorRecord
	Final      AnchorRecord

	// Moves and GenesisTxID are the in-memory path (§3(a)): present when
	// the caller is the same process that played the game.
	Moves       []model.Move
	GenesisTxID string
	PlayerID    string

	Actions *model.ActionMap // nil uses model.NewActionMap()
}
