// Package model holds the wire-independent data types shared by the codec,
// the VRF chain, the Merkle tree and the audit verifier.
package model

// ActionMove is the reserved action code that carries a 3D coordinate
// instead of a lane/value pair.
const ActionMove = 1

// EntropySnapshot captures the entropy inputs in effect when a move's VRF
// step was computed, so an auditor can reproduce that step later regardless
// of when external data arrived.
type EntropySnapshot struct {
	NistOutputHash      [64]byte
	BtcHash             [32]byte
	KaspaBlockHash      [32]byte
	IsGenesisReinforced bool
	InitTimestamp       int64 // 0 means unset
}

// Move is one player action recorded during a match.
type Move struct {
	Sequence        uint32
	Action          string
	ActionCode      uint8
	Lane            uint8 // valid for all actions except ActionMove
	X, Y, Z         float64
	TimestampMs     int64
	TimeDelta       uint8 // units of TIME_DELTA_SCALE ms, saturated to 255
	VrfFragment     [4]byte
	VrfOutput       [32]byte
	EntropySnapshot EntropySnapshot
}

// IsCoordinateAction reports whether this move carries x/y/z instead of a
// lane+value pair.
func (m *Move) IsCoordinateAction() bool {
	return m.ActionCode == ActionMove
}
