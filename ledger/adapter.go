// Package ledger defines the narrow capability surface the core needs from
// a blockDAG payment ledger (spec.md §6), and carries the one in-process
// implementation this repo ships: mockledger.
package ledger

import "context"

// SendRequest is the opaque payload manualSend accepts (spec.md §6).
type SendRequest struct {
	FromAddress string
	ToAddress   string
	AmountKAS   float64
	PrivateKeys []string
	PriorityFee float64
	PayloadHex  string
	JanitorMode bool
}

// SendResult reports the outcome of a successful send.
type SendResult struct {
	TransactionID string
}

// Utxo is one ledger-reported spendable output.
type Utxo struct {
	TransactionID string
	OutputIndex   uint32
	AmountKAS     float64
}

// SplitRequest asks the ledger to split one output into splitCount pieces.
type SplitRequest struct {
	Address     string
	SplitCount  int
	PrivateKeys []string
}

// ConsolidateRequest asks the ledger to merge outputs down to targetCount.
type ConsolidateRequest struct {
	Address     string
	PrivateKeys []string
	TargetCount int
}

// DagMatch is one payload found during a WalkDagRange scan.
type DagMatch struct {
	TransactionID string
	PayloadHex    string
	BlockHash     [32]byte
}

// DagWalkRequest scopes a WalkDagRange scan to a block range and a set of
// 4-byte framing prefixes the caller is interested in (spec.md §4.1
// "Framing", the prefix+gameIdTag convention anchor/codec.Frame produces).
type DagWalkRequest struct {
	StartHash [32]byte
	EndHash   [32]byte
	Prefixes  [][4]byte
	OnMatch   func(DagMatch)
}

// Adapter is the ledger capability surface spec.md §6 names: manualSend,
// getUtxos, splitUtxos, consolidateUtxos, onNewBlock, walkDagRange.
// Implementations may be any ledger supporting OP_RETURN-style arbitrary
// payloads and a DAG walk; production RPC transport is out of scope, this
// repo carries only ledger/mockledger.
type Adapter interface {
	ManualSend(ctx context.Context, req SendRequest) (*SendResult, error)
	GetUtxos(ctx context.Context, address string, minAmountKAS float64) ([]Utxo, error)
	SplitUtxos(ctx context.Context, req SplitRequest) error
	ConsolidateUtxos(ctx context.Context, req ConsolidateRequest) error
	OnNewBlock(cb func(hash [32]byte)) (unsubscribe func(), err error)
	WalkDagRange(ctx context.Context, req DagWalkRequest) error
}
