package orchestrator

import (
	"github.com/kasparena/anchorcore/entropy"
	"github.com/kasparena/anchorcore/merkle"
	"github.com/kasparena/anchorcore/model"
	"github.com/kasparena/anchorcore/stores/utxo"
	"github.com/kasparena/anchorcore/vrf"
)

// AnchorChain returns a copy of every anchor sent so far, in send order.
// Used by cmd/anchor-audit and tests to feed audit.Bundle without exposing
// the orchestrator's internal lock.
func (o *Orchestrator) AnchorChain() []model.AnchorChainEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]model.AnchorChainEntry, len(o.anchorChain))
	copy(out, o.anchorChain)
	return out
}

// GenesisTxID returns the confirmed genesis transaction id, or "" before
// AnchorGenesisSeed has succeeded.
func (o *Orchestrator) GenesisTxID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.genesisTxID
}

// Moves returns every move recorded in the vault so far, in sequence order.
func (o *Orchestrator) Moves() []model.Move {
	return o.vault.Moves()
}

// Chain returns the orchestrator's VRF chain. Move submission is not the
// orchestrator's responsibility (spec.md §3 "Ownership": the orchestrator
// only batches and sends what the vault already holds) — a live game
// client steps this chain and records the result into Vault() itself, the
// same split playOutGame's test harness exercises.
func (o *Orchestrator) Chain() *vrf.Chain {
	return o.chain
}

// Vault returns the orchestrator's move vault.
func (o *Orchestrator) Vault() *merkle.MoveVault {
	return o.vault
}

// Entropy returns the orchestrator's block-hash provider, so a live game
// client can stamp a move's EntropySnapshot with the current Kaspa block
// hash before recording it into the vault.
func (o *Orchestrator) Entropy() *entropy.Provider {
	return o.entropy
}

// Pool returns the orchestrator's UTXO pool.
func (o *Orchestrator) Pool() *utxo.Pool {
	return o.pool
}
