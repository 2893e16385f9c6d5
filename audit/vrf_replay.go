package audit

import (
	"github.com/kasparena/anchorcore/vrf"
)

// checkVrfReplay is spec.md §4.7 check 5: replay §4.4 from scratch using
// each move's authoritative entropySnapshot (never substituted with a
// current external value) and the seeded initial state. A mismatch at any
// move is recorded individually; zero matches across the whole run is its
// own fatal reason, since that usually means the seed itself diverged.
func checkVrfReplay(b Bundle, v *Verdict) {
	if len(b.Moves) == 0 {
		v.fail("vrf_chain_integrity_failed: no in-memory move trail to replay")
		return
	}

	chain := vrf.New(b.PlayerID, b.GameID)
	if b.GenesisTxID != "" {
		chain.NotifyGenesisTxID(b.GenesisTxID)
	}

	firstTs := b.Moves[0].TimestampMs
	matches := 0

	for _, mv := range b.Moves {
		out, err := chain.Step(vrf.StepInput{
			ActionCode: mv.ActionCode,
			Lane:       mv.Lane,
			X:          mv.X,
			Y:          mv.Y,
			Z:          mv.Z,
			TimeDelta:  mv.TimeDelta,
			Snapshot:   mv.EntropySnapshot,
		}, firstTs)

		if err != nil {
			v.fail("vrf_chain_mismatch_at_move_%d: replay error: %v", mv.Sequence, err)
			continue
		}

		var frag [4]byte
		copy(frag[:], out[:4])

		if frag != mv.VrfFragment {
			v.fail("vrf_chain_mismatch_at_move_%d", mv.Sequence)
			continue
		}

		matches++
	}

	if matches == 0 {
		v.fail("vrf_chain_integrity_failed")
	}
}
