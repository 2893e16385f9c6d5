package audit

import (
	"context"
	"crypto/rsa"
	"encoding/hex"

	"github.com/kasparena/anchorcore/model"
)

var zeroHash32 [32]byte

// checkExternalEntropy is spec.md §4.7 check 2: every genesis BTC hash
// resolves at a known block explorer, the NIST pulse at nistPulseIndex
// exists and matches, and the same holds for every heartbeat delta. A
// nil src (no fetch capability configured) degrades the whole check to a
// single warning rather than failing, per spec.md "absence of fetch is a
// warning, not a failure".
func checkExternalEntropy(ctx context.Context, src EntropySource, betaPub *rsa.PublicKey, d *decoded, v *Verdict) {
	if src == nil {
		v.warn("no external entropy source configured; BTC/NIST checks skipped")
		return
	}

	if d.genesis != nil {
		for _, h := range d.genesis.payload.BtcBlockHashes {
			checkBtcHash(ctx, src, h, v)
		}
		checkNistPulse(ctx, src, betaPub, d.genesis.payload.Nist, v)
	}

	for i, hb := range d.heartbeats {
		if hb.payload.DeltaBtcHash != nil {
			checkBtcHash(ctx, src, *hb.payload.DeltaBtcHash, v)
		}
		if hb.payload.DeltaNist != nil {
			checkNistPulseAt(ctx, src, betaPub, *hb.payload.DeltaNist, v, i)
		}
	}
}

func checkBtcHash(ctx context.Context, src EntropySource, h [32]byte, v *Verdict) {
	if h == zeroHash32 {
		return
	}

	found, err := src.FetchBtcBlock(ctx, hex.EncodeToString(h[:]))
	if err != nil {
		v.warn("btc block explorer unreachable for %x: %v", h, err)
		return
	}
	if !found {
		v.fail("btc_block_unresolved_%x", h)
	}
}

func checkNistPulse(ctx context.Context, src EntropySource, betaPub *rsa.PublicKey, pulse model.NistPulse, v *Verdict) {
	checkNistPulseAt(ctx, src, betaPub, pulse, v, -1)
}

func checkNistPulseAt(ctx context.Context, src EntropySource, betaPub *rsa.PublicKey, pulse model.NistPulse, v *Verdict, heartbeatIdx int) {
	var zero64 [64]byte
	if pulse.OutputHash == zero64 && pulse.PulseIndex == 0 {
		return
	}

	rec, err := src.FetchNistPulse(ctx, pulse.PulseIndex)
	if err != nil {
		v.warn("nist beacon unreachable for pulse %d: %v", pulse.PulseIndex, err)
		return
	}

	if rec.OutputValue != pulse.OutputHash {
		if heartbeatIdx >= 0 {
			v.fail("nist_pulse_mismatch_at_heartbeat_%d", heartbeatIdx)
		} else {
			v.fail("nist_pulse_mismatch_at_genesis")
		}
		return
	}

	if !rec.HasSignature {
		return
	}

	if betaPub == nil {
		v.warn("nist_signature_unverified: no beta public key configured")
		return
	}

	if err := verifyNistSignature(rec, betaPub); err != nil {
		v.fail("nist_signature_invalid for pulse %d: %v", pulse.PulseIndex, err)
	}
}
