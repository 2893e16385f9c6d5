package audit

import (
	"github.com/kasparena/anchorcore/anchor/codec"
	"github.com/kasparena/anchorcore/model"
)

type decodedAnchor[T any] struct {
	txID    string
	payload T
}

type decoded struct {
	genesis    *decodedAnchor[*model.GenesisPayload]
	heartbeats []decodedAnchor[*model.HeartbeatPayload]
	final      *decodedAnchor[*model.FinalPayload]
}

// decodeBundle parses every anchor record under the v5 layout, the first
// of spec.md §4.7's ordered checks. Decode failures accumulate as reasons
// rather than aborting, so later checks still run over whatever decoded.
func decodeBundle(b Bundle, v *Verdict) *decoded {
	d := &decoded{}
	gameTag := codec.GameIDTag(b.GameID)

	if b.Genesis.PayloadHex == "" {
		v.fail("genesis anchor missing")
	} else if gp, ok := decodeOne(b.Genesis, model.AnchorTypeGenesis, gameTag, codec.DecodeGenesis, v); ok {
		d.genesis = &decodedAnchor[*model.GenesisPayload]{txID: b.Genesis.TxID, payload: gp}
	}

	for i, hb := range b.Heartbeats {
		if hp, ok := decodeOne(hb, model.AnchorTypeHeartbeat, gameTag, codec.DecodeHeartbeat, v); ok {
			d.heartbeats = append(d.heartbeats, decodedAnchor[*model.HeartbeatPayload]{txID: hb.TxID, payload: hp})
		} else {
			v.fail("heartbeat %d failed to decode, skipped from chain reconstruction", i)
		}
	}

	if b.Final.PayloadHex == "" {
		v.fail("final anchor missing")
	} else if fp, ok := decodeOne(b.Final, model.AnchorTypeFinal, gameTag, codec.DecodeFinal, v); ok {
		d.final = &decodedAnchor[*model.FinalPayload]{txID: b.Final.TxID, payload: fp}
	}

	return d
}

func decodeOne[T any](rec AnchorRecord, want model.AnchorType, gameTag [4]byte, decodeFn func([]byte) (T, error), v *Verdict) (T, bool) {
	var zero T

	t, tag, body, err := codec.Unframe(rec.PayloadHex)
	if err != nil {
		v.fail("%s anchor %s: %v", want, rec.TxID, err)
		return zero, false
	}

	if t != want {
		v.fail("%s anchor %s carries type %s instead", want, rec.TxID, t)
		return zero, false
	}

	if tag != gameTag {
		v.fail("%s anchor %s carries a game id tag for a different game", want, rec.TxID)
		return zero, false
	}

	p, err := decodeFn(body)
	if err != nil {
		v.fail("%s anchor %s: %v", want, rec.TxID, err)
		return zero, false
	}

	return p, true
}
