package audit

import (
	"github.com/kasparena/anchorcore/merkle"
	"github.com/kasparena/anchorcore/model"
)

// checkMerkleReconciliation is spec.md §4.7 check 4: rebuild the Merkle
// tree from anchored moves in sequence order; each heartbeat's embedded
// root must match the cumulative root at that move boundary, and the
// final anchor's root must match the overall root.
func checkMerkleReconciliation(d *decoded, actions *model.ActionMap, v *Verdict) {
	var leaves []string

	for i, hb := range d.heartbeats {
		for _, mv := range hb.payload.Moves {
			leaves = append(leaves, merkle.LeafHash(packetToMove(mv, actions)))
		}

		got := merkle.RootOf(leaves)
		want := hexString(hb.payload.MerkleRoot[:])
		if got != want {
			v.fail("heartbeat %d's embedded root does not match the cumulative root at move %d", i, len(leaves))
		}
	}

	if d.final == nil {
		return
	}

	got := merkle.RootOf(leaves)
	want := hexString(d.final.payload.FinalMerkleRoot[:])
	if got != want {
		v.fail("final anchor's root does not match the overall move root")
	}
}

func packetToMove(p model.HeartbeatMovePacket, actions *model.ActionMap) *model.Move {
	return &model.Move{
		Action:      actions.CodeToAction(p.ActionCode),
		ActionCode:  p.ActionCode,
		Lane:        p.Lane,
		X:           p.X,
		Y:           p.Y,
		Z:           p.Z,
		TimeDelta:   p.TimeDelta,
		VrfFragment: p.VrfFragment,
	}
}

func hexString(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0xF]
	}
	return string(out)
}
