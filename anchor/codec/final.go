package codec

import (
	"encoding/binary"

	"github.com/kasparena/anchorcore/model"
)

const (
	FinalVersion = 5
	FinalSize    = 144

	offFinVersion    = 0
	offFinType       = 1
	offFinRoot       = 2
	offFinGenesisTx  = 34
	offFinPrevTx     = 66
	offFinResultHash = 98
	offFinScore      = 130
	offFinCoins      = 134
	offFinRaceTime   = 138
	offFinOutcome    = 142
	offFinMoves      = 143
)

// EncodeFinal produces the 144-byte final anchor body.
func EncodeFinal(p *model.FinalPayload) ([]byte, error) {
	buf := make([]byte, FinalSize)

	buf[offFinVersion] = FinalVersion
	buf[offFinType] = uint8(model.AnchorTypeFinal)
	copy(buf[offFinRoot:offFinRoot+32], p.FinalMerkleRoot[:])
	copy(buf[offFinGenesisTx:offFinGenesisTx+32], p.GenesisTxID[:])
	copy(buf[offFinPrevTx:offFinPrevTx+32], p.PrevTxID[:])
	copy(buf[offFinResultHash:offFinResultHash+32], p.ResultLeafHash[:])

	binary.BigEndian.PutUint32(buf[offFinScore:], p.FinalScore)
	binary.BigEndian.PutUint32(buf[offFinCoins:], p.CoinsCollected)
	binary.BigEndian.PutUint32(buf[offFinRaceTime:], p.RaceTimeMs)

	buf[offFinOutcome] = uint8(p.OutcomeCode)
	buf[offFinMoves] = p.TotalMoves

	return buf, nil
}

// DecodeFinal is total over any byte slice of at least FinalSize bytes.
func DecodeFinal(buf []byte) (*model.FinalPayload, error) {
	if len(buf) < FinalSize {
		return nil, PayloadTooShort("final payload shorter than 144 bytes")
	}

	if buf[offFinVersion] != FinalVersion {
		return nil, VersionMismatch(buf[offFinVersion])
	}
	if model.AnchorType(buf[offFinType]) != model.AnchorTypeFinal {
		return nil, UnknownAnchorType(buf[offFinType])
	}

	p := &model.FinalPayload{Version: buf[offFinVersion]}

	copy(p.FinalMerkleRoot[:], buf[offFinRoot:offFinRoot+32])
	copy(p.GenesisTxID[:], buf[offFinGenesisTx:offFinGenesisTx+32])
	copy(p.PrevTxID[:], buf[offFinPrevTx:offFinPrevTx+32])
	copy(p.ResultLeafHash[:], buf[offFinResultHash:offFinResultHash+32])

	p.FinalScore = binary.BigEndian.Uint32(buf[offFinScore:])
	p.CoinsCollected = binary.BigEndian.Uint32(buf[offFinCoins:])
	p.RaceTimeMs = binary.BigEndian.Uint32(buf[offFinRaceTime:])
	p.OutcomeCode = model.OutcomeCode(buf[offFinOutcome])
	p.TotalMoves = buf[offFinMoves]

	return p, nil
}
