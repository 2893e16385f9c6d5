package codec

import (
	"encoding/binary"

	"github.com/kasparena/anchorcore/model"
)

const (
	GenesisVersion = 5
	GenesisSize    = 858

	offGenVersion    = 0
	offGenType       = 1
	offGenGameID     = 2
	offGenVrfSeed    = 34
	offGenBtcHashes  = 66
	btcHashCount     = 6
	offGenStartDaa   = 258
	offGenEndDaa     = 266
	offGenNistIdx    = 274
	offGenNistHash   = 282
	offGenNistSig    = 346
	nistHashLen      = 64
	nistSigLen       = 512
)

// EncodeGenesis produces the 858-byte genesis anchor body. Encoding is
// deterministic: identical input produces identical bytes.
func EncodeGenesis(p *model.GenesisPayload) ([]byte, error) {
	buf := make([]byte, GenesisSize)

	buf[offGenVersion] = GenesisVersion
	buf[offGenType] = uint8(model.AnchorTypeGenesis)
	copy(buf[offGenGameID:offGenGameID+32], p.GameIDHash[:])
	copy(buf[offGenVrfSeed:offGenVrfSeed+32], p.VrfSeedHash[:])

	for i := 0; i < btcHashCount; i++ {
		off := offGenBtcHashes + i*32
		if i < len(p.BtcBlockHashes) {
			copy(buf[off:off+32], p.BtcBlockHashes[i][:])
		}
	}

	binary.BigEndian.PutUint64(buf[offGenStartDaa:], p.StartDaaScore)
	binary.BigEndian.PutUint64(buf[offGenEndDaa:], p.EndDaaScore)
	binary.BigEndian.PutUint64(buf[offGenNistIdx:], p.Nist.PulseIndex)
	copy(buf[offGenNistHash:offGenNistHash+nistHashLen], p.Nist.OutputHash[:])
	copy(buf[offGenNistSig:offGenNistSig+nistSigLen], p.Nist.Signature[:])

	return buf, nil
}

// DecodeGenesis is total over any byte slice: it returns a typed error for
// anything shorter than GenesisSize or bearing an unexpected type/version.
func DecodeGenesis(buf []byte) (*model.GenesisPayload, error) {
	if len(buf) < GenesisSize {
		return nil, PayloadTooShort("genesis payload shorter than 858 bytes")
	}

	if buf[offGenVersion] != GenesisVersion {
		return nil, VersionMismatch(buf[offGenVersion])
	}
	if model.AnchorType(buf[offGenType]) != model.AnchorTypeGenesis {
		return nil, UnknownAnchorType(buf[offGenType])
	}

	p := &model.GenesisPayload{Version: buf[offGenVersion]}

	copy(p.GameIDHash[:], buf[offGenGameID:offGenGameID+32])
	copy(p.VrfSeedHash[:], buf[offGenVrfSeed:offGenVrfSeed+32])

	for i := 0; i < btcHashCount; i++ {
		off := offGenBtcHashes + i*32
		copy(p.BtcBlockHashes[i][:], buf[off:off+32])
	}

	p.StartDaaScore = binary.BigEndian.Uint64(buf[offGenStartDaa:])
	p.EndDaaScore = binary.BigEndian.Uint64(buf[offGenEndDaa:])
	p.Nist.PulseIndex = binary.BigEndian.Uint64(buf[offGenNistIdx:])
	copy(p.Nist.OutputHash[:], buf[offGenNistHash:offGenNistHash+nistHashLen])
	copy(p.Nist.Signature[:], buf[offGenNistSig:offGenNistSig+nistSigLen])

	return p, nil
}
