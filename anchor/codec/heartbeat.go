package codec

import (
	"encoding/binary"

	"github.com/kasparena/anchorcore/model"
)

const (
	HeartbeatVersion = 5

	v5HeaderSize = 70
	v4HeaderSize = 68

	stdPacketSize = 8
	extPacketSize = 16

	nistDeltaSize = 8 + 64 + 512 // pulseIndex + outputHash + signature
)

// packStandardMove writes the low nibble as lane+1 (Open Question
// resolution, DESIGN.md "Lane encoding parity"): every encode path uses
// this helper so there is exactly one write site to keep symmetric with
// unpackStandardMove's single read site.
func packStandardMove(actionCode uint8, lane uint8, timeDelta uint8, fragment [4]byte, value uint16) []byte {
	buf := make([]byte, stdPacketSize)
	buf[0] = actionCode<<4 | ((lane+1)&0x0F)
	buf[1] = timeDelta
	copy(buf[2:6], fragment[:])
	binary.BigEndian.PutUint16(buf[6:8], value)
	return buf
}

func unpackStandardMove(buf []byte) model.HeartbeatMovePacket {
	actionCode := buf[0] >> 4
	lane := (buf[0] & 0x0F)
	var laneVal uint8
	if lane > 0 {
		laneVal = lane - 1
	}

	var frag [4]byte
	copy(frag[:], buf[2:6])

	return model.HeartbeatMovePacket{
		ActionCode:  actionCode,
		Lane:        laneVal,
		TimeDelta:   buf[1],
		VrfFragment: frag,
		Value:       binary.BigEndian.Uint16(buf[6:8]),
	}
}

func packExtendedMove(actionCode uint8, timeDelta uint8, xRaw, yRaw, zRaw uint16, fragment [4]byte, value uint16) []byte {
	buf := make([]byte, extPacketSize)
	buf[0] = actionCode << 4
	buf[1] = timeDelta
	binary.BigEndian.PutUint16(buf[2:4], xRaw)
	binary.BigEndian.PutUint16(buf[4:6], yRaw)
	binary.BigEndian.PutUint16(buf[6:8], zRaw)
	copy(buf[8:12], fragment[:])
	binary.BigEndian.PutUint16(buf[12:14], value)
	// buf[14:16] reserved, zero
	return buf
}

func unpackExtendedMove(buf []byte) model.HeartbeatMovePacket {
	actionCode := buf[0] >> 4

	xRaw := binary.BigEndian.Uint16(buf[2:4])
	yRaw := binary.BigEndian.Uint16(buf[4:6])
	zRaw := binary.BigEndian.Uint16(buf[6:8])

	var frag [4]byte
	copy(frag[:], buf[8:12])

	return model.HeartbeatMovePacket{
		ActionCode:  actionCode,
		X:           DecodeCoord14(xRaw),
		Y:           DecodeCoord14(yRaw),
		Z:           DecodeCoord14(zRaw),
		TimeDelta:   buf[1],
		VrfFragment: frag,
		Value:       binary.BigEndian.Uint16(buf[12:14]),
		Extended:    true,
	}
}

// EncodeHeartbeat produces a v5 heartbeat body: the 70-byte header, the
// moves section, and any deltas flagged in p.DeltaFlags.
func EncodeHeartbeat(p *model.HeartbeatPayload) ([]byte, error) {
	if len(p.Moves) > 255 {
		return nil, PayloadTooShort("heartbeat would carry more than 255 moves")
	}

	movesBuf := make([]byte, 0, len(p.Moves)*extPacketSize)
	for _, mv := range p.Moves {
		if mv.ActionCode == model.ActionMove {
			xRaw := EncodeCoord14(mv.X)
			yRaw := EncodeCoord14(mv.Y)
			zRaw := EncodeCoord14(mv.Z)
			movesBuf = append(movesBuf, packExtendedMove(mv.ActionCode, mv.TimeDelta, xRaw, yRaw, zRaw, mv.VrfFragment, mv.Value)...)
		} else {
			movesBuf = append(movesBuf, packStandardMove(mv.ActionCode, mv.Lane, mv.TimeDelta, mv.VrfFragment, mv.Value)...)
		}
	}

	if len(movesBuf) > 0xFFFF {
		return nil, PayloadTooShort("moves section would overflow u16 length")
	}

	header := make([]byte, v5HeaderSize)
	header[0] = HeartbeatVersion
	header[1] = uint8(model.AnchorTypeHeartbeat)
	copy(header[2:34], p.MerkleRoot[:])
	copy(header[34:66], p.PrevTxID[:])
	header[66] = p.DeltaFlags
	header[67] = p.MoveCount
	binary.BigEndian.PutUint16(header[68:70], uint16(len(movesBuf)))

	out := append(header, movesBuf...)

	if p.DeltaFlags&model.DeltaFlagBTC != 0 {
		if p.DeltaBtcHash == nil {
			return nil, PayloadTooShort("DELTA_FLAG_BTC set without a BTC delta hash")
		}
		out = append(out, p.DeltaBtcHash[:]...)
	}

	if p.DeltaFlags&model.DeltaFlagNIST != 0 {
		if p.DeltaNist == nil {
			return nil, PayloadTooShort("DELTA_FLAG_NIST set without a NIST delta pulse")
		}
		nistBuf := make([]byte, nistDeltaSize)
		binary.BigEndian.PutUint64(nistBuf[0:8], p.DeltaNist.PulseIndex)
		copy(nistBuf[8:72], p.DeltaNist.OutputHash[:])
		copy(nistBuf[72:584], p.DeltaNist.Signature[:])
		out = append(out, nistBuf...)
	}

	return out, nil
}

// DecodeHeartbeat parses a v5 heartbeat, or (read-only) a v4 heartbeat
// (68-byte header, fixed 8-byte packets) when version < 5.
func DecodeHeartbeat(buf []byte) (*model.HeartbeatPayload, error) {
	if len(buf) < 2 {
		return nil, PayloadTooShort("heartbeat payload missing version/type")
	}

	version := buf[0]
	if model.AnchorType(buf[1]) != model.AnchorTypeHeartbeat {
		return nil, UnknownAnchorType(buf[1])
	}

	if version < HeartbeatVersion {
		return decodeHeartbeatV4(buf, version)
	}
	if version > HeartbeatVersion {
		return nil, VersionMismatch(version)
	}

	if len(buf) < v5HeaderSize {
		return nil, PayloadTooShort("v5 heartbeat header shorter than 70 bytes")
	}

	p := &model.HeartbeatPayload{Version: version}
	copy(p.MerkleRoot[:], buf[2:34])
	copy(p.PrevTxID[:], buf[34:66])
	p.DeltaFlags = buf[66]
	p.MoveCount = buf[67]
	movesLen := int(binary.BigEndian.Uint16(buf[68:70]))

	cursor := v5HeaderSize
	if len(buf) < cursor+movesLen {
		return nil, PayloadTooShort("moves section shorter than declared length")
	}

	movesSection := buf[cursor : cursor+movesLen]
	cursor += movesLen

	moves, err := decodeMovesSection(movesSection, int(p.MoveCount))
	if err != nil {
		return nil, err
	}
	p.Moves = moves

	if p.DeltaFlags&model.DeltaFlagBTC != 0 {
		if len(buf) < cursor+32 {
			return nil, PayloadTooShort("DELTA_FLAG_BTC set but delta bytes missing")
		}
		var h [32]byte
		copy(h[:], buf[cursor:cursor+32])
		p.DeltaBtcHash = &h
		cursor += 32
	}

	if p.DeltaFlags&model.DeltaFlagNIST != 0 {
		if len(buf) < cursor+nistDeltaSize {
			return nil, PayloadTooShort("DELTA_FLAG_NIST set but delta bytes missing")
		}
		var n model.NistPulse
		n.PulseIndex = binary.BigEndian.Uint64(buf[cursor : cursor+8])
		copy(n.OutputHash[:], buf[cursor+8:cursor+72])
		copy(n.Signature[:], buf[cursor+72:cursor+584])
		p.DeltaNist = &n
		cursor += nistDeltaSize
	}

	return p, nil
}

// decodeMovesSection splits a moves section into packets by reading each
// packet's action-code nibble to learn its width, then validates the
// section was fully consumed.
func decodeMovesSection(section []byte, expectedCount int) ([]model.HeartbeatMovePacket, error) {
	moves := make([]model.HeartbeatMovePacket, 0, expectedCount)

	i := 0
	for idx := 0; i < len(section); idx++ {
		if i >= len(section) {
			return nil, MoveRunTruncated(idx)
		}

		actionCode := section[i] >> 4

		size := stdPacketSize
		if actionCode == model.ActionMove {
			size = extPacketSize
		}

		if i+size > len(section) {
			return nil, MoveRunTruncated(idx)
		}

		packet := section[i : i+size]
		if actionCode == model.ActionMove {
			moves = append(moves, unpackExtendedMove(packet))
		} else {
			moves = append(moves, unpackStandardMove(packet))
		}

		i += size
	}

	return moves, nil
}

// decodeHeartbeatV4 parses the legacy 68-byte-header, fixed-8-byte-packet
// layout. The v4 decoder is read-only: this module never encodes v4.
func decodeHeartbeatV4(buf []byte, version uint8) (*model.HeartbeatPayload, error) {
	if len(buf) < v4HeaderSize {
		return nil, PayloadTooShort("v4 heartbeat header shorter than 68 bytes")
	}

	p := &model.HeartbeatPayload{Version: version}
	copy(p.MerkleRoot[:], buf[2:34])
	copy(p.PrevTxID[:], buf[34:66])
	p.DeltaFlags = buf[66]
	p.MoveCount = buf[67]

	movesSection := buf[v4HeaderSize:]

	// v4 is fixed 8-byte packets only: reject any section whose length is
	// not an exact multiple of 8 rather than guessing at mixed sizes.
	if len(movesSection)%stdPacketSize != 0 {
		return nil, MoveRunTruncated(len(movesSection) / stdPacketSize)
	}

	moves := make([]model.HeartbeatMovePacket, 0, int(p.MoveCount))
	for i := 0; i+stdPacketSize <= len(movesSection); i += stdPacketSize {
		moves = append(moves, unpackStandardMove(movesSection[i:i+stdPacketSize]))
	}
	p.Moves = moves

	return p, nil
}
