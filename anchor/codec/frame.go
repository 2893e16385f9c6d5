package codec

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/kasparena/anchorcore/model"
)

// Payload prefixes, spec.md §6.
var (
	PrefixGenesis   = [4]byte{'K', 'G', 'E', 'N'}
	PrefixHeartbeat = [4]byte{'K', 'H', 'R', 'T'}
	PrefixFinal     = [4]byte{'K', 'E', 'N', 'D'}
)

// GameIDTag derives the 4-byte tag embedded in every frame for an audit to
// filter the DAG scan by.
func GameIDTag(gameID string) [4]byte {
	sum := uint32(2166136261)
	for _, b := range []byte(gameID) {
		sum ^= uint32(b)
		sum *= 16777619
	}

	var tag [4]byte
	binary.BigEndian.PutUint32(tag[:], sum)
	return tag
}

func prefixFor(t model.AnchorType) ([4]byte, error) {
	switch t {
	case model.AnchorTypeGenesis:
		return PrefixGenesis, nil
	case model.AnchorTypeHeartbeat:
		return PrefixHeartbeat, nil
	case model.AnchorTypeFinal:
		return PrefixFinal, nil
	default:
		return [4]byte{}, UnknownAnchorType(uint8(t))
	}
}

// Frame wraps an anchor body with the "prefix || gameIdTag || body" framing
// and returns the lowercase, unprefixed hex string suitable for a ledger
// payload.
func Frame(t model.AnchorType, gameIDTag [4]byte, body []byte) (string, error) {
	prefix, err := prefixFor(t)
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, 8+len(body))
	out = append(out, prefix[:]...)
	out = append(out, gameIDTag[:]...)
	out = append(out, body...)

	return hex.EncodeToString(out), nil
}

// Unframe reverses Frame, reporting the anchor type, the embedded game ID
// tag, and the body bytes.
func Unframe(hexPayload string) (model.AnchorType, [4]byte, []byte, error) {
	raw, err := hex.DecodeString(hexPayload)
	if err != nil {
		return 0, [4]byte{}, nil, PayloadTooShort("payload is not valid hex")
	}

	if len(raw) < 8 {
		return 0, [4]byte{}, nil, PayloadTooShort("payload shorter than prefix+tag")
	}

	var prefix [4]byte
	copy(prefix[:], raw[0:4])

	var tag [4]byte
	copy(tag[:], raw[4:8])

	var t model.AnchorType
	switch prefix {
	case PrefixGenesis:
		t = model.AnchorTypeGenesis
	case PrefixHeartbeat:
		t = model.AnchorTypeHeartbeat
	case PrefixFinal:
		t = model.AnchorTypeFinal
	default:
		return 0, [4]byte{}, nil, UnknownAnchorType(0)
	}

	return t, tag, raw[8:], nil
}
