package codec

import "github.com/kasparena/anchorcore/anchorerrors"

// PayloadTooShort reports that a byte slice is too small to hold the type
// it claims, or that an encode would overflow a width/count limit.
func PayloadTooShort(detail string) *anchorerrors.Error {
	return anchorerrors.New(anchorerrors.CodePayloadTooShort, detail)
}

// UnknownAnchorType reports a type byte the decoder doesn't recognize.
func UnknownAnchorType(observed uint8) *anchorerrors.Error {
	return anchorerrors.New(anchorerrors.CodeUnknownAnchorType, "unknown anchor type byte").
		WithMetadata("observed", observed)
}

// VersionMismatch reports a version byte the decoder can't handle
// (heartbeats above v5 are rejected and any version below 5 is decoded with
// the v4 layout; genesis/final are v5-only).
func VersionMismatch(observed uint8) *anchorerrors.Error {
	return anchorerrors.New(anchorerrors.CodeVersionMismatch, "unsupported version").
		WithMetadata("observed", observed)
}

// MoveRunTruncated reports that the moves section ended mid-packet.
func MoveRunTruncated(atIndex int) *anchorerrors.Error {
	return anchorerrors.New(anchorerrors.CodeMoveRunTruncated, "move run truncated").
		WithMetadata("atIndex", atIndex)
}
