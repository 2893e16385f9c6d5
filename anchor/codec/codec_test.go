package codec

import (
	"testing"

	"github.com/kasparena/anchorcore/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordRoundTrip(t *testing.T) {
	for f := -81.92; f <= 81.91; f += 0.01 {
		u := EncodeCoord14(f)
		got := DecodeCoord14(u)
		assert.InDelta(t, f, got, 0.005, "f=%v", f)
	}
}

func TestCoordClamp(t *testing.T) {
	assert.Equal(t, DecodeCoord14(EncodeCoord14(1000)), DecodeCoord14(EncodeCoord14(81.91)))
	assert.Equal(t, DecodeCoord14(EncodeCoord14(-1000)), DecodeCoord14(EncodeCoord14(-81.92)))
}

func TestGenesisRoundTrip(t *testing.T) {
	p := &model.GenesisPayload{
		StartDaaScore: 100,
		EndDaaScore:   200,
	}
	p.GameIDHash[0] = 0xAB
	p.VrfSeedHash[0] = 0xCD
	p.BtcBlockHashes[0][0] = 0x01
	p.Nist.PulseIndex = 42

	buf, err := EncodeGenesis(p)
	require.NoError(t, err)
	require.Len(t, buf, GenesisSize)

	got, err := DecodeGenesis(buf)
	require.NoError(t, err)
	assert.Equal(t, p.GameIDHash, got.GameIDHash)
	assert.Equal(t, p.StartDaaScore, got.StartDaaScore)
	assert.Equal(t, p.Nist.PulseIndex, got.Nist.PulseIndex)

	buf2, err := EncodeGenesis(got)
	require.NoError(t, err)
	assert.Equal(t, buf, buf2)
}

func TestGenesisTooShort(t *testing.T) {
	_, err := DecodeGenesis(make([]byte, 10))
	require.Error(t, err)
}

func TestHeartbeatRoundTripMixedPackets(t *testing.T) {
	p := &model.HeartbeatPayload{
		MoveCount: 2,
		Moves: []model.HeartbeatMovePacket{
			{ActionCode: model.ActionMove, X: 1.23, Y: -4.56, Z: 0, TimeDelta: 10, VrfFragment: [4]byte{1, 2, 3, 4}},
			{ActionCode: 10, Lane: 3, TimeDelta: 20, VrfFragment: [4]byte{5, 6, 7, 8}, Value: 99},
		},
	}

	buf, err := EncodeHeartbeat(p)
	require.NoError(t, err)

	got, err := DecodeHeartbeat(buf)
	require.NoError(t, err)
	require.Len(t, got.Moves, 2)

	assert.True(t, got.Moves[0].Extended)
	assert.InDelta(t, 1.23, got.Moves[0].X, 0.01)
	assert.InDelta(t, -4.56, got.Moves[0].Y, 0.01)

	assert.False(t, got.Moves[1].Extended)
	assert.Equal(t, uint8(3), got.Moves[1].Lane)
	assert.Equal(t, uint16(99), got.Moves[1].Value)

	buf2, err := EncodeHeartbeat(got)
	require.NoError(t, err)
	assert.Equal(t, buf, buf2)
}

func TestHeartbeatDeltaFlags(t *testing.T) {
	btc := [32]byte{9, 9, 9}
	nist := &model.NistPulse{PulseIndex: 7}

	p := &model.HeartbeatPayload{
		DeltaFlags:   model.DeltaFlagBTC | model.DeltaFlagNIST,
		DeltaBtcHash: &btc,
		DeltaNist:    nist,
	}

	buf, err := EncodeHeartbeat(p)
	require.NoError(t, err)

	got, err := DecodeHeartbeat(buf)
	require.NoError(t, err)
	require.NotNil(t, got.DeltaBtcHash)
	require.NotNil(t, got.DeltaNist)
	assert.Equal(t, btc, *got.DeltaBtcHash)
	assert.Equal(t, uint64(7), got.DeltaNist.PulseIndex)
}

func TestHeartbeatOverCapMoves(t *testing.T) {
	moves := make([]model.HeartbeatMovePacket, 256)
	for i := range moves {
		moves[i] = model.HeartbeatMovePacket{ActionCode: 2, Lane: 1}
	}

	_, err := EncodeHeartbeat(&model.HeartbeatPayload{Moves: moves})
	require.Error(t, err)
}

func TestHeartbeatV4Decode(t *testing.T) {
	header := make([]byte, v4HeaderSize)
	header[0] = 4
	header[1] = uint8(model.AnchorTypeHeartbeat)
	header[67] = 1

	packet := packStandardMove(2, 1, 5, [4]byte{1, 1, 1, 1}, 3)
	buf := append(header, packet...)

	got, err := DecodeHeartbeat(buf)
	require.NoError(t, err)
	require.Len(t, got.Moves, 1)
	assert.Equal(t, uint8(1), got.Moves[0].Lane)
}

func TestFinalRoundTrip(t *testing.T) {
	p := &model.FinalPayload{
		Version:        FinalVersion,
		FinalScore:     10,
		CoinsCollected: 20,
		RaceTimeMs:     30,
		OutcomeCode:    model.OutcomeComplete,
		TotalMoves:     5,
	}
	p.GenesisTxID[0] = 0x01

	buf, err := EncodeFinal(p)
	require.NoError(t, err)
	require.Len(t, buf, FinalSize)

	got, err := DecodeFinal(buf)
	require.NoError(t, err)
	assert.Equal(t, *p, *got)
}

func TestFrameUnframe(t *testing.T) {
	tag := GameIDTag("game-1")
	body := []byte{1, 2, 3}

	hexStr, err := Frame(model.AnchorTypeHeartbeat, tag, body)
	require.NoError(t, err)

	gotType, gotTag, gotBody, err := Unframe(hexStr)
	require.NoError(t, err)
	assert.Equal(t, model.AnchorTypeHeartbeat, gotType)
	assert.Equal(t, tag, gotTag)
	assert.Equal(t, body, gotBody)
}
