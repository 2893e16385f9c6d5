package audit_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasparena/anchorcore/anchor/orchestrator"
	"github.com/kasparena/anchorcore/audit"
	"github.com/kasparena/anchorcore/entropy"
	"github.com/kasparena/anchorcore/ledger/mockledger"
	"github.com/kasparena/anchorcore/merkle"
	"github.com/kasparena/anchorcore/model"
	"github.com/kasparena/anchorcore/settings"
	"github.com/kasparena/anchorcore/stores/utxo"
	"github.com/kasparena/anchorcore/ulogger"
	"github.com/kasparena/anchorcore/vrf"
)

func playOutGame(t *testing.T, moveCount int) (*orchestrator.Orchestrator, *mockledger.Ledger) {
	t.Helper()

	led := mockledger.New()
	led.Fund("player-addr", 5, 5.0)

	s := &settings.Settings{
		AnchorBatch:              10 * time.Millisecond,
		MaxMovesPerHeartbeat:     255,
		GenesisMaxAttempts:       3,
		GenesisBaseBackoff:       time.Millisecond,
		GenesisMaxBackoff:        5 * time.Millisecond,
		GenesisAttemptDeadline:   time.Second,
		FinalMaxAttempts:         3,
		FinalBaseBackoff:         time.Millisecond,
		FinalMaxBackoff:          5 * time.Millisecond,
		FinalInFlightWait:        50 * time.Millisecond,
		FinalConsolidateAttempts: 1,
		HeartbeatFailureLimit:    5,
		HeartbeatRearmDelay:      10 * time.Millisecond,
		UtxoSplitCount:           5,
	}

	log := ulogger.NewZeroLogger("test")
	pool := utxo.New(5, 1, time.Second)
	vault := merkle.NewMoveVault(64)
	chain := vrf.New("player-1", "game-audit")
	ent := entropy.NewProvider(log, led, time.Minute)
	require.NoError(t, ent.Subscribe())

	o := orchestrator.New("game-audit", "player-addr", []string{"pk"}, s, log, led, pool, vault, chain, ent, nil)
	ctx := context.Background()

	require.NoError(t, o.Start(ctx))
	require.NoError(t, o.AnchorGenesisSeed(ctx, orchestrator.GenesisRequest{VrfSeed: "seed"}))

	firstTs := time.Now().UnixMilli()
	for i := 0; i < moveCount; i++ {
		input := vrf.StepInput{ActionCode: model.ActionMove, X: float64(i), Y: float64(i) * 2, TimeDelta: 4}
		out, err := chain.Step(input, firstTs)
		require.NoError(t, err)

		var frag [4]byte
		copy(frag[:], out[:4])

		require.NoError(t, vault.RecordMove(model.Move{
			Sequence:    uint32(i),
			Action:      "move",
			ActionCode:  model.ActionMove,
			X:           float64(i),
			Y:           float64(i) * 2,
			TimeDelta:   4,
			TimestampMs: firstTs,
			VrfFragment: frag,
			VrfOutput:   out,
		}))
	}

	o.StartHeartbeats(ctx)
	time.Sleep(40 * time.Millisecond)
	o.Stop()

	require.NoError(t, o.AnchorFinalState(ctx, orchestrator.FinalRequest{
		FinalScore:  42,
		OutcomeCode: model.OutcomeComplete,
	}))

	return o, led
}

func buildBundle(t *testing.T, o *orchestrator.Orchestrator) audit.Bundle {
	t.Helper()

	moves := make([]model.Move, len(o.Moves()))
	for i, mv := range o.Moves() {
		mv.EntropySnapshot = model.EntropySnapshot{}
		moves[i] = mv
	}

	return audit.BundleFromAnchorChain("game-audit", "player-1", o.GenesisTxID(), o.AnchorChain(), moves)
}

func TestVerifyCleanGame(t *testing.T) {
	o, _ := playOutGame(t, 5)
	b := buildBundle(t, o)

	v := audit.New(ulogger.NewZeroLogger("test"))
	verdict := v.Verify(context.Background(), b)

	assert.True(t, verdict.OK, "reasons: %v", verdict.Reasons)
	assert.Empty(t, verdict.Reasons)
}

func TestVerifyDetectsTamperedFinalScore(t *testing.T) {
	o, _ := playOutGame(t, 3)
	b := buildBundle(t, o)

	// FinalScore lives at body offset 130 (8-byte prefix+tag precede the
	// body, so raw byte 138); flip one byte there so the declared score no
	// longer matches the embedded result hash.
	raw, err := hex.DecodeString(b.Final.PayloadHex)
	require.NoError(t, err)
	raw[138] ^= 0xFF
	b.Final.PayloadHex = hex.EncodeToString(raw)

	v := audit.New(ulogger.NewZeroLogger("test"))
	verdict := v.Verify(context.Background(), b)

	assert.False(t, verdict.OK)
	assert.NotEmpty(t, verdict.Reasons)
}

func TestVerifyBrokenHeartbeatChainIsDetected(t *testing.T) {
	o, _ := playOutGame(t, 4)
	b := buildBundle(t, o)
	require.GreaterOrEqual(t, len(b.Heartbeats), 1)

	// Swap the txid of the first heartbeat so the chain link breaks.
	b.Heartbeats[0].TxID = "not-the-real-txid"

	v := audit.New(ulogger.NewZeroLogger("test"))
	verdict := v.Verify(context.Background(), b)

	assert.False(t, verdict.OK)
}

func TestVerifyNoMovesFailsIntegrity(t *testing.T) {
	o, _ := playOutGame(t, 0)
	b := buildBundle(t, o)

	v := audit.New(ulogger.NewZeroLogger("test"))
	verdict := v.Verify(context.Background(), b)

	assert.False(t, verdict.OK)
	assert.Contains(t, verdict.Reasons, "vrf_chain_integrity_failed: no in-memory move trail to replay")
}

func TestVerifyExternalEntropyViaHTTPMock(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", `=~^https://explorer\.example/api/block/.*`,
		httpmock.NewStringResponder(200, `{"id":"deadbeef"}`))
	httpmock.RegisterResponder("GET", `=~^https://beacon\.example/pulse/.*`,
		httpmock.NewStringResponder(200, fmt.Sprintf(`{"pulse":{"pulseIndex":7,"outputValue":"%s"}}`, hex.EncodeToString(make([]byte, 64)))))

	src := audit.NewHTTPEntropySource("https://beacon.example/pulse/%d", "https://explorer.example/api/block/%s", 2*time.Second)

	found, err := src.FetchBtcBlock(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.True(t, found)

	rec, err := src.FetchNistPulse(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), rec.PulseIndex)
}

func TestNistSignatureRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	outputValue := make([]byte, 64)
	outputValue[0] = 0xAB

	buf := make([]byte, 0, 12+len(outputValue))
	var idxBuf [8]byte
	idxBuf[7] = 9
	buf = append(buf, idxBuf[:]...)
	var lenBuf [4]byte
	lenBuf[3] = byte(len(outputValue))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, outputValue...)

	digest := sha512.Sum512(buf)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA512, digest[:])
	require.NoError(t, err)

	httpmock.RegisterResponder("GET", `=~^https://beacon\.example/pulse/.*`,
		httpmock.NewStringResponder(200, fmt.Sprintf(`{"pulse":{"pulseIndex":9,"outputValue":"%s","signatureValue":"%s"}}`,
			hex.EncodeToString(outputValue), hex.EncodeToString(sig))))

	src := audit.NewHTTPEntropySource("https://beacon.example/pulse/%d", "", 2*time.Second)

	rec, err := src.FetchNistPulse(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, rec.HasSignature)
	assert.Equal(t, buf, rec.SignedBuffer)

	gotSig, err := hex.DecodeString(rec.SignatureHex)
	require.NoError(t, err)
	gotDigest := sha512.Sum512(rec.SignedBuffer)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA512, gotDigest[:], gotSig))
}
