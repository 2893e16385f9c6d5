package mockledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasparena/anchorcore/ledger"
)

func TestManualSendSpendsAndReturnsChange(t *testing.T) {
	l := New()
	l.Fund("addr1", 1, 5.0)

	res, err := l.ManualSend(context.Background(), ledger.SendRequest{
		FromAddress: "addr1",
		PriorityFee: 0.1,
		PayloadHex:  "4b47454e000000000000",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.TransactionID)

	utxos, err := l.GetUtxos(context.Background(), "addr1", 0)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	assert.InDelta(t, 4.9, utxos[0].AmountKAS, 0.0001)
}

func TestManualSendFailsOnEmptyAddress(t *testing.T) {
	l := New()
	_, err := l.ManualSend(context.Background(), ledger.SendRequest{FromAddress: "ghost"})
	assert.Error(t, err)
}

func TestSimulatedSendFailureInjection(t *testing.T) {
	l := New()
	l.Fund("addr1", 1, 5.0)
	l.FailNextSends = 1

	_, err := l.ManualSend(context.Background(), ledger.SendRequest{FromAddress: "addr1"})
	assert.Error(t, err)

	_, err = l.ManualSend(context.Background(), ledger.SendRequest{FromAddress: "addr1"})
	assert.NoError(t, err)
}

func TestSplitUtxos(t *testing.T) {
	l := New()
	l.Fund("addr1", 1, 10.0)

	require.NoError(t, l.SplitUtxos(context.Background(), ledger.SplitRequest{Address: "addr1", SplitCount: 5}))

	utxos, err := l.GetUtxos(context.Background(), "addr1", 0)
	require.NoError(t, err)
	assert.Len(t, utxos, 5)
}

func TestWalkDagRangeFindsFramedPayload(t *testing.T) {
	l := New()
	l.Fund("addr1", 1, 5.0)

	_, err := l.ManualSend(context.Background(), ledger.SendRequest{
		FromAddress: "addr1",
		PayloadHex:  "4b47454e00000000deadbeef",
	})
	require.NoError(t, err)

	var matches []ledger.DagMatch
	err = l.WalkDagRange(context.Background(), ledger.DagWalkRequest{
		Prefixes: [][4]byte{{'K', 'G', 'E', 'N'}},
		OnMatch:  func(m ledger.DagMatch) { matches = append(matches, m) },
	})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestOnNewBlockUnsubscribe(t *testing.T) {
	l := New()
	l.Fund("addr1", 1, 5.0)

	calls := 0
	unsub, err := l.OnNewBlock(func(hash [32]byte) { calls++ })
	require.NoError(t, err)

	_, err = l.ManualSend(context.Background(), ledger.SendRequest{FromAddress: "addr1"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	unsub()

	l.Fund("addr1", 1, 5.0)
	_, err = l.ManualSend(context.Background(), ledger.SendRequest{FromAddress: "addr1"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
