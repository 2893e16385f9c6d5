package audit

import "github.com/kasparena/anchorcore/model"

// BundleFromAnchorChain builds a Bundle from an orchestrator's recorded
// anchor chain and move trail, the shape both the in-process demo and a
// DAG-walk-free test harness produce directly (as opposed to a real
// ledger.WalkDagRange scan, which instead hands back ledger.DagMatch
// records in tx-order without any type tagging beyond the payload prefix).
func BundleFromAnchorChain(gameID, playerID, genesisTxID string, chain []model.AnchorChainEntry, moves []model.Move) Bundle {
	b := Bundle{
		GameID:      gameID,
		PlayerID:    playerID,
		GenesisTxID: genesisTxID,
		Moves:       moves,
	}

	for _, e := range chain {
		rec := AnchorRecord{TxID: e.TxID, PayloadHex: e.PayloadHex}

		switch e.Type {
		case model.AnchorTypeGenesis:
			b.Genesis = rec
		case model.AnchorTypeHeartbeat:
			b.Heartbeats = append(b.Heartbeats, rec)
		case model.AnchorTypeFinal:
			b.Final = rec
		}
	}

	return b
}
