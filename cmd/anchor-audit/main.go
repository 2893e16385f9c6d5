// Command anchor-audit verifies a previously-anchored match from a JSON
// dump of its anchor records, standing in for a real ledger.WalkDagRange
// scan (production ledger RPC transport is out of scope, spec.md §1). The
// dump carries only Genesis/Heartbeats/Final anchors, never the in-memory
// move trail, so the VRF replay check (spec.md §4.7 check 5) always
// reports vrf_chain_integrity_failed here — checks 1-4 still run fully
// over the anchors alone.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/kasparena/anchorcore/audit"
	"github.com/kasparena/anchorcore/model"
	"github.com/kasparena/anchorcore/settings"
	"github.com/kasparena/anchorcore/ulogger"
)

// dumpAnchor is one entry in the input JSON file.
type dumpAnchor struct {
	TxID       string `json:"txId"`
	PayloadHex string `json:"payloadHex"`
	Type       string `json:"type"` // "genesis" | "heartbeat" | "final"
}

type dumpFile struct {
	GameID      string       `json:"gameId"`
	PlayerID    string       `json:"playerId"`
	GenesisTxID string       `json:"genesisTxId"`
	Anchors     []dumpAnchor `json:"anchors"`
}

func main() {
	path := flag.String("file", "", "path to a JSON anchor dump")
	nistURLFmt := flag.String("nist-url", "", "NIST beacon URL format string (fmt.Sprintf with one %d); empty disables external entropy checks")
	btcURLFmt := flag.String("btc-url", "", "BTC block explorer URL format string (fmt.Sprintf with one %s); empty disables external entropy checks")
	flag.Parse()

	if *path == "" {
		log.Fatal("anchor-audit: -file is required")
	}

	logger := ulogger.NewZeroLogger("anchor-audit")

	if err := run(logger, *path, *nistURLFmt, *btcURLFmt); err != nil {
		log.Fatalf("anchor-audit: %v", err)
	}
}

func run(logger ulogger.Logger, path, nistURLFmt, btcURLFmt string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var dump dumpFile
	if err := jsoniter.ConfigFastest.Unmarshal(raw, &dump); err != nil {
		return err
	}

	chain := make([]model.AnchorChainEntry, 0, len(dump.Anchors))
	for _, a := range dump.Anchors {
		chain = append(chain, model.AnchorChainEntry{
			TxID:       a.TxID,
			PayloadHex: a.PayloadHex,
			Type:       anchorTypeFromString(a.Type),
		})
	}

	bundle := audit.BundleFromAnchorChain(dump.GameID, dump.PlayerID, dump.GenesisTxID, chain, nil)

	var opts []audit.Option
	if nistURLFmt != "" && btcURLFmt != "" {
		s := settings.NewSettings()
		opts = append(opts, audit.WithEntropySource(audit.NewHTTPEntropySource(nistURLFmt, btcURLFmt, s.AuditHTTPTimeout)))
	}

	verifier := audit.New(logger, opts...)
	verdict := verifier.Verify(context.Background(), bundle)

	audit.Render(os.Stdout, dump.GameID, verdict)

	return nil
}

func anchorTypeFromString(s string) model.AnchorType {
	switch s {
	case "genesis":
		return model.AnchorTypeGenesis
	case "heartbeat":
		return model.AnchorTypeHeartbeat
	case "final":
		return model.AnchorTypeFinal
	default:
		return 0
	}
}
