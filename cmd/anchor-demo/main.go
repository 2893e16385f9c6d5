// Command anchor-demo runs a short synthetic match end to end against
// ledger/mockledger: genesis, a handful of moves batched into heartbeats,
// a final anchor, and an audit replay — all in one process, standing in
// for the S1-S6 exercises of spec.md §8 without a real ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kasparena/anchorcore/anchor/orchestrator"
	"github.com/kasparena/anchorcore/audit"
	"github.com/kasparena/anchorcore/ledger/mockledger"
	"github.com/kasparena/anchorcore/model"
	"github.com/kasparena/anchorcore/runtime"
	"github.com/kasparena/anchorcore/settings"
	"github.com/kasparena/anchorcore/ulogger"
	"github.com/kasparena/anchorcore/vrf"
)

func main() {
	moveCount := flag.Int("moves", 20, "number of synthetic moves to play")
	gameID := flag.String("game", "demo-game", "game id")
	playerID := flag.String("player", "demo-player", "player id")
	address := flag.String("address", "demo-addr", "sending address in the mock ledger")
	flag.Parse()

	logger := ulogger.NewZeroLogger("anchor-demo")

	if err := run(logger, *gameID, *playerID, *address, *moveCount); err != nil {
		log.Fatalf("anchor-demo: %v", err)
	}
}

func run(logger ulogger.Logger, gameID, playerID, address string, moveCount int) error {
	led := mockledger.New()
	led.Fund(address, 10, 5.0)

	s := settings.NewSettings()
	s.AnchorBatch = 100 * time.Millisecond
	s.HeartbeatFailureLimit = 3

	rt, err := runtime.New(s, logger, led)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	defer rt.Close()

	o := rt.NewGame(gameID, playerID, address, []string{"demo-private-key"}, orchestrator.NewNoopSink())

	ctx := context.Background()
	if err := o.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	logger.Infof("sending genesis anchor for %s", gameID)
	if err := o.AnchorGenesisSeed(ctx, orchestrator.GenesisRequest{VrfSeed: "demo-seed"}); err != nil {
		return fmt.Errorf("anchor genesis: %w", err)
	}

	o.StartHeartbeats(ctx)

	firstTs := time.Now().UnixMilli()
	for i := 0; i < moveCount; i++ {
		snapshot := model.EntropySnapshot{
			KaspaBlockHash:      o.Entropy().GetCachedBlockHash(),
			IsGenesisReinforced: o.Chain().GenesisReinforced(),
		}

		input := vrf.StepInput{
			ActionCode: model.ActionMove,
			X:          float64(i),
			Y:          float64(i) * 2,
			TimeDelta:  4,
			Snapshot:   snapshot,
		}

		out, err := o.Chain().Step(input, firstTs)
		if err != nil {
			return fmt.Errorf("vrf step %d: %w", i, err)
		}

		var frag [4]byte
		copy(frag[:], out[:4])

		if err := o.Vault().RecordMove(model.Move{
			Sequence:        uint32(i),
			Action:          "move",
			ActionCode:      model.ActionMove,
			X:               input.X,
			Y:               input.Y,
			TimeDelta:       input.TimeDelta,
			TimestampMs:     firstTs,
			VrfFragment:     frag,
			VrfOutput:       out,
			EntropySnapshot: snapshot,
		}); err != nil {
			return fmt.Errorf("record move %d: %w", i, err)
		}

		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	o.Stop()

	logger.Infof("sending final anchor for %s", gameID)
	if err := o.AnchorFinalState(ctx, orchestrator.FinalRequest{
		FinalScore:  1000,
		OutcomeCode: model.OutcomeComplete,
	}); err != nil {
		return fmt.Errorf("anchor final: %w", err)
	}

	bundle := audit.BundleFromAnchorChain(gameID, playerID, o.GenesisTxID(), o.AnchorChain(), o.Moves())

	verifier := audit.New(logger)
	verdict := verifier.Verify(ctx, bundle)

	audit.Render(os.Stdout, gameID, verdict)

	if !verdict.OK {
		return fmt.Errorf("audit verdict was not clean")
	}

	return nil
}
