package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"holdem-kit/replay"
)

// replaycheck 读取 HandSpec JSON，重演并输出磁带或失败原因。
//
//	replaycheck -spec hand.json              摘要输出
//	replaycheck -spec hand.json -json        完整磁带 JSON
//	replaycheck -spec hand.json -out t.bin   写二进制磁带
func main() {
	log.SetFlags(0)
	log.SetPrefix("[ReplayCheck] ")

	specPath := flag.String("spec", "", "path to HandSpec JSON (- for stdin)")
	asJSON := flag.Bool("json", false, "print the full tape as JSON")
	outPath := flag.String("out", "", "write binary tape to file")
	flag.Parse()

	if *specPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	raw, err := readSpec(*specPath)
	if err != nil {
		log.Fatalf("read spec: %v", err)
	}

	var spec replay.HandSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		log.Fatalf("parse spec: %v", err)
	}

	tape, err := replay.GenerateReplayTape(spec)
	if err != nil {
		var replayErr *replay.ReplayError
		if errors.As(err, &replayErr) {
			detail, _ := json.MarshalIndent(replayErr, "", "  ")
			log.Printf("replay diverged:\n%s", detail)
			os.Exit(1)
		}
		log.Fatalf("replay failed: %v", err)
	}

	if *outPath != "" {
		bin, err := replay.MarshalTapeBinary(tape)
		if err != nil {
			log.Fatalf("encode tape: %v", err)
		}
		if err := os.WriteFile(*outPath, bin, 0o644); err != nil {
			log.Fatalf("write tape: %v", err)
		}
		log.Printf("wrote %d bytes to %s", len(bin), *outPath)
	}

	if *asJSON {
		out, err := json.MarshalIndent(tape, "", "  ")
		if err != nil {
			log.Fatalf("encode tape json: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	printSummary(tape)
}

func readSpec(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printSummary(tape *replay.ReplayTape) {
	log.Printf("tape v%d table=%s hero=chair%d events=%d",
		tape.TapeVersion, tape.TableID, tape.HeroChair, len(tape.Events))
	for _, e := range tape.Events {
		switch e.Type {
		case replay.EventTypeHandStart:
			log.Printf("  #%d handStart round=%d dealer=%d sb=%d bb=%d",
				e.Seq, e.HandStart.Round, e.HandStart.DealerChair,
				e.HandStart.SmallBlindChair, e.HandStart.BigBlindChair)
		case replay.EventTypeActionResult:
			log.Printf("  #%d action chair=%d %s amount=%d pot=%d",
				e.Seq, e.ActionResult.Chair, e.ActionResult.Action,
				e.ActionResult.Amount, e.ActionResult.NewPotTotal)
		case replay.EventTypeBoard:
			log.Printf("  #%d board %s %v", e.Seq, e.Board.Phase, e.Board.Cards)
		case replay.EventTypeShowdown:
			for _, h := range e.Showdown.Hands {
				log.Printf("  #%d showdown chair=%d %s %v kickers=%v",
					e.Seq, h.Chair, h.Category, h.HoleCards, h.Kickers)
			}
		case replay.EventTypeWinByFold:
			log.Printf("  #%d winByFold chair=%d pot=%d",
				e.Seq, e.WinByFold.WinnerChair, e.WinByFold.PotTotal)
		case replay.EventTypeHandEnd:
			for _, d := range e.HandEnd.StackDeltas {
				log.Printf("  #%d handEnd chair=%d delta=%+d stack=%d",
					e.Seq, d.Chair, d.Delta, d.NewStack)
			}
		}
	}
}
