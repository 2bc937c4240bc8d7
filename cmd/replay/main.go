// main.go
//
// Replays every KIF file under a directory through the rules engine and
// reports the first illegal move of each game, or its final status.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"shogi/pkg/shogi"
)

func main() {
	inputDir := flag.String("input", "test_kif", "input directory for KIF files")
	pro := flag.Bool("pro", false, "replay in pro mode, where an illegal move loses the game")
	verbose := flag.Bool("v", false, "print the final SFEN of every game")
	flag.Parse()

	files, err := shogi.CollectKIF(*inputDir)
	if err != nil {
		fatal(err)
	}
	if len(files) == 0 {
		fatal(fmt.Errorf("no .kif files found in %s", *inputDir))
	}

	var opts []shogi.Option
	if *pro {
		opts = append(opts, shogi.WithProMode())
	}

	failed, illegal := 0, 0
	statuses := make(map[shogi.Status]int)
	for _, path := range files {
		rec, err := shogi.LoadKIF(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", path, err)
			failed++
			continue
		}
		g, err := shogi.ReplayKIF(rec, opts...)
		var replayErr *shogi.ReplayError
		if errors.As(err, &replayErr) {
			fmt.Printf("%s: illegal move at ply %d (%s): %v\n", path, replayErr.Ply, replayErr.Move, replayErr.Err)
			illegal++
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to replay %s: %v\n", path, err)
			failed++
			continue
		}
		status, winner := g.Status()
		statuses[status]++
		line := fmt.Sprintf("%s: %d moves, %s", path, len(g.Records()), status)
		if status.Over() && winner != shogi.Neutral {
			line += fmt.Sprintf(" (%s wins)", winner)
		}
		if rec.Terminal != "" {
			line += ", recorded " + rec.Terminal
		}
		fmt.Println(line)
		if *verbose {
			fmt.Printf("  %s\n", g.SFEN())
		}
	}

	fmt.Printf("files: %d, illegal: %d, failed: %d\n", len(files), illegal, failed)
	for _, status := range []shogi.Status{shogi.Ongoing, shogi.Check, shogi.Checkmate, shogi.Repetition, shogi.Resigned, shogi.Foul} {
		if n := statuses[status]; n > 0 {
			fmt.Printf("%s: %d\n", status, n)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
