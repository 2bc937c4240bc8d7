package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"shogi/pkg/match"
	"shogi/pkg/shogi"
)

type lengthStats struct {
	binSize     int
	games       int
	min         int
	max         int
	initialized bool
	bins        map[int]int
}

type playerAgg struct {
	games int
	wins  int
	draws int
}

func newLengthStats(binSize int) *lengthStats {
	return &lengthStats{
		binSize: binSize,
		bins:    make(map[int]int),
	}
}

func (ls *lengthStats) Add(plies int) {
	ls.games++
	if !ls.initialized {
		ls.min = plies
		ls.max = plies
		ls.initialized = true
	} else {
		if plies < ls.min {
			ls.min = plies
		}
		if plies > ls.max {
			ls.max = plies
		}
	}
	binStart := (plies / ls.binSize) * ls.binSize
	ls.bins[binStart]++
}

func main() {
	kifDir := flag.String("kif-dir", "", "input directory for KIF files")
	parquetPath := flag.String("parquet", "", "input results parquet file")
	binSize := flag.Int("bin-size", 20, "game length bin size in plies")
	minGames := flag.Int("min-games", 1, "minimum games per player to list")
	flag.Parse()

	if *binSize <= 0 {
		fatal(fmt.Errorf("bin-size must be > 0"))
	}
	if *minGames <= 0 {
		fatal(fmt.Errorf("min-games must be > 0"))
	}
	if (*kifDir == "") == (*parquetPath == "") {
		fatal(fmt.Errorf("specify exactly one of -kif-dir or -parquet"))
	}

	players := make(map[string]*playerAgg)
	lengths := newLengthStats(*binSize)
	reasons := make(map[string]int)
	failed := 0

	inputIsParquet := *parquetPath != ""
	if inputIsParquet {
		records, err := match.ReadResults(*parquetPath, 4)
		if err != nil {
			fatal(err)
		}
		for _, record := range records {
			lengths.Add(int(record.MoveCount))
			reasons[record.Reason]++
			addGame(players, record.SenteName, record.GoteName, record.Winner())
		}
	} else {
		files, err := shogi.CollectKIF(*kifDir)
		if err != nil {
			fatal(err)
		}
		if len(files) == 0 {
			fatal(fmt.Errorf("no .kif files found in %s", *kifDir))
		}
		for _, path := range files {
			rec, err := shogi.LoadKIF(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", path, err)
				failed++
				continue
			}
			g, err := shogi.ReplayKIF(rec)
			var replayErr *shogi.ReplayError
			if err != nil && !errors.As(err, &replayErr) {
				fmt.Fprintf(os.Stderr, "failed to replay %s: %v\n", path, err)
				failed++
				continue
			}
			lengths.Add(len(g.Records()))
			winner, reason := match.KIFResult(g, rec, replayErr)
			reasons[string(reason)]++
			addGame(players, rec.Header.Sente, rec.Header.Gote, winnerName(rec.Header, winner))
		}
	}

	if inputIsParquet {
		fmt.Printf("input parquet: %s\n", *parquetPath)
	} else {
		fmt.Printf("kif dir: %s\n", *kifDir)
	}
	fmt.Printf("failed files: %d\n", failed)
	fmt.Printf("games: %d\n", lengths.games)
	if lengths.games > 0 {
		fmt.Printf("length range: %d-%d\n", lengths.min, lengths.max)
	}
	fmt.Printf("length distribution (bin size=%d):\n", lengths.binSize)
	keys := make([]int, 0, len(lengths.bins))
	for key := range lengths.bins {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	for _, start := range keys {
		end := start + lengths.binSize - 1
		fmt.Printf("%d-%d,%d\n", start, end, lengths.bins[start])
	}

	fmt.Println("results by reason:")
	reasonKeys := make([]string, 0, len(reasons))
	for reason := range reasons {
		reasonKeys = append(reasonKeys, reason)
	}
	sort.Strings(reasonKeys)
	for _, reason := range reasonKeys {
		fmt.Printf("%s,%d\n", reason, reasons[reason])
	}

	fmt.Printf("players with >= %d games (name,games,wins,draws,score):\n", *minGames)
	names := make([]string, 0, len(players))
	for name, agg := range players {
		if agg.games >= *minGames {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		agg := players[name]
		score := (float64(agg.wins) + 0.5*float64(agg.draws)) / float64(agg.games)
		fmt.Printf("%s,%d,%d,%d,%.3f\n", name, agg.games, agg.wins, agg.draws, score)
	}
}

func winnerName(h shogi.KIFHeader, winner shogi.Allegiance) string {
	switch winner {
	case shogi.Sente:
		return h.Sente
	case shogi.Gote:
		return h.Gote
	default:
		return ""
	}
}

func addGame(agg map[string]*playerAgg, sente, gote, winner string) {
	for _, name := range []string{sente, gote} {
		if name == "" {
			continue
		}
		a := agg[name]
		if a == nil {
			a = &playerAgg{}
			agg[name] = a
		}
		a.games++
		switch winner {
		case name:
			a.wins++
		case "":
			a.draws++
		}
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
