package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"shogi/pkg/match"
	"shogi/pkg/shogi"
)

type scenario struct {
	threshold  int
	bucketFrom int
	bucketTo   int
}

type stats struct {
	crossings int
	wins      int
	draws     int
}

// main prints CSV stats on how often the side that first reaches an eval
// threshold goes on to win, bucketed by the ply of the crossing.
func main() {
	inputPath := flag.String("input", "evals.parquet", "input eval parquet file")
	thresholdsArg := flag.String("thresholds", "1000", "comma-separated eval thresholds")
	binSize := flag.Int("ply-bin-size", 20, "crossing ply bucket size")
	parallel := flag.Int64("parallel", 4, "parquet read parallelism")
	filterArg := flag.String("filter", "", `expression selecting games, e.g. 'moves >= 40 && reason == "resign"'`)
	flag.Parse()

	thresholds, err := parseIntList(*thresholdsArg)
	if err != nil {
		fatal(err)
	}
	if len(thresholds) == 0 {
		fatal(fmt.Errorf("thresholds must be non-empty"))
	}
	if *binSize <= 0 {
		fatal(fmt.Errorf("ply-bin-size must be > 0"))
	}

	records, err := match.ReadEvals(*inputPath, *parallel)
	if err != nil {
		fatal(err)
	}
	filter, err := match.CompileFilter(*filterArg)
	if err != nil {
		fatal(err)
	}
	if records, err = filter.Apply(records); err != nil {
		fatal(err)
	}

	results := make(map[scenario]*stats)
	excluded := make(map[int]int, len(thresholds))
	for _, record := range records {
		resultSide := match.WinnerSide(record.Result)
		unfinished := record.Reason == string(match.ReasonUnfinished)
		for _, threshold := range thresholds {
			crossingSide, ply := match.FirstCrossing(record.Evals, threshold)
			if crossingSide == shogi.Neutral || unfinished {
				excluded[threshold]++
				continue
			}
			sc := bucketScenario(threshold, int(ply), *binSize)
			st := results[sc]
			if st == nil {
				st = &stats{}
				results[sc] = st
			}
			st.crossings++
			switch resultSide {
			case crossingSide:
				st.wins++
			case shogi.Neutral:
				st.draws++
			}
		}
	}

	fmt.Fprintf(os.Stderr, "games: %d\n", len(records))
	printCSV(results, excluded)
}

func bucketScenario(threshold, ply, binSize int) scenario {
	from := (ply / binSize) * binSize
	return scenario{threshold: threshold, bucketFrom: from, bucketTo: from + binSize}
}

func parseIntList(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// printCSV writes one row per threshold and crossing bucket.
func printCSV(results map[scenario]*stats, excluded map[int]int) {
	scenarios := make([]scenario, 0, len(results))
	for sc := range results {
		scenarios = append(scenarios, sc)
	}
	sort.Slice(scenarios, func(i, j int) bool {
		if scenarios[i].threshold == scenarios[j].threshold {
			return scenarios[i].bucketFrom < scenarios[j].bucketFrom
		}
		return scenarios[i].threshold < scenarios[j].threshold
	})

	fmt.Println("threshold,ply_from,ply_to,crossings,wins,draws,win_rate,excluded")
	for _, sc := range scenarios {
		st := results[sc]
		winRate := 0.0
		if st.crossings > 0 {
			winRate = float64(st.wins) / float64(st.crossings)
		}
		fmt.Printf("%d,%d,%d,%d,%d,%d,%.6f,%d\n",
			sc.threshold,
			sc.bucketFrom,
			sc.bucketTo,
			st.crossings,
			st.wins,
			st.draws,
			winRate,
			excluded[sc.threshold],
		)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
