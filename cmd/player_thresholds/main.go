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

type stats struct {
	crossings int
	wins      int
}

type playerStats struct {
	games       int
	byThreshold map[int]*stats
}

// main prints, per player, how often they converted a first crossing of
// each eval threshold into a win.
func main() {
	input := flag.String("input", "evals.parquet", "input eval parquet file")
	thresholdsArg := flag.String("thresholds", "300,500,1000", "comma-separated eval thresholds")
	minGames := flag.Int("min-games", 10, "minimum games per player")
	parallel := flag.Int64("parallel", 4, "parquet read parallelism")
	filterArg := flag.String("filter", "", `expression selecting games, e.g. 'moves >= 40 && reason == "resign"'`)
	flag.Parse()

	if *minGames <= 0 {
		fatal(fmt.Errorf("min-games must be > 0"))
	}
	thresholds, err := parseIntList(*thresholdsArg)
	if err != nil {
		fatal(err)
	}
	if len(thresholds) == 0 {
		fatal(fmt.Errorf("thresholds must be non-empty"))
	}
	sort.Ints(thresholds)

	records, err := match.ReadEvals(*input, *parallel)
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

	gameCounts := make(map[string]int)
	for _, record := range records {
		if record.SenteName != "" {
			gameCounts[record.SenteName]++
		}
		if record.GoteName != "" {
			gameCounts[record.GoteName]++
		}
	}
	players := make(map[string]*playerStats)
	for name, count := range gameCounts {
		if count < *minGames {
			continue
		}
		perThreshold := make(map[int]*stats, len(thresholds))
		for _, th := range thresholds {
			perThreshold[th] = &stats{}
		}
		players[name] = &playerStats{games: count, byThreshold: perThreshold}
	}

	for _, record := range records {
		resultSide := match.WinnerSide(record.Result)
		seats := []struct {
			name string
			side shogi.Allegiance
		}{
			{record.SenteName, shogi.Sente},
			{record.GoteName, shogi.Gote},
		}
		for _, th := range thresholds {
			crossingSide, _ := match.FirstCrossing(record.Evals, th)
			for _, seat := range seats {
				player, ok := players[seat.name]
				if !ok || crossingSide != seat.side {
					continue
				}
				st := player.byThreshold[th]
				st.crossings++
				if resultSide == seat.side {
					st.wins++
				}
			}
		}
	}

	headers := []string{"player", "games"}
	for _, th := range thresholds {
		headers = append(headers, fmt.Sprintf("win_rate_%d", th))
	}
	fmt.Println(strings.Join(headers, ","))

	order := make([]string, 0, len(players))
	for name := range players {
		order = append(order, name)
	}
	sort.Slice(order, func(i, j int) bool {
		left, right := players[order[i]], players[order[j]]
		if left.games == right.games {
			return order[i] < order[j]
		}
		return left.games > right.games
	})
	for _, name := range order {
		player := players[name]
		row := []string{name, strconv.Itoa(player.games)}
		for _, th := range thresholds {
			st := player.byThreshold[th]
			winRate := 0.0
			if st.crossings > 0 {
				winRate = float64(st.wins) / float64(st.crossings)
			}
			row = append(row, fmt.Sprintf("%.6f", winRate))
		}
		fmt.Println(strings.Join(row, ","))
	}
}

func parseIntList(raw string) ([]int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		value, err := strconv.Atoi(segment)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
