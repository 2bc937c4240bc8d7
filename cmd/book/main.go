// main.go
//
// Builds an opening book in YaneuraOu DB format from a directory of KIF
// games. Positions are keyed by their 256-bit packing; only positions seen
// at least -threshold times are written, with the moves played from them.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"shogi/pkg/shogi"
)

// posInfo holds the SFEN string and move counts for a qualified position.
type posInfo struct {
	sfen  string
	moves map[string]uint32
}

func main() {
	inputDir := flag.String("input", "test_kif", "input directory for KIF files")
	outputPath := flag.String("output", "book.db", "output book file")
	threshold := flag.Int("threshold", 3, "minimum occurrence count to include in book")
	maxPly := flag.Int("max-ply", 60, "maximum ply to process per game")
	maxFiles := flag.Int("max-files", 0, "maximum number of files to process (0=all)")
	workers := flag.Int("workers", 0, "number of parallel workers (0=NumCPU)")
	flag.Parse()

	if *workers <= 0 {
		*workers = runtime.NumCPU()
	}

	start := time.Now()

	files, err := shogi.CollectKIF(*inputDir)
	if err != nil {
		fatal(err)
	}
	if len(files) == 0 {
		fatal(fmt.Errorf("no .kif files found in %s", *inputDir))
	}
	if *maxFiles > 0 && len(files) > *maxFiles {
		files = files[:*maxFiles]
	}
	fmt.Fprintf(os.Stderr, "files: %d, workers: %d, max-ply: %d, threshold: %d\n",
		len(files), *workers, *maxPly, *threshold)

	// Pass 1 keeps only Packed256 -> count, no SFEN strings.
	fmt.Fprintf(os.Stderr, "pass 1: counting positions...\n")
	counts, errFiles := runPass1(files, *maxPly, *workers)

	total := 0
	for _, c := range counts {
		total += int(c)
	}
	fmt.Fprintf(os.Stderr, "  unique positions: %d, total occurrences: %d, file errors: %d\n",
		len(counts), total, errFiles)

	qual := make(map[shogi.Packed256]bool)
	for k, c := range counts {
		if c >= uint32(*threshold) {
			qual[k] = true
		}
	}

	counts = nil
	runtime.GC()

	fmt.Fprintf(os.Stderr, "  qualified positions (>=%d): %d\n", *threshold, len(qual))
	if len(qual) == 0 {
		fmt.Fprintln(os.Stderr, "no positions meet the threshold; nothing to write")
		return
	}

	fmt.Fprintf(os.Stderr, "pass 2: collecting moves...\n")
	data := runPass2(files, *maxPly, qual, *workers)
	fmt.Fprintf(os.Stderr, "  book entries: %d\n", len(data))

	if err := writeBook(*outputPath, data); err != nil {
		fatal(err)
	}

	fmt.Fprintf(os.Stderr, "wrote %s (%d positions) in %v\n",
		*outputPath, len(data), time.Since(start).Round(time.Millisecond))
}

// iteratePositions replays a KIF game up to maxPly and calls fn for each
// position together with the move played from it. Replay stops at the first
// illegal move or at a position that cannot be packed (handicap games).
func iteratePositions(
	path string,
	maxPly int,
	fn func(packed shogi.Packed256, g *shogi.Game, ply int, move string),
) error {
	rec, err := shogi.LoadKIF(path)
	if err != nil {
		return err
	}
	g := shogi.NewGameFromBoard(rec.Initial.Clone(), rec.Turn)
	limit := min(maxPly, len(rec.Moves))
	for i := 0; i < limit; i++ {
		packed, err := g.Board().Pack256(g.Turn())
		if err != nil {
			return nil
		}
		move := rec.Moves[i].String()
		fn(packed, g, i+1, move)
		if _, err := g.PlayUSI(move); err != nil {
			return nil
		}
	}
	return nil
}

func feedFiles(files []string, ch chan<- string) {
	for _, path := range files {
		ch <- path
	}
	close(ch)
}

func runPass1(files []string, maxPly, workers int) (map[shogi.Packed256]uint32, int) {
	counts := make(map[shogi.Packed256]uint32)
	var mu sync.Mutex
	var processed, errCount atomic.Int64

	ch := make(chan string, workers*4)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]shogi.Packed256, 0, 64)
			for path := range ch {
				batch = batch[:0]
				err := iteratePositions(path, maxPly,
					func(packed shogi.Packed256, _ *shogi.Game, _ int, _ string) {
						batch = append(batch, packed)
					})
				if err != nil {
					fmt.Fprintf(os.Stderr, "\nfailed to parse %s: %v\n", path, err)
					errCount.Add(1)
				}
				if len(batch) > 0 {
					mu.Lock()
					for _, p := range batch {
						counts[p]++
					}
					mu.Unlock()
				}
				if n := processed.Add(1); n%10000 == 0 {
					fmt.Fprintf(os.Stderr, "\r  %d/%d", n, len(files))
				}
			}
		}()
	}

	feedFiles(files, ch)
	wg.Wait()
	fmt.Fprintf(os.Stderr, "\r  %d/%d\n", processed.Load(), len(files))

	return counts, int(errCount.Load())
}

func runPass2(files []string, maxPly int, qual map[shogi.Packed256]bool, workers int) map[shogi.Packed256]*posInfo {
	data := make(map[shogi.Packed256]*posInfo)
	var mu sync.Mutex
	var processed atomic.Int64

	type localEntry struct {
		packed shogi.Packed256
		sfen   string
		move   string
	}

	ch := make(chan string, workers*4)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]localEntry, 0, 16)
			for path := range ch {
				batch = batch[:0]
				_ = iteratePositions(path, maxPly,
					func(packed shogi.Packed256, g *shogi.Game, ply int, move string) {
						if !qual[packed] {
							return
						}
						batch = append(batch, localEntry{packed, g.Board().SFEN(g.Turn(), ply), move})
					})
				if len(batch) > 0 {
					mu.Lock()
					for _, e := range batch {
						info := data[e.packed]
						if info == nil {
							info = &posInfo{sfen: e.sfen, moves: make(map[string]uint32)}
							data[e.packed] = info
						}
						info.moves[e.move]++
					}
					mu.Unlock()
				}
				if n := processed.Add(1); n%10000 == 0 {
					fmt.Fprintf(os.Stderr, "\r  %d/%d", n, len(files))
				}
			}
		}()
	}

	feedFiles(files, ch)
	wg.Wait()
	fmt.Fprintf(os.Stderr, "\r  %d/%d\n", processed.Load(), len(files))

	return data
}

// writeBook writes entries sorted by SFEN, moves by count descending.
func writeBook(path string, data map[shogi.Packed256]*posInfo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "#YANEURAOU-DB2016 1.00")

	entries := make([]*posInfo, 0, len(data))
	for _, info := range data {
		entries = append(entries, info)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].sfen < entries[j].sfen
	})

	for _, e := range entries {
		fmt.Fprintf(w, "sfen %s\n", e.sfen)

		type mc struct {
			move  string
			count uint32
		}
		ms := make([]mc, 0, len(e.moves))
		for m, c := range e.moves {
			ms = append(ms, mc{m, c})
		}
		sort.Slice(ms, func(i, j int) bool {
			if ms[i].count != ms[j].count {
				return ms[i].count > ms[j].count
			}
			return ms[i].move < ms[j].move
		})

		// <move> <response> <eval> <depth> <count>; no response or eval tracked.
		for _, m := range ms {
			fmt.Fprintf(w, "%s none 0 0 %d\n", m.move, m.count)
		}
	}

	return w.Flush()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
