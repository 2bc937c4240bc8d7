// main.go
//
// Plays a series of games between the two USI engines named in config.json.
// Every move is checked by the rules engine. Each game becomes one parquet
// row and optionally one KIF file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"shogi/pkg/match"
	"shogi/pkg/shogi"
	"shogi/pkg/usi"
)

// player is one configured engine with its resolved binary.
type player struct {
	name    string
	path    string
	args    []string
	options map[string]string
}

// seat pairs a running session with the engine it came from.
type seat struct {
	player  player
	session *usi.Session
}

func main() {
	startTime := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := flag.String("config", "", "path to config.json (default: search upwards)")
	games := flag.Int("games", 0, "number of games (0 = value from config)")
	outputPath := flag.String("output", "results.parquet", "output parquet file")
	kifDir := flag.String("kif-dir", "", "directory to write one KIF per game")
	kifEncoding := flag.String("kif-encoding", "utf8", "KIF encoding: utf8 or sjis")
	moveTimeout := flag.Duration("timeout", 30*time.Second, "timeout per engine move")
	parallel := flag.Int("parallel", 1, "number of games played at once")
	flag.Parse()

	cfgPath, repoRoot, err := resolveConfigPath(*configPath)
	if err != nil {
		fatal(err)
	}
	cfg, err := match.LoadConfig(cfgPath)
	if err != nil {
		fatal(err)
	}
	enc, err := parseEncoding(*kifEncoding)
	if err != nil {
		fatal(err)
	}
	first, err := resolvePlayer(cfg.Sente, repoRoot)
	if err != nil {
		fatal(err)
	}
	second, err := resolvePlayer(cfg.Gote, repoRoot)
	if err != nil {
		fatal(err)
	}

	total := cfg.Games
	if *games > 0 {
		total = *games
	}
	workers := *parallel
	if workers <= 0 {
		workers = 1
	}
	if workers > total {
		workers = total
	}
	for _, dir := range []string{filepath.Dir(*outputPath), *kifDir} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatal(err)
		}
	}
	opts := match.Options{
		MoveTimeMs:  cfg.Millis,
		MaxPlies:    cfg.MaxPlies,
		MoveTimeout: *moveTimeout,
		StartSFEN:   cfg.StartSFEN,
	}
	fmt.Fprintf(os.Stderr, "games: %d, workers: %d, movetime: %dms, max plies: %d\n",
		total, workers, opts.MoveTimeMs, opts.MaxPlies)

	jobs := make(chan int)
	errCh := make(chan error, workers)
	results := make(chan match.MatchRecord, workers)
	writeErr := make(chan error, 1)
	var writeWg sync.WaitGroup
	writeWg.Add(1)
	go func() {
		defer writeWg.Done()
		writeErr <- match.WriteResults(*outputPath, results, int64(workers))
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	stopRequested := make(chan struct{})
	go func() {
		<-stopCh
		cancel()
		close(stopRequested)
	}()
	defer signal.Stop(stopCh)

	var played int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := startSeat(ctx, first)
			if err != nil {
				errCh <- err
				return
			}
			defer func() { a.session.Close() }()
			b, err := startSeat(ctx, second)
			if err != nil {
				errCh <- err
				return
			}
			defer func() { b.session.Close() }()

			for index := range jobs {
				if isStopRequested(stopRequested) {
					return
				}
				sente, gote := &a, &b
				if index%2 == 1 {
					sente, gote = gote, sente
				}
				gameID := fmt.Sprintf("game-%04d", index+1)
				gameStart := time.Now()
				out, err := match.Play(ctx, sente.session, gote.session, opts)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					fmt.Fprintf(os.Stderr, "failed to play %s: %v\n", gameID, err)
					atomic.AddInt64(&played, 1)
					continue
				}
				record := match.NewMatchRecord(gameID, sente.player.name, gote.player.name, out)
				if *kifDir != "" {
					header := shogi.KIFHeader{
						Sente: sente.player.name,
						Gote:  gote.player.name,
						Event: "engine match",
						Start: gameStart,
					}
					if err := writeGameKIF(filepath.Join(*kifDir, gameID+".kif"), out.Game, header, enc); err != nil {
						fmt.Fprintf(os.Stderr, "failed to write kif for %s: %v\n", gameID, err)
					}
				}
				results <- record
				atomic.AddInt64(&played, 1)
				fmt.Fprintf(os.Stderr, "%s: %s vs %s, %s by %s after %d plies (%s)\n",
					gameID, sente.player.name, gote.player.name, record.Result, record.Reason,
					record.MoveCount, time.Since(gameStart).Round(time.Millisecond))

				if out.Reason == match.ReasonEngineError {
					// The failing engine may be wedged; start both afresh.
					if err := restartSeat(ctx, sente); err != nil {
						errCh <- err
						return
					}
					if err := restartSeat(ctx, gote); err != nil {
						errCh <- err
						return
					}
				}
			}
		}()
	}

	// Workers that fail to start their engines return early.
	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

enqueue:
	for i := 0; i < total; i++ {
		select {
		case <-stopRequested:
			break enqueue
		case <-workersDone:
			break enqueue
		case jobs <- i:
		}
	}
	close(jobs)
	<-workersDone
	close(results)
	writeWg.Wait()
	if err := <-writeErr; err != nil {
		fatal(err)
	}
	close(errCh)
	for err := range errCh {
		if err != nil {
			fatal(err)
		}
	}

	records, err := match.ReadResults(*outputPath, int64(workers))
	if err != nil {
		fatal(err)
	}
	printSummary(match.Summarize(records))
	fmt.Fprintf(os.Stderr, "elapsed: %s, played: %d\n",
		time.Since(startTime).Round(time.Second), atomic.LoadInt64(&played))
}

func resolvePlayer(e match.EngineConfig, repoRoot string) (player, error) {
	path, err := match.ResolveEnginePath(e.Path, repoRoot)
	if err != nil {
		return player{}, err
	}
	if _, err := os.Stat(path); err != nil {
		return player{}, fmt.Errorf("engine binary not found at %s: %w", path, err)
	}
	return player{name: e.Name, path: path, args: e.Args, options: e.Options}, nil
}

func startSeat(ctx context.Context, p player) (seat, error) {
	session, err := usi.StartSession(ctx, p.path, p.args...)
	if err != nil {
		return seat{}, fmt.Errorf("%s: %w", p.name, err)
	}
	if stderr := session.Stderr(); stderr != nil {
		go func() { _, _ = io.Copy(io.Discard, stderr) }()
	}
	if err := session.Handshake(ctx, p.options); err != nil {
		session.Close()
		return seat{}, fmt.Errorf("%s: handshake: %w", p.name, err)
	}
	return seat{player: p, session: session}, nil
}

func restartSeat(ctx context.Context, s *seat) error {
	_ = s.session.Close()
	fresh, err := startSeat(ctx, s.player)
	if err != nil {
		return err
	}
	*s = fresh
	return nil
}

func writeGameKIF(path string, g *shogi.Game, h shogi.KIFHeader, enc shogi.KIFEncoding) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := shogi.WriteKIF(f, g, h, enc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseEncoding(name string) (shogi.KIFEncoding, error) {
	switch name {
	case "utf8", "utf-8":
		return shogi.UTF8, nil
	case "sjis", "shift_jis", "cp932":
		return shogi.ShiftJIS, nil
	default:
		return shogi.UTF8, fmt.Errorf("unknown kif encoding %q", name)
	}
}

func printSummary(s match.Summary) {
	fmt.Printf("games: %d\n", s.Games)
	names := maps.Keys(s.Wins)
	slices.Sort(names)
	for _, name := range names {
		fmt.Printf("wins %s: %d\n", name, s.Wins[name])
	}
	fmt.Printf("draws: %d\n", s.Draws)
	reasons := maps.Keys(s.Reasons)
	slices.Sort(reasons)
	for _, reason := range reasons {
		fmt.Printf("reason %s: %d\n", reason, s.Reasons[reason])
	}
}

func resolveConfigPath(arg string) (string, string, error) {
	if arg != "" {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return "", "", err
		}
		return abs, filepath.Dir(abs), nil
	}
	return match.FindConfigPath()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func isStopRequested(stopRequested <-chan struct{}) bool {
	select {
	case <-stopRequested:
		return true
	default:
		return false
	}
}
