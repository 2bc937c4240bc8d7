// main.go
//
// Evaluates every position of every KIF game under a directory with the
// first engine in config.json and stores the scores in a parquet file.
// With -resume, games already present in the output are kept and skipped.

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

	"shogi/pkg/match"
	"shogi/pkg/shogi"
	"shogi/pkg/usi"
)

func main() {
	startTime := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	configPath := flag.String("config", "", "path to config.json (default: search upwards)")
	inputDir := flag.String("input", "test_kif", "input directory for KIF files")
	outputPath := flag.String("output", "evals.parquet", "output parquet file")
	processNum := flag.Int("process-num", 4, "number of parallel workers")
	evalTimeout := flag.Duration("timeout", 10*time.Second, "timeout per evaluation")
	resume := flag.Bool("resume", false, "resume from existing output parquet")
	flag.Parse()

	cfgPath, repoRoot, err := resolveConfigPath(*configPath)
	if err != nil {
		fatal(err)
	}
	cfg, err := match.LoadConfig(cfgPath)
	if err != nil {
		fatal(err)
	}
	enginePath, err := match.ResolveEnginePath(cfg.Sente.Path, repoRoot)
	if err != nil {
		fatal(err)
	}
	if _, err := os.Stat(enginePath); err != nil {
		fatal(fmt.Errorf("engine binary not found at %s: %w", enginePath, err))
	}
	files, err := shogi.CollectKIF(*inputDir)
	if err != nil {
		fatal(err)
	}
	if len(files) == 0 {
		fatal(fmt.Errorf("no .kif files found in %s", *inputDir))
	}
	opts := match.AnnotateOptions{MoveTimeMs: cfg.Millis, EvalTimeout: *evalTimeout}

	workers := *processNum
	if workers <= 0 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}
	if dir := filepath.Dir(*outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatal(err)
		}
	}

	outputTarget := *outputPath
	processedIDs := make(map[string]struct{})
	var existing []match.EvalRecord
	if *resume {
		if _, err := os.Stat(*outputPath); err == nil {
			existing, err = match.ReadEvals(*outputPath, int64(workers))
			if err != nil {
				fatal(err)
			}
			for _, r := range existing {
				processedIDs[r.GameID] = struct{}{}
			}
			outputTarget = *outputPath + ".tmp"
		}
	}

	jobs := make(chan string)
	errCh := make(chan error, workers)
	results := make(chan match.EvalRecord, workers)
	writeErr := make(chan error, 1)
	done := make(chan struct{})
	var processed int64
	var writeWg sync.WaitGroup
	writeWg.Add(1)
	go func() {
		defer writeWg.Done()
		writeErr <- match.WriteEvals(outputTarget, results, int64(workers))
	}()
	for _, r := range existing {
		results <- r
	}
	go func(total int) {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				fmt.Fprintf(os.Stderr, "\rprogress: %d/%d (100%%)\n", total, total)
				return
			case <-ticker.C:
				count := int(atomic.LoadInt64(&processed))
				percent := 0
				if total > 0 {
					percent = int(float64(count) / float64(total) * 100)
				}
				fmt.Fprintf(os.Stderr, "\rprogress: %d/%d (%d%%)", count, total, percent)
			}
		}
	}(len(files))

	var wg sync.WaitGroup
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	stopRequested := make(chan struct{})
	go func() {
		<-stopCh
		cancel()
		close(stopRequested)
	}()
	defer signal.Stop(stopCh)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if isStopRequested(stopRequested) {
				return
			}
			session, err := startSession(ctx, enginePath, cfg.Sente)
			if err != nil {
				errCh <- err
				return
			}
			defer func() { session.Close() }()
			cache := make(map[string]match.PlyEval)
			for path := range jobs {
				if isStopRequested(stopRequested) {
					return
				}
				fileStart := time.Now()
				record, err := annotateFile(ctx, session, path, opts, cache)
				if err != nil && isCanceled(err) {
					return
				}
				if err != nil && isEngineFailure(err) {
					// The engine died or is stuck in a search; retry the
					// file once on a fresh process.
					_ = session.Close()
					session, err = startSession(ctx, enginePath, cfg.Sente)
					if err != nil {
						errCh <- err
						return
					}
					record, err = annotateFile(ctx, session, path, opts, cache)
					if err != nil && isCanceled(err) {
						return
					}
				}
				elapsed := time.Since(fileStart).Round(time.Millisecond)
				if err != nil {
					fmt.Fprintf(os.Stderr, "failed to process %s (%s): %v\n", path, elapsed, err)
					atomic.AddInt64(&processed, 1)
					continue
				}
				results <- record
				fmt.Fprintf(os.Stderr, "processed %s (%s)\n", path, elapsed)
				atomic.AddInt64(&processed, 1)
			}
		}()
	}

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

enqueue:
	for _, path := range files {
		if _, ok := processedIDs[filepath.Base(path)]; ok {
			atomic.AddInt64(&processed, 1)
			continue
		}
		select {
		case <-stopRequested:
			break enqueue
		case <-workersDone:
			break enqueue
		case jobs <- path:
		}
	}
	close(jobs)
	<-workersDone
	close(done)
	close(results)
	writeWg.Wait()
	if err := <-writeErr; err != nil {
		fatal(err)
	}
	if outputTarget != *outputPath {
		if err := os.Rename(outputTarget, *outputPath); err != nil {
			fatal(err)
		}
	}
	close(errCh)
	for err := range errCh {
		if err != nil {
			fatal(err)
		}
	}
	elapsed := time.Since(startTime).Round(time.Second)
	fmt.Fprintf(os.Stderr, "elapsed: %s, processed: %d\n", elapsed, atomic.LoadInt64(&processed))
}

func annotateFile(ctx context.Context, s *usi.Session, path string, opts match.AnnotateOptions, cache map[string]match.PlyEval) (match.EvalRecord, error) {
	rec, err := shogi.LoadKIF(path)
	if err != nil {
		return match.EvalRecord{}, err
	}
	return match.AnnotateGame(ctx, s, filepath.Base(path), rec, opts, cache)
}

func startSession(ctx context.Context, enginePath string, e match.EngineConfig) (*usi.Session, error) {
	session, err := usi.StartSession(ctx, enginePath, e.Args...)
	if err != nil {
		return nil, err
	}
	if stderr := session.Stderr(); stderr != nil {
		go func() { _, _ = io.Copy(io.Discard, stderr) }()
	}
	if err := session.Handshake(ctx, e.Options); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

func isEngineFailure(err error) bool {
	return errors.Is(err, usi.ErrStdoutClosed) || errors.Is(err, usi.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
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
