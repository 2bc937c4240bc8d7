package match_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"shogi/pkg/match"
	"shogi/pkg/shogi"
	"shogi/pkg/usi"
)

func TestPlayConfiguredEngines(t *testing.T) {
	cfgPath, repoRoot, err := match.FindConfigPath()
	if err != nil {
		t.Skipf("no config.json: %v", err)
	}
	cfg, err := match.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config.json: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sessions := make([]*usi.Session, 0, 2)
	for _, e := range []match.EngineConfig{cfg.Sente, cfg.Gote} {
		path, err := match.ResolveEnginePath(e.Path, repoRoot)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Skipf("engine binary not found at %s: %v", path, err)
		}
		session, err := usi.StartSession(ctx, path, e.Args...)
		if err != nil {
			t.Fatalf("failed to start %s: %v", path, err)
		}
		defer session.Close()

		stderrBuf := &bytes.Buffer{}
		stderrDone := make(chan struct{})
		go func() {
			_, _ = io.Copy(stderrBuf, session.Stderr())
			close(stderrDone)
		}()
		if err := session.Handshake(ctx, e.Options); err != nil {
			if shouldSkipForMissingLibs(stderrBuf, stderrDone) {
				t.Skipf("engine cannot start due to missing runtime libraries: %s", strings.TrimSpace(stderrBuf.String()))
			}
			t.Fatalf("usi handshake failed: %v", err)
		}
		sessions = append(sessions, session)
	}

	out, err := match.Play(ctx, sessions[0], sessions[1], match.Options{
		MoveTimeMs:  10,
		MaxPlies:    40,
		MoveTimeout: 10 * time.Second,
		StartSFEN:   cfg.StartSFEN,
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if out.Reason == match.ReasonIllegalMove || out.Reason == match.ReasonEngineError {
		t.Fatalf("game ended with %s: %v", out.Reason, out.Err)
	}

	// Every accepted ply must replay cleanly from the starting position.
	initial, turn := out.Game.Initial()
	replay := shogi.NewGameFromBoard(initial, turn)
	for i, ply := range out.Plies {
		if _, err := replay.PlayUSI(ply.Record.USI()); err != nil {
			t.Fatalf("ply %d %s does not replay: %v", i+1, ply.Record.USI(), err)
		}
	}
	if got, want := replay.SFEN(), out.Game.SFEN(); got != want {
		t.Fatalf("replayed position %q, want %q", got, want)
	}
}

func shouldSkipForMissingLibs(stderrBuf *bytes.Buffer, stderrDone <-chan struct{}) bool {
	select {
	case <-stderrDone:
	case <-time.After(500 * time.Millisecond):
	}

	msg := stderrBuf.String()
	return strings.Contains(msg, "GLIBC") || strings.Contains(msg, "GLIBCXX")
}
