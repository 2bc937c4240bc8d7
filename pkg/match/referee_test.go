package match_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"shogi/pkg/match"
	"shogi/pkg/shogi"
)

// scripted plays a fixed list of moves and resigns when it runs out.
type scripted struct {
	moves     []string
	positions []string
	newGames  int
	result    string
	err       error
	block     bool
}

func (s *scripted) BestMove(ctx context.Context, position string, moveTimeMs int) (string, error) {
	s.positions = append(s.positions, position)
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	if len(s.moves) == 0 {
		return "resign", nil
	}
	move := s.moves[0]
	s.moves = s.moves[1:]
	return move, nil
}

func (s *scripted) NewGame() error {
	s.newGames++
	return nil
}

func (s *scripted) GameOver(result string) error {
	s.result = result
	return nil
}

func TestPlayCheckmate(t *testing.T) {
	sente := &scripted{moves: []string{"G*1b"}}
	gote := &scripted{}
	out, err := match.Play(context.Background(), sente, gote, match.Options{StartSFEN: "8k/9/6NG1/9/9/9/9/9/K8 b G 1"})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if out.Winner != shogi.Sente || out.Reason != match.ReasonCheckmate {
		t.Fatalf("unexpected outcome: %s %s", out.Winner, out.Reason)
	}
	if len(out.Plies) != 1 || !out.Plies[0].Check {
		t.Fatalf("unexpected plies: %+v", out.Plies)
	}
	if len(gote.positions) != 0 {
		t.Fatal("gote should not be asked after being mated")
	}
	if sente.result != "win" || gote.result != "lose" {
		t.Fatalf("unexpected notifications: %q %q", sente.result, gote.result)
	}
	if sente.newGames != 1 || gote.newGames != 1 {
		t.Fatal("both players should hear about the new game")
	}
}

func TestPlayResign(t *testing.T) {
	sente := &scripted{moves: []string{"7g7f"}}
	gote := &scripted{}
	out, err := match.Play(context.Background(), sente, gote, match.Options{})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if out.Winner != shogi.Sente || out.Reason != match.ReasonResign {
		t.Fatalf("unexpected outcome: %s %s", out.Winner, out.Reason)
	}
	if want := "sfen " + shogi.StandardSFEN + " moves 7g7f"; gote.positions[0] != want {
		t.Fatalf("unexpected position: got %q want %q", gote.positions[0], want)
	}
	if status, _ := out.Game.Status(); status != shogi.Resigned {
		t.Fatalf("unexpected game status: %s", status)
	}
}

func TestPlayIllegalMoveForfeits(t *testing.T) {
	sente := &scripted{moves: []string{"7g7e"}}
	out, err := match.Play(context.Background(), sente, &scripted{}, match.Options{})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if out.Winner != shogi.Gote || out.Reason != match.ReasonIllegalMove {
		t.Fatalf("unexpected outcome: %s %s", out.Winner, out.Reason)
	}
	if !errors.Is(out.Err, shogi.ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove detail, got %v", out.Err)
	}
	if status, _ := out.Game.Status(); status != shogi.Foul {
		t.Fatalf("unexpected game status: %s", status)
	}
}

func TestPlayRepetition(t *testing.T) {
	sente := &scripted{moves: strings.Fields("2h3h 3h2h 2h3h 3h2h 2h3h 3h2h")}
	gote := &scripted{moves: strings.Fields("8b7b 7b8b 8b7b 7b8b 8b7b 7b8b")}
	out, err := match.Play(context.Background(), sente, gote, match.Options{})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if out.Winner != shogi.Neutral || out.Reason != match.ReasonRepetition || len(out.Plies) != 12 {
		t.Fatalf("unexpected outcome: %s %s after %d plies", out.Winner, out.Reason, len(out.Plies))
	}
	if sente.result != "draw" || gote.result != "draw" {
		t.Fatalf("unexpected notifications: %q %q", sente.result, gote.result)
	}
}

func TestPlayMaxPlies(t *testing.T) {
	sente := &scripted{moves: []string{"7g7f", "2g2f"}}
	gote := &scripted{moves: []string{"3c3d"}}
	out, err := match.Play(context.Background(), sente, gote, match.Options{MaxPlies: 2})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if out.Winner != shogi.Neutral || out.Reason != match.ReasonMaxPlies || len(out.Plies) != 2 {
		t.Fatalf("unexpected outcome: %s %s after %d plies", out.Winner, out.Reason, len(out.Plies))
	}
}

func TestPlayEngineError(t *testing.T) {
	boom := errors.New("engine crashed")
	out, err := match.Play(context.Background(), &scripted{err: boom}, &scripted{}, match.Options{})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if out.Winner != shogi.Gote || out.Reason != match.ReasonEngineError || !errors.Is(out.Err, boom) {
		t.Fatalf("unexpected outcome: %s %s %v", out.Winner, out.Reason, out.Err)
	}
}

func TestPlayMoveTimeout(t *testing.T) {
	opts := match.Options{MoveTimeout: 20 * time.Millisecond}
	out, err := match.Play(context.Background(), &scripted{moves: []string{"7g7f"}}, &scripted{block: true}, opts)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if out.Winner != shogi.Sente || out.Reason != match.ReasonEngineError || !errors.Is(out.Err, context.DeadlineExceeded) {
		t.Fatalf("unexpected outcome: %s %s %v", out.Winner, out.Reason, out.Err)
	}
}

func TestPlayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := match.Play(ctx, &scripted{block: true}, &scripted{}, match.Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPlayDeclaration(t *testing.T) {
	out, err := match.Play(context.Background(), &scripted{moves: []string{"win"}}, &scripted{}, match.Options{})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if out.Winner != shogi.Sente || out.Reason != match.ReasonDeclaration {
		t.Fatalf("unexpected outcome: %s %s", out.Winner, out.Reason)
	}
}

func TestPlayBadStartPosition(t *testing.T) {
	if _, err := match.Play(context.Background(), &scripted{}, &scripted{}, match.Options{StartSFEN: "nonsense"}); !errors.Is(err, shogi.ErrInvalidSFEN) {
		t.Fatalf("expected ErrInvalidSFEN, got %v", err)
	}
}
