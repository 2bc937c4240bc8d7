package match

import (
	"context"
	"fmt"
	"time"

	"shogi/pkg/shogi"
)

// Player chooses a move for the side to move. position is the argument of
// a USI position command; the answer is a USI move, "resign" or "win".
type Player interface {
	BestMove(ctx context.Context, position string, moveTimeMs int) (string, error)
}

// Players may also implement these to hear about game boundaries.
type newGamer interface {
	NewGame() error
}

type gameOverer interface {
	GameOver(result string) error
}

type Reason string

const (
	ReasonCheckmate   Reason = "checkmate"
	ReasonRepetition  Reason = "repetition"
	ReasonResign      Reason = "resign"
	ReasonDeclaration Reason = "declaration"
	ReasonIllegalMove Reason = "illegal_move"
	ReasonEngineError Reason = "engine_error"
	ReasonMaxPlies    Reason = "max_plies"

	// Endings that only come from recorded games.
	ReasonImpasse    Reason = "impasse"
	ReasonTimeout    Reason = "timeout"
	ReasonUnfinished Reason = "unfinished"
)

type Options struct {
	MoveTimeMs int
	// MaxPlies ends the game as a draw once reached; zero means no limit.
	MaxPlies int
	// MoveTimeout bounds each BestMove call; zero means no bound.
	MoveTimeout time.Duration
	// StartSFEN overrides the standard opening position.
	StartSFEN string
}

// Ply is one accepted move and whether it gave check.
type Ply struct {
	Record shogi.Record
	Check  bool
}

// Outcome is a finished game. Winner is Neutral for draws. Err carries the
// engine error or rejected move behind an engine_error or illegal_move
// result.
type Outcome struct {
	Game   *shogi.Game
	Plies  []Ply
	Winner shogi.Allegiance
	Reason Reason
	Err    error
}

// Play runs one game between sente and gote. Every move goes through the
// rules engine; an illegal move or a failing player forfeits. The returned
// error is reserved for setup failures and cancellation of ctx.
func Play(ctx context.Context, sente, gote Player, opts Options) (*Outcome, error) {
	g := shogi.NewGame(shogi.WithProMode())
	if opts.StartSFEN != "" {
		var err error
		g, err = shogi.NewGameFromSFEN(opts.StartSFEN, shogi.WithProMode())
		if err != nil {
			return nil, err
		}
	}
	for _, p := range []Player{sente, gote} {
		if ng, ok := p.(newGamer); ok {
			if err := ng.NewGame(); err != nil {
				return nil, fmt.Errorf("usinewgame: %w", err)
			}
		}
	}
	out := play(ctx, g, sente, gote, opts)
	if out == nil {
		return nil, ctx.Err()
	}
	notifyGameOver(sente, gote, out.Winner)
	return out, nil
}

func play(ctx context.Context, g *shogi.Game, sente, gote Player, opts Options) *Outcome {
	out := &Outcome{Game: g}
	for {
		switch status, winner := g.Status(); status {
		case shogi.Checkmate:
			out.Winner, out.Reason = winner, ReasonCheckmate
			return out
		case shogi.Repetition:
			out.Winner, out.Reason = shogi.Neutral, ReasonRepetition
			return out
		}
		if opts.MaxPlies > 0 && len(out.Plies) >= opts.MaxPlies {
			out.Winner, out.Reason = shogi.Neutral, ReasonMaxPlies
			return out
		}

		turn := g.Turn()
		player := sente
		if turn == shogi.Gote {
			player = gote
		}
		move, err := askMove(ctx, player, g.PositionSFEN(), opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			_ = g.Resign(turn)
			out.Winner, out.Reason, out.Err = turn.Opponent(), ReasonEngineError, err
			return out
		}
		switch move {
		case "resign":
			_ = g.Resign(turn)
			out.Winner, out.Reason = turn.Opponent(), ReasonResign
			return out
		case "win":
			out.Winner, out.Reason = turn, ReasonDeclaration
			return out
		}
		rec, err := g.PlayUSI(move)
		if err != nil {
			out.Winner, out.Reason = turn.Opponent(), ReasonIllegalMove
			out.Err = fmt.Errorf("%s played %q: %w", turn, move, err)
			return out
		}
		status, _ := g.Status()
		out.Plies = append(out.Plies, Ply{Record: rec, Check: status == shogi.Check || status == shogi.Checkmate})
	}
}

func askMove(ctx context.Context, p Player, position string, opts Options) (string, error) {
	if opts.MoveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.MoveTimeout)
		defer cancel()
	}
	return p.BestMove(ctx, position, opts.MoveTimeMs)
}

func notifyGameOver(sente, gote Player, winner shogi.Allegiance) {
	for _, side := range []shogi.Allegiance{shogi.Sente, shogi.Gote} {
		p := sente
		if side == shogi.Gote {
			p = gote
		}
		g, ok := p.(gameOverer)
		if !ok {
			continue
		}
		result := "draw"
		switch winner {
		case side:
			result = "win"
		case side.Opponent():
			result = "lose"
		}
		_ = g.GameOver(result)
	}
}
