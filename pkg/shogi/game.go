package shogi

import (
	"fmt"
	"strings"
	"sync"
)

// Status is the state of a game after the most recent action.
type Status int

const (
	Ongoing Status = iota
	Check
	Checkmate
	Repetition
	Resigned
	Foul
)

func (s Status) String() string {
	switch s {
	case Ongoing:
		return "ongoing"
	case Check:
		return "check"
	case Checkmate:
		return "checkmate"
	case Repetition:
		return "repetition"
	case Resigned:
		return "resigned"
	case Foul:
		return "foul"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Over reports whether no further moves are accepted.
func (s Status) Over() bool {
	return s != Ongoing && s != Check
}

const repetitionLimit = 4

// Option configures a Game.
type Option func(*Game)

// WithoutTurns lets either side move at any time.
func WithoutTurns() Option {
	return func(g *Game) { g.takeTurns = false }
}

// WithProMode makes any illegal attempt lose the game for the side that
// made it.
func WithProMode() Option {
	return func(g *Game) { g.proMode = true }
}

type snapshot struct {
	board  *Board
	turn   Allegiance
	status Status
	winner Allegiance
	key    string
}

// Game serialises commands against one Board and tracks turn order,
// history and the result. All methods are safe for concurrent use.
type Game struct {
	mu sync.Mutex

	board       *Board
	initial     *Board
	initialTurn Allegiance
	firstMove   int

	turn      Allegiance
	takeTurns bool
	proMode   bool
	status    Status
	winner    Allegiance

	history []Record
	undo    []snapshot
	seen    map[string]int
}

// NewGame starts from the standard setup with Sente to move.
func NewGame(opts ...Option) *Game {
	return NewGameFromBoard(DefaultBoard(), Sente, opts...)
}

// NewGameFromSFEN starts from an SFEN position.
func NewGameFromSFEN(sfen string, opts ...Option) (*Game, error) {
	b, turn, moveNumber, err := ParseSFEN(sfen)
	if err != nil {
		return nil, err
	}
	g := NewGameFromBoard(b, turn, opts...)
	g.firstMove = moveNumber
	return g, nil
}

// NewGameFromBoard takes ownership of b.
func NewGameFromBoard(b *Board, turn Allegiance, opts ...Option) *Game {
	g := &Game{
		board:       b,
		initial:     b.Clone(),
		initialTurn: turn,
		firstMove:   1,
		turn:        turn,
		takeTurns:   true,
		seen:        map[string]int{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.seen[positionKey(b, turn)]++
	g.status, g.winner = g.evaluate(turn)
	return g
}

func (g *Game) Turn() Allegiance {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turn
}

// Status returns the current status and, for finished games, the winner
// (Neutral for a draw).
func (g *Game) Status() (Status, Allegiance) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, g.winner
}

// Board returns a copy of the current board for queries.
func (g *Game) Board() *Board {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.Clone()
}

// Initial returns a copy of the starting position and its side to move.
func (g *Game) Initial() (*Board, Allegiance) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initial.Clone(), g.initialTurn
}

func (g *Game) Records() []Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Record(nil), g.history...)
}

// SFEN renders the current position with the running move number.
func (g *Game) SFEN() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.SFEN(g.turn, g.firstMove+len(g.history))
}

// PositionSFEN renders the starting position plus moves as a USI
// "position" argument.
func (g *Game) PositionSFEN() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	text := "sfen " + g.initial.SFEN(g.initialTurn, g.firstMove)
	if len(g.history) == 0 {
		return text
	}
	moves := make([]string, 0, len(g.history))
	for _, rec := range g.history {
		moves = append(moves, rec.USI())
	}
	return text + " moves " + strings.Join(moves, " ")
}

func (g *Game) LegalDestinations(p Piece) Targets {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.LegalDestinations(p)
}

// Move plays the piece on from to to, promoting when asked. Forced
// promotions happen whether or not promote is set.
func (g *Game) Move(from, to Square, promote bool) (Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.move(from, to, promote)
}

func (g *Game) move(from, to Square, promote bool) (Record, error) {
	if !from.Valid() || !to.Valid() {
		return Record{}, fmt.Errorf("%w: %v to %v", ErrOutOfRange, from, to)
	}
	if g.status.Over() {
		return Record{}, ErrGameOver
	}
	p := g.board.PieceAt(from)
	if p.IsEmpty() || p.Side == Neutral {
		return Record{}, g.foul(g.turn, fmt.Errorf("%w: no piece to move at %s", ErrIllegalMove, from))
	}
	if g.takeTurns && p.Side != g.turn {
		return Record{}, fmt.Errorf("%w: %s to move", ErrNotYourTurn, g.turn)
	}
	optional, forced := g.board.PromotionOption(p, to)
	if promote && !optional && !forced {
		return Record{}, g.foul(p.Side, fmt.Errorf("%w: %s to %s", ErrCannotPromote, p, to))
	}
	before := g.board.Clone()
	if !g.board.ApplyMove(p, to) {
		return Record{}, g.foul(p.Side, fmt.Errorf("%w: %s to %s", ErrIllegalMove, p, to))
	}
	if promote && optional {
		g.board.PromoteAt(to)
	}
	return g.commit(before, p.Side), nil
}

// Drop places a piece of kind from the mover's reserve on to.
func (g *Game) Drop(side Allegiance, kind Kind, to Square) (Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drop(side, kind, to)
}

func (g *Game) drop(side Allegiance, kind Kind, to Square) (Record, error) {
	if !to.Valid() {
		return Record{}, fmt.Errorf("%w: %v", ErrOutOfRange, to)
	}
	if g.status.Over() {
		return Record{}, ErrGameOver
	}
	if g.takeTurns && side != g.turn {
		return Record{}, fmt.Errorf("%w: %s to move", ErrNotYourTurn, g.turn)
	}
	before := g.board.Clone()
	if !g.board.ApplyDrop(side, kind, to) {
		return Record{}, g.foul(side, fmt.Errorf("%w: %s %s drop on %s", ErrIllegalMove, side, kind, to))
	}
	return g.commit(before, side), nil
}

// PlayUSI applies a USI move for the side to move. The mover of a drop is
// resolved under the same lock that applies it.
func (g *Game) PlayUSI(text string) (Record, error) {
	m, err := ParseUSIMove(text)
	if err != nil {
		return Record{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if m.Drop {
		return g.drop(g.turn, m.Kind, m.To)
	}
	return g.move(m.From, m.To, m.Promote)
}

// Resign ends the game in the opponent's favour.
func (g *Game) Resign(side Allegiance) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status.Over() {
		return ErrGameOver
	}
	g.status = Resigned
	g.winner = side.Opponent()
	return nil
}

// Undo takes back the last move or drop, reopening a finished game.
func (g *Game) Undo() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.undo) == 0 {
		return false
	}
	last := g.undo[len(g.undo)-1]
	g.undo = g.undo[:len(g.undo)-1]
	g.history = g.history[:len(g.history)-1]
	if g.seen[last.key]--; g.seen[last.key] <= 0 {
		delete(g.seen, last.key)
	}
	g.board = last.board
	g.turn = last.turn
	g.status = last.status
	g.winner = last.winner
	return true
}

func (g *Game) commit(before *Board, mover Allegiance) Record {
	rec, _ := g.board.LastMove()
	prev := g.turn
	g.turn = mover.Opponent()
	key := positionKey(g.board, g.turn)
	g.undo = append(g.undo, snapshot{
		board:  before,
		turn:   prev,
		status: g.status,
		winner: g.winner,
		key:    key,
	})
	g.history = append(g.history, rec)
	g.seen[key]++
	g.status, g.winner = g.evaluate(g.turn)
	if g.status != Checkmate && g.seen[key] >= repetitionLimit {
		g.status, g.winner = Repetition, Neutral
	}
	return rec
}

func (g *Game) evaluate(toMove Allegiance) (Status, Allegiance) {
	if g.board.IsCheckmated(toMove) {
		return Checkmate, toMove.Opponent()
	}
	if g.board.IsKingInCheck(toMove) {
		return Check, Neutral
	}
	return Ongoing, Neutral
}

func (g *Game) foul(side Allegiance, err error) error {
	if g.proMode && side != Neutral {
		g.status = Foul
		g.winner = side.Opponent()
	}
	return err
}

// positionKey identifies board, reserves and side to move for repetition
// counting.
func positionKey(b *Board, turn Allegiance) string {
	if packed, err := b.Pack256(turn); err == nil {
		w := packed.Words
		return fmt.Sprintf("%016x%016x%016x%016x", w[0], w[1], w[2], w[3])
	}
	fields := strings.Fields(b.SFEN(turn, 1))
	key := strings.Join(fields[:3], " ")
	// SFEN has no letter for Neutral pieces.
	for x := 0; x < 9; x++ {
		for y := 0; y < 9; y++ {
			if c := b.cells[x][y]; c.kind != Empty && c.side == Neutral {
				key += fmt.Sprintf(" %s=%s", Sq(x, y), c.kind.Letter())
			}
		}
	}
	return key
}
