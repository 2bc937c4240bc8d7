package shogi

import "errors"

var (
	ErrOutOfRange    = errors.New("coordinate out of range")
	ErrIllegalMove   = errors.New("illegal move")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrGameOver      = errors.New("game is over")
	ErrCannotPromote = errors.New("cannot promote")
	ErrInvalidSFEN   = errors.New("invalid sfen")
	ErrInvalidUSI    = errors.New("invalid usi move")
)
