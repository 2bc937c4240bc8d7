package shogi

import (
	"fmt"
	"strings"
)

// USIMove is a move in USI notation: "7g7f", "8h2b+" or "P*5e".
type USIMove struct {
	From    Square
	To      Square
	Drop    bool
	Kind    Kind
	Promote bool
}

func ParseUSIMove(move string) (USIMove, error) {
	move = strings.TrimSpace(move)
	if strings.Contains(move, "*") {
		parts := strings.SplitN(move, "*", 2)
		if len(parts) != 2 || len(parts[0]) != 1 {
			return USIMove{}, fmt.Errorf("%w: %q", ErrInvalidUSI, move)
		}
		kind, ok := KindFromLetter(strings.ToUpper(parts[0]))
		if !ok || kind == King {
			return USIMove{}, fmt.Errorf("%w: drop piece in %q", ErrInvalidUSI, move)
		}
		to, err := ParseSquare(parts[1])
		if err != nil {
			return USIMove{}, fmt.Errorf("%w: %v", ErrInvalidUSI, err)
		}
		return USIMove{From: InReserve, To: to, Drop: true, Kind: kind}, nil
	}
	if len(move) != 4 && len(move) != 5 {
		return USIMove{}, fmt.Errorf("%w: %q", ErrInvalidUSI, move)
	}
	from, err := ParseSquare(move[0:2])
	if err != nil {
		return USIMove{}, fmt.Errorf("%w: %v", ErrInvalidUSI, err)
	}
	to, err := ParseSquare(move[2:4])
	if err != nil {
		return USIMove{}, fmt.Errorf("%w: %v", ErrInvalidUSI, err)
	}
	promote := false
	if len(move) == 5 {
		if move[4] != '+' {
			return USIMove{}, fmt.Errorf("%w: promotion marker in %q", ErrInvalidUSI, move)
		}
		promote = true
	}
	return USIMove{From: from, To: to, Promote: promote}, nil
}

func (m USIMove) String() string {
	if m.Drop {
		return fmt.Sprintf("%s*%s", m.Kind.Letter(), m.To)
	}
	text := m.From.String() + m.To.String()
	if m.Promote {
		text += "+"
	}
	return text
}

// USI renders the record as a USI move.
func (r Record) USI() string {
	return USIMove{From: r.From, To: r.To, Drop: r.IsDrop(), Kind: r.Kind, Promote: r.Promote}.String()
}
