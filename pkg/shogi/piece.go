package shogi

import "fmt"

// Allegiance is the side a piece belongs to, encoded as the sign of its
// forward direction.
type Allegiance int8

const (
	Gote    Allegiance = -1
	Neutral Allegiance = 0
	Sente   Allegiance = 1
)

func (a Allegiance) Opponent() Allegiance {
	return -a
}

func (a Allegiance) String() string {
	switch a {
	case Sente:
		return "sente"
	case Gote:
		return "gote"
	default:
		return "neutral"
	}
}

func (a Allegiance) index() int {
	if a == Gote {
		return 1
	}
	return 0
}

// Kind identifies one of the fourteen piece kinds, or Empty.
type Kind uint8

const (
	Empty Kind = iota
	Pawn
	Lance
	Knight
	Silver
	Gold
	Bishop
	Rook
	King
	PromotedPawn
	PromotedLance
	PromotedKnight
	PromotedSilver
	Horse
	Dragon
)

// BaseKinds lists the kinds that can sit in a reserve, in display order.
var BaseKinds = []Kind{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn}

// Piece is a value snapshot of one board cell or reserve entry. Promotion
// is expressed by Kind; Loc is InReserve for reserve entries.
type Piece struct {
	Kind Kind
	Side Allegiance
	Loc  Square
}

func (p Piece) IsEmpty() bool {
	return p.Kind == Empty
}

func (p Piece) InReserve() bool {
	return p.Loc == InReserve
}

// Promote returns the same piece with its promoted kind. Unpromotable
// kinds are returned unchanged.
func (p Piece) Promote() Piece {
	p.Kind = p.Kind.Promote()
	return p
}

// Demote returns the same piece with its base kind.
func (p Piece) Demote() Piece {
	p.Kind = p.Kind.Demote()
	return p
}

func (p Piece) String() string {
	if p.IsEmpty() {
		return fmt.Sprintf("empty@%s", p.Loc)
	}
	return fmt.Sprintf("%s %s@%s", p.Side, p.Kind, p.Loc)
}
