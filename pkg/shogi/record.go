package shogi

import "strings"

// Record describes one completed move or drop. It is derived from the board
// before the action and only Promote changes afterwards.
type Record struct {
	Side     Allegiance
	Kind     Kind
	From     Square
	To       Square
	Capture  bool
	Captured Kind
	Promote  bool
}

// NewRecord builds the record for p moving (or dropping) to to on b as it
// stands before the action.
func NewRecord(b *Board, p Piece, to Square) Record {
	rec := Record{Side: p.Side, Kind: p.Kind, From: p.Loc, To: to}
	if p.InReserve() {
		return rec
	}
	if target := b.PieceAt(to); !target.IsEmpty() {
		rec.Capture = true
		rec.Captured = target.Kind
	}
	return rec
}

func (r Record) IsDrop() bool {
	return r.From == InReserve
}

// Modifier is '*' for drops, 'x' for captures and '-' otherwise.
func (r Record) Modifier() byte {
	switch {
	case r.IsDrop():
		return '*'
	case r.Capture:
		return 'x'
	default:
		return '-'
	}
}

// String renders "<kind><from><modifier><to><promotion>", e.g. "P7g-7f",
// "B8hx2b+" or "P*5e".
func (r Record) String() string {
	var b strings.Builder
	b.WriteString(r.Kind.Letter())
	if !r.IsDrop() {
		b.WriteString(r.From.String())
	}
	b.WriteByte(r.Modifier())
	b.WriteString(r.To.String())
	if r.Promote {
		b.WriteByte('+')
	}
	return b.String()
}
