package shogi

import "golang.org/x/exp/slices"

type cell struct {
	kind Kind
	side Allegiance
}

// grid is indexed [x][y]; the zero cell is Empty, so every one of the 81
// cells always holds either a piece or the empty sentinel.
type grid [9][9]cell

func (g *grid) at(s Square) cell {
	return g[s.X][s.Y]
}

func (g *grid) set(s Square, c cell) {
	g[s.X][s.Y] = c
}

// Board is the 9×9 grid plus the Sente and Gote reserves. A Board is owned
// by a single game and is not safe for concurrent use.
type Board struct {
	cells    grid
	reserves [2][]Kind

	last      *Record
	promoSq   Square
	promoOpen bool
}

// NewBoard returns an empty board with empty reserves.
func NewBoard() *Board {
	return &Board{}
}

// DefaultBoard returns the standard opening setup.
func DefaultBoard() *Board {
	b := NewBoard()
	back := []Kind{Lance, Knight, Silver, Gold, King, Gold, Silver, Knight, Lance}
	for x, kind := range back {
		b.cells[x][0] = cell{kind: kind, side: Sente}
		b.cells[8-x][8] = cell{kind: kind, side: Gote}
	}
	b.cells[1][1] = cell{kind: Bishop, side: Sente}
	b.cells[7][1] = cell{kind: Rook, side: Sente}
	b.cells[7][7] = cell{kind: Bishop, side: Gote}
	b.cells[1][7] = cell{kind: Rook, side: Gote}
	for x := 0; x < 9; x++ {
		b.cells[x][2] = cell{kind: Pawn, side: Sente}
		b.cells[x][6] = cell{kind: Pawn, side: Gote}
	}
	return b
}

// Clone returns an isolated copy; mutating it never touches b.
func (b *Board) Clone() *Board {
	clone := &Board{
		cells:     b.cells,
		promoSq:   b.promoSq,
		promoOpen: b.promoOpen,
	}
	for i := range b.reserves {
		clone.reserves[i] = slices.Clone(b.reserves[i])
	}
	if b.last != nil {
		last := *b.last
		clone.last = &last
	}
	return clone
}

// PieceAt returns the piece or empty sentinel at s. It panics with an error
// wrapping ErrOutOfRange when s is off the board.
func (b *Board) PieceAt(s Square) Piece {
	mustSquare(s)
	c := b.cells.at(s)
	return Piece{Kind: c.kind, Side: c.side, Loc: s}
}

// SetPiece places a piece for position setup, replacing any occupant.
// Setting Empty clears the square.
func (b *Board) SetPiece(s Square, kind Kind, side Allegiance) {
	mustSquare(s)
	if kind == Empty {
		side = Neutral
	}
	b.cells.set(s, cell{kind: kind, side: side})
	b.closePromotion()
}

func (b *Board) ClearSquare(s Square) {
	b.SetPiece(s, Empty, Neutral)
}

// AddToReserve puts a demoted piece into side's reserve for position setup.
func (b *Board) AddToReserve(side Allegiance, kind Kind) bool {
	kind = kind.Demote()
	if side == Neutral || kind == Empty || kind == King {
		return false
	}
	b.addReserve(side, kind)
	return true
}

// Reserve lists side's captured pieces in capture order.
func (b *Board) Reserve(side Allegiance) []Piece {
	if side == Neutral {
		return nil
	}
	kinds := b.reserves[side.index()]
	out := make([]Piece, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, Piece{Kind: kind, Side: side, Loc: InReserve})
	}
	return out
}

func (b *Board) ReserveCount(side Allegiance, kind Kind) int {
	if side == Neutral {
		return 0
	}
	count := 0
	for _, k := range b.reserves[side.index()] {
		if k == kind {
			count++
		}
	}
	return count
}

// Pieces lists side's pieces on the board, scanning files 9→1 and ranks i→a.
func (b *Board) Pieces(side Allegiance) []Piece {
	var out []Piece
	for x := 0; x < 9; x++ {
		for y := 0; y < 9; y++ {
			c := b.cells[x][y]
			if c.kind != Empty && c.side == side {
				out = append(out, Piece{Kind: c.kind, Side: c.side, Loc: Sq(x, y)})
			}
		}
	}
	return out
}

// Count returns the number of occupied squares.
func (b *Board) Count() int {
	n := 0
	for x := 0; x < 9; x++ {
		for y := 0; y < 9; y++ {
			if b.cells[x][y].kind != Empty {
				n++
			}
		}
	}
	return n
}

func (b *Board) KingSquare(side Allegiance) (Square, bool) {
	return b.cells.kingSquare(side)
}

// LastMove returns the record of the most recent move or drop.
func (b *Board) LastMove() (Record, bool) {
	if b.last == nil {
		return Record{}, false
	}
	return *b.last, true
}

func (b *Board) addReserve(side Allegiance, kind Kind) {
	i := side.index()
	b.reserves[i] = append(b.reserves[i], kind)
}

func (b *Board) takeReserve(side Allegiance, kind Kind) bool {
	i := side.index()
	at := slices.Index(b.reserves[i], kind)
	if at < 0 {
		return false
	}
	b.reserves[i] = slices.Delete(b.reserves[i], at, at+1)
	return true
}

func (b *Board) closePromotion() {
	b.promoOpen = false
	b.promoSq = Square{}
}

func (b *Board) hasUnpromotedPawnOnFile(side Allegiance, x int) bool {
	for y := 0; y < 9; y++ {
		c := b.cells[x][y]
		if c.kind == Pawn && c.side == side {
			return true
		}
	}
	return false
}
