package shogi

// Targets is a 9×9 destination mask indexed [x][y].
type Targets [9][9]bool

func (t *Targets) Has(s Square) bool {
	return s.Valid() && t[s.X][s.Y]
}

func (t *Targets) Count() int {
	n := 0
	for x := 0; x < 9; x++ {
		for y := 0; y < 9; y++ {
			if t[x][y] {
				n++
			}
		}
	}
	return n
}

func (t *Targets) None() bool {
	return t.Count() == 0
}

// Squares lists the set squares in board scan order.
func (t *Targets) Squares() []Square {
	var out []Square
	for x := 0; x < 9; x++ {
		for y := 0; y < 9; y++ {
			if t[x][y] {
				out = append(out, Sq(x, y))
			}
		}
	}
	return out
}

// reaches reports whether the piece on from has a raw path to to: the
// movement pattern holds and, for slides, every intervening square is
// empty. It ignores the occupant of to and never looks at check, which is
// what keeps king-versus-king evaluation from recursing.
func (g *grid) reaches(from, to Square) bool {
	c := g.at(from)
	if c.kind == Empty || c.side == Neutral || from == to {
		return false
	}
	dx, dy := to.X-from.X, to.Y-from.Y
	sign := int(c.side)
	spec := c.kind.spec()
	for _, o := range spec.steps {
		if dx == o.dx && dy == o.dy*sign {
			return true
		}
	}
	for _, o := range spec.slides {
		ux, uy := o.dx, o.dy*sign
		n, ok := stepsAlong(dx, dy, ux, uy)
		if !ok {
			continue
		}
		open := true
		for i := 1; i < n; i++ {
			if g[from.X+i*ux][from.Y+i*uy].kind != Empty {
				open = false
				break
			}
		}
		if open {
			return true
		}
	}
	return false
}

// stepsAlong returns n > 0 when (dx, dy) = n·(ux, uy).
func stepsAlong(dx, dy, ux, uy int) (int, bool) {
	n := 0
	switch {
	case ux != 0:
		if dx%ux != 0 {
			return 0, false
		}
		n = dx / ux
	case dx != 0:
		return 0, false
	}
	switch {
	case uy != 0:
		if dy%uy != 0 {
			return 0, false
		}
		if ux == 0 {
			n = dy / uy
		} else if dy/uy != n {
			return 0, false
		}
	case dy != 0:
		return 0, false
	}
	return n, n > 0
}

func (g *grid) attacked(target Square, by Allegiance) bool {
	if by == Neutral {
		return false
	}
	for x := 0; x < 9; x++ {
		for y := 0; y < 9; y++ {
			c := g[x][y]
			if c.kind == Empty || c.side != by {
				continue
			}
			if g.reaches(Sq(x, y), target) {
				return true
			}
		}
	}
	return false
}

func (g *grid) kingSquare(side Allegiance) (Square, bool) {
	for x := 0; x < 9; x++ {
		for y := 0; y < 9; y++ {
			if c := g[x][y]; c.kind == King && c.side == side {
				return Sq(x, y), true
			}
		}
	}
	return Square{}, false
}

func (g *grid) inCheck(side Allegiance) bool {
	king, ok := g.kingSquare(side)
	if !ok {
		return false
	}
	return g.attacked(king, side.Opponent())
}

// IsSquareAttacked reports whether any piece of by has a raw path to s.
// The occupant of s does not matter, so defended pieces count as attacked.
func (b *Board) IsSquareAttacked(s Square, by Allegiance) bool {
	mustSquare(s)
	return b.cells.attacked(s, by)
}

// IsKingInCheck is false when side has no king on the board.
func (b *Board) IsKingInCheck(side Allegiance) bool {
	return b.cells.inCheck(side)
}

// IsCheckmated reports whether side is in check with no legal move or drop.
func (b *Board) IsCheckmated(side Allegiance) bool {
	if !b.IsKingInCheck(side) {
		return false
	}
	return !b.hasLegalAction(side)
}

// LegalDestinations returns the squares p may move to, or for a reserve
// piece the squares it may be dropped on. A piece that no longer matches
// the board has no destinations.
func (b *Board) LegalDestinations(p Piece) Targets {
	var t Targets
	if p.InReserve() {
		if b.ReserveCount(p.Side, p.Kind) == 0 {
			return t
		}
		for x := 0; x < 9; x++ {
			for y := 0; y < 9; y++ {
				t[x][y] = b.canDrop(p.Side, p.Kind, Sq(x, y))
			}
		}
		return t
	}
	if !b.matches(p) {
		return t
	}
	for x := 0; x < 9; x++ {
		for y := 0; y < 9; y++ {
			t[x][y] = b.canMove(p.Loc, Sq(x, y))
		}
	}
	return t
}

func (b *Board) matches(p Piece) bool {
	mustSquare(p.Loc)
	c := b.cells.at(p.Loc)
	return c.kind == p.Kind && c.side == p.Side && c.kind != Empty
}

// canMove composes the movement rules: the destination holds no friendly
// piece and no king, the raw pattern and path hold, and the mover's own
// king is not attacked afterwards. The check probe runs on a copy of the
// grid, so the board is never in an intermediate state.
func (b *Board) canMove(from, to Square) bool {
	if from == to || !to.Valid() {
		return false
	}
	mover := b.cells.at(from)
	if mover.kind == Empty || mover.side == Neutral {
		return false
	}
	target := b.cells.at(to)
	if target.kind != Empty && target.side == mover.side {
		return false
	}
	if target.kind == King {
		return false
	}
	if !b.cells.reaches(from, to) {
		return false
	}
	probe := b.cells
	probe.set(from, cell{})
	probe.set(to, mover)
	if mover.kind == King {
		return !probe.attacked(to, mover.side.Opponent())
	}
	return !probe.inCheck(mover.side)
}

func (b *Board) canDrop(side Allegiance, kind Kind, to Square) bool {
	if side == Neutral || !to.Valid() {
		return false
	}
	if kind == Empty || kind == King || kind.IsPromoted() {
		return false
	}
	if b.ReserveCount(side, kind) == 0 {
		return false
	}
	if b.cells.at(to).kind != Empty {
		return false
	}
	if kind.MustPromoteAt(side, to.Y) {
		return false
	}
	if kind == Pawn && b.hasUnpromotedPawnOnFile(side, to.X) {
		return false
	}
	probe := b.cells
	probe.set(to, cell{kind: kind, side: side})
	if probe.inCheck(side) {
		return false
	}
	if kind == Pawn && b.pawnDropMates(side, to) {
		return false
	}
	return true
}

// pawnDropMates reports whether dropping side's pawn on to checkmates the
// opponent. Each nested evaluation consumes a reserve pawn, so the mutual
// recursion through hasLegalAction terminates.
func (b *Board) pawnDropMates(side Allegiance, to Square) bool {
	next := b.Clone()
	next.takeReserve(side, Pawn)
	next.cells.set(to, cell{kind: Pawn, side: side})
	return next.IsCheckmated(side.Opponent())
}

// hasLegalAction stops at the first legal move or drop it finds. Pawn drops
// are tried last since they are the only ones that may recurse.
func (b *Board) hasLegalAction(side Allegiance) bool {
	for x := 0; x < 9; x++ {
		for y := 0; y < 9; y++ {
			c := b.cells[x][y]
			if c.kind == Empty || c.side != side {
				continue
			}
			from := Sq(x, y)
			for tx := 0; tx < 9; tx++ {
				for ty := 0; ty < 9; ty++ {
					if b.canMove(from, Sq(tx, ty)) {
						return true
					}
				}
			}
		}
	}
	for _, kind := range BaseKinds {
		if b.ReserveCount(side, kind) == 0 {
			continue
		}
		for x := 0; x < 9; x++ {
			for y := 0; y < 9; y++ {
				if b.canDrop(side, kind, Sq(x, y)) {
					return true
				}
			}
		}
	}
	return false
}
