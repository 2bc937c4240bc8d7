package shogi

// PromotionOption reports how a move of p to to interacts with promotion:
// optional when the move starts or ends inside p's promotion zone, forced
// when p could not move again from to unpromoted.
func (b *Board) PromotionOption(p Piece, to Square) (optional, forced bool) {
	if p.InReserve() || p.Side == Neutral || !p.Kind.Promotable() {
		return false, false
	}
	if p.Kind.MustPromoteAt(p.Side, to.Y) {
		return false, true
	}
	if InPromotionZone(p.Side, p.Loc.Y) || InPromotionZone(p.Side, to.Y) {
		return true, false
	}
	return false, false
}

// ApplyMove moves p to to if that is legal, capturing and demoting any
// enemy occupant into the mover's reserve. Reserve pieces are routed to
// ApplyDrop. On false nothing has changed.
func (b *Board) ApplyMove(p Piece, to Square) bool {
	mustSquare(to)
	if p.InReserve() {
		return b.ApplyDrop(p.Side, p.Kind, to)
	}
	if !b.matches(p) || !b.canMove(p.Loc, to) {
		return false
	}
	rec := NewRecord(b, p, to)
	optional, forced := b.PromotionOption(p, to)

	if target := b.cells.at(to); target.kind != Empty {
		b.addReserve(p.Side, target.kind.Demote())
	}
	moved := b.cells.at(p.Loc)
	b.cells.set(p.Loc, cell{})
	if forced {
		moved.kind = moved.kind.Promote()
		rec.Promote = true
	}
	b.cells.set(to, moved)

	b.closePromotion()
	if optional {
		b.promoSq = to
		b.promoOpen = true
	}
	b.last = &rec
	return true
}

// ApplyDrop places a piece of kind from side's reserve on to.
func (b *Board) ApplyDrop(side Allegiance, kind Kind, to Square) bool {
	mustSquare(to)
	if !b.canDrop(side, kind, to) {
		return false
	}
	rec := NewRecord(b, Piece{Kind: kind, Side: side, Loc: InReserve}, to)
	b.takeReserve(side, kind)
	b.cells.set(to, cell{kind: kind, side: side})
	b.closePromotion()
	b.last = &rec
	return true
}

// PromoteAt promotes the piece on s. It succeeds only right after a move
// that landed there with an optional promotion, and only once.
func (b *Board) PromoteAt(s Square) bool {
	mustSquare(s)
	if !b.promoOpen || b.promoSq != s {
		return false
	}
	c := b.cells.at(s)
	if !c.kind.Promotable() {
		return false
	}
	c.kind = c.kind.Promote()
	b.cells.set(s, c)
	b.closePromotion()
	if b.last != nil {
		b.last.Promote = true
	}
	return true
}

// CanPromoteAt reports whether PromoteAt(s) would currently succeed.
func (b *Board) CanPromoteAt(s Square) bool {
	return b.promoOpen && b.promoSq == s && b.cells.at(s).kind.Promotable()
}
