package shogi

type offset struct {
	dx int
	dy int
}

// kindSpec holds the complete rule data for one kind. Offsets are written
// from Sente's point of view; dy is multiplied by the allegiance sign.
type kindSpec struct {
	letter   string
	name     string
	kif      string
	steps    []offset
	slides   []offset
	promoted Kind
	base     Kind
	// dead is the number of far ranks on which the kind has no further
	// move and therefore may not stand unpromoted.
	dead int
}

var (
	goldSteps   = []offset{{-1, 1}, {0, 1}, {1, 1}, {-1, 0}, {1, 0}, {0, -1}}
	kingSteps   = []offset{{-1, 1}, {0, 1}, {1, 1}, {-1, 0}, {1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	silverSteps = []offset{{-1, 1}, {0, 1}, {1, 1}, {-1, -1}, {1, -1}}
	orthogonal  = []offset{{0, 1}, {0, -1}, {-1, 0}, {1, 0}}
	diagonal    = []offset{{-1, 1}, {1, 1}, {-1, -1}, {1, -1}}
	forwardOnly = []offset{{0, 1}}
	knightJumps = []offset{{-1, 2}, {1, 2}}
)

var catalog = [...]kindSpec{
	Empty:          {letter: ".", name: "empty", kif: "・", promoted: Empty, base: Empty},
	Pawn:           {letter: "P", name: "pawn", kif: "歩", steps: forwardOnly, promoted: PromotedPawn, base: Pawn, dead: 1},
	Lance:          {letter: "L", name: "lance", kif: "香", slides: forwardOnly, promoted: PromotedLance, base: Lance, dead: 1},
	Knight:         {letter: "N", name: "knight", kif: "桂", steps: knightJumps, promoted: PromotedKnight, base: Knight, dead: 2},
	Silver:         {letter: "S", name: "silver", kif: "銀", steps: silverSteps, promoted: PromotedSilver, base: Silver},
	Gold:           {letter: "G", name: "gold", kif: "金", steps: goldSteps, promoted: Gold, base: Gold},
	Bishop:         {letter: "B", name: "bishop", kif: "角", slides: diagonal, promoted: Horse, base: Bishop},
	Rook:           {letter: "R", name: "rook", kif: "飛", slides: orthogonal, promoted: Dragon, base: Rook},
	King:           {letter: "K", name: "king", kif: "玉", steps: kingSteps, promoted: King, base: King},
	PromotedPawn:   {letter: "+P", name: "tokin", kif: "と", steps: goldSteps, promoted: PromotedPawn, base: Pawn},
	PromotedLance:  {letter: "+L", name: "promoted lance", kif: "成香", steps: goldSteps, promoted: PromotedLance, base: Lance},
	PromotedKnight: {letter: "+N", name: "promoted knight", kif: "成桂", steps: goldSteps, promoted: PromotedKnight, base: Knight},
	PromotedSilver: {letter: "+S", name: "promoted silver", kif: "成銀", steps: goldSteps, promoted: PromotedSilver, base: Silver},
	Horse:          {letter: "+B", name: "horse", kif: "馬", steps: orthogonal, slides: diagonal, promoted: Horse, base: Bishop},
	Dragon:         {letter: "+R", name: "dragon", kif: "龍", steps: diagonal, slides: orthogonal, promoted: Dragon, base: Rook},
}

func (k Kind) spec() *kindSpec {
	if int(k) >= len(catalog) {
		return &catalog[Empty]
	}
	return &catalog[k]
}

func (k Kind) String() string {
	return k.spec().name
}

// Letter is the SFEN/record symbol, "+" prefixed for promoted kinds.
func (k Kind) Letter() string {
	return k.spec().letter
}

func (k Kind) Promotable() bool {
	return k != Empty && k.spec().promoted != k
}

func (k Kind) IsPromoted() bool {
	return k.spec().base != k
}

func (k Kind) Promote() Kind {
	return k.spec().promoted
}

func (k Kind) Demote() Kind {
	return k.spec().base
}

func (k Kind) slides() bool {
	return len(k.spec().slides) > 0
}

// KindFromLetter resolves SFEN letters, with or without a "+" prefix.
func KindFromLetter(letter string) (Kind, bool) {
	for k := Pawn; k <= Dragon; k++ {
		if catalog[k].letter == letter {
			return k, true
		}
	}
	return Empty, false
}

// InPromotionZone reports whether rank y lies in the far three ranks for
// side. Neutral pieces have no zone.
func InPromotionZone(side Allegiance, y int) bool {
	a := int(side)
	return (4+a)*a < y*a
}

// distanceToFarRank counts ranks left in side's forward direction.
func distanceToFarRank(side Allegiance, y int) int {
	if side == Gote {
		return y
	}
	return 8 - y
}

// MustPromoteAt reports whether a piece of kind k standing on rank y would
// have no further move, which forces promotion and forbids dropping there.
func (k Kind) MustPromoteAt(side Allegiance, y int) bool {
	if side == Neutral {
		return false
	}
	return distanceToFarRank(side, y) < k.spec().dead
}
