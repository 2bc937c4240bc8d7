package shogi_test

import (
	"math/rand"
	"testing"

	"shogi/pkg/shogi"
)

func TestIsKingInCheck_InitialPosition(t *testing.T) {
	b := shogi.DefaultBoard()
	if b.IsKingInCheck(shogi.Sente) || b.IsKingInCheck(shogi.Gote) {
		t.Fatal("neither king should be in check in the initial position")
	}
}

// TestIsKingInCheck_Patterns checks each piece's attack pattern against a
// lone king, including the backward and sideways gaps.
func TestIsKingInCheck_Patterns(t *testing.T) {
	cases := []struct {
		name  string
		sfen  string
		side  shogi.Allegiance
		check bool
	}{
		{"rook on file", "4k4/9/9/9/9/9/9/9/4R3K w - 1", shogi.Gote, true},
		{"rook blocked", "4k4/9/9/9/4P4/9/9/9/4R3K w - 1", shogi.Gote, false},
		{"bishop on diagonal", "8B/9/9/9/4k4/9/9/9/K8 w - 1", shogi.Gote, true},
		{"gold forward", "4k4/4G4/9/9/9/9/9/9/K8 w - 1", shogi.Gote, true},
		{"gold forward diagonal", "4k4/5G3/9/9/9/9/9/9/K8 w - 1", shogi.Gote, true},
		{"gold backward diagonal", "9/5G3/4k4/9/9/9/9/9/K8 w - 1", shogi.Gote, false},
		{"silver backward diagonal", "9/5S3/4k4/9/9/9/9/9/K8 w - 1", shogi.Gote, true},
		{"silver sideways", "4kS3/9/9/9/9/9/9/9/K8 w - 1", shogi.Gote, false},
		{"knight jump", "4k4/9/5N3/9/9/9/9/9/K8 w - 1", shogi.Gote, true},
		{"knight adjacent", "4k4/5N3/9/9/9/9/9/9/K8 w - 1", shogi.Gote, false},
		{"lance on file", "4k4/9/9/9/9/9/9/9/4L3K w - 1", shogi.Gote, true},
		{"pawn forward", "4k4/4P4/9/9/9/9/9/9/K8 w - 1", shogi.Gote, true},
		{"dragon diagonal step", "4k4/5+R3/9/9/9/9/9/9/K8 w - 1", shogi.Gote, true},
		{"horse orthogonal step", "4k4/4+B4/9/9/9/9/9/9/K8 w - 1", shogi.Gote, true},
		{"promoted silver moves like gold", "9/5+S3/4k4/9/9/9/9/9/K8 w - 1", shogi.Gote, false},
		{"gote rook", "4r4/9/9/9/9/9/9/9/4K3k b - 1", shogi.Sente, true},
		{"gote knight", "k8/9/9/9/9/9/3n5/9/4K4 b - 1", shogi.Sente, true},
		{"gote pawn", "k8/9/9/9/9/9/9/4p4/4K4 b - 1", shogi.Sente, true},
	}
	for _, tc := range cases {
		b := mustBoard(t, tc.sfen)
		if got := b.IsKingInCheck(tc.side); got != tc.check {
			t.Fatalf("%s: in check = %v, want %v", tc.name, got, tc.check)
		}
	}
}

func TestIsKingInCheck_NoKing(t *testing.T) {
	b := mustBoard(t, "9/9/9/9/4R4/9/9/9/9 b - 1")
	if b.IsKingInCheck(shogi.Gote) {
		t.Fatal("a side without a king is never in check")
	}
}

// TestIsSquareAttacked_IgnoresOccupant verifies that a defended piece
// counts as attacked by its own side's pieces.
func TestIsSquareAttacked_IgnoresOccupant(t *testing.T) {
	b := mustBoard(t, "k8/9/9/9/9/9/4p4/4g4/4K4 b - 1")
	if !b.IsSquareAttacked(sq(t, "5h"), shogi.Gote) {
		t.Fatal("gold on 5h is defended by the pawn on 5g")
	}
	if b.IsSquareAttacked(sq(t, "1e"), shogi.Gote) {
		t.Fatal("1e is out of reach")
	}
}

func TestLegalDestinations_Opening(t *testing.T) {
	b := shogi.DefaultBoard()
	pawn := b.PieceAt(sq(t, "7g"))
	targets := b.LegalDestinations(pawn)
	if targets.Count() != 1 || !targets.Has(sq(t, "7f")) {
		t.Fatalf("pawn on 7g: unexpected targets %v", targets.Squares())
	}
	knight := b.PieceAt(sq(t, "8i"))
	if targets = b.LegalDestinations(knight); !targets.None() {
		t.Fatal("knight on 8i is blocked by its own pawns")
	}
	rook := b.PieceAt(sq(t, "2h"))
	if targets = b.LegalDestinations(rook); targets.Count() != 6 {
		t.Fatalf("rook on 2h: got %d targets want 6", targets.Count())
	}
	stale := shogi.Piece{Kind: shogi.Gold, Side: shogi.Sente, Loc: sq(t, "7g")}
	if targets = b.LegalDestinations(stale); !targets.None() {
		t.Fatal("a piece that does not match the board has no destinations")
	}
}

// TestLegalDestinations_KingNeverCapturable verifies that an attacker
// never lists the enemy king's square.
func TestLegalDestinations_KingNeverCapturable(t *testing.T) {
	b := mustBoard(t, "4k4/9/9/9/4R4/9/9/9/K8 b - 1")
	rook := b.PieceAt(sq(t, "5e"))
	targets := b.LegalDestinations(rook)
	if targets.Has(sq(t, "5a")) {
		t.Fatal("king square must not be a legal destination")
	}
	if !targets.Has(sq(t, "5b")) {
		t.Fatal("rook should reach 5b")
	}
	if b.ApplyMove(rook, sq(t, "5a")) {
		t.Fatal("capturing the king must be rejected")
	}
}

func TestLegalDestinations_KingAvoidsAttackedSquares(t *testing.T) {
	b := mustBoard(t, "k2r5/9/9/9/9/9/9/9/4K4 b - 1")
	king := b.PieceAt(sq(t, "5i"))
	targets := b.LegalDestinations(king)
	for _, name := range []string{"6h", "6i"} {
		if targets.Has(sq(t, name)) {
			t.Fatalf("king may not step onto attacked %s", name)
		}
	}
	for _, name := range []string{"5h", "4h", "4i"} {
		if !targets.Has(sq(t, name)) {
			t.Fatalf("king should reach %s", name)
		}
	}
}

func TestLegalDestinations_KingCannotTakeDefendedPiece(t *testing.T) {
	b := mustBoard(t, "k8/9/9/9/9/9/4p4/4g4/4K4 b - 1")
	king := b.PieceAt(sq(t, "5i"))
	if targets := b.LegalDestinations(king); targets.Has(sq(t, "5h")) {
		t.Fatal("king may not capture a defended gold")
	}
}

// TestLegalDestinations_PinnedPiece verifies that a piece shielding its
// king may only move along the pin.
func TestLegalDestinations_PinnedPiece(t *testing.T) {
	b := mustBoard(t, "k3r4/9/9/9/9/9/9/4S4/4K4 b - 1")
	silver := b.PieceAt(sq(t, "5h"))
	targets := b.LegalDestinations(silver)
	if targets.Count() != 1 || !targets.Has(sq(t, "5g")) {
		t.Fatalf("pinned silver: unexpected targets %v", targets.Squares())
	}
}

func TestLegalDestinations_MustAnswerCheck(t *testing.T) {
	b := mustBoard(t, "k3r4/9/9/9/9/9/9/2G6/4K4 b - 1")
	gold := b.PieceAt(sq(t, "7h"))
	targets := b.LegalDestinations(gold)
	if targets.Count() != 0 {
		t.Fatalf("gold cannot block from 7h: %v", targets.Squares())
	}
	b = mustBoard(t, "k3r4/9/9/9/9/9/9/3G5/4K4 b - 1")
	gold = b.PieceAt(sq(t, "6h"))
	targets = b.LegalDestinations(gold)
	if targets.Count() != 2 || !targets.Has(sq(t, "5h")) || !targets.Has(sq(t, "5g")) {
		t.Fatalf("gold should only block on 5g or 5h: %v", targets.Squares())
	}
}

// TestDrop_Nifu verifies a second unpromoted pawn is never dropped on a
// file, while a tokin does not count.
func TestDrop_Nifu(t *testing.T) {
	b := mustBoard(t, "k8/9/5P3/9/9/9/9/9/K8 b P 1")
	pawn := shogi.Piece{Kind: shogi.Pawn, Side: shogi.Sente, Loc: shogi.InReserve}
	targets := b.LegalDestinations(pawn)
	if targets.Has(sq(t, "4e")) {
		t.Fatal("pawn drop on 4e is nifu")
	}
	if !targets.Has(sq(t, "3e")) {
		t.Fatal("pawn drop on 3e should be legal")
	}
	if targets.Has(sq(t, "3a")) {
		t.Fatal("pawn may not be dropped on the far rank")
	}
	if b.ApplyDrop(shogi.Sente, shogi.Pawn, sq(t, "4e")) {
		t.Fatal("nifu drop must be rejected")
	}

	b = mustBoard(t, "k8/9/5+P3/9/9/9/9/9/K8 b P 1")
	if !b.ApplyDrop(shogi.Sente, shogi.Pawn, sq(t, "4e")) {
		t.Fatal("a tokin on the file does not block a pawn drop")
	}
}

func TestDrop_DeadRanks(t *testing.T) {
	b := mustBoard(t, "k8/9/9/9/9/9/9/9/K8 b NL 1")
	knight := b.LegalDestinations(shogi.Piece{Kind: shogi.Knight, Side: shogi.Sente, Loc: shogi.InReserve})
	lance := b.LegalDestinations(shogi.Piece{Kind: shogi.Lance, Side: shogi.Sente, Loc: shogi.InReserve})
	for _, name := range []string{"5a", "5b"} {
		if knight.Has(sq(t, name)) {
			t.Fatalf("knight may not be dropped on %s", name)
		}
	}
	if !knight.Has(sq(t, "5c")) {
		t.Fatal("knight may be dropped on 5c")
	}
	if lance.Has(sq(t, "5a")) || !lance.Has(sq(t, "5b")) {
		t.Fatal("lance may be dropped anywhere but the far rank")
	}
	if gold := b.LegalDestinations(shogi.Piece{Kind: shogi.Gold, Side: shogi.Sente, Loc: shogi.InReserve}); !gold.None() {
		t.Fatal("a kind absent from the reserve has no drop squares")
	}
}

// TestDrop_PawnMate verifies a pawn drop that mates is rejected while
// other drops on the same square remain legal.
func TestDrop_PawnMate(t *testing.T) {
	const sfen = "8k/9/6NG1/9/9/9/9/9/K8 b GP 1"
	b := mustBoard(t, sfen)
	pawn := b.LegalDestinations(shogi.Piece{Kind: shogi.Pawn, Side: shogi.Sente, Loc: shogi.InReserve})
	if pawn.Has(sq(t, "1b")) {
		t.Fatal("mating pawn drop on 1b must be illegal")
	}
	if !pawn.Has(sq(t, "1c")) {
		t.Fatal("pawn drop on 1c should be legal")
	}
	if b.ApplyDrop(shogi.Sente, shogi.Pawn, sq(t, "1b")) {
		t.Fatal("mating pawn drop must be rejected")
	}
	if !b.ApplyDrop(shogi.Sente, shogi.Gold, sq(t, "1b")) {
		t.Fatal("gold drop on 1b should be legal")
	}
	if !b.IsCheckmated(shogi.Gote) {
		t.Fatal("gold drop on 1b should mate")
	}

	b = mustBoard(t, "8k/9/7G1/9/9/9/9/9/K8 b P 1")
	if !b.ApplyDrop(shogi.Sente, shogi.Pawn, sq(t, "1b")) {
		t.Fatal("a pawn drop check with an escape is legal")
	}
	if b.IsCheckmated(shogi.Gote) {
		t.Fatal("king can escape to 2a")
	}
}

func TestIsCheckmated(t *testing.T) {
	cases := []struct {
		name string
		sfen string
		side shogi.Allegiance
		mate bool
	}{
		{"initial", shogi.StandardSFEN, shogi.Sente, false},
		{"head gold", "4k4/4G4/4P4/9/9/9/9/9/K8 w - 1", shogi.Gote, true},
		{"head gold undefended", "4k4/4G4/9/9/9/9/9/9/K8 w - 1", shogi.Gote, false},
		{"back rank rook", "R3k4/9/4P4/9/9/9/9/9/K8 w - 1", shogi.Gote, false},
		{"drop can block", "R3k4/3ppp3/9/9/9/9/9/9/K8 w g 1", shogi.Gote, false},
		{"no drop blocks", "R3k4/3ppp3/9/9/9/9/9/9/K8 w - 1", shogi.Gote, true},
	}
	for _, tc := range cases {
		b := mustBoard(t, tc.sfen)
		if got := b.IsCheckmated(tc.side); got != tc.mate {
			t.Fatalf("%s: checkmated = %v, want %v", tc.name, got, tc.mate)
		}
		if got := inCheckWithoutAction(b, tc.side); got != tc.mate {
			t.Fatalf("%s: enumeration disagrees: %v", tc.name, got)
		}
	}
}

// inCheckWithoutAction recomputes checkmate from LegalDestinations alone.
func inCheckWithoutAction(b *shogi.Board, side shogi.Allegiance) bool {
	if !b.IsKingInCheck(side) {
		return false
	}
	pieces := append(b.Pieces(side), b.Reserve(side)...)
	for _, p := range pieces {
		if targets := b.LegalDestinations(p); !targets.None() {
			return false
		}
	}
	return true
}

// TestNeutralPieces verifies Neutral pieces never move or attack and can be
// captured by either side into the captor's reserve as the base kind.
func TestNeutralPieces(t *testing.T) {
	cases := []struct {
		name string
		kind shogi.Kind
		base shogi.Kind
	}{
		{"pawn", shogi.Pawn, shogi.Pawn},
		{"knight", shogi.Knight, shogi.Knight},
		{"gold", shogi.Gold, shogi.Gold},
		{"rook", shogi.Rook, shogi.Rook},
		{"bishop", shogi.Bishop, shogi.Bishop},
		{"dragon", shogi.Dragon, shogi.Rook},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := mustBoard(t, "k3r4/9/9/9/9/9/9/9/K3R4 b - 1")
			at := sq(t, "5e")
			b.SetPiece(at, tc.kind, shogi.Neutral)

			p := b.PieceAt(at)
			if p.Side != shogi.Neutral || p.Kind != tc.kind {
				t.Fatalf("unexpected piece %+v", p)
			}
			if targets := b.LegalDestinations(p); !targets.None() {
				t.Fatalf("neutral %s should not move: %v", tc.name, targets.Squares())
			}
			for _, name := range []string{"5d", "5f", "4e", "6e", "4d", "6f", "4c", "5a", "1e"} {
				if b.IsSquareAttacked(sq(t, name), shogi.Neutral) {
					t.Fatalf("neutral %s attacks %s", tc.name, name)
				}
			}

			for _, side := range []shogi.Allegiance{shogi.Sente, shogi.Gote} {
				c := b.Clone()
				from := sq(t, "5i")
				if side == shogi.Gote {
					from = sq(t, "5a")
				}
				rook := c.PieceAt(from)
				dests := c.LegalDestinations(rook)
				if !dests.Has(at) {
					t.Fatalf("%s rook should be able to capture on 5e", side)
				}
				if !c.ApplyMove(rook, at) {
					t.Fatalf("%s capture rejected", side)
				}
				if got := c.ReserveCount(side, tc.base); got != 1 {
					t.Fatalf("%s reserve holds %d of %s, want 1", side, got, tc.base)
				}
				if c.ReserveCount(side.Opponent(), tc.base) != 0 {
					t.Fatalf("captured %s went to the wrong reserve", tc.name)
				}
			}
		})
	}
}

func TestNeutralPieceGivesNoCheck(t *testing.T) {
	b := mustBoard(t, "4k4/9/9/9/9/9/9/9/K8 b - 1")
	b.SetPiece(sq(t, "5b"), shogi.Gold, shogi.Neutral)
	b.SetPiece(sq(t, "8h"), shogi.Rook, shogi.Neutral)
	if b.IsKingInCheck(shogi.Gote) || b.IsKingInCheck(shogi.Sente) {
		t.Fatal("neutral pieces never give check")
	}
}

// TestKingNeverStepsIntoAttack plays seeded random games and checks at
// every ply that no king destination is attacked or leaves the king in
// check.
func TestKingNeverStepsIntoAttack(t *testing.T) {
	rng := rand.New(rand.NewSource(20240601))
	for game := 0; game < 40; game++ {
		b := shogi.DefaultBoard()
		turn := shogi.Sente
		for ply := 0; ply < 160; ply++ {
			for _, side := range []shogi.Allegiance{shogi.Sente, shogi.Gote} {
				at, ok := b.KingSquare(side)
				if !ok {
					t.Fatalf("game %d ply %d: %s king missing", game, ply, side)
				}
				king := b.PieceAt(at)
				kingDests := b.LegalDestinations(king)
				for _, to := range kingDests.Squares() {
					if b.IsSquareAttacked(to, side.Opponent()) {
						t.Fatalf("game %d ply %d: %s king may step onto attacked %s\n%s", game, ply, side, to, b.SFEN(turn, ply+1))
					}
					c := b.Clone()
					if !c.ApplyMove(king, to) || c.IsKingInCheck(side) {
						t.Fatalf("game %d ply %d: %s king to %s ends in check\n%s", game, ply, side, to, b.SFEN(turn, ply+1))
					}
				}
			}

			type action struct {
				p  shogi.Piece
				to shogi.Square
			}
			var actions []action
			for _, p := range append(b.Pieces(turn), b.Reserve(turn)...) {
				dests := b.LegalDestinations(p)
				for _, to := range dests.Squares() {
					actions = append(actions, action{p, to})
				}
			}
			if len(actions) == 0 {
				break
			}
			a := actions[rng.Intn(len(actions))]
			if !b.ApplyMove(a.p, a.to) {
				t.Fatalf("game %d ply %d: listed action %s to %s rejected", game, ply, a.p, a.to)
			}
			if b.CanPromoteAt(a.to) && rng.Intn(2) == 0 {
				b.PromoteAt(a.to)
			}
			turn = turn.Opponent()
		}
	}
}
