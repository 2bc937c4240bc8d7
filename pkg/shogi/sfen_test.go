package shogi_test

import (
	"errors"
	"testing"

	"shogi/pkg/shogi"
)

func TestSFENRoundTrip(t *testing.T) {
	cases := []string{
		shogi.StandardSFEN,
		"lnsgkgsnl/1r5b1/p1ppppppp/9/1p5P1/9/PPPPPPP1P/1BG4R1/LNS1KGSNL b - 5",
		"lnsg3nl/1r2k1gs1/p1ppppp1p/9/1p7/9/PPPPPPP1P/1BG6/LNS1KGSNL b BPrp 13",
		"8k/9/6NG1/9/9/9/9/9/K8 b GP 1",
		"4k4/5+R3/9/9/9/9/9/9/K8 w 2P10p 7",
		"4k4/9/9/9/9/9/9/9/4K4 b 18P 1",
	}
	for _, sfen := range cases {
		b, turn, moveNumber, err := shogi.ParseSFEN(sfen)
		if err != nil {
			t.Fatalf("parse %q: %v", sfen, err)
		}
		if got := b.SFEN(turn, moveNumber); got != sfen {
			t.Fatalf("round trip mismatch: got %s want %s", got, sfen)
		}
	}
}

func TestParseSFENDefaultsMoveNumber(t *testing.T) {
	_, turn, moveNumber, err := shogi.ParseSFEN("4k4/9/9/9/9/9/9/9/4K4 w -")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if turn != shogi.Gote || moveNumber != 1 {
		t.Fatalf("unexpected turn %s move %d", turn, moveNumber)
	}
}

func TestParseSFENErrors(t *testing.T) {
	cases := []string{
		"",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1 b - 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL x - 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNX b - 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b K 1",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - 0",
		"lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPPP/1B5R1/LNSGKGSNL b - 1",
		"4k4/9/9/9/9/9/9/9/4K4 b 19P 1",
		"4k4/9/9/9/9/9/9/9/4K4 b 1000000000P 1",
	}
	for _, sfen := range cases {
		if _, _, _, err := shogi.ParseSFEN(sfen); !errors.Is(err, shogi.ErrInvalidSFEN) {
			t.Fatalf("%q: expected ErrInvalidSFEN, got %v", sfen, err)
		}
	}
}

func TestParseUSIMove(t *testing.T) {
	cases := []struct {
		text string
		want shogi.USIMove
	}{
		{"7g7f", shogi.USIMove{From: shogi.Sq(2, 2), To: shogi.Sq(2, 3)}},
		{"8h2b+", shogi.USIMove{From: shogi.Sq(1, 1), To: shogi.Sq(7, 7), Promote: true}},
		{"P*5e", shogi.USIMove{From: shogi.InReserve, To: shogi.Sq(4, 4), Drop: true, Kind: shogi.Pawn}},
	}
	for _, tc := range cases {
		got, err := shogi.ParseUSIMove(tc.text)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.text, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: got %+v want %+v", tc.text, got, tc.want)
		}
		if got.String() != tc.text {
			t.Fatalf("format: got %s want %s", got, tc.text)
		}
	}
	for _, bad := range []string{"", "7g7", "7g7f=", "0a1a", "K*5e", "X*5e", "P*5j"} {
		if _, err := shogi.ParseUSIMove(bad); !errors.Is(err, shogi.ErrInvalidUSI) {
			t.Fatalf("%q: expected ErrInvalidUSI, got %v", bad, err)
		}
	}
}

func assertPackRoundTrip(t *testing.T, sfen string) {
	t.Helper()
	b, turn, _, err := shogi.ParseSFEN(sfen)
	if err != nil {
		t.Fatalf("parse %q: %v", sfen, err)
	}
	packed, err := b.Pack256(turn)
	if err != nil {
		t.Fatalf("pack %q: %v", sfen, err)
	}
	unpacked, unpackedTurn, err := shogi.Unpack256(packed)
	if err != nil {
		t.Fatalf("unpack %q: %v", sfen, err)
	}
	if got, want := unpacked.SFEN(unpackedTurn, 1), b.SFEN(turn, 1); got != want {
		t.Fatalf("pack round trip mismatch: got %s want %s", got, want)
	}
}

func TestPack256RoundTrip(t *testing.T) {
	assertPackRoundTrip(t, shogi.StandardSFEN)
	assertPackRoundTrip(t, "lnsg3nl/1r2k1gs1/p1ppppp1p/9/1p7/9/PPPPPPP1P/1BG6/LNS1KGSNL b BPrp 13")
	assertPackRoundTrip(t, "lnsgk1snl/1r4gb1/p1ppppp1p/7R1/1p7/9/PPPPPPP1P/1BG6/LNS1KGSNL w Pp 10")
}

func TestPack256RejectsIncompleteSets(t *testing.T) {
	b := mustBoard(t, "4k4/9/9/9/9/9/9/9/4K4 b - 1")
	if _, err := b.Pack256(shogi.Sente); err == nil {
		t.Fatal("a position without the full set should not pack")
	}
}
