package match_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"shogi/pkg/match"
	"shogi/pkg/shogi"
	"shogi/pkg/usi"
)

const bishopExchangeKIF = `手合割：平手
先手：甲
後手：乙
手数----指手---------消費時間--
   1 ７六歩(77)   ( 0:00/00:00:00)
   2 ３四歩(33)   ( 0:00/00:00:00)
   3 ２二角成(88)   ( 0:00/00:00:00)
   4 同　銀(31)   ( 0:00/00:00:00)
   5 投了
`

const illegalPawnKIF = `手合割：平手
手数----指手---------消費時間--
   1 ７六歩(77)   ( 0:00/00:00:00)
   2 ３四歩(33)   ( 0:00/00:00:00)
   3 ７四歩(76)   ( 0:00/00:00:00)
`

// fixedSearcher answers every search with the same result.
type fixedSearcher struct {
	result    usi.Result
	err       error
	positions []string
}

func (f *fixedSearcher) Search(ctx context.Context, position string, moveTimeMs int) (usi.Result, error) {
	f.positions = append(f.positions, position)
	return f.result, f.err
}

func readKIFText(t *testing.T, text string) *shogi.KIFRecord {
	t.Helper()
	rec, err := shogi.ReadKIF(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ReadKIF: %v", err)
	}
	return rec
}

func TestAnnotateGame(t *testing.T) {
	s := &fixedSearcher{result: usi.Result{Move: "2g2f", Score: usi.Score{Kind: "cp", Value: 100}, Scored: true}}
	rec := readKIFText(t, bishopExchangeKIF)
	out, err := match.AnnotateGame(context.Background(), s, "g1", rec, match.AnnotateOptions{MoveTimeMs: 5}, nil)
	if err != nil {
		t.Fatalf("AnnotateGame: %v", err)
	}
	if out.SenteName != "甲" || out.GoteName != "乙" || out.MoveCount != 4 || out.IllegalPly != 0 {
		t.Fatalf("unexpected record: %+v", out)
	}
	if out.Result != match.ResultGote || out.Reason != string(match.ReasonResign) {
		t.Fatalf("unexpected record: %+v", out)
	}
	if len(out.Evals) != 5 || len(s.positions) != 5 {
		t.Fatalf("expected 5 evaluations, got %d (%d searches)", len(out.Evals), len(s.positions))
	}
	if s.positions[0] != "sfen "+shogi.StandardSFEN {
		t.Fatalf("unexpected first position: %s", s.positions[0])
	}
	for i, e := range out.Evals {
		want := int32(100)
		if i%2 == 1 {
			want = -100
		}
		if e.Ply != int32(i) || e.ScoreType != "cp" || e.ScoreValue != want || e.BestMove != "2g2f" {
			t.Fatalf("eval %d: %+v", i, e)
		}
	}
	if out.Evals[2].Move != "8h2b+" || out.Evals[3].Move != "3a2b" || out.Evals[4].Move != "" {
		t.Fatalf("unexpected moves: %+v", out.Evals)
	}
}

func TestAnnotateGameStopsAtIllegalMove(t *testing.T) {
	s := &fixedSearcher{result: usi.Result{Move: "resign"}}
	rec := readKIFText(t, illegalPawnKIF)
	out, err := match.AnnotateGame(context.Background(), s, "g2", rec, match.AnnotateOptions{}, nil)
	if err != nil {
		t.Fatalf("AnnotateGame: %v", err)
	}
	if out.IllegalPly != 3 || len(out.Evals) != 3 || out.Result != match.ResultGote || out.Reason != string(match.ReasonIllegalMove) {
		t.Fatalf("unexpected record: %+v", out)
	}
	if last := out.Evals[2]; last.Move != "" || last.ScoreType != "none" || last.ScoreValue != 0 {
		t.Fatalf("unexpected last eval: %+v", last)
	}
}

func TestAnnotateGameCache(t *testing.T) {
	s := &fixedSearcher{result: usi.Result{Move: "2g2f", Score: usi.Score{Kind: "mate", Value: 3}, Scored: true}}
	cache := make(map[string]match.PlyEval)
	for _, id := range []string{"a", "b"} {
		if _, err := match.AnnotateGame(context.Background(), s, id, readKIFText(t, bishopExchangeKIF), match.AnnotateOptions{}, cache); err != nil {
			t.Fatalf("AnnotateGame %s: %v", id, err)
		}
	}
	if len(s.positions) != 5 || len(cache) != 5 {
		t.Fatalf("expected 5 searches and cache entries, got %d/%d", len(s.positions), len(cache))
	}
}

func TestAnnotateGameSearchError(t *testing.T) {
	s := &fixedSearcher{err: usi.ErrStdoutClosed}
	_, err := match.AnnotateGame(context.Background(), s, "g3", readKIFText(t, bishopExchangeKIF), match.AnnotateOptions{}, nil)
	if !errors.Is(err, usi.ErrStdoutClosed) {
		t.Fatalf("expected ErrStdoutClosed, got %v", err)
	}
}

func TestWriteAndReadEvals(t *testing.T) {
	s := &fixedSearcher{result: usi.Result{Move: "2g2f", Score: usi.Score{Kind: "cp", Value: -42}, Scored: true}}
	var records []match.EvalRecord
	for i, text := range []string{bishopExchangeKIF, illegalPawnKIF} {
		out, err := match.AnnotateGame(context.Background(), s, string(rune('a'+i)), readKIFText(t, text), match.AnnotateOptions{}, nil)
		if err != nil {
			t.Fatalf("AnnotateGame: %v", err)
		}
		records = append(records, out)
	}

	path := filepath.Join(t.TempDir(), "evals.parquet")
	ch := make(chan match.EvalRecord, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	if err := match.WriteEvals(path, ch, 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := match.ReadEvals(path, 1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("unexpected row count: %d", len(got))
	}
	for i, want := range records {
		g := got[i]
		if g.GameID != want.GameID || g.IllegalPly != want.IllegalPly || len(g.Evals) != len(want.Evals) {
			t.Fatalf("row %d: got %+v want %+v", i, g, want)
		}
		for j := range want.Evals {
			if g.Evals[j] != want.Evals[j] {
				t.Fatalf("row %d eval %d: got %+v want %+v", i, j, g.Evals[j], want.Evals[j])
			}
		}
	}
}

func TestFirstCrossing(t *testing.T) {
	evals := []match.PlyEval{
		{Ply: 0, ScoreType: "cp", ScoreValue: 50},
		{Ply: 1, ScoreType: "none"},
		{Ply: 2, ScoreType: "cp", ScoreValue: -350},
		{Ply: 3, ScoreType: "cp", ScoreValue: 800},
		{Ply: 4, ScoreType: "mate", ScoreValue: 5},
	}
	cases := []struct {
		threshold int
		side      shogi.Allegiance
		ply       int32
	}{
		{threshold: 50, side: shogi.Sente, ply: 0},
		{threshold: 300, side: shogi.Gote, ply: 2},
		{threshold: 500, side: shogi.Sente, ply: 3},
		{threshold: 1000, side: shogi.Sente, ply: 4},
	}
	for _, tc := range cases {
		side, ply := match.FirstCrossing(evals, tc.threshold)
		if side != tc.side || ply != tc.ply {
			t.Fatalf("threshold %d: got %s at %d, want %s at %d", tc.threshold, side, ply, tc.side, tc.ply)
		}
	}
	if side, _ := match.FirstCrossing(evals[:2], 100); side != shogi.Neutral {
		t.Fatalf("expected no crossing, got %s", side)
	}
}
