package match

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"shogi/pkg/shogi"
	"shogi/pkg/usi"
)

// Searcher evaluates a position; usi.Session implements it.
type Searcher interface {
	Search(ctx context.Context, position string, moveTimeMs int) (usi.Result, error)
}

type PlyEval struct {
	Ply        int32  `parquet:"name=ply, type=INT32"`
	Move       string `parquet:"name=move, type=BYTE_ARRAY, convertedtype=UTF8"`
	BestMove   string `parquet:"name=best_move, type=BYTE_ARRAY, convertedtype=UTF8"`
	ScoreType  string `parquet:"name=score_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	ScoreValue int32  `parquet:"name=score_value, type=INT32"`
}

// EvalRecord is one annotated game. Scores are from Sente's point of view.
// IllegalPly is the first ply the rules reject, or zero.
type EvalRecord struct {
	GameID     string    `parquet:"name=game_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SenteName  string    `parquet:"name=sente_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	GoteName   string    `parquet:"name=gote_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Result     string    `parquet:"name=result, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reason     string    `parquet:"name=reason, type=BYTE_ARRAY, convertedtype=UTF8"`
	MoveCount  int32     `parquet:"name=move_count, type=INT32"`
	IllegalPly int32     `parquet:"name=illegal_ply, type=INT32"`
	Evals      []PlyEval `parquet:"name=evals, type=LIST"`
}

const scoreNone = "none"

//go:embed schema/eval_schema.json
var evalSchemaJSON []byte

// AnnotateOptions bound the search spent on each position.
type AnnotateOptions struct {
	MoveTimeMs int
	// EvalTimeout bounds each Search call; zero means no bound.
	EvalTimeout time.Duration
}

// AnnotateGame replays rec and asks s for a score at every position up to
// the first rejected move, the final position included. cache, when not
// nil, is keyed by position and shared between games.
func AnnotateGame(ctx context.Context, s Searcher, gameID string, rec *shogi.KIFRecord, opts AnnotateOptions, cache map[string]PlyEval) (EvalRecord, error) {
	out := EvalRecord{
		GameID:    gameID,
		SenteName: rec.Header.Sente,
		GoteName:  rec.Header.Gote,
		MoveCount: int32(len(rec.Moves)),
		Evals:     make([]PlyEval, 0, len(rec.Moves)+1),
	}
	g, err := shogi.ReplayKIF(rec)
	var replayErr *shogi.ReplayError
	if errors.As(err, &replayErr) {
		out.IllegalPly = int32(replayErr.Ply)
	} else if err != nil {
		return EvalRecord{}, err
	}
	winner, reason := KIFResult(g, rec, replayErr)
	out.Result = resultName(winner)
	out.Reason = string(reason)

	records := g.Records()
	replay := shogi.NewGameFromBoard(rec.Initial.Clone(), rec.Turn)
	for i := 0; i <= len(records); i++ {
		move := ""
		if i < len(records) {
			move = records[i].USI()
		}
		eval, err := evaluate(ctx, s, replay, opts, cache)
		if err != nil {
			return EvalRecord{}, err
		}
		eval.Ply = int32(i)
		eval.Move = move
		out.Evals = append(out.Evals, eval)
		if move == "" {
			break
		}
		if _, err := replay.PlayUSI(move); err != nil {
			return EvalRecord{}, err
		}
	}
	return out, nil
}

func evaluate(ctx context.Context, s Searcher, g *shogi.Game, opts AnnotateOptions, cache map[string]PlyEval) (PlyEval, error) {
	turn := g.Turn()
	key := g.Board().SFEN(turn, 1)
	if eval, ok := cache[key]; ok {
		return eval, nil
	}
	if opts.EvalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.EvalTimeout)
		defer cancel()
	}
	result, err := s.Search(ctx, "sfen "+key, opts.MoveTimeMs)
	if err != nil {
		return PlyEval{}, err
	}
	eval := PlyEval{BestMove: result.Move, ScoreType: scoreNone}
	if result.Scored {
		score := result.Score
		if turn == shogi.Gote {
			score = score.Flip()
		}
		eval.ScoreType = score.Kind
		eval.ScoreValue = int32(score.Value)
	}
	if cache != nil {
		cache[key] = eval
	}
	return eval, nil
}

// FirstCrossing finds the first position whose score reaches threshold for
// either side. A mate score counts at any threshold. It returns Neutral when
// neither side gets there.
func FirstCrossing(evals []PlyEval, threshold int) (shogi.Allegiance, int32) {
	for _, e := range evals {
		switch {
		case e.ScoreType == "mate":
			if e.ScoreValue >= 0 {
				return shogi.Sente, e.Ply
			}
			return shogi.Gote, e.Ply
		case e.ScoreType != "cp":
			continue
		case e.ScoreValue >= int32(threshold):
			return shogi.Sente, e.Ply
		case e.ScoreValue <= -int32(threshold):
			return shogi.Gote, e.Ply
		}
	}
	return shogi.Neutral, 0
}

// WinnerSide maps a stored result back to a side, Neutral for draws.
func WinnerSide(result string) shogi.Allegiance {
	switch result {
	case ResultSente:
		return shogi.Sente
	case ResultGote:
		return shogi.Gote
	default:
		return shogi.Neutral
	}
}

// WriteEvals drains records into a parquet file at path.
func WriteEvals(path string, records <-chan EvalRecord, parallel int64) error {
	return writeParquet(path, evalSchemaJSON, records, parallel)
}

func ReadEvals(path string, parallel int64) ([]EvalRecord, error) {
	return readParquet[EvalRecord](path, parallel)
}
