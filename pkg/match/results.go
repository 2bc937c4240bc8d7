package match

import (
	_ "embed"

	"shogi/pkg/shogi"
)

type PlyRecord struct {
	Ply     int32  `parquet:"name=ply, type=INT32"`
	Move    string `parquet:"name=move, type=BYTE_ARRAY, convertedtype=UTF8"`
	Capture bool   `parquet:"name=capture, type=BOOLEAN"`
	Promote bool   `parquet:"name=promote, type=BOOLEAN"`
	Check   bool   `parquet:"name=check, type=BOOLEAN"`
}

// MatchRecord is one parquet row per finished game.
type MatchRecord struct {
	GameID    string      `parquet:"name=game_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SenteName string      `parquet:"name=sente_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	GoteName  string      `parquet:"name=gote_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Result    string      `parquet:"name=result, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reason    string      `parquet:"name=reason, type=BYTE_ARRAY, convertedtype=UTF8"`
	Detail    string      `parquet:"name=detail, type=BYTE_ARRAY, convertedtype=UTF8"`
	MoveCount int32       `parquet:"name=move_count, type=INT32"`
	StartSFEN string      `parquet:"name=start_sfen, type=BYTE_ARRAY, convertedtype=UTF8"`
	FinalSFEN string      `parquet:"name=final_sfen, type=BYTE_ARRAY, convertedtype=UTF8"`
	Plies     []PlyRecord `parquet:"name=plies, type=LIST"`
}

const (
	ResultSente = "sente"
	ResultGote  = "gote"
	ResultDraw  = "draw"
)

// NewMatchRecord flattens an outcome into a row.
func NewMatchRecord(gameID, senteName, goteName string, out *Outcome) MatchRecord {
	initial, turn := out.Game.Initial()
	rec := MatchRecord{
		GameID:    gameID,
		SenteName: senteName,
		GoteName:  goteName,
		Result:    resultName(out.Winner),
		Reason:    string(out.Reason),
		MoveCount: int32(len(out.Plies)),
		StartSFEN: initial.SFEN(turn, 1),
		FinalSFEN: out.Game.SFEN(),
		Plies:     make([]PlyRecord, 0, len(out.Plies)),
	}
	if out.Err != nil {
		rec.Detail = out.Err.Error()
	}
	for i, p := range out.Plies {
		rec.Plies = append(rec.Plies, PlyRecord{
			Ply:     int32(i + 1),
			Move:    p.Record.USI(),
			Capture: p.Record.Capture,
			Promote: p.Record.Promote,
			Check:   p.Check,
		})
	}
	return rec
}

func resultName(winner shogi.Allegiance) string {
	switch winner {
	case shogi.Sente:
		return ResultSente
	case shogi.Gote:
		return ResultGote
	default:
		return ResultDraw
	}
}

// KIFResult decides the winner and reason of a recorded game replayed into
// g. A rejected move loses for the side that played it; otherwise the game
// status decides, then the terminal token, read for the side to move.
func KIFResult(g *shogi.Game, rec *shogi.KIFRecord, replayErr *shogi.ReplayError) (shogi.Allegiance, Reason) {
	toMove := g.Turn()
	if replayErr != nil {
		return toMove.Opponent(), ReasonIllegalMove
	}
	status, winner := g.Status()
	switch status {
	case shogi.Checkmate:
		return winner, ReasonCheckmate
	case shogi.Repetition:
		return shogi.Neutral, ReasonRepetition
	}
	switch rec.Terminal {
	case "投了":
		return toMove.Opponent(), ReasonResign
	case "詰み":
		return toMove.Opponent(), ReasonCheckmate
	case "千日手":
		return shogi.Neutral, ReasonRepetition
	case "持将棋":
		return shogi.Neutral, ReasonImpasse
	case "切れ負け":
		return toMove.Opponent(), ReasonTimeout
	case "反則負け":
		return toMove.Opponent(), ReasonIllegalMove
	case "反則勝ち":
		return toMove, ReasonIllegalMove
	case "入玉勝ち", "勝ち宣言":
		return toMove, ReasonDeclaration
	default:
		return shogi.Neutral, ReasonUnfinished
	}
}

// Winner returns the winning engine's name, or "" for a draw.
func (r MatchRecord) Winner() string {
	switch r.Result {
	case ResultSente:
		return r.SenteName
	case ResultGote:
		return r.GoteName
	default:
		return ""
	}
}

//go:embed schema/match_schema.json
var matchSchemaJSON []byte

// WriteResults drains records into a snappy-compressed parquet file at
// path, after checking MatchRecord against the bundled schema.
func WriteResults(path string, records <-chan MatchRecord, parallel int64) error {
	return writeParquet(path, matchSchemaJSON, records, parallel)
}

// ReadResults loads every row of a results file.
func ReadResults(path string, parallel int64) ([]MatchRecord, error) {
	return readParquet[MatchRecord](path, parallel)
}

// Summary tallies finished games.
type Summary struct {
	Games   int
	Draws   int
	Wins    map[string]int
	Reasons map[string]int
}

func Summarize(records []MatchRecord) Summary {
	s := Summary{Wins: map[string]int{}, Reasons: map[string]int{}}
	for _, r := range records {
		s.Games++
		s.Reasons[r.Reason]++
		if winner := r.Winner(); winner != "" {
			s.Wins[winner]++
		} else {
			s.Draws++
		}
	}
	return s
}
