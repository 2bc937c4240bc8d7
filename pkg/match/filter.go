package match

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter is a compiled boolean expression over an EvalRecord, such as
// `moves >= 40 && reason == "resign"`. Available names: game_id, sente,
// gote, result, reason, moves, illegal_ply, final_cp.
type Filter struct {
	program *vm.Program
}

// CompileFilter parses src. An empty source yields a nil Filter, which
// matches everything.
func CompileFilter(src string) (*Filter, error) {
	if src == "" {
		return nil, nil
	}
	program, err := expr.Compile(src, expr.Env(filterEnv(EvalRecord{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", src, err)
	}
	return &Filter{program: program}, nil
}

func (f *Filter) Match(rec EvalRecord) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, filterEnv(rec))
	if err != nil {
		return false, fmt.Errorf("game %s: %w", rec.GameID, err)
	}
	return out.(bool), nil
}

// Apply keeps the records f matches.
func (f *Filter) Apply(records []EvalRecord) ([]EvalRecord, error) {
	if f == nil {
		return records, nil
	}
	kept := records[:0:0]
	for _, rec := range records {
		ok, err := f.Match(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}

func filterEnv(rec EvalRecord) map[string]any {
	finalCP := 0
	for i := len(rec.Evals) - 1; i >= 0; i-- {
		if rec.Evals[i].ScoreType == "cp" {
			finalCP = int(rec.Evals[i].ScoreValue)
			break
		}
	}
	return map[string]any{
		"game_id":     rec.GameID,
		"sente":       rec.SenteName,
		"gote":        rec.GoteName,
		"result":      rec.Result,
		"reason":      rec.Reason,
		"moves":       int(rec.MoveCount),
		"illegal_ply": int(rec.IllegalPly),
		"final_cp":    finalCP,
	}
}
