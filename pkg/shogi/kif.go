package shogi

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// KIFEncoding selects the byte encoding of written KIF text.
type KIFEncoding int

const (
	UTF8 KIFEncoding = iota
	ShiftJIS
)

type KIFHeader struct {
	Sente string
	Gote  string
	Event string
	Start time.Time
}

// KIFRecord is a decoded KIF game log: the starting position and the moves
// in order. Terminal holds the closing token (投了, 詰み, ...) if any.
type KIFRecord struct {
	Header   KIFHeader
	Initial  *Board
	Turn     Allegiance
	Moves    []USIMove
	Terminal string
}

// ReplayError reports the first move of a KIF record the rules reject.
type ReplayError struct {
	Ply  int
	Move USIMove
	Err  error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("ply %d (%s): %v", e.Ply, e.Move, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

const kifTimeLayout = "2006/01/02 15:04:05"

var moveLineRe = regexp.MustCompile(`^\s*(\d+)\s+(.+?)\s+\(`)
var bareLineRe = regexp.MustCompile(`^\s*(\d+)\s+(\S+)\s*$`)
var fromSquareRe = regexp.MustCompile(`\(([1-9])([1-9])\)`)

// ReadKIF decodes a KIF log in UTF-8 (with or without BOM) or Shift-JIS.
func ReadKIF(r io.Reader) (*KIFRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text, err := decodeKIF(data)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	return parseKIF(lines)
}

// LoadKIF reads a KIF file from disk.
func LoadKIF(path string) (*KIFRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadKIF(f)
}

// CollectKIF lists every .kif file under root in lexical order.
func CollectKIF(root string) ([]string, error) {
	var files []string
	if err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".kif") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func decodeKIF(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), japanese.ShiftJIS.NewDecoder()))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(decoded) {
		return "", errors.New("failed to decode Shift-JIS KIF")
	}
	return string(decoded), nil
}

func parseKIF(lines []string) (*KIFRecord, error) {
	initial, turn, err := initialPositionFromKIF(lines)
	if err != nil {
		return nil, err
	}
	moves, terminal, err := parseKIFMoves(lines)
	if err != nil {
		return nil, err
	}
	rec := &KIFRecord{
		Header: KIFHeader{
			Sente: headerValue(lines, "先手"),
			Gote:  headerValue(lines, "後手"),
			Event: headerValue(lines, "棋戦"),
		},
		Initial:  initial,
		Turn:     turn,
		Moves:    moves,
		Terminal: terminal,
	}
	if start := headerValue(lines, "開始日時"); start != "" {
		if t, err := time.Parse(kifTimeLayout, start); err == nil {
			rec.Header.Start = t
		}
	}
	return rec, nil
}

func parseKIFMoves(lines []string) ([]USIMove, string, error) {
	var moves []USIMove
	var prev *Square
	for i, line := range lines {
		strict := true
		match := moveLineRe.FindStringSubmatch(line)
		if match == nil {
			strict = false
			match = bareLineRe.FindStringSubmatch(line)
		}
		if match == nil {
			continue
		}
		text := strings.TrimSpace(match[2])
		if isTerminalMove(text) {
			return moves, text, nil
		}
		m, err := parseKIFMoveToken(text, prev)
		if err != nil {
			if !strict {
				continue
			}
			return nil, "", fmt.Errorf("line %d: %w", i+1, err)
		}
		moves = append(moves, m)
		to := m.To
		prev = &to
	}
	return moves, "", nil
}

func isTerminalMove(token string) bool {
	switch token {
	case "投了", "中断", "持将棋", "千日手", "詰み", "切れ負け", "反則勝ち", "反則負け", "入玉勝ち", "勝ち宣言":
		return true
	default:
		return false
	}
}

func parseKIFMoveToken(token string, prev *Square) (USIMove, error) {
	work := strings.TrimSpace(token)
	var dest Square
	if strings.HasPrefix(work, "同") {
		if prev == nil {
			return USIMove{}, errors.New("same-square move without previous destination")
		}
		dest = *prev
		work = strings.TrimLeft(strings.TrimPrefix(work, "同"), " 　")
	} else {
		runes := []rune(work)
		if len(runes) < 2 {
			return USIMove{}, fmt.Errorf("invalid move token: %s", token)
		}
		file, ok := parseFileRune(runes[0])
		if !ok {
			return USIMove{}, fmt.Errorf("invalid destination file in %s", token)
		}
		rank, ok := parseRankRune(runes[1])
		if !ok {
			return USIMove{}, fmt.Errorf("invalid destination rank in %s", token)
		}
		dest = Sq(9-file, 9-rank)
		work = string(runes[2:])
	}

	var from Square
	hasFrom := false
	if match := fromSquareRe.FindStringSubmatch(work); match != nil {
		from = Sq(9-int(match[1][0]-'0'), 9-int(match[2][0]-'0'))
		hasFrom = true
		work = fromSquareRe.ReplaceAllString(work, "")
	}

	kind, rest, ok := cutKIFPiece(strings.TrimSpace(work))
	if !ok {
		return USIMove{}, fmt.Errorf("unknown piece in %s", token)
	}
	noPromote := strings.Contains(rest, "不成")
	rest = strings.Replace(rest, "不成", "", 1)
	promote := strings.Contains(rest, "成") && !noPromote
	drop := strings.Contains(rest, "打")

	if drop || !hasFrom {
		if kind.IsPromoted() || kind == King {
			return USIMove{}, fmt.Errorf("cannot drop %s", kind)
		}
		return USIMove{From: InReserve, To: dest, Drop: true, Kind: kind}, nil
	}
	return USIMove{From: from, To: dest, Promote: promote}, nil
}

// kifPieceNames is ordered so that two-rune promoted names match before
// their one-rune base names.
var kifPieceNames = []struct {
	name string
	kind Kind
}{
	{"成銀", PromotedSilver},
	{"成桂", PromotedKnight},
	{"成香", PromotedLance},
	{"全", PromotedSilver},
	{"圭", PromotedKnight},
	{"杏", PromotedLance},
	{"と", PromotedPawn},
	{"馬", Horse},
	{"龍", Dragon},
	{"竜", Dragon},
	{"王", King},
	{"玉", King},
	{"飛", Rook},
	{"角", Bishop},
	{"金", Gold},
	{"銀", Silver},
	{"桂", Knight},
	{"香", Lance},
	{"歩", Pawn},
}

func cutKIFPiece(text string) (Kind, string, bool) {
	for _, def := range kifPieceNames {
		if rest, ok := strings.CutPrefix(text, def.name); ok {
			return def.kind, rest, true
		}
	}
	return Empty, text, false
}

func parseFileRune(r rune) (int, bool) {
	if r >= '1' && r <= '9' {
		return int(r - '0'), true
	}
	if r >= '１' && r <= '９' {
		return int(r-'１') + 1, true
	}
	return 0, false
}

func parseRankRune(r rune) (int, bool) {
	for i, k := range kifRanks {
		if r == k {
			return i + 1, true
		}
	}
	if r >= '1' && r <= '9' {
		return int(r - '0'), true
	}
	return 0, false
}

func headerValue(lines []string, key string) string {
	prefixes := []string{key + "：", key + ":"}
	for _, line := range lines {
		trim := strings.TrimSpace(line)
		for _, prefix := range prefixes {
			if value, ok := strings.CutPrefix(trim, prefix); ok {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

// initialPositionFromKIF reads the board diagram when present and falls back
// to the even-game setup, which KIF assumes when nothing else is given.
func initialPositionFromKIF(lines []string) (*Board, Allegiance, error) {
	rows := collectBoardRows(lines)
	if len(rows) == 0 {
		if handicap := headerValue(lines, "手合割"); handicap != "" && !strings.Contains(handicap, "平手") {
			return nil, Sente, fmt.Errorf("unsupported handicap %q without board diagram", handicap)
		}
		return DefaultBoard(), Sente, nil
	}
	if len(rows) != 9 {
		return nil, Sente, fmt.Errorf("board diagram must have 9 rows, got %d", len(rows))
	}
	b := NewBoard()
	for i, row := range rows {
		cells, err := parseBoardRow(row)
		if err != nil {
			return nil, Sente, fmt.Errorf("board row %d: %w", i+1, err)
		}
		for x, c := range cells {
			b.cells.set(Sq(x, 8-i), c)
		}
	}
	for _, hand := range []struct {
		key  string
		side Allegiance
	}{{"先手の持駒", Sente}, {"後手の持駒", Gote}} {
		if err := parseHandLine(headerValue(lines, hand.key), hand.side, b); err != nil {
			return nil, Sente, err
		}
	}
	return b, kifTurn(lines), nil
}

func collectBoardRows(lines []string) []string {
	var rows []string
	for _, line := range lines {
		trim := strings.TrimSpace(line)
		if !strings.HasPrefix(trim, "|") {
			continue
		}
		end := strings.LastIndex(trim, "|")
		if end <= 0 {
			continue
		}
		rows = append(rows, trim[1:end])
	}
	return rows
}

func parseBoardRow(row string) ([]cell, error) {
	runes := []rune(row)
	var cells []cell
	for i := 0; i < len(runes); {
		r := runes[i]
		if r == ' ' || r == '\t' || r == '　' {
			i++
			continue
		}
		if r == '・' {
			cells = append(cells, cell{})
			i++
			continue
		}
		side := Sente
		if r == 'v' || r == 'V' {
			side = Gote
			i++
		}
		kind, rest, ok := cutKIFPiece(string(runes[i:]))
		if !ok {
			return nil, fmt.Errorf("unknown piece in %q", row)
		}
		cells = append(cells, cell{kind: kind, side: side})
		i = len(runes) - utf8.RuneCountInString(rest)
	}
	if len(cells) != 9 {
		return nil, fmt.Errorf("expected 9 cells, got %d", len(cells))
	}
	return cells, nil
}

func parseHandLine(text string, side Allegiance, b *Board) error {
	if text == "" || text == "なし" {
		return nil
	}
	for _, token := range strings.Fields(text) {
		kind, rest, ok := cutKIFPiece(token)
		if !ok || kind.IsPromoted() || kind == King {
			return fmt.Errorf("unknown hand piece %q", token)
		}
		count, ok := parseKanjiCount(rest)
		if !ok {
			return fmt.Errorf("invalid hand count %q", token)
		}
		for ; count > 0; count-- {
			b.addReserve(side, kind)
		}
	}
	return nil
}

// parseKanjiCount reads "", "二" .. "九", "十" .. "十八" or arabic digits.
func parseKanjiCount(text string) (int, bool) {
	if text == "" {
		return 1, true
	}
	value := 0
	seen := false
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			value = value*10 + int(r-'0')
		case r == '十':
			if value == 0 {
				value = 1
			}
			value *= 10
		default:
			n, ok := parseRankRune(r)
			if !ok {
				return 0, false
			}
			value += n
		}
		seen = true
	}
	return value, seen && value > 0
}

func kifTurn(lines []string) Allegiance {
	for _, line := range lines {
		trim := strings.TrimSpace(line)
		if strings.HasPrefix(trim, "後手番") || strings.HasPrefix(trim, "上手番") {
			return Gote
		}
		if turn, ok := strings.CutPrefix(trim, "手番"); ok && strings.Contains(turn, "後手") {
			return Gote
		}
	}
	return Sente
}

// ReplayKIF plays rec through a new Game. On the first rejected move it
// returns the game as it stood plus a *ReplayError.
func ReplayKIF(rec *KIFRecord, opts ...Option) (*Game, error) {
	g := NewGameFromBoard(rec.Initial.Clone(), rec.Turn, opts...)
	for i, m := range rec.Moves {
		var err error
		if m.Drop {
			_, err = g.Drop(g.Turn(), m.Kind, m.To)
		} else {
			_, err = g.Move(m.From, m.To, m.Promote)
		}
		if err != nil {
			return g, &ReplayError{Ply: i + 1, Move: m, Err: err}
		}
	}
	return g, nil
}

// KIFMove renders rec as KIF move text. prev is the previous destination,
// used for the 同 shorthand.
func KIFMove(rec Record, prev *Square) string {
	var b strings.Builder
	if prev != nil && *prev == rec.To {
		b.WriteString("同　")
	} else {
		b.WriteString(kifSquare(rec.To))
	}
	b.WriteString(rec.Kind.spec().kif)
	if rec.Promote {
		b.WriteString("成")
	}
	if rec.IsDrop() {
		b.WriteString("打")
	} else {
		fmt.Fprintf(&b, "(%s)", numericSquare(rec.From))
	}
	return b.String()
}

var boardGlyphs = map[Kind]string{
	Pawn: "歩", Lance: "香", Knight: "桂", Silver: "銀", Gold: "金", Bishop: "角", Rook: "飛", King: "玉",
	PromotedPawn: "と", PromotedLance: "杏", PromotedKnight: "圭", PromotedSilver: "全", Horse: "馬", Dragon: "龍",
}

// WriteKIF writes g as a KIF log. Elapsed-time columns are zero.
func WriteKIF(w io.Writer, g *Game, h KIFHeader, enc KIFEncoding) error {
	out := w
	var tw io.WriteCloser
	if enc == ShiftJIS {
		tw = transform.NewWriter(w, japanese.ShiftJIS.NewEncoder())
		out = tw
	}
	bw := bufio.NewWriter(out)

	fmt.Fprintln(bw, "# ---- KIF ----")
	if !h.Start.IsZero() {
		fmt.Fprintf(bw, "開始日時：%s\n", h.Start.Format(kifTimeLayout))
	}
	if h.Event != "" {
		fmt.Fprintf(bw, "棋戦：%s\n", h.Event)
	}
	initial, turn := g.Initial()
	if turn == Sente && initial.SFEN(Sente, 1) == StandardSFEN {
		fmt.Fprintln(bw, "手合割：平手")
	} else {
		writeKIFBoard(bw, initial, turn)
	}
	fmt.Fprintf(bw, "先手：%s\n", h.Sente)
	fmt.Fprintf(bw, "後手：%s\n", h.Gote)
	fmt.Fprintln(bw, "手数----指手---------消費時間--")

	records := g.Records()
	var prev *Square
	for i, rec := range records {
		fmt.Fprintf(bw, "%4d %s   ( 0:00/00:00:00)\n", i+1, KIFMove(rec, prev))
		to := rec.To
		prev = &to
	}
	status, _ := g.Status()
	if terminal := kifTerminal(status); terminal != "" {
		fmt.Fprintf(bw, "%4d %s   ( 0:00/00:00:00)\n", len(records)+1, terminal)
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

func kifTerminal(status Status) string {
	switch status {
	case Checkmate:
		return "詰み"
	case Repetition:
		return "千日手"
	case Resigned:
		return "投了"
	case Foul:
		return "反則負け"
	default:
		return ""
	}
}

func writeKIFBoard(w io.Writer, b *Board, turn Allegiance) {
	fmt.Fprintf(w, "後手の持駒：%s\n", kifHand(b, Gote))
	fmt.Fprintln(w, "  ９ ８ ７ ６ ５ ４ ３ ２ １")
	fmt.Fprintln(w, "+---------------------------+")
	for y := 8; y >= 0; y-- {
		var row strings.Builder
		row.WriteString("|")
		for x := 0; x < 9; x++ {
			c := b.cells[x][y]
			switch {
			case c.kind == Empty || c.side == Neutral:
				row.WriteString(" ・")
			case c.side == Gote:
				row.WriteString("v" + boardGlyphs[c.kind])
			default:
				row.WriteString(" " + boardGlyphs[c.kind])
			}
		}
		row.WriteString("|")
		row.WriteRune(kifRanks[8-y])
		fmt.Fprintln(w, row.String())
	}
	fmt.Fprintln(w, "+---------------------------+")
	fmt.Fprintf(w, "先手の持駒：%s\n", kifHand(b, Sente))
	if turn == Gote {
		fmt.Fprintln(w, "後手番")
	}
}

func kifHand(b *Board, side Allegiance) string {
	var parts []string
	for _, kind := range BaseKinds {
		count := b.ReserveCount(side, kind)
		if count == 0 {
			continue
		}
		parts = append(parts, boardGlyphs[kind]+kanjiCount(count))
	}
	if len(parts) == 0 {
		return "なし"
	}
	return strings.Join(parts, "　")
}

func kanjiCount(n int) string {
	switch {
	case n <= 1:
		return ""
	case n < 10:
		return string(kifRanks[n-1])
	case n == 10:
		return "十"
	default:
		return "十" + string(kifRanks[n-11])
	}
}
