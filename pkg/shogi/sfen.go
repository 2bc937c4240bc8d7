package shogi

import (
	"fmt"
	"strconv"
	"strings"
)

const StandardSFEN = "lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - 1"

// ParseSFEN builds a board from an SFEN string and returns it with the side
// to move and the move number. Upper case letters are Sente.
func ParseSFEN(sfen string) (*Board, Allegiance, int, error) {
	fields := strings.Fields(sfen)
	if len(fields) < 3 {
		return nil, Sente, 0, fmt.Errorf("%w: %q", ErrInvalidSFEN, sfen)
	}
	b := NewBoard()
	if err := parseBoardSFEN(fields[0], b); err != nil {
		return nil, Sente, 0, err
	}
	var turn Allegiance
	switch fields[1] {
	case "b":
		turn = Sente
	case "w":
		turn = Gote
	default:
		return nil, Sente, 0, fmt.Errorf("%w: side to move %q", ErrInvalidSFEN, fields[1])
	}
	if err := parseHandsSFEN(fields[2], b); err != nil {
		return nil, Sente, 0, err
	}
	moveNumber := 1
	if len(fields) >= 4 {
		n, err := strconv.Atoi(fields[3])
		if err != nil || n < 1 {
			return nil, Sente, 0, fmt.Errorf("%w: move number %q", ErrInvalidSFEN, fields[3])
		}
		moveNumber = n
	}
	return b, turn, moveNumber, nil
}

func parseBoardSFEN(board string, b *Board) error {
	ranks := strings.Split(board, "/")
	if len(ranks) != 9 {
		return fmt.Errorf("%w: %d ranks", ErrInvalidSFEN, len(ranks))
	}
	for rankIndex, rankText := range ranks {
		y := 8 - rankIndex
		file := 9
		for i := 0; i < len(rankText); i++ {
			r := rankText[i]
			if r >= '1' && r <= '9' {
				file -= int(r - '0')
				continue
			}
			letter := ""
			if r == '+' {
				i++
				if i >= len(rankText) {
					return fmt.Errorf("%w: dangling promotion marker", ErrInvalidSFEN)
				}
				letter = "+"
				r = rankText[i]
			}
			side := Sente
			if r >= 'a' && r <= 'z' {
				side = Gote
				r -= 'a' - 'A'
			}
			kind, ok := KindFromLetter(letter + string(r))
			if !ok {
				return fmt.Errorf("%w: unknown piece %q", ErrInvalidSFEN, letter+string(r))
			}
			if file < 1 {
				return fmt.Errorf("%w: rank %d has too many files", ErrInvalidSFEN, rankIndex+1)
			}
			b.cells.set(Sq(9-file, y), cell{kind: kind, side: side})
			file--
		}
		if file != 0 {
			return fmt.Errorf("%w: rank %d does not have 9 files", ErrInvalidSFEN, rankIndex+1)
		}
	}
	return nil
}

// maxHandCount is the number of pawns in a set, the most of any kind.
const maxHandCount = 18

func parseHandsSFEN(hand string, b *Board) error {
	if hand == "-" {
		return nil
	}
	count := 0
	for _, r := range hand {
		if r >= '0' && r <= '9' {
			if count = count*10 + int(r-'0'); count > maxHandCount {
				return fmt.Errorf("%w: hand count %d", ErrInvalidSFEN, count)
			}
			continue
		}
		if count == 0 {
			count = 1
		}
		side := Sente
		if r >= 'a' && r <= 'z' {
			side = Gote
			r -= 'a' - 'A'
		}
		kind, ok := KindFromLetter(string(r))
		if !ok || kind == King {
			return fmt.Errorf("%w: unknown hand piece %q", ErrInvalidSFEN, r)
		}
		for ; count > 0; count-- {
			b.addReserve(side, kind)
		}
	}
	if count != 0 {
		return fmt.Errorf("%w: trailing hand count", ErrInvalidSFEN)
	}
	return nil
}

// SFEN renders the board with the given side to move and move number.
// Neutral pieces have no SFEN letter and are rendered as empty squares, so
// the text is lossy for boards that hold them.
func (b *Board) SFEN(turn Allegiance, moveNumber int) string {
	side := "b"
	if turn == Gote {
		side = "w"
	}
	return fmt.Sprintf("%s %s %s %d", b.boardSFEN(), side, b.handsSFEN(), moveNumber)
}

func (b *Board) boardSFEN() string {
	rows := make([]string, 0, 9)
	for y := 8; y >= 0; y-- {
		var row strings.Builder
		empty := 0
		flushEmpty := func() {
			if empty > 0 {
				row.WriteString(strconv.Itoa(empty))
				empty = 0
			}
		}
		for x := 0; x < 9; x++ {
			c := b.cells[x][y]
			if c.kind == Empty || c.side == Neutral {
				empty++
				continue
			}
			flushEmpty()
			text := c.kind.Letter()
			if c.side == Gote {
				text = strings.ToLower(text)
			}
			row.WriteString(text)
		}
		flushEmpty()
		rows = append(rows, row.String())
	}
	return strings.Join(rows, "/")
}

func (b *Board) handsSFEN() string {
	var out strings.Builder
	for _, side := range []Allegiance{Sente, Gote} {
		for _, kind := range BaseKinds {
			count := b.ReserveCount(side, kind)
			if count == 0 {
				continue
			}
			if count > 1 {
				out.WriteString(strconv.Itoa(count))
			}
			letter := kind.Letter()
			if side == Gote {
				letter = strings.ToLower(letter)
			}
			out.WriteString(letter)
		}
	}
	if out.Len() == 0 {
		return "-"
	}
	return out.String()
}
