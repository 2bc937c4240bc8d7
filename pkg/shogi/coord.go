package shogi

import (
	"fmt"
	"strings"
)

// Square is a zero-indexed board coordinate. X runs from file 9 (X=0) to
// file 1 (X=8); Y runs from rank i (Y=0, Sente's back rank) to rank a (Y=8).
type Square struct {
	X int
	Y int
}

// InReserve is the location carried by pieces sitting in a reserve.
var InReserve = Square{X: -1, Y: -1}

func Sq(x, y int) Square {
	return Square{X: x, Y: y}
}

func (s Square) Valid() bool {
	return s.X >= 0 && s.X <= 8 && s.Y >= 0 && s.Y <= 8
}

func (s Square) File() int {
	return 9 - s.X
}

func (s Square) Rank() byte {
	return byte('i' - s.Y)
}

func (s Square) String() string {
	if s == InReserve {
		return "**"
	}
	if !s.Valid() {
		return fmt.Sprintf("(%d,%d)", s.X, s.Y)
	}
	return fmt.Sprintf("%d%c", s.File(), s.Rank())
}

// ParseSquare reads file/rank notation such as "7g".
func ParseSquare(text string) (Square, error) {
	text = strings.TrimSpace(text)
	if len(text) != 2 {
		return Square{}, fmt.Errorf("%w: square %q", ErrOutOfRange, text)
	}
	file := int(text[0] - '0')
	if file < 1 || file > 9 {
		return Square{}, fmt.Errorf("%w: file in %q", ErrOutOfRange, text)
	}
	rank := text[1]
	if rank < 'a' || rank > 'i' {
		return Square{}, fmt.Errorf("%w: rank in %q", ErrOutOfRange, text)
	}
	return Square{X: 9 - file, Y: int('i' - rank)}, nil
}

func mustSquare(s Square) {
	if !s.Valid() {
		panic(fmt.Errorf("%w: (%d,%d)", ErrOutOfRange, s.X, s.Y))
	}
}

var kifFiles = []rune("１２３４５６７８９")
var kifRanks = []rune("一二三四五六七八九")

// kifSquare renders a square the way KIF move text does, e.g. "７六".
func kifSquare(s Square) string {
	return string([]rune{kifFiles[s.File()-1], kifRanks[rankNumber(s)-1]})
}

// rankNumber is the 1-based rank counted from Gote's side (a=1, i=9).
func rankNumber(s Square) int {
	return 9 - s.Y
}

// numericSquare renders "77" style coordinates used in KIF source markers.
func numericSquare(s Square) string {
	return fmt.Sprintf("%d%d", s.File(), rankNumber(s))
}
