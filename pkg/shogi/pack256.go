package shogi

import (
	"errors"
	"fmt"
)

// Packed256 is a 256-bit position encoding. It only exists for positions
// holding the complete 40-piece set with both kings on the board, which is
// every position reachable from the standard setup.
type Packed256 struct {
	Words [4]uint64
}

var errNotPackable = errors.New("position not packable")

type bitWriter256 struct {
	words [4]uint64
	pos   int
}

type bitReader256 struct {
	words [4]uint64
	pos   int
}

type codeSpec struct {
	kind    Kind
	bits    uint64
	bitLen  int
	isEmpty bool
}

type codeBook struct {
	byLen  map[int]map[uint64]codeSpec
	byKind map[Kind]codeSpec
	maxLen int
}

// Huffman-style prefix codes; square codes are one bit longer than hand
// codes because the empty square takes the single-bit code.
var boardCodeBook = buildCodeBook([]codeSpec{
	{kind: Empty, bits: 0b0, bitLen: 1, isEmpty: true},
	{kind: Pawn, bits: 0b01, bitLen: 2},
	{kind: Lance, bits: 0b0011, bitLen: 4},
	{kind: Knight, bits: 0b1011, bitLen: 4},
	{kind: Silver, bits: 0b0111, bitLen: 4},
	{kind: Gold, bits: 0b01111, bitLen: 5},
	{kind: Bishop, bits: 0b011111, bitLen: 6},
	{kind: Rook, bits: 0b111111, bitLen: 6},
})

var handCodeBook = buildCodeBook([]codeSpec{
	{kind: Pawn, bits: 0b0, bitLen: 1},
	{kind: Lance, bits: 0b001, bitLen: 3},
	{kind: Knight, bits: 0b101, bitLen: 3},
	{kind: Silver, bits: 0b011, bitLen: 3},
	{kind: Gold, bits: 0b0111, bitLen: 4},
	{kind: Bishop, bits: 0b01111, bitLen: 5},
	{kind: Rook, bits: 0b11111, bitLen: 5},
})

// Pack256 encodes b with turn as the side to move.
func (b *Board) Pack256(turn Allegiance) (Packed256, error) {
	w := &bitWriter256{}
	if err := w.writeSide(turn); err != nil {
		return Packed256{}, err
	}
	senteKing, ok := b.KingSquare(Sente)
	if !ok {
		return Packed256{}, fmt.Errorf("%w: missing sente king", errNotPackable)
	}
	goteKing, ok := b.KingSquare(Gote)
	if !ok {
		return Packed256{}, fmt.Errorf("%w: missing gote king", errNotPackable)
	}
	if err := w.writeBits(uint64(squareIndex(senteKing)), 7); err != nil {
		return Packed256{}, err
	}
	if err := w.writeBits(uint64(squareIndex(goteKing)), 7); err != nil {
		return Packed256{}, err
	}

	for idx := 0; idx < 81; idx++ {
		s := indexSquare(idx)
		if s == senteKing || s == goteKing {
			continue
		}
		c := b.cells.at(s)
		if c.kind == Empty {
			if err := w.writeCode(boardCodeBook, Empty); err != nil {
				return Packed256{}, err
			}
			continue
		}
		if c.kind == King || c.side == Neutral {
			return Packed256{}, fmt.Errorf("%w: unexpected %s at %s", errNotPackable, c.kind, s)
		}
		base := c.kind.Demote()
		if err := w.writeCode(boardCodeBook, base); err != nil {
			return Packed256{}, err
		}
		if err := w.writeSide(c.side); err != nil {
			return Packed256{}, err
		}
		if base.Promotable() {
			if err := w.writeBool(c.kind.IsPromoted()); err != nil {
				return Packed256{}, err
			}
		}
	}

	for _, side := range []Allegiance{Sente, Gote} {
		for _, kind := range []Kind{Pawn, Lance, Knight, Silver, Gold, Bishop, Rook} {
			for i := b.ReserveCount(side, kind); i > 0; i-- {
				if err := w.writeCode(handCodeBook, kind); err != nil {
					return Packed256{}, err
				}
				if err := w.writeSide(side); err != nil {
					return Packed256{}, err
				}
				if kind.Promotable() {
					if err := w.writeBool(false); err != nil {
						return Packed256{}, err
					}
				}
			}
		}
	}

	if w.pos != 256 {
		return Packed256{}, fmt.Errorf("%w: packed length is %d bits", errNotPackable, w.pos)
	}
	return Packed256{Words: w.words}, nil
}

// Unpack256 decodes a packed position into a fresh board and side to move.
func Unpack256(p Packed256) (*Board, Allegiance, error) {
	r := &bitReader256{words: p.Words}
	turn, err := r.readSide()
	if err != nil {
		return nil, Sente, err
	}
	senteKing, err := r.readBits(7)
	if err != nil {
		return nil, Sente, err
	}
	goteKing, err := r.readBits(7)
	if err != nil {
		return nil, Sente, err
	}
	if senteKing == goteKing || senteKing >= 81 || goteKing >= 81 {
		return nil, Sente, fmt.Errorf("invalid king squares %d/%d", senteKing, goteKing)
	}

	b := NewBoard()
	b.cells.set(indexSquare(int(senteKing)), cell{kind: King, side: Sente})
	b.cells.set(indexSquare(int(goteKing)), cell{kind: King, side: Gote})

	for idx := 0; idx < 81; idx++ {
		if idx == int(senteKing) || idx == int(goteKing) {
			continue
		}
		code, err := r.readCode(boardCodeBook)
		if err != nil {
			return nil, Sente, err
		}
		if code.isEmpty {
			continue
		}
		side, err := r.readSide()
		if err != nil {
			return nil, Sente, err
		}
		kind := code.kind
		if kind.Promotable() {
			promoted, err := r.readBool()
			if err != nil {
				return nil, Sente, err
			}
			if promoted {
				kind = kind.Promote()
			}
		}
		b.cells.set(indexSquare(idx), cell{kind: kind, side: side})
	}

	for r.pos < 256 {
		code, err := r.readCode(handCodeBook)
		if err != nil {
			return nil, Sente, err
		}
		side, err := r.readSide()
		if err != nil {
			return nil, Sente, err
		}
		if code.kind.Promotable() {
			promoted, err := r.readBool()
			if err != nil {
				return nil, Sente, err
			}
			if promoted {
				return nil, Sente, fmt.Errorf("promoted %s in hand", code.kind)
			}
		}
		b.addReserve(side, code.kind)
	}
	return b, turn, nil
}

func squareIndex(s Square) int {
	return s.Y*9 + s.X
}

func indexSquare(idx int) Square {
	return Sq(idx%9, idx/9)
}

func buildCodeBook(codes []codeSpec) codeBook {
	book := codeBook{byLen: map[int]map[uint64]codeSpec{}, byKind: map[Kind]codeSpec{}}
	for _, code := range codes {
		if book.byLen[code.bitLen] == nil {
			book.byLen[code.bitLen] = map[uint64]codeSpec{}
		}
		book.byLen[code.bitLen][code.bits] = code
		book.byKind[code.kind] = code
		if code.bitLen > book.maxLen {
			book.maxLen = code.bitLen
		}
	}
	return book
}

func (w *bitWriter256) writeBit(bit uint64) error {
	if w.pos >= 256 {
		return fmt.Errorf("%w: bitstream overflow", errNotPackable)
	}
	if bit != 0 {
		w.words[w.pos/64] |= 1 << uint(w.pos%64)
	}
	w.pos++
	return nil
}

func (w *bitWriter256) writeBits(value uint64, bitLen int) error {
	for i := 0; i < bitLen; i++ {
		if err := w.writeBit((value >> i) & 1); err != nil {
			return err
		}
	}
	return nil
}

func (w *bitWriter256) writeBool(v bool) error {
	if v {
		return w.writeBit(1)
	}
	return w.writeBit(0)
}

func (w *bitWriter256) writeCode(book codeBook, kind Kind) error {
	code, ok := book.byKind[kind]
	if !ok {
		return fmt.Errorf("%w: no code for %s", errNotPackable, kind)
	}
	return w.writeBits(code.bits, code.bitLen)
}

func (w *bitWriter256) writeSide(side Allegiance) error {
	return w.writeBool(side == Gote)
}

func (r *bitReader256) readBit() (uint64, error) {
	if r.pos >= 256 {
		return 0, errors.New("bitstream underflow")
	}
	bit := (r.words[r.pos/64] >> uint(r.pos%64)) & 1
	r.pos++
	return bit, nil
}

func (r *bitReader256) readBits(bitLen int) (uint64, error) {
	var value uint64
	for i := 0; i < bitLen; i++ {
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		value |= bit << i
	}
	return value, nil
}

func (r *bitReader256) readBool() (bool, error) {
	bit, err := r.readBit()
	return bit == 1, err
}

func (r *bitReader256) readCode(book codeBook) (codeSpec, error) {
	var value uint64
	for length := 1; length <= book.maxLen; length++ {
		bit, err := r.readBit()
		if err != nil {
			return codeSpec{}, err
		}
		value |= bit << (length - 1)
		if entry, ok := book.byLen[length][value]; ok {
			return entry, nil
		}
	}
	return codeSpec{}, errors.New("invalid code")
}

func (r *bitReader256) readSide() (Allegiance, error) {
	gote, err := r.readBool()
	if gote {
		return Gote, err
	}
	return Sente, err
}
