package influence

import (
	"math/bits"
	"strings"

	"github.com/park285/chess-analyzer/internal/board"
)

// SquareSet is a set of on-board squares, one bit per square.
type SquareSet uint64

func (s SquareSet) Add(sq board.Square) SquareSet {
	if !sq.Valid() {
		return s
	}
	return s | 1<<uint(sq)
}

func (s SquareSet) Has(sq board.Square) bool {
	return sq.Valid() && s&(1<<uint(sq)) != 0
}

func (s SquareSet) Len() int { return bits.OnesCount64(uint64(s)) }

func (s SquareSet) Empty() bool { return s == 0 }

func (s SquareSet) Union(o SquareSet) SquareSet { return s | o }

func (s SquareSet) Intersect(o SquareSet) SquareSet { return s & o }

// Squares lists members in ascending index order (a1, b1, ..., h8).
func (s SquareSet) Squares() []board.Square {
	out := make([]board.Square, 0, s.Len())
	for v := uint64(s); v != 0; v &= v - 1 {
		out = append(out, board.Square(bits.TrailingZeros64(v)))
	}
	return out
}

func (s SquareSet) Strings() []string {
	sqs := s.Squares()
	out := make([]string, len(sqs))
	for i, sq := range sqs {
		out[i] = sq.String()
	}
	return out
}

func (s SquareSet) String() string {
	return "{" + strings.Join(s.Strings(), ",") + "}"
}

// SetOf builds a set from algebraic names, skipping anything malformed.
func SetOf(names ...string) SquareSet {
	var s SquareSet
	for _, n := range names {
		if sq, err := board.ParseSquare(n); err == nil {
			s = s.Add(sq)
		}
	}
	return s
}
