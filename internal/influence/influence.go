// Package influence computes which squares a piece covers on a board
// snapshot. Coverage is geometric: turn, pins and check are ignored.
package influence

import (
	"fmt"

	"github.com/park285/chess-analyzer/internal/board"
)

type offset struct{ df, dr int }

var (
	knightOffsets = []offset{
		{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2},
		{1, -2}, {1, 2}, {2, -1}, {2, 1},
	}
	diagonals   = []offset{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	orthogonals = []offset{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}
	allAround   = append(append([]offset{}, orthogonals...), diagonals...)
)

// Reach returns every square the piece's movement pattern touches before the
// friend/foe filter: step targets for pawn, knight and king, and for sliders
// each ray up to and including its first occupied square.
func Reach(b board.Snapshot, from board.Square, kind board.PieceKind, color board.Color) (SquareSet, error) {
	if !from.Valid() {
		return 0, fmt.Errorf("%w: %s", board.ErrInvalidSquare, from)
	}
	var set SquareSet
	switch kind {
	case board.Pawn:
		forward := 1
		if color == board.Black {
			forward = -1
		}
		set = steps(set, from, []offset{{-1, forward}, {1, forward}})
	case board.Knight:
		set = steps(set, from, knightOffsets)
	case board.Bishop:
		set = rays(set, b, from, diagonals)
	case board.Rook:
		set = rays(set, b, from, orthogonals)
	case board.Queen:
		set = rays(set, b, from, allAround)
	case board.King:
		set = steps(set, from, allAround)
	default:
		// unknown kinds from upstream data cover nothing
		return 0, nil
	}
	return set, nil
}

// Attacked returns the reached squares that are empty or hold an enemy piece.
func Attacked(b board.Snapshot, from board.Square, kind board.PieceKind, color board.Color) (SquareSet, error) {
	reach, err := Reach(b, from, kind, color)
	if err != nil {
		return 0, err
	}
	var out SquareSet
	for _, sq := range reach.Squares() {
		if canAttack(b, sq, color) {
			out = out.Add(sq)
		}
	}
	return out, nil
}

// Protected returns the reached squares that hold a friendly piece.
func Protected(b board.Snapshot, from board.Square, kind board.PieceKind, color board.Color) (SquareSet, error) {
	reach, err := Reach(b, from, kind, color)
	if err != nil {
		return 0, err
	}
	var out SquareSet
	for _, sq := range reach.Squares() {
		if p, ok := get(b, sq); ok && p.Color == color {
			out = out.Add(sq)
		}
	}
	return out, nil
}

func canAttack(b board.Snapshot, sq board.Square, color board.Color) bool {
	p, ok := get(b, sq)
	return !ok || p.Color != color
}

func get(b board.Snapshot, sq board.Square) (board.Piece, bool) {
	if b == nil {
		return board.Piece{}, false
	}
	return b.Get(sq)
}

func steps(set SquareSet, from board.Square, offs []offset) SquareSet {
	for _, o := range offs {
		if to, ok := from.Offset(o.df, o.dr); ok {
			set = set.Add(to)
		}
	}
	return set
}

func rays(set SquareSet, b board.Snapshot, from board.Square, dirs []offset) SquareSet {
	for _, d := range dirs {
		cur := from
		for {
			next, ok := cur.Offset(d.df, d.dr)
			if !ok {
				break
			}
			set = set.Add(next)
			if _, occupied := get(b, next); occupied {
				break
			}
			cur = next
		}
	}
	return set
}
