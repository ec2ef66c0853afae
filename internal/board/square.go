// Package board holds the square, piece and snapshot types shared by the
// influence calculator and the annotation overlay, plus the coordinate
// transforms between algebraic notation, grid indices and screen pixels.
package board

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSquare reports malformed algebraic notation or an off-board square.
	ErrInvalidSquare = errors.New("invalid square")
	// ErrOutOfBounds reports file or rank indices outside 0..7.
	ErrOutOfBounds = errors.New("square index out of bounds")
)

// Square is one of the 64 board positions, indexed rank*8+file (a1=0, h8=63).
type Square uint8

// NoSquare is the sentinel for "no square"; it is never Valid.
const NoSquare Square = 64

const gridSize = 8

// File returns the 0-based file index (a=0).
func (s Square) File() int { return int(s) % gridSize }

// Rank returns the 0-based rank index (rank 1 = 0).
func (s Square) Rank() int { return int(s) / gridSize }

func (s Square) Valid() bool { return s < NoSquare }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

// Offset returns the square shifted by df files and dr ranks.
// ok is false when the result falls off the board.
func (s Square) Offset(df, dr int) (Square, bool) {
	f, r := s.File()+df, s.Rank()+dr
	if !inGrid(f) || !inGrid(r) {
		return NoSquare, false
	}
	return Square(r*gridSize + f), true
}

// ToIndices parses two-character algebraic notation into file and rank indices.
func ToIndices(notation string) (file, rank int, err error) {
	if len(notation) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSquare, notation)
	}
	letter, digit := notation[0], notation[1]
	if letter < 'a' || letter > 'h' || digit < '1' || digit > '8' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSquare, notation)
	}
	return int(letter - 'a'), int(digit - '1'), nil
}

// ToNotation builds a square from file and rank indices.
func ToNotation(file, rank int) (Square, error) {
	if !inGrid(file) || !inGrid(rank) {
		return NoSquare, fmt.Errorf("%w: file=%d rank=%d", ErrOutOfBounds, file, rank)
	}
	return Square(rank*gridSize + file), nil
}

// ParseSquare parses algebraic notation such as "e4".
func ParseSquare(notation string) (Square, error) {
	file, rank, err := ToIndices(notation)
	if err != nil {
		return NoSquare, err
	}
	return Square(rank*gridSize + file), nil
}

// MustSquare is ParseSquare for literals known to be valid; it panics otherwise.
func MustSquare(notation string) Square {
	sq, err := ParseSquare(notation)
	if err != nil {
		panic(err)
	}
	return sq
}

// PixelCenter maps a square to the centre of its cell on a board of edge
// boardSize pixels, with rank 8 drawn at the top.
func PixelCenter(sq Square, boardSize float64) (x, y float64) {
	cell := boardSize / gridSize
	x = (float64(sq.File()) + 0.5) * cell
	y = (float64(gridSize-1-sq.Rank()) + 0.5) * cell
	return x, y
}

// SquareAt hit-tests a pixel position against the board. Positions outside
// the board report ok=false.
func SquareAt(x, y, boardSize float64) (Square, bool) {
	if boardSize <= 0 || x < 0 || y < 0 || x >= boardSize || y >= boardSize {
		return NoSquare, false
	}
	cell := boardSize / gridSize
	file := int(x / cell)
	rank := gridSize - 1 - int(y/cell)
	sq, err := ToNotation(file, rank)
	if err != nil {
		return NoSquare, false
	}
	return sq, true
}

func inGrid(i int) bool { return i >= 0 && i < gridSize }
