package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/chess-analyzer/internal/board"
)

var ErrInvalidMove = errors.New("invalid move")

// Move is a coordinate move as engines speak it. Promotion is NoKind unless
// the move promotes.
type Move struct {
	From      board.Square
	To        board.Square
	Promotion board.PieceKind
}

func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != board.NoKind {
		s += m.Promotion.Letter()
	}
	return s
}

// ParseUCIMove parses "e2e4" or "e7e8q".
func ParseUCIMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, s)
	}
	from, err := board.ParseSquare(s[0:2])
	if err != nil {
		return Move{}, fmt.Errorf("%w %q: %w", ErrInvalidMove, s, err)
	}
	to, err := board.ParseSquare(s[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("%w %q: %w", ErrInvalidMove, s, err)
	}
	if from == to {
		return Move{}, fmt.Errorf("%w: %q does not move", ErrInvalidMove, s)
	}
	mv := Move{From: from, To: to}
	if len(s) == 5 {
		kind, ok := board.ParsePieceKind(s[4:])
		switch {
		case !ok, kind == board.Pawn, kind == board.King:
			return Move{}, fmt.Errorf("%w: bad promotion in %q", ErrInvalidMove, s)
		}
		mv.Promotion = kind
	}
	return mv, nil
}
