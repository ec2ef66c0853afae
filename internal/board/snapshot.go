package board

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ErrInvalidFEN reports a position string the rules engine rejected.
var ErrInvalidFEN = errors.New("invalid FEN")

// Snapshot is a read-only view of board occupancy at one instant.
type Snapshot interface {
	Get(sq Square) (Piece, bool)
}

type cell struct {
	piece    Piece
	occupied bool
}

// Placement is an immutable Snapshot value. The zero value is an empty board.
type Placement struct {
	cells [64]cell
}

func (p Placement) Get(sq Square) (Piece, bool) {
	if !sq.Valid() {
		return Piece{}, false
	}
	c := p.cells[sq]
	return c.piece, c.occupied
}

// With returns a copy with piece placed on sq.
func (p Placement) With(sq Square, piece Piece) Placement {
	if sq.Valid() {
		p.cells[sq] = cell{piece: piece, occupied: true}
	}
	return p
}

// Without returns a copy with sq emptied.
func (p Placement) Without(sq Square) Placement {
	if sq.Valid() {
		p.cells[sq] = cell{}
	}
	return p
}

// Move returns a copy with the piece on from relocated to to. An empty from
// leaves the placement unchanged.
func (p Placement) Move(from, to Square) Placement {
	piece, ok := p.Get(from)
	if !ok {
		return p
	}
	return p.Without(from).With(to, piece)
}

// Copy materialises any snapshot into a Placement.
func Copy(s Snapshot) Placement {
	if pl, ok := s.(Placement); ok {
		return pl
	}
	var out Placement
	if s == nil {
		return out
	}
	for sq := Square(0); sq < NoSquare; sq++ {
		if piece, ok := s.Get(sq); ok {
			out.cells[sq] = cell{piece: piece, occupied: true}
		}
	}
	return out
}

// FromBoard converts the rules engine's board into a Placement.
func FromBoard(b *nchess.Board) Placement {
	var out Placement
	if b == nil {
		return out
	}
	for sq, piece := range b.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		kind := kindFromChess(piece.Type())
		if kind == NoKind {
			continue
		}
		target := FromChessSquare(sq)
		if !target.Valid() {
			continue
		}
		out.cells[target] = cell{piece: Piece{Kind: kind, Color: colorFromChess(piece.Color())}, occupied: true}
	}
	return out
}

// FromFEN parses a FEN string with the rules engine and returns the
// placement together with the side to move.
func FromFEN(fen string) (Placement, Color, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		game := nchess.NewGame()
		pos := game.Position()
		return FromBoard(pos.Board()), colorFromChess(pos.Turn()), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return Placement{}, White, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	game := nchess.NewGame(opt)
	pos := game.Position()
	return FromBoard(pos.Board()), colorFromChess(pos.Turn()), nil
}

// FromChessSquare converts a rules-engine square.
func FromChessSquare(sq nchess.Square) Square {
	out, err := ToNotation(int(sq.File()), int(sq.Rank()))
	if err != nil {
		return NoSquare
	}
	return out
}

// ToChessSquare converts back to the rules-engine square.
func ToChessSquare(sq Square) nchess.Square {
	return nchess.NewSquare(nchess.File(sq.File()), nchess.Rank(sq.Rank()))
}

// ColorFromChess converts the rules-engine colour; NoColor maps to White.
func ColorFromChess(c nchess.Color) Color { return colorFromChess(c) }

func colorFromChess(c nchess.Color) Color {
	if c == nchess.Black {
		return Black
	}
	return White
}

// KindFromChess converts the rules-engine piece type.
func KindFromChess(t nchess.PieceType) PieceKind { return kindFromChess(t) }

func kindFromChess(t nchess.PieceType) PieceKind {
	switch t {
	case nchess.Pawn:
		return Pawn
	case nchess.Knight:
		return Knight
	case nchess.Bishop:
		return Bishop
	case nchess.Rook:
		return Rook
	case nchess.Queen:
		return Queen
	case nchess.King:
		return King
	default:
		return NoKind
	}
}

// PositionKey reduces a FEN to its placement, side, castling and en-passant
// fields so the same position reached by different move orders compares equal.
func PositionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}
