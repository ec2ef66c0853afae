package board

import "strings"

// PieceKind is the closed set of chess piece kinds.
type PieceKind uint8

const (
	NoKind PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

func (k PieceKind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// Letter returns the lowercase SAN/FEN letter for the kind.
func (k PieceKind) Letter() string {
	switch k {
	case Pawn:
		return "p"
	case Knight:
		return "n"
	case Bishop:
		return "b"
	case Rook:
		return "r"
	case Queen:
		return "q"
	case King:
		return "k"
	default:
		return ""
	}
}

// ParsePieceKind accepts single letters ("n") or names ("knight"), any case.
func ParsePieceKind(s string) (PieceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p", "pawn":
		return Pawn, true
	case "n", "knight":
		return Knight, true
	case "b", "bishop":
		return Bishop, true
	case "r", "rook":
		return Rook, true
	case "q", "queen":
		return Queen, true
	case "k", "king":
		return King, true
	default:
		return NoKind, false
	}
}

// Color is the side a piece belongs to.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// ParseColor accepts "w"/"white" and "b"/"black".
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return White, true
	case "b", "black":
		return Black, true
	default:
		return White, false
	}
}

// Piece is a kind with its owner.
type Piece struct {
	Kind  PieceKind
	Color Color
}

func (p Piece) String() string {
	l := p.Kind.Letter()
	if p.Color == White {
		return strings.ToUpper(l)
	}
	return l
}
