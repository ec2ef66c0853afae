package overlay

import (
	"image/color"

	"github.com/park285/chess-analyzer/internal/board"
)

// HighlightCategory classifies a highlighted square.
type HighlightCategory uint8

const (
	AttackedByLastMove HighlightCategory = iota + 1
	ProtectedByLastMove
	AttackedByBestMove
)

func (c HighlightCategory) String() string {
	switch c {
	case AttackedByLastMove:
		return "attacked"
	case ProtectedByLastMove:
		return "protected"
	case AttackedByBestMove:
		return "best-attacked"
	default:
		return "none"
	}
}

type ArrowKind uint8

const (
	ArrowPersistent ArrowKind = iota
	ArrowTemporary
)

type Arrow struct {
	From  board.Square
	To    board.Square
	Color color.NRGBA
	Kind  ArrowKind
}

// MarkKind tells a Surface how to interpret a Mark.
type MarkKind uint8

const (
	MarkHighlight MarkKind = iota
	MarkArrow
	MarkTemporaryArrow
)

// Mark is one draw call against a Surface. Highlights use Square and
// Category; arrows use Arrow and Geometry.
type Mark struct {
	Square   board.Square
	Category HighlightCategory
	Arrow    Arrow
	Geometry ArrowGeometry
}

// Surface is the drawing layer the overlay renders onto. The overlay never
// owns it and always replays its full state after ClearMarks.
type Surface interface {
	AddPersistentMark(kind MarkKind, mark Mark)
	ClearMarks()
}

// Palette holds the arrow colours used by the overlay.
type Palette struct {
	PlayedMove color.NRGBA
	BestMove   color.NRGBA
	Protection color.NRGBA
	Drag       color.NRGBA
}

func DefaultPalette() Palette {
	return Palette{
		PlayedMove: color.NRGBA{R: 76, G: 175, B: 80, A: 204},
		BestMove:   color.NRGBA{R: 255, G: 152, B: 0, A: 204},
		Protection: color.NRGBA{R: 156, G: 39, B: 176, A: 153},
		Drag:       color.NRGBA{R: 255, G: 170, B: 0, A: 204},
	}
}

type nopSurface struct{}

func (nopSurface) AddPersistentMark(MarkKind, Mark) {}
func (nopSurface) ClearMarks()                      {}
