// Package overlay turns influence sets and engine suggestions into square
// highlights and arrows, and runs the pointer state machine for arrows the
// user draws by hand.
package overlay

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/influence"
	"go.uber.org/zap"
)

const defaultBoardSize = 480.0

// MoveRef is a from/to pair; promotion and legality are not its concern.
type MoveRef struct {
	From board.Square
	To   board.Square
}

// AnalysisInput carries everything ApplyAnalysis needs. Board is the
// position after LastMove, which is also the position BestMove is played from.
type AnalysisInput struct {
	Board      board.Snapshot
	SideToMove board.Color
	LastMove   *MoveRef
	BestMove   *MoveRef
}

// DragState is idle unless Dragging is set.
type DragState struct {
	Dragging bool
	Start    board.Square
}

type Option func(*Overlay)

func WithBoardSize(px float64) Option {
	return func(o *Overlay) {
		if px > 0 {
			o.boardSize = px
		}
	}
}

func WithPalette(p Palette) Option {
	return func(o *Overlay) { o.palette = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Overlay) {
		if l != nil {
			o.logger = l
		}
	}
}

// Overlay owns the annotation state of one board. It is not safe for
// concurrent use; a single event loop drives it.
type Overlay struct {
	surface   Surface
	boardSize float64
	palette   Palette
	logger    *zap.Logger

	highlights map[board.Square]HighlightCategory
	arrows     []Arrow
	temp       *Arrow
	drag       DragState
}

func New(surface Surface, opts ...Option) *Overlay {
	if surface == nil {
		surface = nopSurface{}
	}
	o := &Overlay{
		surface:    surface,
		boardSize:  defaultBoardSize,
		palette:    DefaultPalette(),
		logger:     zap.NewNop(),
		highlights: make(map[board.Square]HighlightCategory),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Overlay) BoardSize() float64 { return o.boardSize }

// SetBoardSize rescales pointer hit-testing and arrow geometry, then redraws.
func (o *Overlay) SetBoardSize(px float64) {
	if px <= 0 {
		return
	}
	o.boardSize = px
	o.redraw()
}

// ApplyAnalysis discards all highlights and persistent arrows and rebuilds
// them from in. An in-progress drag is left alone.
func (o *Overlay) ApplyAnalysis(in AnalysisInput) error {
	if err := validateMove(in.LastMove); err != nil {
		return fmt.Errorf("last move: %w", err)
	}
	if err := validateMove(in.BestMove); err != nil {
		return fmt.Errorf("best move: %w", err)
	}

	o.highlights = make(map[board.Square]HighlightCategory)
	o.arrows = nil

	if mv := in.LastMove; mv != nil {
		o.addArrow(mv.From, mv.To, o.palette.PlayedMove)
		if piece, ok := get(in.Board, mv.To); ok {
			attacked, err := influence.Attacked(in.Board, mv.To, piece.Kind, piece.Color)
			if err != nil {
				return err
			}
			protected, err := influence.Protected(in.Board, mv.To, piece.Kind, piece.Color)
			if err != nil {
				return err
			}
			o.highlight(attacked, AttackedByLastMove)
			o.highlight(protected, ProtectedByLastMove)
		}
	}

	if mv := in.BestMove; mv != nil {
		o.addArrow(mv.From, mv.To, o.palette.BestMove)
		if piece, ok := get(in.Board, mv.From); ok {
			// evaluate the suggestion from its destination with the origin vacated
			after := board.Copy(in.Board).Move(mv.From, mv.To)
			attacked, err := influence.Attacked(after, mv.To, piece.Kind, piece.Color)
			if err != nil {
				return err
			}
			protected, err := influence.Protected(after, mv.To, piece.Kind, piece.Color)
			if err != nil {
				return err
			}
			o.highlight(attacked, AttackedByBestMove)
			for _, sq := range protected.Squares() {
				o.addArrow(mv.To, sq, o.palette.Protection)
			}
		}
	}

	o.logger.Debug("overlay_apply_analysis",
		zap.Int("highlights", len(o.highlights)),
		zap.Int("arrows", len(o.arrows)),
	)
	o.redraw()
	return nil
}

// Clear removes every highlight and persistent arrow.
func (o *Overlay) Clear() {
	o.highlights = make(map[board.Square]HighlightCategory)
	o.arrows = nil
	o.redraw()
}

// AddArrow appends a persistent arrow. Same-square arrows are ignored.
func (o *Overlay) AddArrow(from, to board.Square) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %s-%s", board.ErrInvalidSquare, from, to)
	}
	if o.addArrow(from, to, o.palette.Drag) {
		o.redraw()
	}
	return nil
}

func (o *Overlay) PointerDown(x, y float64) {
	sq, ok := board.SquareAt(x, y, o.boardSize)
	if !ok {
		return
	}
	if o.temp != nil {
		o.temp = nil
		o.redraw()
	}
	o.drag = DragState{Dragging: true, Start: sq}
}

func (o *Overlay) PointerMove(x, y float64) {
	if !o.drag.Dragging {
		return
	}
	sq, ok := board.SquareAt(x, y, o.boardSize)
	if !ok {
		return
	}
	if sq == o.drag.Start {
		if o.temp != nil {
			o.temp = nil
			o.redraw()
		}
		return
	}
	if o.temp != nil && o.temp.To == sq {
		return
	}
	o.temp = &Arrow{From: o.drag.Start, To: sq, Color: o.palette.Drag, Kind: ArrowTemporary}
	o.redraw()
}

func (o *Overlay) PointerUp(x, y float64) {
	if !o.drag.Dragging {
		return
	}
	start := o.drag.Start
	o.drag = DragState{}
	o.temp = nil

	if sq, ok := board.SquareAt(x, y, o.boardSize); ok && sq != start {
		o.addArrow(start, sq, o.palette.Drag)
		o.logger.Debug("overlay_user_arrow", zap.Stringer("from", start), zap.Stringer("to", sq))
	}
	o.redraw()
}

func (o *Overlay) Drag() DragState { return o.drag }

// Arrows returns a copy of the persistent arrows in insertion order.
func (o *Overlay) Arrows() []Arrow {
	return append([]Arrow(nil), o.arrows...)
}

// Temporary returns the in-progress drag arrow, if any.
func (o *Overlay) Temporary() (Arrow, bool) {
	if o.temp == nil {
		return Arrow{}, false
	}
	return *o.temp, true
}

func (o *Overlay) Highlights() map[board.Square]HighlightCategory {
	out := make(map[board.Square]HighlightCategory, len(o.highlights))
	for sq, c := range o.highlights {
		out[sq] = c
	}
	return out
}

func (o *Overlay) addArrow(from, to board.Square, clr color.NRGBA) bool {
	if from == to {
		return false
	}
	o.arrows = append(o.arrows, Arrow{From: from, To: to, Color: clr, Kind: ArrowPersistent})
	return true
}

func (o *Overlay) highlight(set influence.SquareSet, cat HighlightCategory) {
	for _, sq := range set.Squares() {
		o.highlights[sq] = cat
	}
}

// redraw replays highlights, persistent arrows and the temporary arrow.
func (o *Overlay) redraw() {
	o.surface.ClearMarks()

	squares := make([]board.Square, 0, len(o.highlights))
	for sq := range o.highlights {
		squares = append(squares, sq)
	}
	sort.Slice(squares, func(i, j int) bool { return squares[i] < squares[j] })
	for _, sq := range squares {
		o.surface.AddPersistentMark(MarkHighlight, Mark{Square: sq, Category: o.highlights[sq]})
	}
	for _, a := range o.arrows {
		o.surface.AddPersistentMark(MarkArrow, Mark{Arrow: a, Geometry: ComputeArrow(a.From, a.To, o.boardSize)})
	}
	if o.temp != nil {
		a := *o.temp
		o.surface.AddPersistentMark(MarkTemporaryArrow, Mark{Arrow: a, Geometry: ComputeArrow(a.From, a.To, o.boardSize)})
	}
}

func validateMove(mv *MoveRef) error {
	if mv == nil {
		return nil
	}
	if !mv.From.Valid() || !mv.To.Valid() {
		return fmt.Errorf("%w: %s-%s", board.ErrInvalidSquare, mv.From, mv.To)
	}
	return nil
}

func get(b board.Snapshot, sq board.Square) (board.Piece, bool) {
	if b == nil {
		return board.Piece{}, false
	}
	return b.Get(sq)
}
