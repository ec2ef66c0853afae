// Package render rasterises a position together with the overlay marks
// recorded on a Canvas.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/overlay"
	"golang.org/x/image/font/basicfont"
)

const (
	DefaultSize = 480
	MinSize     = 64

	// geometry is laid out on this board edge and scaled to the output size
	referenceSize = 480.0
)

var (
	lightSquare     = color.NRGBA{R: 233, G: 207, B: 163, A: 255}
	darkSquare      = color.NRGBA{R: 187, G: 136, B: 96, A: 255}
	coordLightColor = color.NRGBA{R: 187, G: 136, B: 96, A: 255}
	coordDarkColor  = color.NRGBA{R: 233, G: 207, B: 163, A: 255}
)

// HighlightPalette maps highlight categories to square fills.
type HighlightPalette map[overlay.HighlightCategory]color.NRGBA

func DefaultHighlights() HighlightPalette {
	return HighlightPalette{
		overlay.AttackedByLastMove:  {R: 255, G: 0, B: 0, A: 77},
		overlay.ProtectedByLastMove: {R: 0, G: 0, B: 255, A: 77},
		overlay.AttackedByBestMove:  {R: 255, G: 255, B: 0, A: 102},
	}
}

type Options struct {
	Size        int
	Flip        bool // black at the bottom
	Coordinates bool
	Highlights  HighlightPalette
}

// Canvas records overlay marks and draws them over a position on demand.
// It is safe for concurrent use.
type Canvas struct {
	mu         sync.Mutex
	highlights []overlay.Mark
	arrows     []overlay.Arrow
	temp       *overlay.Arrow
}

func NewCanvas() *Canvas { return &Canvas{} }

func (c *Canvas) AddPersistentMark(kind overlay.MarkKind, mark overlay.Mark) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case overlay.MarkHighlight:
		c.highlights = append(c.highlights, mark)
	case overlay.MarkArrow:
		c.arrows = append(c.arrows, mark.Arrow)
	case overlay.MarkTemporaryArrow:
		a := mark.Arrow
		c.temp = &a
	}
}

func (c *Canvas) ClearMarks() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.highlights = nil
	c.arrows = nil
	c.temp = nil
}

// Counts reports the recorded highlights and arrows, the temporary arrow
// included.
func (c *Canvas) Counts() (highlights, arrows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	arrows = len(c.arrows)
	if c.temp != nil {
		arrows++
	}
	return len(c.highlights), arrows
}

// RenderPNG draws the position and the recorded marks and encodes a PNG.
func (c *Canvas) RenderPNG(ctx context.Context, snap board.Snapshot, opts Options) ([]byte, error) {
	img, err := c.Render(ctx, snap, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Canvas) Render(ctx context.Context, snap board.Snapshot, opts Options) (image.Image, error) {
	if snap == nil {
		return nil, fmt.Errorf("render: nil position")
	}
	if opts.Size == 0 {
		opts.Size = DefaultSize
	}
	if opts.Size < MinSize {
		return nil, fmt.Errorf("render: board size %d below %d", opts.Size, MinSize)
	}
	if opts.Highlights == nil {
		opts.Highlights = DefaultHighlights()
	}

	c.mu.Lock()
	highlights := append([]overlay.Mark(nil), c.highlights...)
	arrows := append([]overlay.Arrow(nil), c.arrows...)
	if c.temp != nil {
		arrows = append(arrows, *c.temp)
	}
	c.mu.Unlock()

	v := view{size: opts.Size, flip: opts.Flip}
	dc := gg.NewContext(opts.Size, opts.Size)

	drawSquares(dc, v)
	for _, m := range highlights {
		clr, ok := opts.Highlights[m.Category]
		if !ok {
			continue
		}
		x, y, cell := v.cell(m.Square)
		dc.SetColor(clr)
		dc.DrawRectangle(x, y, cell, cell)
		dc.Fill()
	}
	if opts.Coordinates {
		drawCoordinates(dc, v)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := drawPieces(dc, snap, v); err != nil {
		return nil, err
	}
	for _, a := range arrows {
		drawArrow(dc, a, v)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return dc.Image(), nil
}

// view maps squares to output pixels for one size and orientation.
type view struct {
	size int
	flip bool
}

func (v view) orient(sq board.Square) board.Square {
	if v.flip {
		return board.Square(63 - int(sq))
	}
	return sq
}

// cell returns the top-left corner and edge of a square's cell.
func (v view) cell(sq board.Square) (x, y, edge float64) {
	edge = float64(v.size) / 8
	sq = v.orient(sq)
	return float64(sq.File()) * edge, float64(7-sq.Rank()) * edge, edge
}

func (v view) scale() float64 { return float64(v.size) / referenceSize }

func drawSquares(dc *gg.Context, v view) {
	for i := 0; i < 64; i++ {
		sq := board.Square(i)
		x, y, edge := v.cell(sq)
		dc.SetColor(squareColor(sq))
		dc.DrawRectangle(x, y, edge, edge)
		dc.Fill()
	}
}

func drawPieces(dc *gg.Context, snap board.Snapshot, v view) error {
	edge := v.size / 8
	for i := 0; i < 64; i++ {
		sq := board.Square(i)
		piece, ok := snap.Get(sq)
		if !ok {
			continue
		}
		img, err := pieceImage(piece, edge)
		if err != nil {
			return err
		}
		x, y, _ := v.cell(sq)
		dc.DrawImage(img, int(x), int(y))
	}
	return nil
}

func drawArrow(dc *gg.Context, a overlay.Arrow, v view) {
	if a.From == a.To || !a.From.Valid() || !a.To.Valid() {
		return
	}
	g := overlay.ComputeArrow(v.orient(a.From), v.orient(a.To), referenceSize)
	k := v.scale()
	pt := func(p overlay.Point) (float64, float64) { return p.X * k, p.Y * k }

	dc.SetColor(a.Color)
	dc.SetLineWidth(float64(v.size) / 8 * 0.16)
	dc.SetLineCapButt()
	x0, y0 := pt(g.ShaftStart)
	x1, y1 := pt(g.ShaftEnd)
	dc.DrawLine(x0, y0, x1, y1)
	dc.Stroke()

	dc.MoveTo(pt(g.Head[0]))
	dc.LineTo(pt(g.Head[1]))
	dc.LineTo(pt(g.Head[2]))
	dc.ClosePath()
	dc.Fill()
}

// drawCoordinates labels ranks along the left edge and files along the
// bottom edge of the displayed board.
func drawCoordinates(dc *gg.Context, v view) {
	dc.SetFontFace(basicfont.Face7x13)
	edge := float64(v.size) / 8
	for i := 0; i < 8; i++ {
		// display row/column i from the top-left
		rankSq := v.orient(board.Square((7-i)*8))
		x, y, _ := v.cell(rankSq)
		dc.SetColor(coordColor(rankSq))
		dc.DrawStringAnchored(fmt.Sprint(rankSq.Rank()+1), x+3, y+3, 0, 1)

		fileSq := v.orient(board.Square(i))
		x, y, _ = v.cell(fileSq)
		dc.SetColor(coordColor(fileSq))
		dc.DrawStringAnchored(string(rune('a'+fileSq.File())), x+edge-3, y+edge-3, 1, 0)
	}
}

func squareColor(sq board.Square) color.Color {
	if (sq.File()+sq.Rank())%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func coordColor(sq board.Square) color.Color {
	if (sq.File()+sq.Rank())%2 == 0 {
		return coordDarkColor
	}
	return coordLightColor
}
