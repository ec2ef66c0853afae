package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/park285/chess-analyzer/internal/analysis"
	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/overlay"
)

var sq = board.MustSquare

func position(t *testing.T, fen string) board.Placement {
	t.Helper()
	p, _, err := board.FromFEN(fen)
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	return p
}

func rgbAt(img image.Image, x, y int) (r, g, b uint8) {
	c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
	return c.R, c.G, c.B
}

// centre returns the pixel centre of a square on an unflipped 480 board.
func centre(name string) (int, int) {
	x, y := board.PixelCenter(sq(name), DefaultSize)
	return int(x), int(y)
}

func TestCanvasRecordsOverlayMarks(t *testing.T) {
	c := NewCanvas()
	ov := overlay.New(c)
	if err := ov.AddArrow(sq("e2"), sq("e4")); err != nil {
		t.Fatalf("AddArrow: %v", err)
	}
	ov.PointerDown(board.PixelCenter(sq("g1"), DefaultSize))
	ov.PointerMove(board.PixelCenter(sq("f3"), DefaultSize))

	if h, a := c.Counts(); h != 0 || a != 2 {
		t.Errorf("counts = %d highlights, %d arrows; want 0, 2", h, a)
	}
	ov.Clear()
	ov.PointerUp(-1, -1)
	if h, a := c.Counts(); h != 0 || a != 0 {
		t.Errorf("after clear = %d, %d", h, a)
	}
}

func TestRenderDrawsPiecesHighlightsAndArrows(t *testing.T) {
	start := position(t, "startpos")
	c := NewCanvas()
	c.AddPersistentMark(overlay.MarkHighlight, overlay.Mark{Square: sq("e5"), Category: overlay.AttackedByLastMove})
	c.AddPersistentMark(overlay.MarkArrow, overlay.Mark{Arrow: overlay.Arrow{
		From: sq("e2"), To: sq("e4"), Color: color.NRGBA{R: 255, G: 152, A: 204},
	}})

	img, err := c.Render(context.Background(), start, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != DefaultSize || b.Dy() != DefaultSize {
		t.Fatalf("bounds = %v", b)
	}

	// white pawn glyph on e2, black on e7
	if r, g, b := rgbAt(img, centre("e2")); r < 200 || g < 200 || b < 200 {
		t.Errorf("e2 centre = %d,%d,%d; want white glyph", r, g, b)
	}
	if r, g, b := rgbAt(img, centre("e7")); r > 60 || g > 60 || b > 60 {
		t.Errorf("e7 centre = %d,%d,%d; want black glyph", r, g, b)
	}

	// e5 is a dark square tinted red
	if r, g, _ := rgbAt(img, centre("e5")); r <= darkSquare.R || g >= darkSquare.G {
		t.Errorf("e5 = %d,%d; want red tint over dark square", r, g)
	}

	// e3 lies under the arrow shaft
	if r, _, b := rgbAt(img, centre("e3")); r < 220 || b > 40 {
		t.Errorf("e3 = %d,_,%d; want arrow colour", r, b)
	}

	// a plain square keeps its colour
	if r, g, b := rgbAt(img, centre("c4")); r != lightSquare.R || g != lightSquare.G || b != lightSquare.B {
		t.Errorf("c4 = %d,%d,%d; want light square", r, g, b)
	}
}

func TestRenderFlipped(t *testing.T) {
	empty := position(t, "8/8/8/8/8/8/8/K6k w - - 0 1")
	c := NewCanvas()
	c.AddPersistentMark(overlay.MarkHighlight, overlay.Mark{Square: sq("a1"), Category: overlay.ProtectedByLastMove})

	img, err := c.Render(context.Background(), empty, Options{Flip: true, Coordinates: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// flipped, a1 sits in the top-right corner; sample away from the king glyph
	x, y := DefaultSize-4, 4
	r, g, b := rgbAt(img, x, y)
	if b <= darkSquare.B || r >= darkSquare.R {
		t.Errorf("top-right = %d,%d,%d; want blue tint over dark square", r, g, b)
	}
}

func TestRenderPNG(t *testing.T) {
	out, err := NewCanvas().RenderPNG(context.Background(), position(t, "startpos"), Options{Size: 240, Coordinates: true})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 240 {
		t.Errorf("width = %d", img.Bounds().Dx())
	}
}

func TestRenderRejects(t *testing.T) {
	c := NewCanvas()
	if _, err := c.Render(context.Background(), nil, Options{}); err == nil {
		t.Error("nil position accepted")
	}
	if _, err := c.Render(context.Background(), board.Placement{}, Options{Size: 10}); err == nil {
		t.Error("tiny board accepted")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Render(ctx, board.Placement{}, Options{}); err == nil {
		t.Error("cancelled context ignored")
	}
}

func TestEveryGlyphRasterises(t *testing.T) {
	kinds := []board.PieceKind{board.Pawn, board.Knight, board.Bishop, board.Rook, board.Queen, board.King}
	for _, clr := range []board.Color{board.White, board.Black} {
		for _, k := range kinds {
			p := board.Piece{Kind: k, Color: clr}
			img, err := pieceImage(p, 60)
			if err != nil {
				t.Errorf("%v: %v", p, err)
				continue
			}
			if img.Bounds().Dx() != 60 {
				t.Errorf("%v: width %d", p, img.Bounds().Dx())
			}
		}
	}
	if _, err := pieceImage(board.Piece{}, 60); err == nil {
		t.Error("empty piece rasterised")
	}
}

func TestSanitizeSVG(t *testing.T) {
	got := string(sanitizeSVG([]byte(`style="fill: #fff;stroke: 000000"`)))
	if got != `style="fill:#fff;stroke:#000000"` {
		t.Errorf("sanitizeSVG = %s", got)
	}
}

func TestAnnotatePNG(t *testing.T) {
	out, err := AnnotatePNG(context.Background(), BoardRequest{
		FEN:      "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		LastMove: "e2e4",
		BestMove: "e7e5",
		Size:     128,
	})
	if err != nil {
		t.Fatalf("AnnotatePNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("width = %d", img.Bounds().Dx())
	}

	if _, err := AnnotatePNG(context.Background(), BoardRequest{FEN: "x"}); !errors.Is(err, board.ErrInvalidFEN) {
		t.Errorf("bad fen err = %v", err)
	}
	if _, err := AnnotatePNG(context.Background(), BoardRequest{BestMove: "e2e2"}); !errors.Is(err, analysis.ErrInvalidMove) {
		t.Errorf("bad move err = %v", err)
	}
}
