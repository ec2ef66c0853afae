package render

import (
	"context"
	"fmt"

	"github.com/park285/chess-analyzer/internal/analysis"
	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/overlay"
)

// BoardRequest describes a one-off annotated board picture. LastMove and
// BestMove are coordinate moves ("e2e4"); either may be empty. FEN is the
// position after LastMove.
type BoardRequest struct {
	FEN         string
	LastMove    string
	BestMove    string
	Size        int
	Flip        bool
	Coordinates bool
}

// AnnotatePNG runs the overlay over the position and returns the picture.
func AnnotatePNG(ctx context.Context, req BoardRequest) ([]byte, error) {
	pos, side, err := board.FromFEN(req.FEN)
	if err != nil {
		return nil, err
	}
	if req.Size == 0 {
		req.Size = DefaultSize
	}

	in := overlay.AnalysisInput{Board: pos, SideToMove: side}
	if in.LastMove, err = moveRef(req.LastMove); err != nil {
		return nil, fmt.Errorf("last move: %w", err)
	}
	if in.BestMove, err = moveRef(req.BestMove); err != nil {
		return nil, fmt.Errorf("best move: %w", err)
	}

	canvas := NewCanvas()
	ov := overlay.New(canvas, overlay.WithBoardSize(float64(req.Size)))
	if err := ov.ApplyAnalysis(in); err != nil {
		return nil, err
	}
	return canvas.RenderPNG(ctx, pos, Options{
		Size:        req.Size,
		Flip:        req.Flip,
		Coordinates: req.Coordinates,
	})
}

func moveRef(s string) (*overlay.MoveRef, error) {
	if s == "" {
		return nil, nil
	}
	mv, err := analysis.ParseUCIMove(s)
	if err != nil {
		return nil, err
	}
	return &overlay.MoveRef{From: mv.From, To: mv.To}, nil
}
