package main

import (
	"context"
	"fmt"
	"os"

	"github.com/park285/chess-analyzer/internal/render"
	"github.com/urfave/cli/v3"
)

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "draw an annotated board to a PNG file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fen", Usage: "position after the last move (default: initial position)"},
			&cli.StringFlag{Name: "last", Usage: "last move played, e.g. e2e4"},
			&cli.StringFlag{Name: "best", Usage: "suggested reply, e.g. e7e5"},
			&cli.IntFlag{Name: "size", Value: render.DefaultSize, Usage: "board edge in pixels"},
			&cli.BoolFlag{Name: "flip", Usage: "black at the bottom"},
			&cli.BoolFlag{Name: "coords", Value: true, Usage: "draw file and rank labels"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "board.png", Usage: "output file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			out, err := render.AnnotatePNG(ctx, render.BoardRequest{
				FEN:         cmd.String("fen"),
				LastMove:    cmd.String("last"),
				BestMove:    cmd.String("best"),
				Size:        cmd.Int("size"),
				Flip:        cmd.Bool("flip"),
				Coordinates: cmd.Bool("coords"),
			})
			if err != nil {
				return err
			}
			path := cmd.String("out")
			if err := os.WriteFile(path, out, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.Root().Writer, "wrote %s (%d bytes)\n", path, len(out))
			return nil
		},
	}
}
