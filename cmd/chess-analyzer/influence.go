package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/influence"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

func influenceCommand() *cli.Command {
	return &cli.Command{
		Name:      "influence",
		Usage:     "list the squares a piece attacks and protects",
		ArgsUsage: "<square>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fen", Usage: "position (default: initial position)"},
			&cli.StringFlag{Name: "piece", Usage: "evaluate this piece kind on the square instead of the occupant"},
			&cli.StringFlag{Name: "color", Value: "white", Usage: "color for --piece"},
			&cli.BoolFlag{Name: "no-color", Usage: "plain board even on a terminal"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected one square, got %d arguments", cmd.Args().Len())
			}
			sq, err := board.ParseSquare(cmd.Args().First())
			if err != nil {
				return err
			}
			pos, _, err := board.FromFEN(cmd.String("fen"))
			if err != nil {
				return err
			}

			piece, ok := pos.Get(sq)
			if name := cmd.String("piece"); name != "" {
				kind, kok := board.ParsePieceKind(name)
				clr, cok := board.ParseColor(cmd.String("color"))
				if !kok || !cok {
					return fmt.Errorf("unknown piece %q %q", cmd.String("color"), name)
				}
				piece, ok = board.Piece{Kind: kind, Color: clr}, true
				pos = pos.With(sq, piece)
			}
			if !ok {
				return fmt.Errorf("no piece on %s", sq)
			}

			attacked, err := influence.Attacked(pos, sq, piece.Kind, piece.Color)
			if err != nil {
				return err
			}
			protected, err := influence.Protected(pos, sq, piece.Kind, piece.Color)
			if err != nil {
				return err
			}

			out := cmd.Root().Writer
			ansi := !cmd.Bool("no-color") && isTerminal(out)
			writeInfluence(out, pos, sq, piece, attacked, protected, ansi)
			return nil
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

const (
	ansiReset     = "\033[0m"
	ansiLight     = "\033[47m"
	ansiDark      = "\033[100m"
	ansiAttacked  = "\033[41m"
	ansiProtected = "\033[44m"
	ansiOrigin    = "\033[43m"
	ansiWhiteFg   = "\033[97m"
	ansiBlackFg   = "\033[30m"
)

// writeInfluence prints the two square lists and a board. Without ANSI,
// attacked empty squares show 'x', protected ones are bracketed and the
// origin piece is starred.
func writeInfluence(w io.Writer, pos board.Placement, from board.Square, piece board.Piece, attacked, protected influence.SquareSet, ansi bool) {
	fmt.Fprintf(w, "%s %s on %s\n", piece.Color, piece.Kind, from)
	fmt.Fprintf(w, "attacked:  %s\n", listOrDash(attacked))
	fmt.Fprintf(w, "protected: %s\n\n", listOrDash(protected))

	fmt.Fprintln(w, "   a  b  c  d  e  f  g  h")
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(w, "%d ", rank+1)
		for file := 0; file < 8; file++ {
			sq := board.Square(rank*8 + file)
			p, occupied := pos.Get(sq)
			if ansi {
				fmt.Fprint(w, ansiCell(sq, p, occupied, from, attacked, protected))
			} else {
				fmt.Fprint(w, plainCell(sq, p, occupied, from, attacked, protected))
			}
		}
		fmt.Fprintf(w, " %d\n", rank+1)
	}
	fmt.Fprintln(w, "   a  b  c  d  e  f  g  h")
}

func plainCell(sq board.Square, p board.Piece, occupied bool, from board.Square, attacked, protected influence.SquareSet) string {
	glyph := "."
	if occupied {
		glyph = p.String()
	}
	switch {
	case sq == from:
		return "*" + glyph + " "
	case protected.Has(sq):
		return "[" + glyph + "]"
	case attacked.Has(sq) && !occupied:
		return " x "
	case attacked.Has(sq):
		return "(" + glyph + ")"
	default:
		return " " + glyph + " "
	}
}

func ansiCell(sq board.Square, p board.Piece, occupied bool, from board.Square, attacked, protected influence.SquareSet) string {
	bg := ansiDark
	if (sq.File()+sq.Rank())%2 == 1 {
		bg = ansiLight
	}
	switch {
	case sq == from:
		bg = ansiOrigin
	case protected.Has(sq):
		bg = ansiProtected
	case attacked.Has(sq):
		bg = ansiAttacked
	}
	glyph, fg := " ", ansiBlackFg
	if occupied {
		glyph = p.String()
		if p.Color == board.White {
			fg = ansiWhiteFg
		}
	}
	return bg + fg + " " + glyph + " " + ansiReset
}

func listOrDash(s influence.SquareSet) string {
	if s.Empty() {
		return "-"
	}
	return strings.Join(s.Strings(), " ")
}
