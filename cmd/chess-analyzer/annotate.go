package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/park285/chess-analyzer/internal/analysis"
	"github.com/park285/chess-analyzer/internal/obslog"
	"github.com/park285/chess-analyzer/internal/overlay"
	"github.com/park285/chess-analyzer/internal/render"
	"github.com/park285/chess-analyzer/internal/session"
	"github.com/park285/chess-analyzer/internal/wsclient"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func annotateCommand() *cli.Command {
	return &cli.Command{
		Name:      "annotate",
		Usage:     "walk a PGN through a running analysis server and print each evaluation",
		ArgsUsage: "<game.pgn>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:8000/ws", Sources: cli.EnvVars("ANALYZER_URL")},
			&cli.StringFlag{Name: "out-dir", Usage: "also write one annotated PNG per ply here"},
			&cli.IntFlag{Name: "size", Value: render.DefaultSize, Usage: "board edge in pixels"},
			&cli.BoolFlag{Name: "flip", Usage: "black at the bottom"},
			&cli.DurationFlag{Name: "timeout", Value: 2 * time.Minute, Usage: "wait per position"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("expected one PGN file")
			}
			f, err := os.Open(cmd.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()

			if dir := cmd.String("out-dir"); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			logger := obslog.L()

			client := wsclient.New(cmd.String("url"), wsclient.WithLogger(logger.Named("wsclient")))
			replies := make(chan analysis.Response, 8)
			client.OnAnalysis(func(resp analysis.Response) {
				select {
				case replies <- resp:
				default:
					logger.Warn("annotate_reply_dropped", zap.String("type", resp.Type))
				}
			})
			if err := client.Connect(ctx); err != nil {
				return err
			}
			defer client.Close(context.WithoutCancel(ctx))

			a := &annotator{
				canvas:  render.NewCanvas(),
				replies: replies,
				out:     cmd.Root().Writer,
				outDir:  cmd.String("out-dir"),
				size:    cmd.Int("size"),
				timeout: cmd.Duration("timeout"),
			}
			a.sess = session.New(a.canvas, client,
				session.WithLogger(logger.Named("session")),
				session.WithOverlayOptions(overlay.WithBoardSize(float64(a.size))),
			)
			if cmd.Bool("flip") {
				a.sess.Flip()
			}
			return a.run(ctx, f)
		},
	}
}

// annotator drives a session through every ply of a game.
type annotator struct {
	sess    *session.Session
	canvas  *render.Canvas
	replies <-chan analysis.Response
	out     io.Writer
	outDir  string
	size    int
	timeout time.Duration
}

func (a *annotator) run(ctx context.Context, pgn io.Reader) error {
	if err := a.sess.LoadPGN(ctx, pgn); err != nil {
		return err
	}
	for {
		if err := a.report(ctx); err != nil {
			return err
		}
		if err := a.sess.Next(ctx); err != nil {
			if errors.Is(err, session.ErrOutOfRange) {
				return nil
			}
			return err
		}
	}
}

// report waits for the current position's analysis and prints it.
func (a *annotator) report(ctx context.Context) error {
	if err := a.await(ctx); err != nil {
		return err
	}

	i := a.sess.Index()
	label := "start"
	if i >= 0 {
		ply := a.sess.Plies()[i]
		dots := "."
		if i%2 == 1 {
			dots = "..."
		}
		label = fmt.Sprintf("%d%s %s", i/2+1, dots, ply.SAN)
	}
	if msg := a.sess.LastError(); msg != "" {
		fmt.Fprintf(a.out, "%-14s error: %s\n", label, msg)
	} else if ev, ok := a.sess.Evaluation(); ok {
		fmt.Fprintf(a.out, "%-14s %+6.2f  bar %5.1f%%  %-10s best %s\n", label, ev.Score, ev.EvalBar, ev.Quality, ev.BestMove)
		if ev.Commentary != "" {
			fmt.Fprintf(a.out, "    %s\n", strings.ReplaceAll(ev.Commentary, "\n", "\n    "))
		}
	}

	if a.outDir == "" {
		return nil
	}
	snap, _ := a.sess.Snapshot()
	png, err := a.canvas.RenderPNG(ctx, snap, render.Options{
		Size:        a.size,
		Flip:        a.sess.Flipped(),
		Coordinates: true,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(a.outDir, fmt.Sprintf("ply-%03d.png", i+1)), png, 0o644)
}

// await feeds replies to the session until the current position is
// evaluated or the server reports an error. Stale replies are skipped.
func (a *annotator) await(ctx context.Context) error {
	timer := time.NewTimer(a.timeout)
	defer timer.Stop()
	for {
		if _, ok := a.sess.Evaluation(); ok || a.sess.LastError() != "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("no analysis for %s within %s", a.sess.FEN(), a.timeout)
		case resp := <-a.replies:
			if err := a.sess.HandleResponse(resp); err != nil {
				return err
			}
		}
	}
}
