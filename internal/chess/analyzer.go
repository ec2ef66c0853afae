// Package chess drives the engine for position analysis and converts its
// coordinate output into the notation shown to users.
package chess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-analyzer/internal/analysis"
	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/chess/uci"
	"go.uber.org/zap"
)

const (
	DefaultDepth   = 20
	DefaultMultiPV = 3
)

// ErrNoMoves is returned for positions without a legal move.
var ErrNoMoves = errors.New("position has no legal moves")

// Backend runs a single search. *uci.Pool satisfies it.
type Backend interface {
	Search(ctx context.Context, opt uci.Options, req uci.SearchRequest) (uci.SearchResponse, error)
}

type Options struct {
	Depth   int
	MultiPV int
	Threads int
	HashMB  int
	Logger  *zap.Logger
}

type Analyzer struct {
	backend Backend
	depth   int
	engine  uci.Options
	logger  *zap.Logger
}

func NewAnalyzer(backend Backend, opts Options) *Analyzer {
	if opts.Depth <= 0 {
		opts.Depth = DefaultDepth
	}
	if opts.MultiPV <= 0 {
		opts.MultiPV = DefaultMultiPV
	}
	if opts.HashMB <= 0 {
		opts.HashMB = 64
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Analyzer{
		backend: backend,
		depth:   opts.Depth,
		engine:  uci.Options{Threads: opts.Threads, HashMB: opts.HashMB, MultiPV: opts.MultiPV},
		logger:  opts.Logger,
	}
}

func (a *Analyzer) Depth() int { return a.depth }

// Result is one analysed position. Score is in pawns for the side to move;
// Lines are SAN renderings of the engine's variations, best first.
type Result struct {
	FEN      string   `json:"fen"`
	Depth    int      `json:"depth"`
	Score    float64  `json:"score"`
	Mate     int      `json:"mate,omitempty"`
	BestMove string   `json:"bestMove"`
	Lines    []string `json:"lines"`
}

func (r Result) Evaluation() analysis.Evaluation {
	return analysis.Evaluation{Score: r.Score, BestMove: r.BestMove, Lines: r.Lines}
}

func (a *Analyzer) Analyze(ctx context.Context, fen string) (Result, error) {
	fen = strings.TrimSpace(fen)
	game, err := gameFromFEN(fen)
	if err != nil {
		return Result{}, err
	}
	if len(game.ValidMoves()) == 0 {
		return Result{}, ErrNoMoves
	}

	start := time.Now()
	resp, err := a.backend.Search(ctx, a.engine, uci.SearchRequest{
		FEN:    fen,
		Limits: uci.Limits{Depth: a.depth},
	})
	if err != nil {
		return Result{}, fmt.Errorf("engine search: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return Result{}, fmt.Errorf("engine returned no candidates for %s", fen)
	}

	top := resp.Candidates[0]
	res := Result{
		FEN:      fen,
		Depth:    top.Depth,
		Score:    float64(top.EvalCP) / 100,
		Mate:     top.Mate,
		BestMove: resp.BestMove,
	}
	if res.BestMove == "" || res.BestMove == "(none)" {
		res.BestMove = top.Move
	}
	for _, cand := range resp.Candidates {
		if line := sanLine(game, cand.Principal); line != "" {
			res.Lines = append(res.Lines, line)
		}
	}

	a.logger.Debug("analysis_done",
		zap.String("fen", fen),
		zap.Float64("score", res.Score),
		zap.String("best", res.BestMove),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	if fen == "" {
		return nil, fmt.Errorf("%w: empty", board.ErrInvalidFEN)
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", board.ErrInvalidFEN, err)
	}
	return nchess.NewGame(opt), nil
}

// sanLine replays a UCI principal variation on a copy of game and returns
// it in SAN. Replay stops at the first move the position rejects.
func sanLine(game *nchess.Game, pv []string) string {
	g := game.Clone()
	notation := nchess.UCINotation{}
	sans := make([]string, 0, len(pv))
	for _, u := range pv {
		pos := g.Position()
		mv, err := notation.Decode(pos, u)
		if err != nil {
			break
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, mv)
		if err := g.Move(mv, nil); err != nil {
			break
		}
		sans = append(sans, san)
	}
	return strings.Join(sans, " ")
}
