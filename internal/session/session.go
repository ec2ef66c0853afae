// Package session holds the state of one analysis board: the loaded game,
// the ply being viewed, the annotation overlay and the latest evaluation.
// Every change of position clears the overlay and asks the analysis server
// about the new position.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-analyzer/internal/analysis"
	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/overlay"
	"go.uber.org/zap"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrInvalidPGN  = errors.New("invalid PGN")
	ErrOutOfRange  = errors.New("move index out of range")
)

// Requester sends analysis commands. *wsclient.Client satisfies it.
type Requester interface {
	Send(ctx context.Context, req analysis.Request) error
}

// Ply is one half-move of the loaded line.
type Ply struct {
	UCI  string
	SAN  string
	From board.Square
	To   board.Square
}

// Evaluation is the last analysis received for the current position.
type Evaluation struct {
	Score      float64
	EvalBar    float64
	Quality    analysis.QualityLabel
	BestMove   string
	Commentary string
	PV         []string
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithOverlayOptions(opts ...overlay.Option) Option {
	return func(s *Session) { s.overlayOpts = append(s.overlayOpts, opts...) }
}

// Session is safe for concurrent use; replies usually arrive on the
// websocket reader goroutine while the UI drives navigation.
type Session struct {
	mu sync.Mutex

	requester   Requester
	logger      *zap.Logger
	overlay     *overlay.Overlay
	overlayOpts []overlay.Option

	startFEN string
	plies    []Ply
	index    int // last applied ply, -1 at the start
	game     *nchess.Game
	flipped  bool

	eval    *Evaluation
	lastErr string
}

func New(surface overlay.Surface, requester Requester, opts ...Option) *Session {
	s := &Session{
		requester: requester,
		logger:    zap.NewNop(),
		index:     -1,
		game:      nchess.NewGame(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.overlay = overlay.New(surface, append([]overlay.Option{overlay.WithLogger(s.logger)}, s.overlayOpts...)...)
	return s
}

// LoadPGN replaces the line with the main line of the PGN and goes to the
// initial position.
func (s *Session) LoadPGN(ctx context.Context, r io.Reader) error {
	opt, err := nchess.PGN(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPGN, err)
	}
	g := nchess.NewGame(opt)
	positions := g.Positions()
	moves := g.Moves()
	if len(positions) == 0 {
		return fmt.Errorf("%w: no positions", ErrInvalidPGN)
	}

	plies := make([]Ply, 0, len(moves))
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		plies = append(plies, plyOf(positions[i], mv))
	}

	s.mu.Lock()
	s.startFEN = positions[0].String()
	s.plies = plies
	req, err := s.goTo(-1)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.logger.Info("pgn_loaded", zap.Int("plies", len(plies)))
	s.send(ctx, req)
	return nil
}

// GoToMove shows the position after ply i; -1 is the initial position.
func (s *Session) GoToMove(ctx context.Context, i int) error {
	s.mu.Lock()
	req, err := s.goTo(i)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.send(ctx, req)
	return nil
}

func (s *Session) Next(ctx context.Context) error {
	return s.GoToMove(ctx, s.Index()+1)
}

func (s *Session) Prev(ctx context.Context) error {
	return s.GoToMove(ctx, s.Index()-1)
}

// Start drops the loaded line and returns to the standard initial position.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.startFEN = ""
	s.plies = nil
	req, err := s.goTo(-1)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("session_start_failed", zap.Error(err))
		return
	}
	s.send(ctx, req)
}

// Play makes a move from the current position. Promotions default to a
// queen. Plies after the current one are discarded.
func (s *Session) Play(ctx context.Context, from, to board.Square) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %w", ErrIllegalMove, board.ErrInvalidSquare)
	}

	s.mu.Lock()
	pos := s.game.Position()
	mv := findMove(s.game.ValidMoves(), from, to)
	if mv == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s%s", ErrIllegalMove, from, to)
	}
	ply := plyOf(pos, mv)
	s.plies = append(s.plies[:s.index+1:s.index+1], ply)
	req, err := s.goTo(s.index + 1)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.logger.Debug("session_play", zap.String("move", ply.UCI))
	s.send(ctx, req)
	return nil
}

// HandleResponse applies a server reply. Analyses of a position other than
// the current one are ignored.
func (s *Session) HandleResponse(resp analysis.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch resp.Type {
	case analysis.TypeError:
		s.lastErr = resp.Message
		s.logger.Warn("analysis_error", zap.String("message", resp.Message))
		return nil
	case analysis.TypeResetConfirmed:
		return nil
	case analysis.TypeAnalysis:
	default:
		return fmt.Errorf("unknown response type %q", resp.Type)
	}

	if resp.FEN != "" && board.PositionKey(resp.FEN) != board.PositionKey(s.game.FEN()) {
		s.logger.Debug("stale_analysis", zap.String("fen", resp.FEN))
		return nil
	}

	pos := s.game.Position()
	in := overlay.AnalysisInput{
		Board:      board.FromBoard(pos.Board()),
		SideToMove: board.ColorFromChess(pos.Turn()),
	}
	if s.index >= 0 {
		last := s.plies[s.index]
		in.LastMove = &overlay.MoveRef{From: last.From, To: last.To}
	}
	if resp.BestMove != "" {
		best, err := analysis.ParseUCIMove(resp.BestMove)
		if err != nil {
			return fmt.Errorf("best move: %w", err)
		}
		in.BestMove = &overlay.MoveRef{From: best.From, To: best.To}
	}
	if err := s.overlay.ApplyAnalysis(in); err != nil {
		return err
	}

	s.lastErr = ""
	s.eval = &Evaluation{
		Score:      resp.Score,
		EvalBar:    analysis.EvalBarPercent(resp.Score),
		Quality:    analysis.Quality(-resp.Score),
		BestMove:   resp.BestMove,
		Commentary: resp.Analysis,
		PV:         append([]string(nil), resp.PV...),
	}
	return nil
}

// Flip toggles the board orientation and returns the new state. Only
// renderers look at it; squares stay in white's frame.
func (s *Session) Flip() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flipped = !s.flipped
	return s.flipped
}

func (s *Session) Flipped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flipped
}

func (s *Session) PointerDown(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.PointerDown(x, y)
}

func (s *Session) PointerMove(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.PointerMove(x, y)
}

func (s *Session) PointerUp(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.PointerUp(x, y)
}

func (s *Session) SetBoardSize(px float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.SetBoardSize(px)
}

func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Session) Plies() []Ply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Ply(nil), s.plies...)
}

func (s *Session) FEN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.FEN()
}

// Snapshot returns the current placement and side to move.
func (s *Session) Snapshot() (board.Placement, board.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.game.Position()
	return board.FromBoard(pos.Board()), board.ColorFromChess(pos.Turn())
}

// Evaluation returns the latest analysis of the current position.
func (s *Session) Evaluation() (Evaluation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eval == nil {
		return Evaluation{}, false
	}
	ev := *s.eval
	ev.PV = append([]string(nil), s.eval.PV...)
	return ev, true
}

func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Overlay exposes the annotation state for inspection. Mutate it through
// the session so the lock is held.
func (s *Session) Overlay() *overlay.Overlay { return s.overlay }

// goTo rebuilds the game at ply i, clears the overlay and returns the
// request for the new position. Callers hold mu.
func (s *Session) goTo(i int) (analysis.Request, error) {
	if i < -1 || i >= len(s.plies) {
		return analysis.Request{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, len(s.plies))
	}
	g, err := s.replay(i + 1)
	if err != nil {
		return analysis.Request{}, err
	}
	s.game = g
	s.index = i
	s.eval = nil
	s.lastErr = ""
	s.overlay.Clear()

	req := analysis.Request{Command: analysis.CommandAnalyze, FEN: g.FEN()}
	if i >= 0 {
		req.LastMove = s.plies[i].SAN
	}
	if s.startFEN == "" || board.PositionKey(s.startFEN) == board.PositionKey(nchess.NewGame().FEN()) {
		for _, p := range s.plies[:i+1] {
			req.Moves = append(req.Moves, p.UCI)
		}
	}
	return req, nil
}

func (s *Session) replay(n int) (*nchess.Game, error) {
	g := nchess.NewGame()
	if s.startFEN != "" {
		opt, err := nchess.FEN(s.startFEN)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", board.ErrInvalidFEN, err)
		}
		g = nchess.NewGame(opt)
	}
	for _, p := range s.plies[:n] {
		if err := g.PushNotationMove(p.UCI, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay %s: %w", p.UCI, err)
		}
	}
	return g, nil
}

func (s *Session) send(ctx context.Context, req analysis.Request) {
	if s.requester == nil {
		return
	}
	if err := s.requester.Send(ctx, req); err != nil {
		s.logger.Debug("analysis_request_failed", zap.String("fen", req.FEN), zap.Error(err))
	}
}

func plyOf(pos *nchess.Position, mv *nchess.Move) Ply {
	return Ply{
		UCI:  strings.ToLower(nchess.UCINotation{}.Encode(pos, mv)),
		SAN:  nchess.AlgebraicNotation{}.Encode(pos, mv),
		From: board.FromChessSquare(mv.S1()),
		To:   board.FromChessSquare(mv.S2()),
	}
}

// findMove picks the legal move from one square to another, preferring a
// queen promotion when several promotions match.
func findMove(valid []nchess.Move, from, to board.Square) *nchess.Move {
	var found *nchess.Move
	for i := range valid {
		mv := &valid[i]
		if board.FromChessSquare(mv.S1()) != from || board.FromChessSquare(mv.S2()) != to {
			continue
		}
		if mv.Promo() == nchess.NoPieceType || mv.Promo() == nchess.Queen {
			return mv
		}
		if found == nil {
			found = mv
		}
	}
	return found
}
