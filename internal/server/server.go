// Package server exposes position analysis over a websocket. Each connection
// sends analyze_position and reset commands and receives one reply per
// command, in order.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"github.com/park285/chess-analyzer/internal/analysis"
	"github.com/park285/chess-analyzer/internal/archive"
	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/chess"
	"github.com/park285/chess-analyzer/internal/domain"
	"github.com/park285/chess-analyzer/internal/msgcat"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	defaultAnalyzeTimeout = 90 * time.Second
	writeTimeout          = 10 * time.Second
	maxPV                 = 3
)

// Analyzer evaluates one position. *chess.Analyzer satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, fen string) (chess.Result, error)
	Depth() int
}

// ResultCache is the optional lookaside cache in front of the analyzer.
type ResultCache interface {
	Get(ctx context.Context, fen string, depth int) (*chess.Result, error)
	Set(ctx context.Context, depth int, res chess.Result) error
}

type Config struct {
	Analyzer    Analyzer
	Commentator *analysis.Commentator
	Messages    *msgcat.Catalog
	Cache       ResultCache        // optional
	Repo        archive.Repository // optional

	AnalyzeTimeout time.Duration
	Logger         *zap.Logger
}

type Server struct {
	analyzer    Analyzer
	commentator *analysis.Commentator
	messages    *msgcat.Catalog
	cache       ResultCache
	repo        archive.Repository
	timeout     time.Duration
	logger      *zap.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Analyzer == nil {
		return nil, errors.New("server: analyzer is required")
	}
	if cfg.Messages == nil {
		return nil, errors.New("server: message catalog is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Commentator == nil {
		cfg.Commentator = analysis.NewCommentator(cfg.Messages, cfg.Logger)
	}
	if cfg.AnalyzeTimeout <= 0 {
		cfg.AnalyzeTimeout = defaultAnalyzeTimeout
	}
	return &Server{
		analyzer:    cfg.Analyzer,
		commentator: cfg.Commentator,
		messages:    cfg.Messages,
		cache:       cfg.Cache,
		repo:        cfg.Repo,
		timeout:     cfg.AnalyzeTimeout,
		logger:      cfg.Logger,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe blocks until ctx is done, then shuts the listener down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ws_listen", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// conn is the per-connection state. Only the read loop touches it.
type conn struct {
	id   string
	ws   *websocket.Conn
	game *nchess.Game
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	c := &conn{id: uuid.NewString(), ws: ws, game: nchess.NewGame()}
	logger := s.logger.With(zap.String("session", c.id))
	logger.Info("ws_open", zap.String("remote", r.RemoteAddr))
	defer func() {
		_ = ws.Close(websocket.StatusNormalClosure, "bye")
		logger.Info("ws_closed")
	}()

	ctx := r.Context()
	for {
		var req analysis.Request
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				logger.Debug("ws_read_ended", zap.Error(err))
			}
			return
		}
		resp := s.handle(ctx, c, req, logger)
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, ws, resp)
		cancel()
		if err != nil {
			logger.Warn("ws_write_failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, c *conn, req analysis.Request, logger *zap.Logger) analysis.Response {
	switch strings.TrimSpace(req.Command) {
	case analysis.CommandAnalyze:
		return s.analyze(ctx, c, req, logger)
	case analysis.CommandReset:
		c.game = nchess.NewGame()
		return analysis.ResetResponse()
	default:
		return s.errorResponse("errors.unknown_command", map[string]any{"Command": req.Command})
	}
}

func (s *Server) analyze(ctx context.Context, c *conn, req analysis.Request, logger *zap.Logger) analysis.Response {
	fen := strings.TrimSpace(req.FEN)
	if fen == "" {
		return s.errorResponse("errors.missing_fen", nil)
	}
	game, err := gameFor(fen, req.Moves)
	if err != nil {
		logger.Debug("invalid_fen", zap.String("fen", fen), zap.Error(err))
		return s.errorResponse("errors.invalid_fen", nil)
	}
	c.game = game

	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.evaluate(actx, fen, logger)
	if err != nil {
		logger.Warn("analysis_failed", zap.String("fen", fen), zap.Error(err))
		return s.errorResponse("errors.analysis_failed", map[string]any{"Detail": err.Error()})
	}

	comment, err := s.commentator.Comment(analysis.CommentInput{
		Game:     game,
		LastMove: req.LastMove,
		Eval:     res.Evaluation(),
	})
	if err != nil {
		logger.Warn("commentary_failed", zap.Error(err))
	}
	s.archive(ctx, c, req, res, comment, logger)

	pv := res.Lines
	if len(pv) > maxPV {
		pv = pv[:maxPV]
	}
	return analysis.Response{
		Type:     analysis.TypeAnalysis,
		FEN:      fen,
		Score:    res.Score,
		BestMove: res.BestMove,
		Analysis: comment,
		PV:       append([]string(nil), pv...),
	}
}

func (s *Server) evaluate(ctx context.Context, fen string, logger *zap.Logger) (chess.Result, error) {
	depth := s.analyzer.Depth()
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, fen, depth)
		if err != nil {
			logger.Warn("cache_get_failed", zap.Error(err))
		} else if cached != nil {
			logger.Debug("cache_hit", zap.String("fen", fen))
			return *cached, nil
		}
	}

	res, err := s.analyzer.Analyze(ctx, fen)
	if err != nil {
		return chess.Result{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, depth, res); err != nil {
			logger.Warn("cache_set_failed", zap.Error(err))
		}
	}
	return res, nil
}

func (s *Server) archive(ctx context.Context, c *conn, req analysis.Request, res chess.Result, comment string, logger *zap.Logger) {
	if s.repo == nil {
		return
	}
	_, title := s.commentator.Opening(c.game)
	rec := &domain.AnalysisRecord{
		SessionID:  c.id,
		FEN:        strings.TrimSpace(req.FEN),
		Depth:      s.analyzer.Depth(),
		Score:      res.Score,
		Mate:       res.Mate,
		BestMove:   res.BestMove,
		Lines:      res.Lines,
		LastMove:   req.LastMove,
		Opening:    title,
		Commentary: comment,
	}
	if _, err := s.repo.SaveAnalysis(ctx, rec); err != nil {
		logger.Warn("archive_save_failed", zap.Error(err))
	}
}

func (s *Server) errorResponse(key string, data map[string]any) analysis.Response {
	msg, err := s.messages.Render(key, data)
	if err != nil {
		s.logger.Warn("message_render_failed", zap.String("key", key), zap.Error(err))
		msg = key
	}
	return analysis.ErrorResponse(msg)
}

// gameFor builds the game for fen. When moves replays from the initial
// position to the same position the history is kept so the opening can be
// named; otherwise the game starts from fen.
func gameFor(fen string, moves []string) (*nchess.Game, error) {
	if len(moves) > 0 {
		if g, err := replay(moves); err == nil && board.PositionKey(g.FEN()) == board.PositionKey(fen) {
			return g, nil
		}
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", board.ErrInvalidFEN, err)
	}
	return nchess.NewGame(opt), nil
}

func replay(moves []string) (*nchess.Game, error) {
	g := nchess.NewGame()
	for _, mv := range moves {
		if err := g.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, err
		}
	}
	return g, nil
}
