// Package renderhttp serves annotated board pictures over HTTP.
package renderhttp

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/park285/chess-analyzer/internal/analysis"
	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/render"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	maxSize       = 2048
	renderTimeout = 10 * time.Second
)

type Server struct {
	defaultSize int
	logger      *zap.Logger
}

type Option func(*Server)

func WithDefaultSize(px int) Option {
	return func(s *Server) {
		if px >= render.MinSize {
			s.defaultSize = px
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(opts ...Option) *Server {
	s := &Server{defaultSize: render.DefaultSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler routes GET /board.png and GET /healthz.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	switch string(ctx.Path()) {
	case "/board.png":
		s.board(ctx)
	case "/healthz":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("ok")
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) board(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	req := render.BoardRequest{
		FEN:         string(args.Peek("fen")),
		LastMove:    string(args.Peek("last")),
		BestMove:    string(args.Peek("best")),
		Size:        s.defaultSize,
		Flip:        truthy(args.Peek("flip")),
		Coordinates: !falsy(args.Peek("coords")),
	}
	if raw := args.Peek("size"); len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n < render.MinSize || n > maxSize {
			ctx.Error("size must be between 64 and 2048", fasthttp.StatusBadRequest)
			return
		}
		req.Size = n
	}

	rctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	out, err := render.AnnotatePNG(rctx, req)
	if err != nil {
		status := fasthttp.StatusInternalServerError
		if errors.Is(err, board.ErrInvalidFEN) || errors.Is(err, analysis.ErrInvalidMove) {
			status = fasthttp.StatusBadRequest
		}
		s.logger.Warn("render_failed", zap.String("fen", req.FEN), zap.Int("status", status), zap.Error(err))
		ctx.Error(err.Error(), status)
		return
	}

	ctx.SetContentType("image/png")
	ctx.Response.Header.Set("Cache-Control", "public, max-age=3600")
	ctx.SetBody(out)
}

// ListenAndServe blocks until ctx is done, then shuts the listener down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &fasthttp.Server{
		Handler:      s.Handler,
		Name:         "chess-analyzer",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("render_listen", zap.String("addr", addr))
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.ShutdownWithContext(shutdownCtx)
	}
}

func truthy(b []byte) bool {
	switch strings.ToLower(string(b)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func falsy(b []byte) bool {
	switch strings.ToLower(string(b)) {
	case "0", "false", "no", "off":
		return true
	}
	return false
}
