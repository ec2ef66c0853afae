package main

import (
	"context"
	"fmt"

	"github.com/park285/chess-analyzer/internal/chessbuilder"
	"github.com/park285/chess-analyzer/internal/config"
	"github.com/park285/chess-analyzer/internal/obslog"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the analysis websocket and the board picture endpoint",
		Action: func(ctx context.Context, _ *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := obslog.L()

			deps, err := chessbuilder.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("init error: %w", err)
			}
			defer func() {
				if err := deps.Close(); err != nil {
					logger.Warn("shutdown_close_failed", zap.Error(err))
				}
			}()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			errCh := make(chan error, 2)
			go func() { errCh <- deps.Server.ListenAndServe(ctx, cfg.WSAddr) }()
			go func() { errCh <- deps.Render.ListenAndServe(ctx, cfg.RenderAddr) }()
			logger.Info("analyzer_started",
				zap.String("ws_addr", cfg.WSAddr),
				zap.String("render_addr", cfg.RenderAddr),
				zap.Int("depth", cfg.AnalysisDepth),
			)

			// either listener stopping takes the other one down
			var first error
			for range 2 {
				if err := <-errCh; err != nil && first == nil {
					first = err
				}
				cancel()
			}
			logger.Info("analyzer_stopped")
			return first
		},
	}
}
