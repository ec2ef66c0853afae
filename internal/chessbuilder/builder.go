// Package chessbuilder wires configuration into the running services.
package chessbuilder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-analyzer/internal/analysis"
	"github.com/park285/chess-analyzer/internal/archive"
	"github.com/park285/chess-analyzer/internal/cache"
	corechess "github.com/park285/chess-analyzer/internal/chess"
	"github.com/park285/chess-analyzer/internal/chess/uci"
	"github.com/park285/chess-analyzer/internal/config"
	"github.com/park285/chess-analyzer/internal/msgcat"
	"github.com/park285/chess-analyzer/internal/renderhttp"
	"github.com/park285/chess-analyzer/internal/server"
	"go.uber.org/zap"
)

type Deps struct {
	Server   *server.Server
	Render   *renderhttp.Server
	Analyzer *corechess.Analyzer
	Cache    *cache.AnalysisCache // nil without REDIS_URL
	Repo     archive.Repository

	pool *uci.Pool
	db   *sql.DB
}

// New starts nothing; engines are spawned lazily by the pool on first use.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.RequireEngine(); err != nil {
		return nil, err
	}

	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath: cfg.StockfishPath,
		Capacity:   cfg.EngineCapacity,
		Logger:     logger.Named("uci"),
	})
	if err != nil {
		return nil, fmt.Errorf("init engine pool: %w", err)
	}
	deps, err := assemble(ctx, cfg, pool, logger)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	deps.pool = pool
	return deps, nil
}

func assemble(ctx context.Context, cfg *config.AppConfig, backend corechess.Backend, logger *zap.Logger) (*Deps, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	analyzer := corechess.NewAnalyzer(backend, corechess.Options{
		Depth:   cfg.AnalysisDepth,
		MultiPV: cfg.AnalysisMultiPV,
		Threads: cfg.EngineThreads,
		HashMB:  cfg.EngineHashMB,
		Logger:  logger.Named("analyzer"),
	})
	deps := &Deps{Analyzer: analyzer}

	// Cache (Redis optional)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		deps.Cache, err = cache.Dial(ctx, cfg.RedisURL, time.Duration(cfg.CacheTTLSec)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
	} else {
		logger.Info("cache_disabled", zap.String("reason", "REDIS_URL not set"))
	}

	// Archive (Postgres optional, memory otherwise)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		deps.db, deps.Repo, err = archive.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("init archive: %w", err)
		}
	} else {
		deps.Repo = archive.NewMemoryRepository()
	}

	srvCfg := server.Config{
		Analyzer:    analyzer,
		Commentator: analysis.NewCommentator(messages, logger.Named("commentary")),
		Messages:    messages,
		Repo:        deps.Repo,
		Logger:      logger.Named("ws"),
	}
	if deps.Cache != nil {
		srvCfg.Cache = deps.Cache
	}
	deps.Server, err = server.New(srvCfg)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}

	deps.Render = renderhttp.New(
		renderhttp.WithDefaultSize(cfg.BoardSize),
		renderhttp.WithLogger(logger.Named("render")),
	)
	return deps, nil
}

// Close releases the engine processes and the storage connections.
func (d *Deps) Close() error {
	var errs []error
	if d.pool != nil {
		errs = append(errs, d.pool.Close())
	}
	if d.Cache != nil {
		errs = append(errs, d.Cache.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	return errors.Join(errs...)
}
