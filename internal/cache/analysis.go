// Package cache keeps finished engine analyses in Redis so repeated
// positions skip the engine.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/chess"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = time.Hour
	recentKey  = "analysis:recent"
	recentMax  = 50
)

type AnalysisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &AnalysisCache{rdb: rdb, ttl: ttl}
}

// Dial connects to REDIS_URL style addresses and checks the server answers.
func Dial(ctx context.Context, redisURL string, ttl time.Duration) (*AnalysisCache, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("redis url required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, ttl), nil
}

func (c *AnalysisCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Key drops the move counters so transpositions share an entry.
func Key(fen string, depth int) string {
	return fmt.Sprintf("analysis:%d:%s", depth, board.PositionKey(fen))
}

// Get returns nil, nil on a miss.
func (c *AnalysisCache) Get(ctx context.Context, fen string, depth int) (*chess.Result, error) {
	raw, err := c.rdb.Get(ctx, Key(fen, depth)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res chess.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode cached analysis: %w", err)
	}
	return &res, nil
}

// Set stores res under the depth it was requested at, which may differ from
// the depth the engine reported.
func (c *AnalysisCache) Set(ctx context.Context, depth int, res chess.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	key := Key(res.FEN, depth)
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, raw, c.ttl)
	pipe.LRem(ctx, recentKey, 0, key)
	pipe.LPush(ctx, recentKey, key)
	pipe.LTrim(ctx, recentKey, 0, recentMax-1)
	pipe.Expire(ctx, recentKey, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent lists cache keys of the latest analyses, newest first.
func (c *AnalysisCache) Recent(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 || limit > recentMax {
		limit = recentMax
	}
	return c.rdb.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
}
