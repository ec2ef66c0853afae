// Package archive persists finished analyses so sessions can be reviewed
// after the websocket closes.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/domain"
)

var ErrNotFound = errors.New("analysis not found")

type Repository interface {
	// SaveAnalysis inserts rec or replaces the stored analysis of the same
	// position and depth, returning the row id.
	SaveAnalysis(ctx context.Context, rec *domain.AnalysisRecord) (int64, error)
	GetAnalysis(ctx context.Context, fen string, depth int) (*domain.AnalysisRecord, error)
	// RecentAnalyses lists newest first; an empty sessionID lists all sessions.
	RecentAnalyses(ctx context.Context, sessionID string, limit int) ([]*domain.AnalysisRecord, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id           BIGSERIAL PRIMARY KEY,
	session_id   TEXT NOT NULL DEFAULT '',
	fen          TEXT NOT NULL,
	position_key TEXT NOT NULL,
	depth        INTEGER NOT NULL,
	score        DOUBLE PRECISION NOT NULL,
	mate         INTEGER NOT NULL DEFAULT 0,
	best_move    TEXT NOT NULL,
	lines        JSONB NOT NULL DEFAULT '[]'::jsonb,
	last_move    TEXT NOT NULL DEFAULT '',
	opening      TEXT NOT NULL DEFAULT '',
	commentary   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (position_key, depth)
);
CREATE INDEX IF NOT EXISTS analyses_session_created ON analyses (session_id, created_at DESC);`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Open connects to Postgres, checks the connection and creates the table.
func Open(ctx context.Context, databaseURL string) (*sql.DB, Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, NewRepository(db), nil
}

func (r *repository) SaveAnalysis(ctx context.Context, rec *domain.AnalysisRecord) (int64, error) {
	if rec == nil {
		return 0, errors.New("nil analysis record")
	}
	lines, err := json.Marshal(nonNil(rec.Lines))
	if err != nil {
		return 0, fmt.Errorf("marshal lines: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.PositionKey = board.PositionKey(rec.FEN)

	const query = `
		INSERT INTO analyses (
			session_id, fen, position_key, depth, score, mate,
			best_move, lines, last_move, opening, commentary, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12)
		ON CONFLICT (position_key, depth) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			fen = EXCLUDED.fen,
			score = EXCLUDED.score,
			mate = EXCLUDED.mate,
			best_move = EXCLUDED.best_move,
			lines = EXCLUDED.lines,
			last_move = EXCLUDED.last_move,
			opening = EXCLUDED.opening,
			commentary = EXCLUDED.commentary,
			created_at = EXCLUDED.created_at
		RETURNING id`

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		rec.SessionID,
		rec.FEN,
		rec.PositionKey,
		rec.Depth,
		rec.Score,
		rec.Mate,
		rec.BestMove,
		lines,
		rec.LastMove,
		rec.Opening,
		rec.Commentary,
		rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert analysis: %w", err)
	}
	rec.ID = id
	return id, nil
}

const selectColumns = `
	id, session_id, fen, position_key, depth, score, mate,
	best_move, lines, last_move, opening, commentary, created_at`

func (r *repository) GetAnalysis(ctx context.Context, fen string, depth int) (*domain.AnalysisRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM analyses WHERE position_key = $1 AND depth = $2`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, board.PositionKey(fen), depth))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select analysis: %w", err)
	}
	return rec, nil
}

func (r *repository) RecentAnalyses(ctx context.Context, sessionID string, limit int) ([]*domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + selectColumns + ` FROM analyses
		WHERE ($1 = '' OR session_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("select analyses: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.AnalysisRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.AnalysisRecord, error) {
	var (
		rec   domain.AnalysisRecord
		lines []byte
	)
	if err := s.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.FEN,
		&rec.PositionKey,
		&rec.Depth,
		&rec.Score,
		&rec.Mate,
		&rec.BestMove,
		&lines,
		&rec.LastMove,
		&rec.Opening,
		&rec.Commentary,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &rec.Lines); err != nil {
			return nil, fmt.Errorf("decode lines: %w", err)
		}
	}
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
