package domain

import "time"

// AnalysisRecord is one archived engine analysis. PositionKey is the FEN
// without move counters; together with Depth it identifies the record.
type AnalysisRecord struct {
	ID          int64
	SessionID   string
	FEN         string
	PositionKey string
	Depth       int
	Score       float64
	Mate        int
	BestMove    string
	Lines       []string
	LastMove    string
	Opening     string
	Commentary  string
	CreatedAt   time.Time
}
