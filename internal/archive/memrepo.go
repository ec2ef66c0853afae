package archive

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/domain"
)

type recordKey struct {
	position string
	depth    int
}

// memrepo keeps analyses in process memory. Used when no database is
// configured and in tests.
type memrepo struct {
	mu     sync.RWMutex
	nextID int64
	byKey  map[recordKey]*domain.AnalysisRecord
	now    func() time.Time
}

func NewMemoryRepository() Repository {
	return &memrepo{
		byKey: make(map[recordKey]*domain.AnalysisRecord),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *memrepo) SaveAnalysis(ctx context.Context, rec *domain.AnalysisRecord) (int64, error) {
	if rec == nil {
		return 0, errors.New("nil analysis record")
	}
	rec.PositionKey = board.PositionKey(rec.FEN)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	key := recordKey{position: rec.PositionKey, depth: rec.Depth}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.byKey[key]; ok {
		rec.ID = prev.ID
	} else {
		m.nextID++
		rec.ID = m.nextID
	}
	m.byKey[key] = clone(rec)
	return rec.ID, nil
}

func (m *memrepo) GetAnalysis(ctx context.Context, fen string, depth int) (*domain.AnalysisRecord, error) {
	key := recordKey{position: board.PositionKey(fen), depth: depth}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

func (m *memrepo) RecentAnalyses(ctx context.Context, sessionID string, limit int) ([]*domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	items := make([]*domain.AnalysisRecord, 0, len(m.byKey))
	for _, rec := range m.byKey {
		if sessionID == "" || rec.SessionID == sessionID {
			items = append(items, clone(rec))
		}
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func clone(rec *domain.AnalysisRecord) *domain.AnalysisRecord {
	cp := *rec
	cp.Lines = append([]string(nil), rec.Lines...)
	return &cp
}
