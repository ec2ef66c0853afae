package archive

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/park285/chess-analyzer/internal/domain"
)

const afterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &domain.AnalysisRecord{
		SessionID: "s1", FEN: afterE4, Depth: 20, Score: -0.25, BestMove: "c7c5",
		Lines: []string{"c5 Nf3", "e5 Nf3"}, LastMove: "e2e4", CreatedAt: base,
	}
	id, err := repo.SaveAnalysis(ctx, first)
	if err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	if id == 0 || first.ID != id {
		t.Fatalf("id = %d, record id = %d", id, first.ID)
	}

	got, err := repo.GetAnalysis(ctx, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 2 7", 20)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if diff := cmp.Diff(first, got, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	if _, err := repo.GetAnalysis(ctx, afterE4, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAnalysis miss err = %v; want ErrNotFound", err)
	}

	// same position and depth replaces the stored analysis
	again := &domain.AnalysisRecord{SessionID: "s2", FEN: afterE4, Depth: 20, Score: -0.3, BestMove: "e7e5", CreatedAt: base.Add(time.Minute)}
	id2, err := repo.SaveAnalysis(ctx, again)
	if err != nil {
		t.Fatalf("SaveAnalysis upsert: %v", err)
	}
	if id2 != id {
		t.Errorf("upsert id = %d; want %d", id2, id)
	}

	other := &domain.AnalysisRecord{SessionID: "s2", FEN: "8/8/8/8/8/8/8/K6k w - - 0 1", Depth: 20, BestMove: "a1a2", CreatedAt: base.Add(2 * time.Minute)}
	if _, err := repo.SaveAnalysis(ctx, other); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	recent, err := repo.RecentAnalyses(ctx, "s2", 10)
	if err != nil {
		t.Fatalf("RecentAnalyses: %v", err)
	}
	var moves []string
	for _, r := range recent {
		moves = append(moves, r.BestMove)
	}
	if diff := cmp.Diff([]string{"a1a2", "e7e5"}, moves); diff != "" {
		t.Errorf("recent order mismatch (-want +got):\n%s", diff)
	}

	if none, err := repo.RecentAnalyses(ctx, "s1", 10); err != nil || len(none) != 0 {
		t.Errorf("s1 recent = %v, %v; its record was replaced", none, err)
	}
	all, err := repo.RecentAnalyses(ctx, "", 1)
	if err != nil || len(all) != 1 || all[0].BestMove != "a1a2" {
		t.Errorf("limited recent = %v, %v", all, err)
	}
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	rec := &domain.AnalysisRecord{FEN: afterE4, Depth: 1, Lines: []string{"c5"}}
	if _, err := repo.SaveAnalysis(ctx, rec); err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}
	rec.Lines[0] = "mutated"
	got, err := repo.GetAnalysis(ctx, afterE4, 1)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got.Lines[0] != "c5" {
		t.Errorf("stored record aliased caller slice: %v", got.Lines)
	}
	if _, err := repo.SaveAnalysis(ctx, nil); err == nil {
		t.Error("nil record accepted")
	}
}

func TestPostgresRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, repo, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `TRUNCATE analyses`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	exerciseRepository(t, repo)
}

func TestOpenRequiresURL(t *testing.T) {
	if _, _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("empty url accepted")
	}
}
