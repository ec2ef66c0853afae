package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/park285/chess-analyzer/internal/chess"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*AnalysisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, time.Minute), mr
}

const afterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

func TestMissReturnsNil(t *testing.T) {
	c, _ := newTestCache(t)
	got, err := c.Get(context.Background(), afterE4, 20)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("Get = %+v; want nil", got)
	}
}

func TestSetGetAndTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	res := chess.Result{FEN: afterE4, Depth: 18, Score: -0.25, BestMove: "c7c5", Lines: []string{"c5 Nf3"}}

	if err := c.Set(ctx, 20, res); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// same position reached later in the game
	got, err := c.Get(ctx, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 4 9", 20)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected a hit for the transposed position")
	}
	if diff := cmp.Diff(res, *got); diff != "" {
		t.Errorf("cached result mismatch (-want +got):\n%s", diff)
	}
	if miss, _ := c.Get(ctx, afterE4, 12); miss != nil {
		t.Error("different depth should miss")
	}

	mr.FastForward(2 * time.Minute)
	if expired, _ := c.Get(ctx, afterE4, 20); expired != nil {
		t.Error("entry survived its TTL")
	}
}

func TestRecentNewestFirstWithoutDuplicates(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	fens := []string{"8/8/8/8/8/8/8/K6k w - - 0 1", "8/8/8/8/8/8/8/K5k1 w - - 0 1", "8/8/8/8/8/8/8/K6k w - - 0 1"}
	for _, f := range fens {
		if err := c.Set(ctx, 20, chess.Result{FEN: f}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	got, err := c.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	want := []string{Key(fens[0], 20), Key(fens[1], 20)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("recent mismatch (-want +got):\n%s", diff)
	}
}

func TestKey(t *testing.T) {
	if got := Key(afterE4, 20); got != "analysis:20:rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq -" {
		t.Errorf("Key = %q", got)
	}
}

func TestDial(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	c, err := Dial(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()), 0)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	if c.ttl != defaultTTL {
		t.Errorf("ttl = %v; want default", c.ttl)
	}
	if _, err := Dial(context.Background(), "", 0); err == nil {
		t.Error("empty url accepted")
	}
}
