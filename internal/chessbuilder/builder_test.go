package chessbuilder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/chess-analyzer/internal/chess/uci"
	"github.com/park285/chess-analyzer/internal/config"
)

type stubBackend struct{}

func (stubBackend) Search(context.Context, uci.Options, uci.SearchRequest) (uci.SearchResponse, error) {
	return uci.SearchResponse{}, errors.New("no engine")
}

func baseConfig() *config.AppConfig {
	return &config.AppConfig{
		AnalysisDepth:   12,
		AnalysisMultiPV: 3,
		CacheTTLSec:     60,
		BoardSize:       240,
	}
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(context.Background(), nil, nil); err == nil {
		t.Error("nil config accepted")
	}
	if _, err := New(context.Background(), baseConfig(), nil); err == nil {
		t.Error("missing STOCKFISH_PATH accepted")
	}
	cfg := baseConfig()
	cfg.StockfishPath = filepath.Join(t.TempDir(), "missing-stockfish")
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Error("missing engine binary accepted")
	}
}

func TestAssembleWithoutStorage(t *testing.T) {
	deps, err := assemble(context.Background(), baseConfig(), stubBackend{}, nil)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	defer deps.Close()

	if deps.Server == nil || deps.Render == nil || deps.Analyzer == nil {
		t.Fatalf("incomplete deps: %+v", deps)
	}
	if deps.Cache != nil {
		t.Error("cache built without REDIS_URL")
	}
	if deps.Repo == nil {
		t.Error("memory archive missing")
	}
	if got := deps.Analyzer.Depth(); got != 12 {
		t.Errorf("depth = %d", got)
	}
}

func TestAssembleWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := baseConfig()
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	deps, err := assemble(context.Background(), cfg, stubBackend{}, nil)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if deps.Cache == nil {
		t.Fatal("cache not built")
	}
	if err := deps.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestAssembleRejectsBadInputs(t *testing.T) {
	cfg := baseConfig()
	cfg.RedisURL = "http://not-redis"
	if _, err := assemble(context.Background(), cfg, stubBackend{}, nil); err == nil {
		t.Error("bad redis url accepted")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("commentary: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg = baseConfig()
	cfg.MessagesDir = dir
	if _, err := assemble(context.Background(), cfg, stubBackend{}, nil); err == nil {
		t.Error("broken messages accepted")
	}
}
