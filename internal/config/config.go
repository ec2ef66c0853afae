package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	StockfishPath   string `yaml:"stockfish_path"`
	EngineThreads   int    `yaml:"engine_threads"`
	EngineHashMB    int    `yaml:"engine_hash_mb"`
	EngineCapacity  int    `yaml:"engine_capacity"`
	AnalysisDepth   int    `yaml:"analysis_depth"`
	AnalysisMultiPV int    `yaml:"analysis_multipv"`

	WSAddr     string `yaml:"ws_addr"`
	RenderAddr string `yaml:"render_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`

	BoardSize   int    `yaml:"board_size"`
	MessagesDir string `yaml:"messages_dir"`
}

func defaults() *AppConfig {
	return &AppConfig{
		EngineThreads:   1,
		EngineHashMB:    64,
		AnalysisDepth:   20,
		AnalysisMultiPV: 3,
		WSAddr:          ":8000",
		RenderAddr:      ":8001",
		CacheTTLSec:     3600,
		BoardSize:       480,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// ANALYZER_CONFIG when set, and finally the environment.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("ANALYZER_CONFIG")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	setString(&c.StockfishPath, "STOCKFISH_PATH")
	setString(&c.WSAddr, "WS_ADDR")
	setString(&c.RenderAddr, "RENDER_ADDR")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.MessagesDir, "MESSAGES_DIR")

	setPositiveInt(&c.EngineThreads, "ENGINE_THREADS")
	setPositiveInt(&c.EngineHashMB, "ENGINE_HASH_MB")
	setPositiveInt(&c.EngineCapacity, "ENGINE_CAPACITY")
	setPositiveInt(&c.AnalysisDepth, "ANALYSIS_DEPTH")
	setPositiveInt(&c.AnalysisMultiPV, "ANALYSIS_MULTIPV")
	setPositiveInt(&c.CacheTTLSec, "CACHE_TTL_SEC")
	setPositiveInt(&c.BoardSize, "BOARD_SIZE")
}

func (c *AppConfig) validate() error {
	if c.AnalysisDepth <= 0 {
		return errors.New("analysis depth must be positive")
	}
	if c.AnalysisMultiPV <= 0 {
		return errors.New("analysis multipv must be positive")
	}
	if c.BoardSize < 64 {
		return fmt.Errorf("board size %d too small", c.BoardSize)
	}
	return nil
}

// RequireEngine reports whether the engine binary is configured.
func (c *AppConfig) RequireEngine() error {
	if c.StockfishPath == "" {
		return errors.New("STOCKFISH_PATH is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setPositiveInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	}
}
