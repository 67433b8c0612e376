// Package config defines service configuration and its loading order:
// defaults, then an optional YAML file, then CHESSLAB_-prefixed
// environment variables.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StockfishPath locates the engine binary.
	StockfishPath string `koanf:"stockfish_path"`

	// NodeBudget bounds the engine search per position.
	NodeBudget int `koanf:"node_budget"`

	// EngineHashMB sizes the engine's transposition table.
	EngineHashMB int `koanf:"engine_hash_mb"`

	// RemoteEnabled turns on the remote evaluation lookup.
	RemoteEnabled bool `koanf:"remote_enabled"`

	// RemoteURL overrides the cloud evaluation endpoint.
	RemoteURL string `koanf:"remote_url"`

	// RemoteTimeout bounds one remote lookup.
	RemoteTimeout time.Duration `koanf:"remote_timeout"`

	// MaxGames caps games analyzed per request.
	MaxGames int `koanf:"max_games"`

	// MovesPerGame caps moves analyzed per game.
	MovesPerGame int `koanf:"moves_per_game"`

	// TaskTTL is how long finished tasks stay pollable.
	TaskTTL time.Duration `koanf:"task_ttl"`

	// QueueSize bounds pending analysis requests.
	QueueSize int `koanf:"queue_size"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		Addr:          ":8080",
		StockfishPath: "stockfish",
		NodeBudget:    150_000,
		EngineHashMB:  128,
		RemoteEnabled: false,
		RemoteTimeout: 3 * time.Second,
		MaxGames:      10,
		MovesPerGame:  15,
		TaskTTL:       10 * time.Minute,
		QueueSize:     4,
	}
}

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables. Precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML), from path or CHESSLAB_CONFIG
//  3. env (prefix CHESSLAB_)
func Load(path string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv("CHESSLAB_CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// CHESSLAB_NODE_BUDGET -> node_budget, matching the koanf tags.
	envProvider := env.Provider("CHESSLAB_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "chesslab_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.StockfishPath == "" {
		return errors.New("stockfish_path must not be empty")
	}
	if c.NodeBudget <= 0 {
		return errors.New("node_budget must be positive")
	}
	if c.MaxGames <= 0 || c.MovesPerGame <= 0 {
		return errors.New("max_games and moves_per_game must be positive")
	}
	if c.QueueSize <= 0 {
		return errors.New("queue_size must be positive")
	}
	return nil
}
