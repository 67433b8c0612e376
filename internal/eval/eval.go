// Package eval resolves centipawn scores for chess positions. Lookups go
// to the remote evaluation service first when enabled, falling back to a
// local Stockfish process. All scores are from the side-to-move's
// perspective; mates are clamped to +/-MateScore.
package eval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/blunderlab/analysis/internal/stats"
)

// MateScore is the clamped centipawn value for forced mates.
const MateScore = 10000

// Source records where an evaluation came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Evaluation is a resolved score for one position.
type Evaluation struct {
	Score  int    `json:"score"`
	Source Source `json:"source"`
}

var (
	// ErrUnavailable means this position could not be evaluated but the
	// evaluator is still usable. Callers skip the position.
	ErrUnavailable = errors.New("evaluation unavailable")

	// ErrEngineDown means the local engine died and could not be
	// restarted. The evaluator is unusable; callers abort the run.
	ErrEngineDown = errors.New("engine down")
)

// Config holds evaluator settings. Zero values get defaults in New.
type Config struct {
	StockfishPath string
	NodeBudget    int
	HashMB        int
	Threads       int

	RemoteEnabled bool
	RemoteURL     string
	RemoteTimeout time.Duration

	Logger  zerolog.Logger
	Metrics *stats.Collector
}

// Evaluator resolves position scores. It owns a single warm engine
// process guarded by a mutex; concurrent Evaluate calls serialize on it.
type Evaluator struct {
	cfg     Config
	remote  *remoteClient
	log     zerolog.Logger
	metrics *stats.Collector

	mu    sync.Mutex
	local localBackend
	down  bool
}

// New builds an evaluator and starts the local engine. The engine is
// required; the remote service is best-effort on top of it.
func New(cfg Config) (*Evaluator, error) {
	if cfg.StockfishPath == "" {
		return nil, fmt.Errorf("stockfish path is required")
	}
	if cfg.NodeBudget == 0 {
		cfg.NodeBudget = 150000
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 128
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}
	if cfg.RemoteTimeout == 0 {
		cfg.RemoteTimeout = 3 * time.Second
	}

	e := &Evaluator{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "eval").Logger(),
		metrics: cfg.Metrics,
	}
	if cfg.RemoteEnabled {
		e.remote = newRemoteClient(cfg.RemoteURL, cfg.RemoteTimeout)
	}

	local, err := startEngine(cfg.StockfishPath, cfg.HashMB, cfg.Threads)
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	e.local = local
	e.log.Info().
		Str("stockfish", cfg.StockfishPath).
		Int("nodes", cfg.NodeBudget).
		Bool("remote", cfg.RemoteEnabled).
		Msg("evaluator ready")
	return e, nil
}

// Evaluate resolves the score for one position key. The cache belongs to
// the caller (one per analysis run); hits return immediately and
// successful resolutions are stored back into it. Failed lookups are
// never cached, so a position can succeed on a later attempt.
func (e *Evaluator) Evaluate(ctx context.Context, key pgn.PackedPosition, cache map[pgn.PackedPosition]Evaluation) (Evaluation, error) {
	if ev, ok := cache[key]; ok {
		e.metrics.CacheHit()
		return ev, nil
	}

	pos := key.Unpack()
	if pos == nil {
		return Evaluation{}, fmt.Errorf("%w: unpack failed", ErrUnavailable)
	}
	fen := pos.ToFEN()

	if e.remote != nil {
		score, err := e.remote.lookup(ctx, fen)
		switch {
		case err == nil:
			ev := Evaluation{Score: score, Source: SourceRemote}
			cache[key] = ev
			e.metrics.Evaluation(string(SourceRemote))
			return ev, nil
		case errors.Is(err, errRemoteMiss):
			e.metrics.RemoteMiss()
		default:
			e.metrics.RemoteError()
			e.log.Debug().Err(err).Msg("remote lookup failed, falling back to engine")
		}
	}

	score, err := e.evaluateLocal(fen)
	if err != nil {
		return Evaluation{}, err
	}
	ev := Evaluation{Score: score, Source: SourceLocal}
	cache[key] = ev
	e.metrics.Evaluation(string(SourceLocal))
	return ev, nil
}

// evaluateLocal runs the engine under the mutex. On engine failure it
// restarts the process once and retries: a failed restart is fatal
// (ErrEngineDown), a failed retry after a clean restart skips just this
// position (ErrUnavailable).
func (e *Evaluator) evaluateLocal(fen string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.down {
		return 0, ErrEngineDown
	}

	score, err := e.local.evaluate(fen, e.cfg.NodeBudget)
	if err == nil {
		return score, nil
	}
	e.log.Warn().Err(err).Str("fen", fen).Msg("engine failed, restarting")

	e.local.close()
	e.metrics.EngineRestart()
	local, startErr := startEngine(e.cfg.StockfishPath, e.cfg.HashMB, e.cfg.Threads)
	if startErr != nil {
		e.down = true
		e.log.Error().Err(startErr).Msg("engine restart failed")
		return 0, fmt.Errorf("%w: restart: %v", ErrEngineDown, startErr)
	}
	e.local = local

	score, err = e.local.evaluate(fen, e.cfg.NodeBudget)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return score, nil
}

// Close shuts down the engine process.
func (e *Evaluator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.local != nil {
		e.local.close()
		e.local = nil
	}
	e.down = true
}
