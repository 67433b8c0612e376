// Package analysis runs the move-quality pipeline: select games, replay
// and sample moves, resolve evaluations, grade, and aggregate per-stage
// results.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/blunderlab/analysis/internal/classify"
	"github.com/blunderlab/analysis/internal/dedup"
	"github.com/blunderlab/analysis/internal/eval"
	"github.com/blunderlab/analysis/internal/game"
	"github.com/blunderlab/analysis/internal/selector"
	"github.com/blunderlab/analysis/internal/stats"
)

// Evaluator resolves a position score, consulting and filling the
// caller-owned cache. Satisfied by *eval.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, key pgn.PackedPosition, cache map[pgn.PackedPosition]eval.Evaluation) (eval.Evaluation, error)
}

// Options bounds one analysis run.
type Options struct {
	MaxGames     int
	MovesPerGame int
}

// ProgressFunc is called after each game with the games finished so
// far, the total, and the current partial summary. Returning false
// stops the run at that checkpoint.
type ProgressFunc func(done, total int, partial classify.Summary) bool

// Pipeline is the analysis engine shared by the HTTP runner and the CLI.
type Pipeline struct {
	eval    Evaluator
	log     zerolog.Logger
	metrics *stats.Collector
}

func NewPipeline(ev Evaluator, log zerolog.Logger, metrics *stats.Collector) *Pipeline {
	return &Pipeline{
		eval:    ev,
		log:     log.With().Str("component", "pipeline").Logger(),
		metrics: metrics,
	}
}

// Run analyzes the given games and returns the aggregated summary.
// Games that fail to replay are skipped and logged; position-level
// evaluation failures exclude just the affected moves. A dead engine
// aborts the whole run.
func (p *Pipeline) Run(ctx context.Context, games []game.Game, opts Options, onProgress ProgressFunc) (classify.Summary, error) {
	selected := selector.Games(games, opts.MaxGames)
	report := classify.NewReport()

	// One evaluation cache per run: transpositions across games and
	// the shared before/after positions within a game resolve once.
	cache := make(map[pgn.PackedPosition]eval.Evaluation)

	for i, g := range selected {
		if err := ctx.Err(); err != nil {
			return report.Snapshot(), err
		}
		start := time.Now()

		if err := p.analyzeGame(ctx, g, opts, cache, report); err != nil {
			if errors.Is(err, eval.ErrEngineDown) {
				return report.Snapshot(), fmt.Errorf("game %s: %w", g.ID, err)
			}
			p.metrics.GameSkipped()
			p.log.Warn().Err(err).Str("game", g.ID).Msg("skipping game")
		}

		p.metrics.ObserveGameDuration(time.Since(start).Seconds())
		if onProgress != nil && !onProgress(i+1, len(selected), report.Snapshot()) {
			return report.Snapshot(), nil
		}
	}
	return report.Snapshot(), nil
}

func (p *Pipeline) analyzeGame(ctx context.Context, g game.Game, opts Options, cache map[pgn.PackedPosition]eval.Evaluation, report *classify.Report) error {
	moves, err := game.Replay(&g)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	picked := selector.Moves(moves, opts.MovesPerGame)

	keys := make([]pgn.PackedPosition, 0, 2*len(picked))
	for _, m := range picked {
		keys = append(keys, m.Before, m.After)
	}

	for _, key := range dedup.Unique(keys) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := p.eval.Evaluate(ctx, key, cache); err != nil {
			if errors.Is(err, eval.ErrEngineDown) {
				return err
			}
			// Transient miss: moves touching this position drop out
			// during grading.
			p.log.Debug().Err(err).Str("game", g.ID).Msg("position unavailable")
		}
	}

	report.AddGame(classify.ScoreGame(g.ID, picked, cache))
	return nil
}
