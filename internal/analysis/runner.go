package analysis

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/blunderlab/analysis/internal/classify"
	"github.com/blunderlab/analysis/internal/game"
	"github.com/blunderlab/analysis/internal/stats"
	"github.com/blunderlab/analysis/internal/task"
)

// ErrBusy means the queue is full; the client should retry later.
var ErrBusy = errors.New("analysis queue is full")

type job struct {
	id    string
	games []game.Game
	opts  Options
}

// Runner accepts analysis requests, tracks them as tasks, and feeds a
// single pipeline worker. One run at a time keeps the engine process
// to itself.
type Runner struct {
	pipeline *Pipeline
	tasks    *task.Store
	queue    chan job
	log      zerolog.Logger
	metrics  *stats.Collector
}

func NewRunner(p *Pipeline, tasks *task.Store, queueSize int, log zerolog.Logger, metrics *stats.Collector) *Runner {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Runner{
		pipeline: p,
		tasks:    tasks,
		queue:    make(chan job, queueSize),
		log:      log.With().Str("component", "runner").Logger(),
		metrics:  metrics,
	}
}

// Start registers a task for the given games and enqueues it. An empty
// game list completes immediately; a full queue returns ErrBusy and
// leaves no task behind.
func (r *Runner) Start(games []game.Game, opts Options) (string, error) {
	total := len(games)
	if opts.MaxGames > 0 && total > opts.MaxGames {
		total = opts.MaxGames
	}

	id := r.tasks.Create(total)
	if total == 0 {
		r.tasks.Complete(id, classify.NewReport().Snapshot())
		r.metrics.TaskFinished(string(task.StatusCompleted))
		return id, nil
	}

	select {
	case r.queue <- job{id: id, games: games, opts: opts}:
		r.metrics.SetQueueDepth(len(r.queue))
		r.log.Info().Str("task", id).Int("games", total).Msg("task queued")
		return id, nil
	default:
		r.tasks.Delete(id)
		return "", ErrBusy
	}
}

// Run is the worker loop. It drains the queue until the context is
// canceled; the in-flight task keeps its latest checkpoint.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.queue:
			r.metrics.SetQueueDepth(len(r.queue))
			r.process(ctx, j)
		}
	}
}

func (r *Runner) process(ctx context.Context, j job) {
	log := r.log.With().Str("task", j.id).Logger()
	log.Info().Int("games", len(j.games)).Msg("task started")

	summary, err := r.pipeline.Run(ctx, j.games, j.opts, func(done, total int, partial classify.Summary) bool {
		r.tasks.Progress(j.id, done, partial)
		return ctx.Err() == nil
	})
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown: leave the task at its last checkpoint.
			log.Info().Msg("task interrupted by shutdown")
			return
		}
		r.tasks.Fail(j.id, err.Error())
		r.metrics.TaskFinished(string(task.StatusError))
		log.Error().Err(err).Msg("task failed")
		return
	}

	r.tasks.Complete(j.id, summary)
	r.metrics.TaskFinished(string(task.StatusCompleted))
	log.Info().Int("mistakes", summary.TotalMistakes).Msg("task completed")
}
