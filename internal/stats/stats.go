// Package stats exposes Prometheus collectors for the analysis pipeline.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the pipeline's metrics. A nil *Collector is valid and
// turns every method into a no-op, so tests and the CLI can run without a
// registry.
type Collector struct {
	evaluations    *prometheus.CounterVec
	remoteMisses   prometheus.Counter
	remoteErrors   prometheus.Counter
	cacheHits      prometheus.Counter
	engineRestarts prometheus.Counter
	gamesSkipped   prometheus.Counter
	tasksFinished  *prometheus.CounterVec
	gameDuration   prometheus.Histogram
	queueDepth     prometheus.Gauge
}

// NewCollector creates and registers the collectors.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_evaluations_total",
			Help: "Position evaluations by source (remote or local).",
		}, []string{"source"}),
		remoteMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_remote_misses_total",
			Help: "Positions not found in the remote evaluation dataset.",
		}),
		remoteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_remote_errors_total",
			Help: "Remote evaluation lookups that failed or timed out.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_cache_hits_total",
			Help: "Evaluations served from the per-task position cache.",
		}),
		engineRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_engine_restarts_total",
			Help: "Local engine process restarts.",
		}),
		gamesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysis_games_skipped_total",
			Help: "Games skipped due to game-level failures.",
		}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_tasks_finished_total",
			Help: "Analysis tasks by terminal status.",
		}, []string{"status"}),
		gameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analysis_game_duration_seconds",
			Help:    "Wall-clock time to analyze one game.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analysis_queue_depth",
			Help: "Tasks waiting for the pipeline worker.",
		}),
	}
	reg.MustRegister(
		c.evaluations, c.remoteMisses, c.remoteErrors, c.cacheHits,
		c.engineRestarts, c.gamesSkipped, c.tasksFinished,
		c.gameDuration, c.queueDepth,
	)
	return c
}

func (c *Collector) Evaluation(source string) {
	if c != nil {
		c.evaluations.WithLabelValues(source).Inc()
	}
}

func (c *Collector) RemoteMiss() {
	if c != nil {
		c.remoteMisses.Inc()
	}
}

func (c *Collector) RemoteError() {
	if c != nil {
		c.remoteErrors.Inc()
	}
}

func (c *Collector) CacheHit() {
	if c != nil {
		c.cacheHits.Inc()
	}
}

func (c *Collector) EngineRestart() {
	if c != nil {
		c.engineRestarts.Inc()
	}
}

func (c *Collector) GameSkipped() {
	if c != nil {
		c.gamesSkipped.Inc()
	}
}

func (c *Collector) TaskFinished(status string) {
	if c != nil {
		c.tasksFinished.WithLabelValues(status).Inc()
	}
}

func (c *Collector) ObserveGameDuration(seconds float64) {
	if c != nil {
		c.gameDuration.Observe(seconds)
	}
}

func (c *Collector) SetQueueDepth(n int) {
	if c != nil {
		c.queueDepth.Set(float64(n))
	}
}
