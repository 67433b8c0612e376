package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/blunderlab/analysis/internal/analysis"
	"github.com/blunderlab/analysis/internal/config"
	"github.com/blunderlab/analysis/internal/eval"
	"github.com/blunderlab/analysis/internal/httpapi"
	"github.com/blunderlab/analysis/internal/logx"
	"github.com/blunderlab/analysis/internal/stats"
	"github.com/blunderlab/analysis/internal/task"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := logx.NewLogger("info")
		fallback.Fatal().Err(err).Msg("load config")
	}

	logger := logx.NewLogger(cfg.LogLevel)

	if envPath := os.Getenv("STOCKFISH_PATH"); envPath != "" {
		cfg.StockfishPath = envPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := stats.NewCollector(registry)

	evaluator, err := eval.New(eval.Config{
		StockfishPath: cfg.StockfishPath,
		NodeBudget:    cfg.NodeBudget,
		HashMB:        cfg.EngineHashMB,
		RemoteEnabled: cfg.RemoteEnabled,
		RemoteURL:     cfg.RemoteURL,
		RemoteTimeout: cfg.RemoteTimeout,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create evaluator")
	}
	defer evaluator.Close()

	tasks := task.NewStore(cfg.TaskTTL, logger)
	go tasks.Janitor(ctx, time.Minute)

	pipeline := analysis.NewPipeline(evaluator, logger, metrics)
	runner := analysis.NewRunner(pipeline, tasks, cfg.QueueSize, logger, metrics)
	go runner.Run(ctx)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewRouter(logger, runner, tasks, httpapi.Limits{
			MaxGames:     cfg.MaxGames,
			MovesPerGame: cfg.MovesPerGame,
		}, registry),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("api server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}
