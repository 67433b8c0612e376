// Command analyze runs the move-quality pipeline against a PGN archive
// and prints a per-stage report, optionally writing the full summary as
// JSON (zstd-compressed when the path ends in .zst).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/blunderlab/analysis/internal/analysis"
	"github.com/blunderlab/analysis/internal/classify"
	"github.com/blunderlab/analysis/internal/eval"
	"github.com/blunderlab/analysis/internal/games"
	"github.com/blunderlab/analysis/internal/logx"
)

func main() {
	defaultStockfish := "stockfish"
	if envPath := os.Getenv("STOCKFISH_PATH"); envPath != "" {
		defaultStockfish = envPath
	}

	var (
		pgnPath       = flag.String("pgn", "", "PGN archive (.pgn or .pgn.zst)")
		player        = flag.String("player", "", "player name to analyze")
		maxGames      = flag.Int("max-games", 10, "games to analyze")
		movesPerGame  = flag.Int("moves-per-game", 15, "moves to analyze per game")
		stockfishPath = flag.String("stockfish", defaultStockfish, "path to Stockfish executable")
		nodes         = flag.Int("nodes", 150000, "engine node budget per position")
		remote        = flag.Bool("remote", false, "look up positions in the cloud eval service first")
		outPath       = flag.String("out", "", "write the summary JSON here (.zst compresses)")
		logLevel      = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger := logx.NewLogger(*logLevel)
	if *pgnPath == "" || *player == "" {
		logger.Fatal().Msg("-pgn and -player are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loaded, err := games.Load(*pgnPath, *player, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("load archive")
	}
	if len(loaded) == 0 {
		logger.Fatal().Str("player", *player).Msg("no games found for player")
	}

	evaluator, err := eval.New(eval.Config{
		StockfishPath: *stockfishPath,
		NodeBudget:    *nodes,
		RemoteEnabled: *remote,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create evaluator")
	}
	defer evaluator.Close()

	pipeline := analysis.NewPipeline(evaluator, logger, nil)
	start := time.Now()

	summary, err := pipeline.Run(ctx, loaded, analysis.Options{
		MaxGames:     *maxGames,
		MovesPerGame: *movesPerGame,
	}, func(done, total int, partial classify.Summary) bool {
		logger.Info().
			Int("done", done).
			Int("total", total).
			Int("mistakes", partial.TotalMistakes).
			Msg("progress")
		return ctx.Err() == nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("analysis failed")
	}

	logger.Info().Dur("elapsed", time.Since(start)).Msg("analysis complete")
	printSummary(summary)

	if *outPath != "" {
		if err := writeSummary(*outPath, summary); err != nil {
			logger.Fatal().Err(err).Str("path", *outPath).Msg("write summary")
		}
		logger.Info().Str("path", *outPath).Msg("summary written")
	}
}

func printSummary(s classify.Summary) {
	fmt.Printf("%-8s %10s %8s %9s %7s %12s %12s\n",
		"stage", "brilliant", "neutral", "mistakes", "games", "avg/game", "avg cp loss")
	for _, st := range s.Stages {
		fmt.Printf("%-8s %10d %8d %9d %7d %12.2f %12.1f\n",
			st.Stage, st.Brilliant, st.Neutral, st.Mistakes,
			st.GamesContributing, st.AvgMistakesPerGame, st.AvgCPLoss)
	}
	fmt.Printf("\ntotal mistakes: %d\n", s.TotalMistakes)
	if s.WeakestStage != "" {
		fmt.Printf("weakest stage:  %s\n", s.WeakestStage)
	} else {
		fmt.Printf("weakest stage:  none (%s)\n", s.WeakestStageReason)
	}
}

func writeSummary(path string, s classify.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		if err := json.NewEncoder(enc).Encode(s); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	}

	je := json.NewEncoder(f)
	je.SetIndent("", "  ")
	return je.Encode(s)
}
