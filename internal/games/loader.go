// Package games loads a player's games from PGN archives (.pgn or
// .pgn.zst) into the analysis data model.
package games

import (
	"fmt"
	"strings"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/blunderlab/analysis/internal/game"
)

// Load streams the archive at path and returns the games in which
// player held either side, most-recently-tagged last. Games the player
// did not play are skipped; a parse error from the archive aborts.
func Load(path, player string, log zerolog.Logger) ([]game.Game, error) {
	if player == "" {
		return nil, fmt.Errorf("player name is required")
	}

	parser := pgn.Games(path)
	var out []game.Game
	seen := 0

	for pg := range parser.Games {
		seen++
		color, ok := sideOf(pg, player)
		if !ok {
			continue
		}

		moves := make([]string, 0, len(pg.Moves))
		for _, mv := range pg.Moves {
			moves = append(moves, game.MoveUCI(mv))
		}

		out = append(out, game.Game{
			ID:          gameID(pg, len(out)),
			Moves:       moves,
			PlayerColor: color,
			PlayedAt:    playedAt(pg),
			Result:      pg.Tags["Result"],
		})
	}
	if err := parser.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Str("player", player).
		Int("scanned", seen).
		Int("matched", len(out)).
		Msg("archive loaded")
	return out, nil
}

func sideOf(pg *pgn.Game, player string) (game.Color, bool) {
	switch {
	case strings.EqualFold(pg.Tags["White"], player):
		return game.White, true
	case strings.EqualFold(pg.Tags["Black"], player):
		return game.Black, true
	}
	return game.White, false
}

// gameID prefers the Site tag (lichess and chess.com put the game URL
// there), falling back to a positional ID.
func gameID(pg *pgn.Game, n int) string {
	if site := pg.Tags["Site"]; site != "" && site != "?" {
		return site
	}
	return fmt.Sprintf("game-%04d", n+1)
}

// playedAt combines the UTCDate and UTCTime tags; either may be absent
// or "?". Games without a usable date sort first.
func playedAt(pg *pgn.Game) time.Time {
	date := pg.Tags["UTCDate"]
	if date == "" {
		date = pg.Tags["Date"]
	}
	if date == "" || strings.Contains(date, "?") {
		return time.Time{}
	}
	clock := pg.Tags["UTCTime"]
	if clock == "" || strings.Contains(clock, "?") {
		clock = "00:00:00"
	}
	t, err := time.Parse("2006.01.02 15:04:05", date+" "+clock)
	if err != nil {
		return time.Time{}
	}
	return t
}
