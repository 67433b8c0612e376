// Package game holds the data model for analyzed games: the game record
// supplied by the game-source collaborator, the player's half-moves produced
// by replaying it, and the stage buckets those moves fall into.
package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/freeeve/pgn/v3"
)

// Color is the side the analyzed player held in a game.
type Color int8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// ParseColor parses "white"/"black" (case-insensitive).
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(s) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	}
	return White, fmt.Errorf("invalid color %q", s)
}

// Stage is one of the three phases a player's move is bucketed into.
type Stage int8

const (
	StageEarly Stage = iota
	StageMiddle
	StageLate
)

// Stages lists all stages in fixed order. Redistribution and tie-breaking
// both depend on this order.
var Stages = []Stage{StageEarly, StageMiddle, StageLate}

func (s Stage) String() string {
	switch s {
	case StageEarly:
		return "early"
	case StageMiddle:
		return "middle"
	case StageLate:
		return "late"
	}
	return "unknown"
}

// Stage boundaries, counted over the analyzed player's own half-moves.
const (
	earlyStageEnd  = 15
	middleStageEnd = 30
)

// StageOf buckets the n-th (1-based) of the player's own moves.
func StageOf(n int) Stage {
	switch {
	case n <= earlyStageEnd:
		return StageEarly
	case n <= middleStageEnd:
		return StageMiddle
	default:
		return StageLate
	}
}

// Game is one recorded game as supplied by the game source. Moves are in
// SAN or UCI notation, full game from move one, both sides interleaved.
// The struct is read-only to this subsystem.
type Game struct {
	ID          string    `json:"id"`
	Moves       []string  `json:"moves"`
	PlayerColor Color     `json:"-"`
	PlayedAt    time.Time `json:"played_at"`
	Result      string    `json:"result"`
}

// PlayerMove is one of the analyzed player's half-moves, with the position
// keys needed to score it. Before is the position with the player to move,
// After the position handed to the opponent.
type PlayerMove struct {
	Ply    int // 1-based half-move index in the full game
	Number int // 1-based index among the player's own moves
	Stage  Stage
	Before pgn.PackedPosition
	After  pgn.PackedPosition
}

// Replay walks the game's move list and returns the player's half-moves
// with their surrounding position keys. Packed keys are canonical for the
// board, so transposed positions collapse to the same key. A move that
// fails to parse or apply aborts the replay; the caller treats that as a
// game-level failure and skips the game.
func Replay(g *Game) ([]PlayerMove, error) {
	pos := pgn.NewStartingPosition()
	out := make([]PlayerMove, 0, len(g.Moves)/2+1)
	number := 0

	for i, text := range g.Moves {
		whiteToMove := i%2 == 0
		isPlayer := whiteToMove == (g.PlayerColor == White)

		var before pgn.PackedPosition
		if isPlayer {
			before = pos.Pack()
		}

		mv, err := ParseMove(pos, text)
		if err != nil {
			return nil, fmt.Errorf("move %d %q: %w", i+1, text, err)
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return nil, fmt.Errorf("apply move %d %q: %w", i+1, text, err)
		}

		if isPlayer {
			number++
			out = append(out, PlayerMove{
				Ply:    i + 1,
				Number: number,
				Stage:  StageOf(number),
				Before: before,
				After:  pos.Pack(),
			})
		}
	}
	return out, nil
}

// FEN renders the position behind a packed key. Move counters are not part
// of the packed key, so the rendered FEN carries defaults; evaluation does
// not depend on them.
func FEN(key pgn.PackedPosition) (string, error) {
	pos := key.Unpack()
	if pos == nil {
		return "", fmt.Errorf("unpack position key %s", key.String())
	}
	return pos.ToFEN(), nil
}
