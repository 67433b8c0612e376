// Package classify grades evaluated moves and aggregates per-stage
// statistics across games.
package classify

import (
	"github.com/freeeve/pgn/v3"

	"github.com/blunderlab/analysis/internal/eval"
	"github.com/blunderlab/analysis/internal/game"
)

// Quality is the grade assigned to a single move.
type Quality string

const (
	QualityBrilliant Quality = "brilliant"
	QualityNeutral   Quality = "neutral"
	QualityMistake   Quality = "mistake"
)

// Classification thresholds in centipawns, applied to the swing from the
// mover's perspective.
const (
	brilliantThreshold = 100
	mistakeThreshold   = -50
)

// Classify grades a move by its centipawn delta: the score after the
// move (negated back to the mover's perspective, since the opponent is
// then to move) minus the score before.
func Classify(delta int) Quality {
	switch {
	case delta >= brilliantThreshold:
		return QualityBrilliant
	case delta <= mistakeThreshold:
		return QualityMistake
	default:
		return QualityNeutral
	}
}

// Mistake identifies one graded mistake, for worst-mistake reporting.
type Mistake struct {
	GameID     string `json:"game_id"`
	MoveNumber int    `json:"move_number"`
	CPLoss     int    `json:"cp_loss"`
}

// StageCounts accumulates grades for one stage of one game.
type StageCounts struct {
	Brilliant int
	Neutral   int
	Mistakes  int
	CPLoss    int // total centipawns lost across mistakes
	Worst     *Mistake
}

func (c *StageCounts) scored() int {
	return c.Brilliant + c.Neutral + c.Mistakes
}

// GameResult is the graded outcome of a single game.
type GameResult struct {
	GameID string
	Stages map[game.Stage]*StageCounts
}

// ScoreGame grades the selected moves of one game against the resolved
// evaluations. A move missing either its before or after evaluation is
// excluded entirely rather than graded on partial data.
func ScoreGame(gameID string, moves []game.PlayerMove, evals map[pgn.PackedPosition]eval.Evaluation) GameResult {
	gr := GameResult{
		GameID: gameID,
		Stages: make(map[game.Stage]*StageCounts, len(game.Stages)),
	}
	for _, st := range game.Stages {
		gr.Stages[st] = &StageCounts{}
	}

	for _, m := range moves {
		before, okB := evals[m.Before]
		after, okA := evals[m.After]
		if !okB || !okA {
			continue
		}

		// After the move the opponent is to move, so negate to get the
		// swing from the mover's point of view.
		delta := -after.Score - before.Score
		counts := gr.Stages[m.Stage]
		switch Classify(delta) {
		case QualityBrilliant:
			counts.Brilliant++
		case QualityMistake:
			counts.Mistakes++
			loss := -delta
			counts.CPLoss += loss
			if counts.Worst == nil || loss > counts.Worst.CPLoss {
				counts.Worst = &Mistake{GameID: gameID, MoveNumber: m.Number, CPLoss: loss}
			}
		default:
			counts.Neutral++
		}
	}
	return gr
}
