package classify

import (
	"fmt"

	"github.com/blunderlab/analysis/internal/game"
)

// Report accumulates graded games into per-stage totals. It is not
// safe for concurrent use; the pipeline owns one per run.
type Report struct {
	buckets map[game.Stage]*StageCounts
	contrib map[game.Stage]int
}

// NewReport returns an empty report with all three stage buckets
// present, so a snapshot always lists every stage even before any
// game lands in it.
func NewReport() *Report {
	r := &Report{
		buckets: make(map[game.Stage]*StageCounts, len(game.Stages)),
		contrib: make(map[game.Stage]int, len(game.Stages)),
	}
	for _, st := range game.Stages {
		r.buckets[st] = &StageCounts{}
	}
	return r
}

// AddGame folds one graded game into the totals. A stage counts the
// game as contributing only when at least one of its moves was scored.
func (r *Report) AddGame(gr GameResult) {
	for _, st := range game.Stages {
		gc := gr.Stages[st]
		if gc == nil || gc.scored() == 0 {
			continue
		}
		b := r.buckets[st]
		b.Brilliant += gc.Brilliant
		b.Neutral += gc.Neutral
		b.Mistakes += gc.Mistakes
		b.CPLoss += gc.CPLoss
		if gc.Worst != nil && (b.Worst == nil || gc.Worst.CPLoss > b.Worst.CPLoss) {
			w := *gc.Worst
			b.Worst = &w
		}
		r.contrib[st]++
	}
}

// StageSummary is the per-stage slice of a snapshot.
type StageSummary struct {
	Stage               string   `json:"stage"`
	Brilliant           int      `json:"brilliant"`
	Neutral             int      `json:"neutral"`
	Mistakes            int      `json:"mistakes"`
	GamesContributing   int      `json:"games_contributing"`
	AvgBrilliantPerGame float64  `json:"avg_brilliant_per_game"`
	AvgNeutralPerGame   float64  `json:"avg_neutral_per_game"`
	AvgMistakesPerGame  float64  `json:"avg_mistakes_per_game"`
	AvgCPLoss           float64  `json:"avg_cp_loss"`
	WorstMistake        *Mistake `json:"worst_mistake,omitempty"`
}

// Summary is a point-in-time view of the report, safe to hand to other
// goroutines: it shares no memory with the report.
type Summary struct {
	Stages             []StageSummary `json:"stages"`
	TotalMistakes      int            `json:"total_mistakes"`
	WeakestStage       string         `json:"weakest_stage,omitempty"`
	WeakestStageReason string         `json:"weakest_stage_reason,omitempty"`
}

// Snapshot renders the current totals. The weakest stage is the one
// with the highest mistake rate per contributing game; on a tie the
// later stage wins. With no mistakes at all, no stage is singled out.
func (r *Report) Snapshot() Summary {
	s := Summary{Stages: make([]StageSummary, 0, len(game.Stages))}

	weakest := ""
	weakestRate := 0.0
	for _, st := range game.Stages {
		b := r.buckets[st]
		n := r.contrib[st]
		ss := StageSummary{
			Stage:             st.String(),
			Brilliant:         b.Brilliant,
			Neutral:           b.Neutral,
			Mistakes:          b.Mistakes,
			GamesContributing: n,
		}
		if n > 0 {
			ss.AvgBrilliantPerGame = float64(b.Brilliant) / float64(n)
			ss.AvgNeutralPerGame = float64(b.Neutral) / float64(n)
			ss.AvgMistakesPerGame = float64(b.Mistakes) / float64(n)
		}
		if b.Mistakes > 0 {
			ss.AvgCPLoss = float64(b.CPLoss) / float64(b.Mistakes)
		}
		if b.Worst != nil {
			w := *b.Worst
			ss.WorstMistake = &w
		}
		s.Stages = append(s.Stages, ss)
		s.TotalMistakes += b.Mistakes

		if b.Mistakes > 0 && ss.AvgMistakesPerGame >= weakestRate {
			weakest = st.String()
			weakestRate = ss.AvgMistakesPerGame
		}
	}

	if s.TotalMistakes == 0 {
		s.WeakestStageReason = "no mistakes detected"
		return s
	}
	s.WeakestStage = weakest
	s.WeakestStageReason = fmt.Sprintf("highest mistake rate (%.2f per game)", weakestRate)
	return s
}
