// Package selector chooses the budgeted subset of games and moves to
// analyze. Everything here is pure and deterministic: fixed input always
// yields identical picks, so total pipeline latency is predictable and
// tests can assert exact indices.
package selector

import (
	"sort"

	"github.com/blunderlab/analysis/internal/game"
)

// Games selects up to max games, evenly spaced over the chronological
// range so the sample covers the whole period instead of clustering on
// the most recent games. Input is not mutated.
func Games(all []game.Game, max int) []game.Game {
	sorted := make([]game.Game, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].PlayedAt.Equal(sorted[j].PlayedAt) {
			return sorted[i].PlayedAt.Before(sorted[j].PlayedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	if max <= 0 || len(sorted) <= max {
		return sorted
	}

	out := make([]game.Game, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, sorted[i*len(sorted)/max])
	}
	return out
}

// Moves selects up to budget of the player's moves, split equally across
// the three stages. A stage with fewer candidates than its share yields
// its surplus to the other stages in fixed stage order; a stage with more
// candidates than its share is sampled evenly spaced by index. If the game
// has no more moves than the budget, all of them are selected.
func Moves(moves []game.PlayerMove, budget int) []game.PlayerMove {
	if budget <= 0 || len(moves) <= budget {
		out := make([]game.PlayerMove, len(moves))
		copy(out, moves)
		return out
	}

	byStage := make(map[game.Stage][]game.PlayerMove, len(game.Stages))
	for _, m := range moves {
		byStage[m.Stage] = append(byStage[m.Stage], m)
	}

	targets := splitBudget(budget)

	// First pass: each stage takes up to its own share.
	allot := make(map[game.Stage]int, len(game.Stages))
	taken := 0
	for i, st := range game.Stages {
		n := min(targets[i], len(byStage[st]))
		allot[st] = n
		taken += n
	}

	// Redistribute leftover budget to stages with spare candidates,
	// in fixed stage order.
	for leftover := budget - taken; leftover > 0; {
		progress := 0
		for _, st := range game.Stages {
			spare := len(byStage[st]) - allot[st]
			if spare <= 0 {
				continue
			}
			extra := min(spare, leftover)
			allot[st] += extra
			leftover -= extra
			progress += extra
			if leftover == 0 {
				break
			}
		}
		if progress == 0 {
			break
		}
	}

	out := make([]game.PlayerMove, 0, budget)
	for _, st := range game.Stages {
		out = append(out, sampleEven(byStage[st], allot[st])...)
	}
	return out
}

// splitBudget divides the move budget across the three stages, earlier
// stages absorbing any remainder.
func splitBudget(budget int) [3]int {
	base := budget / 3
	rem := budget % 3
	var t [3]int
	for i := range t {
		t[i] = base
		if i < rem {
			t[i]++
		}
	}
	return t
}

// sampleEven picks n moves evenly spaced by index within the stage,
// floor(j*len/n) for j in 0..n.
func sampleEven(stage []game.PlayerMove, n int) []game.PlayerMove {
	if n >= len(stage) {
		return stage
	}
	out := make([]game.PlayerMove, 0, n)
	for j := 0; j < n; j++ {
		out = append(out, stage[j*len(stage)/n])
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
