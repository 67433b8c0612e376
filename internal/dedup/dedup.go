// Package dedup collapses a batch of required position keys into a unique
// worklist before anything is sent to the evaluator, so the warm engine
// sees one flat sequence instead of per-move start/stop bursts and a
// transposed position is evaluated once.
package dedup

import "github.com/freeeve/pgn/v3"

// Unique returns the distinct position keys, first occurrence order
// preserved. Pure function; the input is not modified.
func Unique(keys []pgn.PackedPosition) []pgn.PackedPosition {
	seen := make(map[pgn.PackedPosition]struct{}, len(keys))
	out := make([]pgn.PackedPosition, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
