package eval

import (
	"fmt"

	"github.com/freeeve/uci"
)

// localBackend abstracts the engine process so tests can stub it.
type localBackend interface {
	evaluate(fen string, nodes int) (int, error)
	close()
}

// startEngine is swapped out in tests.
var startEngine = func(path string, hashMB, threads int) (localBackend, error) {
	eng, err := uci.NewEngine(path)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	opts := uci.Options{
		Hash:    hashMB,
		Threads: threads,
		MultiPV: 1,
		Ponder:  false,
		OwnBook: false,
	}
	if err := eng.SetOptions(opts); err != nil {
		eng.Close()
		return nil, fmt.Errorf("set engine options: %w", err)
	}
	return &uciBackend{eng: eng}, nil
}

// uciBackend wraps a warm Stockfish process.
type uciBackend struct {
	eng *uci.Engine
}

func (b *uciBackend) evaluate(fen string, nodes int) (int, error) {
	if err := b.eng.SetFEN(fen); err != nil {
		return 0, fmt.Errorf("set FEN: %w", err)
	}

	results, err := b.eng.GoNodes(int64(nodes), uci.HighestDepthOnly)
	if err != nil {
		return 0, fmt.Errorf("engine search: %w", err)
	}
	if len(results.Results) == 0 {
		return 0, fmt.Errorf("no results from engine")
	}

	best := results.Results[0]
	for _, r := range results.Results {
		if r.Depth > best.Depth {
			best = r
		}
	}

	// Scores stay in the side-to-move's perspective. Mates are clamped
	// so they dominate any positional score.
	if best.Mate {
		if best.Score > 0 {
			return MateScore, nil
		}
		return -MateScore, nil
	}
	return best.Score, nil
}

func (b *uciBackend) close() {
	b.eng.Close()
}
