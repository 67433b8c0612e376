package eval

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/freeeve/pgn/v3"
)

// fakeBackend scripts engine responses per call: each entry in script is
// either an error or a score.
type fakeBackend struct {
	script []any
	calls  int
	closed bool
}

func (f *fakeBackend) evaluate(fen string, nodes int) (int, error) {
	f.calls++
	if len(f.script) == 0 {
		return 0, errors.New("unscripted call")
	}
	step := f.script[0]
	f.script = f.script[1:]
	if err, ok := step.(error); ok {
		return 0, err
	}
	return step.(int), nil
}

func (f *fakeBackend) close() { f.closed = true }

// stubEngine replaces the engine factory for the test. Each call to the
// factory pops the next backend; a nil entry makes the start fail.
func stubEngine(t *testing.T, backends ...*fakeBackend) {
	t.Helper()
	orig := startEngine
	startEngine = func(path string, hashMB, threads int) (localBackend, error) {
		if len(backends) == 0 {
			t.Fatal("unexpected engine start")
		}
		b := backends[0]
		backends = backends[1:]
		if b == nil {
			return nil, errors.New("spawn failed")
		}
		return b, nil
	}
	t.Cleanup(func() { startEngine = orig })
}

func newTestEvaluator(t *testing.T, cfg Config) *Evaluator {
	t.Helper()
	cfg.StockfishPath = "/usr/bin/stockfish"
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func startKey() pgn.PackedPosition {
	return pgn.NewStartingPosition().Pack()
}

func TestEvaluate_CacheHit(t *testing.T) {
	stubEngine(t, &fakeBackend{})
	e := newTestEvaluator(t, Config{})

	key := startKey()
	cache := map[pgn.PackedPosition]Evaluation{
		key: {Score: 42, Source: SourceRemote},
	}
	ev, err := e.Evaluate(context.Background(), key, cache)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Score != 42 || ev.Source != SourceRemote {
		t.Errorf("got %+v, want cached {42 remote}", ev)
	}
}

func TestEvaluate_LocalFallbackCaches(t *testing.T) {
	stubEngine(t, &fakeBackend{script: []any{17}})
	e := newTestEvaluator(t, Config{})

	key := startKey()
	cache := map[pgn.PackedPosition]Evaluation{}
	ev, err := e.Evaluate(context.Background(), key, cache)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Score != 17 || ev.Source != SourceLocal {
		t.Errorf("got %+v, want {17 local}", ev)
	}
	if got, ok := cache[key]; !ok || got != ev {
		t.Error("successful evaluation not written to cache")
	}
}

func TestEvaluate_RemoteHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fen") == "" {
			t.Error("missing fen query parameter")
		}
		fmt.Fprint(w, `{"pvs":[{"cp":34}]}`)
	}))
	defer srv.Close()

	backend := &fakeBackend{}
	stubEngine(t, backend)
	e := newTestEvaluator(t, Config{
		RemoteEnabled: true,
		RemoteURL:     srv.URL,
		RemoteTimeout: time.Second,
	})

	cache := map[pgn.PackedPosition]Evaluation{}
	ev, err := e.Evaluate(context.Background(), startKey(), cache)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Score != 34 || ev.Source != SourceRemote {
		t.Errorf("got %+v, want {34 remote}", ev)
	}
	if backend.calls != 0 {
		t.Errorf("engine called %d times on a remote hit", backend.calls)
	}
}

func TestEvaluate_RemoteMateClamped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pvs":[{"mate":-2}]}`)
	}))
	defer srv.Close()

	stubEngine(t, &fakeBackend{})
	e := newTestEvaluator(t, Config{RemoteEnabled: true, RemoteURL: srv.URL})

	ev, err := e.Evaluate(context.Background(), startKey(), map[pgn.PackedPosition]Evaluation{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Score != -MateScore {
		t.Errorf("mate score = %d, want %d", ev.Score, -MateScore)
	}
}

func TestEvaluate_RemoteMissFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	stubEngine(t, &fakeBackend{script: []any{-8}})
	e := newTestEvaluator(t, Config{RemoteEnabled: true, RemoteURL: srv.URL})

	ev, err := e.Evaluate(context.Background(), startKey(), map[pgn.PackedPosition]Evaluation{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Source != SourceLocal || ev.Score != -8 {
		t.Errorf("got %+v, want local fallback {-8 local}", ev)
	}
}

func TestEvaluate_RemoteErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	stubEngine(t, &fakeBackend{script: []any{5}})
	e := newTestEvaluator(t, Config{RemoteEnabled: true, RemoteURL: srv.URL})

	ev, err := e.Evaluate(context.Background(), startKey(), map[pgn.PackedPosition]Evaluation{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Source != SourceLocal {
		t.Errorf("source = %s, want local", ev.Source)
	}
}

func TestEvaluate_RestartRecovers(t *testing.T) {
	first := &fakeBackend{script: []any{errors.New("engine crashed")}}
	second := &fakeBackend{script: []any{66}}
	stubEngine(t, first, second)
	e := newTestEvaluator(t, Config{})

	ev, err := e.Evaluate(context.Background(), startKey(), map[pgn.PackedPosition]Evaluation{})
	if err != nil {
		t.Fatalf("Evaluate after restart: %v", err)
	}
	if ev.Score != 66 {
		t.Errorf("score = %d, want 66 from restarted engine", ev.Score)
	}
	if !first.closed {
		t.Error("crashed engine was not closed before restart")
	}
}

func TestEvaluate_RestartFailureIsFatal(t *testing.T) {
	first := &fakeBackend{script: []any{errors.New("engine crashed")}}
	stubEngine(t, first, nil)
	e := newTestEvaluator(t, Config{})

	cache := map[pgn.PackedPosition]Evaluation{}
	_, err := e.Evaluate(context.Background(), startKey(), cache)
	if !errors.Is(err, ErrEngineDown) {
		t.Fatalf("err = %v, want ErrEngineDown", err)
	}
	if len(cache) != 0 {
		t.Error("failed lookup was cached")
	}

	// The evaluator stays down.
	_, err = e.Evaluate(context.Background(), startKey(), cache)
	if !errors.Is(err, ErrEngineDown) {
		t.Errorf("second call err = %v, want ErrEngineDown", err)
	}
}

func TestEvaluate_RetryFailureIsTransient(t *testing.T) {
	first := &fakeBackend{script: []any{errors.New("engine crashed")}}
	second := &fakeBackend{script: []any{errors.New("still broken"), 12}}
	stubEngine(t, first, second)
	e := newTestEvaluator(t, Config{})

	cache := map[pgn.PackedPosition]Evaluation{}
	_, err := e.Evaluate(context.Background(), startKey(), cache)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if errors.Is(err, ErrEngineDown) {
		t.Fatal("transient failure reported as fatal")
	}

	// Next position still works against the restarted engine.
	ev, err := e.Evaluate(context.Background(), startKey(), cache)
	if err != nil {
		t.Fatalf("Evaluate after transient failure: %v", err)
	}
	if ev.Score != 12 {
		t.Errorf("score = %d, want 12", ev.Score)
	}
}

func TestNew_RequiresEnginePath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New accepted empty stockfish path")
	}
}
