package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/blunderlab/analysis/internal/analysis"
	"github.com/blunderlab/analysis/internal/eval"
	"github.com/blunderlab/analysis/internal/task"
)

// stubEval grades every position: black-to-move positions score +80,
// which makes each white move a mistake.
type stubEval struct{}

func (stubEval) Evaluate(ctx context.Context, key pgn.PackedPosition, cache map[pgn.PackedPosition]eval.Evaluation) (eval.Evaluation, error) {
	if ev, ok := cache[key]; ok {
		return ev, nil
	}
	score := 0
	if strings.Contains(key.Unpack().ToFEN(), " b ") {
		score = 80
	}
	ev := eval.Evaluation{Score: score, Source: eval.SourceLocal}
	cache[key] = ev
	return ev, nil
}

type testServer struct {
	srv    *httptest.Server
	tasks  *task.Store
	cancel context.CancelFunc
}

func newTestServer(t *testing.T, queueSize int, withWorker bool) *testServer {
	t.Helper()
	log := zerolog.Nop()
	tasks := task.NewStore(time.Minute, log)
	pipeline := analysis.NewPipeline(stubEval{}, log, nil)
	runner := analysis.NewRunner(pipeline, tasks, queueSize, log, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if withWorker {
		go runner.Run(ctx)
	}

	router := NewRouter(log, runner, tasks, Limits{MaxGames: 10, MovesPerGame: 15}, nil)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{srv: srv, tasks: tasks, cancel: cancel}
}

func submitBody() []byte {
	return []byte(`{
		"games": [
			{"id": "g1", "moves": ["e4", "e5", "Nf3", "Nc6"], "color": "white"}
		]
	}`)
}

func postAnalysis(t *testing.T, ts *testServer, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.srv.URL+"/v1/analysis", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestSubmitAndPoll(t *testing.T) {
	ts := newTestServer(t, 4, true)

	resp := postAnalysis(t, ts, submitBody())
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	start := decode[StartResponse](t, resp)
	if start.TaskID == "" {
		t.Fatal("empty task id")
	}

	var got TaskResponse
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, err := http.Get(ts.srv.URL + "/v1/analysis/" + start.TaskID)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		if r.StatusCode != http.StatusOK {
			t.Fatalf("GET status = %d", r.StatusCode)
		}
		got = decode[TaskResponse](t, r)
		if got.Status != "processing" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got.Status != "completed" {
		t.Fatalf("final status = %q, error = %q", got.Status, got.Error)
	}
	if got.GamesCompleted != 1 || got.GamesTotal != 1 {
		t.Errorf("progress = %d/%d", got.GamesCompleted, got.GamesTotal)
	}
	if got.Result == nil {
		t.Fatal("completed task has no result")
	}
	if got.Result.TotalMistakes != 2 {
		t.Errorf("total mistakes = %d, want 2", got.Result.TotalMistakes)
	}
	if len(got.Result.Stages) != 3 {
		t.Errorf("stages = %d, want 3", len(got.Result.Stages))
	}
	if got.Result.WeakestStage != "early" {
		t.Errorf("weakest stage = %q", got.Result.WeakestStage)
	}
}

func TestSubmit_InvalidColor(t *testing.T) {
	ts := newTestServer(t, 4, true)
	body := []byte(`{"games": [{"moves": ["e4"], "color": "purple"}]}`)
	resp := postAnalysis(t, ts, body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubmit_EmptyGamesCompletesImmediately(t *testing.T) {
	ts := newTestServer(t, 4, false)
	resp := postAnalysis(t, ts, []byte(`{"games": []}`))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	start := decode[StartResponse](t, resp)

	r, err := http.Get(ts.srv.URL + "/v1/analysis/" + start.TaskID)
	if err != nil {
		t.Fatal(err)
	}
	got := decode[TaskResponse](t, r)
	if got.Status != "completed" {
		t.Errorf("status = %q, want completed", got.Status)
	}
}

func TestSubmit_QueueFull(t *testing.T) {
	// No worker: the single queue slot fills on the first request.
	ts := newTestServer(t, 1, false)

	resp := postAnalysis(t, ts, submitBody())
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first submit status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postAnalysis(t, ts, submitBody())
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second submit status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGet_UnknownTask(t *testing.T) {
	ts := newTestServer(t, 4, false)
	r, err := http.Get(ts.srv.URL + "/v1/analysis/no-such-task")
	if err != nil {
		t.Fatal(err)
	}
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", r.StatusCode)
	}
	got := decode[TaskResponse](t, r)
	if got.Status != "not_found" {
		t.Errorf("body status = %q, want not_found", got.Status)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, 4, false)
	r, err := http.Get(ts.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", r.StatusCode)
	}
	if rid := r.Header.Get("X-Request-ID"); rid == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, 4, false)
	ts.tasks.Create(1)

	r, err := http.Get(ts.srv.URL + "/v1/stats")
	if err != nil {
		t.Fatal(err)
	}
	got := decode[map[string]any](t, r)
	if got["tasks_processing"].(float64) != 1 {
		t.Errorf("tasks_processing = %v, want 1", got["tasks_processing"])
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, 4, false)
	req, _ := http.NewRequest(http.MethodOptions, ts.srv.URL+"/v1/analysis", nil)
	r, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", r.StatusCode)
	}
	if r.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	log := zerolog.Nop()
	tasks := task.NewStore(time.Minute, log)
	pipeline := analysis.NewPipeline(stubEval{}, log, nil)
	runner := analysis.NewRunner(pipeline, tasks, 1, log, nil)

	reg := prometheus.NewRegistry()
	router := NewRouter(log, runner, tasks, Limits{MaxGames: 10, MovesPerGame: 15}, reg)
	srv := httptest.NewServer(router)
	defer srv.Close()

	r, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", r.StatusCode)
	}
}
