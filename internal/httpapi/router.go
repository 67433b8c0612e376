// Package httpapi exposes the analysis service over HTTP: submit a
// batch of games, poll the task until it completes.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/blunderlab/analysis/internal/analysis"
	"github.com/blunderlab/analysis/internal/game"
	"github.com/blunderlab/analysis/internal/task"
)

// Limits caps what a single request may ask for.
type Limits struct {
	MaxGames     int
	MovesPerGame int
}

// Handler serves the analysis API.
type Handler struct {
	runner *analysis.Runner
	tasks  *task.Store
	limits Limits
	log    zerolog.Logger
}

// NewRouter wires the API routes plus health, stats, metrics, and pprof
// endpoints behind the middleware chain.
func NewRouter(log zerolog.Logger, runner *analysis.Runner, tasks *task.Store, limits Limits, metrics prometheus.Gatherer) http.Handler {
	h := &Handler{
		runner: runner,
		tasks:  tasks,
		limits: limits,
		log:    log,
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", http.HandlerFunc(h.health))
	mux.Handle("/readyz", http.HandlerFunc(h.health))
	mux.Handle("/v1/analysis", http.HandlerFunc(h.startAnalysis))
	mux.Handle("/v1/analysis/", http.HandlerFunc(h.getAnalysis))
	mux.Handle("/v1/stats", http.HandlerFunc(h.stats))
	if metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return CORS(RequestID(AccessLog(log, mux)))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) startAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	games := make([]game.Game, 0, len(req.Games))
	for i, rg := range req.Games {
		g, err := rg.toGame(i)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		games = append(games, g)
	}

	opts := h.clampOptions(req.Config)
	id, err := h.runner.Start(games, opts)
	if err != nil {
		if errors.Is(err, analysis.ErrBusy) {
			writeError(w, http.StatusConflict, "analysis queue is full, retry later")
			return
		}
		h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Msg("start analysis")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(StartResponse{TaskID: id})
}

// clampOptions applies defaults and server-side caps to the requested
// budgets.
func (h *Handler) clampOptions(rc RequestConfig) analysis.Options {
	opts := analysis.Options{
		MaxGames:     h.limits.MaxGames,
		MovesPerGame: h.limits.MovesPerGame,
	}
	if rc.MaxGames > 0 && rc.MaxGames < opts.MaxGames {
		opts.MaxGames = rc.MaxGames
	}
	if rc.MovesPerGame > 0 && rc.MovesPerGame < opts.MovesPerGame {
		opts.MovesPerGame = rc.MovesPerGame
	}
	return opts
}

func (h *Handler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/analysis/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "missing task id")
		return
	}

	t, ok := h.tasks.Get(id)
	if !ok {
		// Expired and never-existed tasks are indistinguishable by
		// design; both report not_found rather than error.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(TaskResponse{TaskID: id, Status: "not_found"})
		return
	}
	writeJSON(w, toTaskResponse(t))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	counts := h.tasks.Counts()
	writeJSON(w, map[string]any{
		"tasks_processing": counts[task.StatusProcessing],
		"tasks_completed":  counts[task.StatusCompleted],
		"tasks_error":      counts[task.StatusError],
		"uptime_seconds":   int(time.Since(startTime).Seconds()),
	})
}

var startTime = time.Now()
