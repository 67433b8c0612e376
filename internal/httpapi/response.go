package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/blunderlab/analysis/internal/classify"
	"github.com/blunderlab/analysis/internal/game"
	"github.com/blunderlab/analysis/internal/task"
)

// StartRequest is the POST /v1/analysis body.
type StartRequest struct {
	Games  []GameRequest `json:"games"`
	Config RequestConfig `json:"config"`
}

// RequestConfig lets a client lower the analysis budgets below the
// server defaults. Values above the server caps are ignored.
type RequestConfig struct {
	MaxGames     int `json:"max_games"`
	MovesPerGame int `json:"moves_per_game"`
}

// GameRequest is one game in a submission. Moves may be SAN or UCI.
type GameRequest struct {
	ID       string    `json:"id"`
	Moves    []string  `json:"moves"`
	Color    string    `json:"color"`
	PlayedAt time.Time `json:"played_at"`
	Result   string    `json:"result"`
}

func (rg GameRequest) toGame(i int) (game.Game, error) {
	if len(rg.Moves) == 0 {
		return game.Game{}, fmt.Errorf("game %d: moves are required", i+1)
	}
	color, err := game.ParseColor(rg.Color)
	if err != nil {
		return game.Game{}, fmt.Errorf("game %d: %v", i+1, err)
	}
	id := rg.ID
	if id == "" {
		id = fmt.Sprintf("game-%04d", i+1)
	}
	return game.Game{
		ID:          id,
		Moves:       rg.Moves,
		PlayerColor: color,
		PlayedAt:    rg.PlayedAt,
		Result:      rg.Result,
	}, nil
}

// StartResponse acknowledges an accepted submission.
type StartResponse struct {
	TaskID string `json:"task_id"`
}

// TaskResponse is the GET /v1/analysis/{id} body. While processing the
// latest checkpoint rides along as partial_result; once completed the
// summary moves to result.
type TaskResponse struct {
	TaskID         string            `json:"task_id"`
	Status         string            `json:"status"`
	GamesTotal     int               `json:"games_total"`
	GamesCompleted int               `json:"games_completed"`
	Result         *classify.Summary `json:"result,omitempty"`
	PartialResult  *classify.Summary `json:"partial_result,omitempty"`
	Error          string            `json:"error,omitempty"`
}

func toTaskResponse(t task.Task) TaskResponse {
	resp := TaskResponse{
		TaskID:         t.ID,
		Status:         string(t.Status),
		GamesTotal:     t.GamesTotal,
		GamesCompleted: t.GamesCompleted,
		Error:          t.Error,
	}
	switch t.Status {
	case task.StatusCompleted:
		sum := t.Result
		resp.Result = &sum
	case task.StatusProcessing:
		if t.GamesCompleted > 0 {
			sum := t.Result
			resp.PartialResult = &sum
		}
	}
	return resp
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
