// Package task tracks asynchronous analysis tasks in memory. Clients
// poll by ID; finished tasks expire after a TTL so an abandoned poll
// loop cannot pin results forever.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blunderlab/analysis/internal/classify"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Task is one analysis run's visible state. Result holds the latest
// partial summary while processing and the final one once completed.
type Task struct {
	ID             string
	Status         Status
	GamesTotal     int
	GamesCompleted int
	Result         classify.Summary
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store is a TTL-bounded in-memory task table.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

// NewStore builds a store whose finished or stale tasks expire ttl
// after their last update.
func NewStore(ttl time.Duration, log zerolog.Logger) *Store {
	return &Store{
		tasks: make(map[string]*Task),
		ttl:   ttl,
		log:   log.With().Str("component", "tasks").Logger(),
		now:   time.Now,
	}
}

// Create registers a new processing task and returns its ID.
func (s *Store) Create(gamesTotal int) string {
	id := uuid.NewString()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = &Task{
		ID:         id,
		Status:     StatusProcessing,
		GamesTotal: gamesTotal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return id
}

// Progress records a checkpoint: completed games so far plus the
// current partial summary. Progress never moves backwards even if
// checkpoints arrive out of order.
func (s *Store) Progress(id string, completed int, partial classify.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status != StatusProcessing {
		return
	}
	if completed > t.GamesCompleted {
		t.GamesCompleted = completed
		t.Result = partial
	}
	t.UpdatedAt = s.now()
}

// Complete marks the task done with its final summary.
func (s *Store) Complete(id string, final classify.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return
	}
	t.Status = StatusCompleted
	t.GamesCompleted = t.GamesTotal
	t.Result = final
	t.UpdatedAt = s.now()
}

// Fail marks the task failed with a client-facing message.
func (s *Store) Fail(id, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return
	}
	t.Status = StatusError
	t.Error = msg
	t.UpdatedAt = s.now()
}

// Delete removes a task outright, for enqueue failures after Create.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// Get returns a copy of the task. Expired tasks are reported as absent
// even before the janitor sweeps them.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok || s.expired(t) {
		return Task{}, false
	}
	return *t, true
}

// Counts reports tasks per status, for the stats endpoint.
func (s *Store) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Status]int, 3)
	for _, t := range s.tasks {
		if s.expired(t) {
			continue
		}
		counts[t.Status]++
	}
	return counts
}

func (s *Store) expired(t *Task) bool {
	return s.ttl > 0 && s.now().Sub(t.UpdatedAt) > s.ttl
}

// Janitor sweeps expired tasks until the context is canceled.
func (s *Store) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				s.log.Debug().Int("removed", n).Msg("swept expired tasks")
			}
		}
	}
}

func (s *Store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, t := range s.tasks {
		if s.expired(t) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}
