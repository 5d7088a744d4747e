package memory

import (
	"context"
	"sync"
)

// StatsRecorder counts attempts in memory. Used when no database is
// configured and as a test double for the fire-and-forget stats path.
type StatsRecorder struct {
	mu       sync.Mutex
	attempts map[string]AttemptCounts
}

type AttemptCounts struct {
	Attempts int
	Correct  int
}

func NewStatsRecorder() *StatsRecorder {
	return &StatsRecorder{attempts: make(map[string]AttemptCounts)}
}

func (r *StatsRecorder) RecordAttempt(_ context.Context, questionText string, wasCorrect bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := r.attempts[questionText]
	counts.Attempts++
	if wasCorrect {
		counts.Correct++
	}
	r.attempts[questionText] = counts
	return nil
}

// Counts returns the recorded tallies for one question.
func (r *StatsRecorder) Counts(questionText string) AttemptCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[questionText]
}
