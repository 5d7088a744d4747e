package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// QuestionStat is the per-question attempt/correct counter row.
type QuestionStat struct {
	bun.BaseModel `bun:"table:question_stats,alias:qs"`

	Question string `bun:"question,pk"`
	Attempts int64  `bun:"attempts"`
	Correct  int64  `bun:"correct"`
}

// StatsRecorder upserts attempt counters. Callers treat it as
// fire-and-forget; errors are returned only so the boundary can log them.
type StatsRecorder struct {
	db *bun.DB
}

func NewStatsRecorder(db *bun.DB) *StatsRecorder {
	return &StatsRecorder{db: db}
}

func (r *StatsRecorder) RecordAttempt(ctx context.Context, questionText string, wasCorrect bool) error {
	correct := int64(0)
	if wasCorrect {
		correct = 1
	}
	stat := &QuestionStat{Question: questionText, Attempts: 1, Correct: correct}
	_, err := r.db.NewInsert().
		Model(stat).
		On("CONFLICT (question) DO UPDATE").
		Set("attempts = qs.attempts + 1").
		Set("correct = qs.correct + EXCLUDED.correct").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}
