package app

import (
	"context"
	"strings"
	"time"

	"trivia-rooms/internal/domain"
)

// Grader evaluates whether a submitted answer matches the canonical one.
// Implementations may call out to an external semantic evaluator.
type Grader interface {
	Check(ctx context.Context, question, canonicalAnswer, submittedAnswer string) (domain.Verdict, error)
}

// StatsRecorder receives best-effort attempt reports. Failures are logged at
// the boundary and never surfaced to players.
type StatsRecorder interface {
	RecordAttempt(ctx context.Context, questionText string, wasCorrect bool) error
}

// QuestionRepository assembles an ordered, shuffled question list for the
// given topic selection and difficulty range.
type QuestionRepository interface {
	GetQuestions(ctx context.Context, topics []string, difficulty domain.DifficultyRange, count int) ([]domain.Question, error)
}

const fallbackExplanation = "Grading service unavailable; graded by exact match."

// ExactMatchVerdict is the pure fallback grader: case-insensitive trimmed
// string equality.
func ExactMatchVerdict(canonicalAnswer, submittedAnswer string) domain.Verdict {
	return domain.Verdict{
		IsCorrect:   strings.EqualFold(strings.TrimSpace(submittedAnswer), strings.TrimSpace(canonicalAnswer)),
		Confidence:  1.0,
		Explanation: fallbackExplanation,
	}
}

type fallbackGrader struct {
	inner   Grader
	timeout time.Duration
}

// GraderWithFallback wraps a grader with a call timeout and the exact-match
// fallback, so grading can never fail a submission. A nil inner grader
// degrades to pure exact matching.
func GraderWithFallback(inner Grader, timeout time.Duration) Grader {
	return &fallbackGrader{inner: inner, timeout: timeout}
}

func (g *fallbackGrader) Check(ctx context.Context, question, canonicalAnswer, submittedAnswer string) (domain.Verdict, error) {
	if g.inner == nil {
		return ExactMatchVerdict(canonicalAnswer, submittedAnswer), nil
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	verdict, err := g.inner.Check(ctx, question, canonicalAnswer, submittedAnswer)
	if err != nil {
		return ExactMatchVerdict(canonicalAnswer, submittedAnswer), nil
	}
	return verdict, nil
}
