package postgres

import (
	"context"
	"fmt"

	"trivia-rooms/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader loads a topic's question bank from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, topic string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT prompt, answer, topic, COALESCE(subtopic, ''), difficulty FROM questions WHERE topic=$1`, topic)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.Prompt, &q.Answer, &q.Topic, &q.Subtopic, &q.Difficulty); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}
