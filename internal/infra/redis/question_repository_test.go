package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trivia-rooms/internal/domain"
	"trivia-rooms/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
)

type countingLoader struct {
	memory.QuestionLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, topic string) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuestionLoader.LoadQuestions(ctx, topic)
}

func (l *countingLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func scienceBank() map[string][]domain.Question {
	return map[string][]domain.Question{
		"science": {
			{Prompt: "What planet is known as the Red Planet?", Answer: "Mars", Topic: "science", Difficulty: 2},
			{Prompt: "What is the chemical symbol for gold?", Answer: "Au", Topic: "science", Difficulty: 4},
		},
	}
}

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(scienceBank())}
	repo := NewQuestionRepository(client, loader, time.Minute)

	ctx := context.Background()
	full := domain.DifficultyRange{Min: 1, Max: 10}
	questions, err := repo.GetQuestions(ctx, []string{"science"}, full, 5)
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if !mr.Exists("trivia:questions:science") {
		t.Fatalf("bank not written to redis")
	}

	if _, err := repo.GetQuestions(ctx, []string{"science"}, full, 5); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if n := loader.callCount(); n != 1 {
		t.Fatalf("loader called %d times, want 1", n)
	}
}

func TestQuestionRepositoryServesOtherInstancesFromRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	ctx := context.Background()
	full := domain.DifficultyRange{Min: 1, Max: 10}

	warm := NewQuestionRepository(client, memory.NewStaticQuestionLoader(scienceBank()), time.Minute)
	if _, err := warm.GetQuestions(ctx, []string{"science"}, full, 5); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	// A second instance with a dead loader must still answer from the
	// shared cache.
	cold := NewQuestionRepository(client, failingLoader{}, time.Minute)
	questions, err := cold.GetQuestions(ctx, []string{"science"}, full, 5)
	if err != nil {
		t.Fatalf("get from shared cache: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
}

func TestQuestionRepositoryReloadsAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(scienceBank())}
	repo := NewQuestionRepository(client, loader, time.Minute)

	ctx := context.Background()
	full := domain.DifficultyRange{Min: 1, Max: 10}
	if _, err := repo.GetQuestions(ctx, []string{"science"}, full, 5); err != nil {
		t.Fatalf("get questions: %v", err)
	}

	// Jitter can stretch the TTL by up to 10%.
	mr.FastForward(2 * time.Minute)
	if _, err := repo.GetQuestions(ctx, []string{"science"}, full, 5); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if n := loader.callCount(); n != 2 {
		t.Fatalf("loader called %d times, want 2 after expiry", n)
	}
}

func TestQuestionRepositoryEmptyPool(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewQuestionRepository(newClient(mr), memory.NewStaticQuestionLoader(nil), time.Minute)
	_, err = repo.GetQuestions(context.Background(), []string{"unknown"}, domain.DifficultyRange{Min: 1, Max: 10}, 5)
	if !errors.Is(err, domain.ErrQuestionsNotFound) {
		t.Fatalf("got %v, want ErrQuestionsNotFound", err)
	}
}

type failingLoader struct{}

func (failingLoader) LoadQuestions(context.Context, string) ([]domain.Question, error) {
	return nil, errors.New("loader should not be called")
}
