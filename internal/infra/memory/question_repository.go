package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"trivia-rooms/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the full question bank for one topic from a backing
// store (Postgres in production).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, topic string) ([]domain.Question, error)
}

// QuestionRepository caches per-topic question banks with TTL and assembles
// shuffled, difficulty-filtered game lists from them.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedTopic
}

type cachedTopic struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTopic),
	}
}

// GetQuestions returns up to count questions drawn from the selected topics
// within the difficulty range, shuffled.
func (r *QuestionRepository) GetQuestions(ctx context.Context, topics []string, difficulty domain.DifficultyRange, count int) ([]domain.Question, error) {
	var pool []domain.Question
	for _, topic := range topics {
		bank, err := r.topicQuestions(ctx, topic)
		if err != nil {
			return nil, err
		}
		for _, q := range bank {
			if q.Difficulty >= float64(difficulty.Min) && q.Difficulty <= float64(difficulty.Max) {
				pool = append(pool, q)
			}
		}
	}
	if len(pool) == 0 {
		return nil, domain.ErrQuestionsNotFound
	}

	r.rndMu.Lock()
	r.rnd.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	r.rndMu.Unlock()

	if len(pool) > count {
		pool = pool[:count]
	}
	return pool, nil
}

func (r *QuestionRepository) topicQuestions(ctx context.Context, topic string) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[topic]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(topic, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[topic]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadQuestions(ctx, topic)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[topic] = cachedTopic{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves questions from an in-memory map (tests/demos).
type StaticQuestionLoader struct {
	banks map[string][]domain.Question
}

func NewStaticQuestionLoader(banks map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{banks: banks}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, topic string) ([]domain.Question, error) {
	return l.banks[topic], nil
}
