package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"trivia-rooms/internal/domain"
	"trivia-rooms/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionRepository caches per-topic question banks in Redis as JSON blobs
// and falls back to a loader on cache miss.
// Banks are stored as: SET trivia:questions:{topic} <json array>
type QuestionRepository struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuestionRepository(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

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
	key := r.bankKey(topic)

	if bank, ok := r.cachedBank(ctx, key); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(topic, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := r.cachedBank(ctx, key); ok {
			return bank, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, topic)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(questions); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cachedBank(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var bank []domain.Question
	if err := json.Unmarshal(raw, &bank); err != nil {
		return nil, false
	}
	return bank, true
}

func (r *QuestionRepository) bankKey(topic string) string {
	return "trivia:questions:" + topic
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
