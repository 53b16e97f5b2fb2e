package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"ai-quiz-tutor/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content for a topic from a backing source (quiz bank, AI generator).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, topic string) (domain.QuizSet, error)
}

// DefaultLoadTimeout bounds one shared quiz load.
const DefaultLoadTimeout = 2 * time.Minute

// QuizRepository caches generated quiz sets in Redis and falls back to a loader on cache miss.
// Quizzes are stored as JSON: SET quiz:topic:{normalized topic} {quiz} EX ttl
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	// bounds a shared load, which outlives any single caller
	loadTimeout time.Duration
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client:      client,
		loader:      loader,
		ttl:         ttl,
		loadTimeout: DefaultLoadTimeout,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, topic string) (domain.QuizSet, error) {
	norm := domain.NormalizeTopic(topic)
	if norm == "" {
		return domain.QuizSet{}, domain.ErrEmptyTopic
	}
	key := r.key(norm)

	if quiz, ok := r.cached(ctx, key); ok {
		return quiz, nil
	}

	ch := r.sf.DoChan(norm, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()

		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(loadCtx, key); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(loadCtx, topic)
		if err != nil {
			return domain.QuizSet{}, err
		}
		if err := quiz.Validate(); err != nil {
			return domain.QuizSet{}, err
		}

		if ttl := r.ttlWithJitter(); ttl > 0 {
			if data, err := json.Marshal(quiz); err == nil {
				_ = r.client.Set(loadCtx, key, data, ttl).Err()
			}
		}
		return quiz, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.QuizSet{}, res.Err
		}
		return res.Val.(domain.QuizSet), nil
	case <-ctx.Done():
		return domain.QuizSet{}, ctx.Err()
	}
}

// cached returns a decoded quiz; corrupt entries are deleted and treated as misses.
func (r *QuizRepository) cached(ctx context.Context, key string) (domain.QuizSet, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.QuizSet{}, false
	}
	var quiz domain.QuizSet
	if err := json.Unmarshal(data, &quiz); err != nil || quiz.Validate() != nil {
		_ = r.client.Del(ctx, key).Err()
		return domain.QuizSet{}, false
	}
	return quiz, true
}

// Forget drops a cached topic.
func (r *QuizRepository) Forget(ctx context.Context, topic string) error {
	return r.client.Del(ctx, r.key(domain.NormalizeTopic(topic))).Err()
}

func (r *QuizRepository) key(normalizedTopic string) string {
	return "quiz:topic:" + normalizedTopic
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
