package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"ai-quiz-tutor/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content for a topic from a backing source (quiz bank, AI generator).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, topic string) (domain.QuizSet, error)
}

// DefaultLoadTimeout bounds one shared quiz load.
const DefaultLoadTimeout = 2 * time.Minute

// QuizRepository caches quiz sets per normalized topic with TTL to avoid repeated generation.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	// bounds a shared load, which outlives any single caller
	loadTimeout time.Duration

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.QuizSet
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader:      loader,
		ttl:         ttl,
		loadTimeout: DefaultLoadTimeout,
		clock:       time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:       make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, topic string) (domain.QuizSet, error) {
	key := domain.NormalizeTopic(topic)
	if key == "" {
		return domain.QuizSet{}, domain.ErrEmptyTopic
	}
	if quiz, ok := r.lookup(key); ok {
		return quiz, nil
	}

	ch := r.sf.DoChan(key, func() (interface{}, error) {
		if quiz, ok := r.lookup(key); ok {
			return quiz, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()
		quiz, err := r.loader.LoadQuiz(loadCtx, topic)
		if err != nil {
			return domain.QuizSet{}, err
		}
		if err := quiz.Validate(); err != nil {
			return domain.QuizSet{}, err
		}

		if ttl := r.ttlWithJitter(); ttl > 0 {
			r.mu.Lock()
			r.cache[key] = cachedQuiz{quiz: quiz, expiresAt: r.clock().Add(ttl)}
			r.mu.Unlock()
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

// Forget drops a cached topic so the next request reloads it.
func (r *QuizRepository) Forget(topic string) {
	r.mu.Lock()
	delete(r.cache, domain.NormalizeTopic(topic))
	r.mu.Unlock()
}

func (r *QuizRepository) lookup(key string) (domain.QuizSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.QuizSet{}, false
	}
	return entry.quiz, true
}

// StaticQuizLoader is a simple loader backed by an in-memory map keyed by normalized topic.
type StaticQuizLoader struct {
	quizzes map[string]domain.QuizSet
}

func NewStaticQuizLoader(quizzes map[string]domain.QuizSet) *StaticQuizLoader {
	normalized := make(map[string]domain.QuizSet, len(quizzes))
	for topic, quiz := range quizzes {
		normalized[domain.NormalizeTopic(topic)] = quiz
	}
	return &StaticQuizLoader{quizzes: normalized}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, topic string) (domain.QuizSet, error) {
	if quiz, ok := l.quizzes[domain.NormalizeTopic(topic)]; ok {
		return quiz, nil
	}
	return domain.QuizSet{}, domain.ErrQuizNotFound
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
