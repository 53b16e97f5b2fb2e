package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-quiz-tutor/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.QuizSet{
			"Geography": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "Geography"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	if _, err := repo.GetQuiz(context.Background(), "  geography "); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}

	repo.Forget("geography")
	if _, err := repo.GetQuiz(context.Background(), "geography"); err != nil {
		t.Fatalf("get quiz 3: %v", err)
	}
	if loader.count() != 2 {
		t.Fatalf("expected reload after forget, loader calls %d", loader.count())
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(map[string]domain.QuizSet{"geography": sampleQuiz()})}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuiz(context.Background(), "geography")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "geography")
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}
}

func TestQuizRepositoryRejectsMalformedQuiz(t *testing.T) {
	bad := domain.QuizSet{Topic: "bad", Questions: []domain.Question{{Prompt: "q", Choices: []string{"a"}}}}
	repo := NewQuizRepository(NewStaticQuizLoader(map[string]domain.QuizSet{"bad": bad}), time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "bad"); !errors.Is(err, domain.ErrMalformedQuiz) {
		t.Fatalf("expected malformed quiz, got %v", err)
	}
	if _, err := repo.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuizRepositoryLoadSurvivesCallerCancel(t *testing.T) {
	loader := &gatedLoader{quiz: sampleQuiz(), entered: make(chan struct{}), release: make(chan struct{})}
	repo := NewQuizRepository(loader, time.Minute)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := repo.GetQuiz(ctxA, "geography")
		errA <- err
	}()
	<-loader.entered

	type result struct {
		quiz domain.QuizSet
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		quiz, err := repo.GetQuiz(context.Background(), "geography")
		resB <- result{quiz, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected canceled caller to get context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("canceled caller still waiting on the load")
	}

	close(loader.release)
	select {
	case res := <-resB:
		if res.err != nil {
			t.Fatalf("second caller failed: %v", res.err)
		}
		if res.quiz.Len() != 1 {
			t.Fatalf("unexpected quiz: %+v", res.quiz)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("second caller never got the quiz")
	}

	if err := loader.loadErr(); err != nil {
		t.Fatalf("load context was canceled with the first caller: %v", err)
	}
	if n := loader.count(); n != 1 {
		t.Fatalf("expected one shared load, got %d", n)
	}
}

// gatedLoader blocks until released and records its context state at that point.
type gatedLoader struct {
	quiz    domain.QuizSet
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	calls  int
	ctxErr error
}

func (l *gatedLoader) LoadQuiz(ctx context.Context, topic string) (domain.QuizSet, error) {
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	l.mu.Unlock()
	if first {
		close(l.entered)
	}
	<-l.release

	l.mu.Lock()
	l.ctxErr = ctx.Err()
	l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.QuizSet{}, err
	}
	return l.quiz, nil
}

func (l *gatedLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *gatedLoader) loadErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctxErr
}

type countingLoader struct {
	QuizLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, topic string) (domain.QuizSet, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuizLoader.LoadQuiz(ctx, topic)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleQuiz() domain.QuizSet {
	return domain.QuizSet{
		Topic: "geography",
		Questions: []domain.Question{
			{
				Prompt:             "What is the capital of France?",
				Choices:            []string{"Paris", "Rome", "Madrid", "Berlin"},
				CorrectChoiceIndex: 0,
			},
		},
	}
}
