package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-quiz-tutor/internal/domain"
)

// UserStore keeps accounts and their quiz history in memory, keyed by normalized email.
type UserStore struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[string]*domain.User
	results map[string][]domain.QuizResult
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]*domain.User),
		results: make(map[string][]domain.QuizResult),
	}
}

func (s *UserStore) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	email := domain.NormalizeEmail(user.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return domain.User{}, domain.ErrEmailTaken
	}
	s.nextID++
	user.ID = s.nextID
	user.Email = email
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	stored := cloneUser(user)
	s.users[email] = &stored
	return cloneUser(stored), nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[domain.NormalizeEmail(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return cloneUser(*user), nil
}

func (s *UserStore) RecordOnline(_ context.Context, email string, day time.Time) error {
	day = truncateDay(day)
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[domain.NormalizeEmail(email)]
	if !ok {
		return domain.ErrUserNotFound
	}
	for _, d := range user.OnlineDates {
		if d.Equal(day) {
			return nil
		}
	}
	user.OnlineDates = append(user.OnlineDates, day)
	sort.Slice(user.OnlineDates, func(i, j int) bool { return user.OnlineDates[i].Before(user.OnlineDates[j]) })
	return nil
}

func (s *UserStore) AddResult(_ context.Context, email string, result domain.QuizResult) error {
	email = domain.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; !ok {
		return domain.ErrUserNotFound
	}
	s.results[email] = append(s.results[email], result)
	return nil
}

func (s *UserStore) ListResults(_ context.Context, email string) ([]domain.QuizResult, error) {
	email = domain.NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[email]; !ok {
		return nil, domain.ErrUserNotFound
	}
	return append([]domain.QuizResult{}, s.results[email]...), nil
}

func (s *UserStore) MergeWeakTopics(_ context.Context, email string, topics []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[domain.NormalizeEmail(email)]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.WeakTopics = domain.MergeTopics(user.WeakTopics, topics)
	return nil
}

func cloneUser(u domain.User) domain.User {
	u.WeakTopics = append([]string(nil), u.WeakTopics...)
	u.OnlineDates = append([]time.Time(nil), u.OnlineDates...)
	return u
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
