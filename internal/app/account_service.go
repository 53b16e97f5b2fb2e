package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-quiz-tutor/internal/auth"
	"ai-quiz-tutor/internal/domain"
	"ai-quiz-tutor/internal/logger"
)

// UserRepository persists accounts and quiz history keyed by email.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	RecordOnline(ctx context.Context, email string, day time.Time) error
	AddResult(ctx context.Context, email string, result domain.QuizResult) error
	ListResults(ctx context.Context, email string) ([]domain.QuizResult, error)
	MergeWeakTopics(ctx context.Context, email string, topics []string) error
}

// AccountService handles signup, login and the dashboard.
type AccountService struct {
	users  UserRepository
	tokens *auth.TokenIssuer
	now    func() time.Time
	log    *logger.Logger
}

func NewAccountService(users UserRepository, tokens *auth.TokenIssuer, log *logger.Logger) *AccountService {
	return &AccountService{
		users:  users,
		tokens: tokens,
		now:    time.Now,
		log:    log.With("service", "AccountService"),
	}
}

// Signup registers a new account with a bcrypt-hashed password.
func (s *AccountService) Signup(ctx context.Context, name, email, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = domain.NormalizeEmail(email)
	switch {
	case name == "":
		return domain.User{}, fmt.Errorf("%w: name", domain.ErrMissingField)
	case email == "":
		return domain.User{}, fmt.Errorf("%w: email", domain.ErrMissingField)
	case password == "":
		return domain.User{}, fmt.Errorf("%w: password", domain.ErrMissingField)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.CreateUser(ctx, domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info("user created", "email", email)
	return user, nil
}

// Login checks credentials, records the online day and returns an access token.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", domain.User{}, fmt.Errorf("%w: email and password", domain.ErrMissingField)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", domain.User{}, err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return "", domain.User{}, err
	}

	if err := s.users.RecordOnline(ctx, email, s.now()); err != nil {
		s.log.Warn("record online date failed", "email", email, "error", err)
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", domain.User{}, err
	}
	return token, user, nil
}

// TokenTTL reports how long issued access tokens stay valid.
func (s *AccountService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

// Authenticate resolves a bearer token to the caller's email.
func (s *AccountService) Authenticate(token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	return domain.NormalizeEmail(claims.Email), nil
}

// Dashboard aggregates the user's history for display.
func (s *AccountService) Dashboard(ctx context.Context, email string) (domain.Dashboard, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Dashboard{}, fmt.Errorf("%w: email", domain.ErrMissingField)
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.Dashboard{}, err
	}
	results, err := s.users.ListResults(ctx, email)
	if err != nil {
		return domain.Dashboard{}, err
	}

	var d domain.Dashboard
	d.User.Name = user.Name
	d.PerformanceData = make([]domain.PerformancePoint, len(results))
	for i, r := range results {
		d.PerformanceData[i] = domain.PerformancePoint{QuizNumber: i + 1, Marks: r.Score}
	}
	d.WeakTopics = append([]string{}, user.WeakTopics...)
	d.OnlineDates = make([]string, len(user.OnlineDates))
	for i, day := range user.OnlineDates {
		d.OnlineDates[i] = day.Format("2006-01-02")
	}
	return d, nil
}
