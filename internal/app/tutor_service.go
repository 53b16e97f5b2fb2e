package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-quiz-tutor/internal/domain"
	"ai-quiz-tutor/internal/logger"
)

const tutorPrompt = `Assume you are a professional teacher helping a dear student who is weak in %s. Provide the best possible answer to the question asked below. Keep your explanation very simple, friendly, and clear, and also mention the student's weakness in that subject.
%s
Student Question: %s`

// TutorService answers free-form study questions.
type TutorService struct {
	users UserRepository
	ai    TextGenerator
	log   *logger.Logger
}

func NewTutorService(users UserRepository, ai TextGenerator, log *logger.Logger) *TutorService {
	return &TutorService{users: users, ai: ai, log: log.With("service", "TutorService")}
}

// Ask builds a tutoring prompt around the user's weak topics and returns the AI answer.
func (s *TutorService) Ask(ctx context.Context, email, message, extra string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message", domain.ErrMissingField)
	}
	if s.ai == nil {
		return "", errors.New("ai not configured")
	}

	weak := "None"
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && len(user.WeakTopics) > 0:
		weak = strings.Join(user.WeakTopics, ", ")
	case err != nil && !errors.Is(err, domain.ErrUserNotFound):
		return "", err
	}

	if extra = strings.TrimSpace(extra); extra != "" {
		extra = "\nContext: " + extra + "\n"
	}
	answer, err := s.ai.Generate(ctx, fmt.Sprintf(tutorPrompt, weak, extra, message))
	if err != nil {
		s.log.Warn("tutor generation failed", "email", email, "error", err)
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New("empty tutor response")
	}
	return answer, nil
}
