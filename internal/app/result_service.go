package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-quiz-tutor/internal/domain"
	"ai-quiz-tutor/internal/logger"
)

// TextGenerator is the generative-language collaborator: prompt in, text out.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const advicePrompt = `You are a professional educational teacher. A student took a quiz on %q and answered some questions incorrectly.
Here are the questions that were answered incorrectly:
%s

Analyze these questions and determine which topics the student is weak in. Give suggestions in a friendly and polite manner on how the student can improve, and list the weak topics.

Respond strictly in JSON format as:
{
  "suggestion": "the actual suggestion",
  "topics": ["topic1", "topic2"]
}`

// ResultService records finished attempts and asks the AI for study advice.
// It implements ResultSubmitter.
type ResultService struct {
	users UserRepository
	ai    TextGenerator
	now   func() time.Time
	log   *logger.Logger
}

func NewResultService(users UserRepository, ai TextGenerator, log *logger.Logger) *ResultService {
	return &ResultService{
		users: users,
		ai:    ai,
		now:   time.Now,
		log:   log.With("service", "ResultService"),
	}
}

// SubmitResult stores the attempt, then requests and validates advice. The
// attempt is stored even if the advice step fails.
func (s *ResultService) SubmitResult(ctx context.Context, sub domain.ResultSubmission) (domain.Advice, error) {
	email := domain.NormalizeEmail(sub.Email)
	if email == "" {
		return domain.Advice{}, fmt.Errorf("%w: email", domain.ErrMissingField)
	}
	if sub.TotalQuestions <= 0 {
		return domain.Advice{}, fmt.Errorf("%w: totalQuestions", domain.ErrMissingField)
	}

	wrong := len(sub.IncorrectIndices)
	if len(sub.IncorrectPrompts) > wrong {
		wrong = len(sub.IncorrectPrompts)
	}
	if wrong > sub.TotalQuestions {
		return domain.Advice{}, fmt.Errorf("%w: %d incorrect of %d questions", domain.ErrMissingField, wrong, sub.TotalQuestions)
	}
	correct := sub.TotalQuestions - wrong
	if err := s.users.AddResult(ctx, email, domain.QuizResult{
		Topic:          sub.Topic,
		Score:          domain.Score(correct, sub.TotalQuestions),
		CorrectCount:   correct,
		TotalQuestions: sub.TotalQuestions,
		CreatedAt:      s.now().UTC(),
	}); err != nil {
		return domain.Advice{}, fmt.Errorf("record result: %w", err)
	}

	if wrong == 0 {
		return domain.Advice{Suggestion: "Every answer was correct. Try a harder topic next!", Topics: []string{}}, nil
	}
	if s.ai == nil {
		return domain.Advice{}, fmt.Errorf("%w: ai not configured", domain.ErrResultSubmissionFailed)
	}

	raw, err := s.ai.Generate(ctx, fmt.Sprintf(advicePrompt, sub.Topic, incorrectList(sub)))
	if err != nil {
		return domain.Advice{}, fmt.Errorf("%w: %w", domain.ErrResultSubmissionFailed, err)
	}
	advice, err := ParseAdvice(raw)
	if err != nil {
		s.log.Warn("advisor returned malformed payload", "email", email, "topic", sub.Topic, "error", err)
		return domain.Advice{}, fmt.Errorf("%w: %w", domain.ErrResultSubmissionFailed, err)
	}

	if len(advice.Topics) > 0 {
		if err := s.users.MergeWeakTopics(ctx, email, advice.Topics); err != nil {
			s.log.Warn("merge weak topics failed", "email", email, "error", err)
		}
	}
	return advice, nil
}

func incorrectList(sub domain.ResultSubmission) string {
	if len(sub.IncorrectPrompts) == 0 {
		parts := make([]string, len(sub.IncorrectIndices))
		for i, idx := range sub.IncorrectIndices {
			parts[i] = fmt.Sprintf("- question %d", idx+1)
		}
		return strings.Join(parts, "\n")
	}
	parts := make([]string, len(sub.IncorrectPrompts))
	for i, p := range sub.IncorrectPrompts {
		parts[i] = "- " + p
	}
	return strings.Join(parts, "\n")
}

// ParseAdvice decodes the advisor's JSON answer, tolerating a markdown code fence.
// The answer must be exactly one object with a suggestion and a topics list.
func ParseAdvice(raw string) (domain.Advice, error) {
	var payload struct {
		Suggestion *string   `json:"suggestion"`
		Topics     *[]string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &payload); err != nil {
		return domain.Advice{}, fmt.Errorf("%w: %v", domain.ErrMalformedAdvice, err)
	}
	if payload.Suggestion == nil || strings.TrimSpace(*payload.Suggestion) == "" {
		return domain.Advice{}, fmt.Errorf("%w: empty suggestion", domain.ErrMalformedAdvice)
	}
	if payload.Topics == nil {
		return domain.Advice{}, fmt.Errorf("%w: missing topics", domain.ErrMalformedAdvice)
	}
	return domain.Advice{
		Suggestion: strings.TrimSpace(*payload.Suggestion),
		Topics:     domain.MergeTopics(nil, *payload.Topics),
	}, nil
}

// StripCodeFence removes a surrounding ```/```json fence from model output.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.Index(content, "\n"); nl != -1 {
		content = content[nl+1:]
	}
	if end := strings.LastIndex(content, "```"); end != -1 {
		content = content[:end]
	}
	return strings.TrimSpace(content)
}
