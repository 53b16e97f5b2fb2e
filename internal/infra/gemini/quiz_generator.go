package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-quiz-tutor/internal/app"
	"ai-quiz-tutor/internal/domain"
)

const quizPrompt = `Create a multiple-choice quiz on the topic %q with exactly %d questions.
Each question must have exactly 4 choices and one correct answer.

Respond strictly in JSON, with no commentary, in this shape:
{
  "questions": ["question 1", "question 2"],
  "options": {"choices": [["a", "b", "c", "d"], ["a", "b", "c", "d"]]},
  "answers": [0, 2]
}
"answers" holds the zero-based index of the correct choice for each question.`

// QuizGenerator builds quiz sets by asking a generative model.
type QuizGenerator struct {
	ai        app.TextGenerator
	questions int
}

func NewQuizGenerator(ai app.TextGenerator, questions int) *QuizGenerator {
	if questions <= 0 {
		questions = 10
	}
	return &QuizGenerator{ai: ai, questions: questions}
}

// LoadQuiz generates and validates a quiz for the topic.
func (g *QuizGenerator) LoadQuiz(ctx context.Context, topic string) (domain.QuizSet, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.QuizSet{}, domain.ErrEmptyTopic
	}
	raw, err := g.ai.Generate(ctx, fmt.Sprintf(quizPrompt, topic, g.questions))
	if err != nil {
		return domain.QuizSet{}, fmt.Errorf("generate quiz: %w", err)
	}
	return ParseQuiz(topic, raw)
}

// ParseQuiz decodes model output into a validated QuizSet.
func ParseQuiz(topic, raw string) (domain.QuizSet, error) {
	var payload domain.QuizPayload
	if err := json.Unmarshal([]byte(app.StripCodeFence(raw)), &payload); err != nil {
		return domain.QuizSet{}, fmt.Errorf("%w: %v", domain.ErrMalformedQuiz, err)
	}
	return domain.QuizSetFromPayload(topic, payload)
}
