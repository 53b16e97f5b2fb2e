package domain

import (
	"fmt"
	"math"
	"strings"
)

// QuizPayload is the loosely shaped quiz document produced by generators:
// parallel arrays of prompts, choice lists and answer indices.
type QuizPayload struct {
	Questions []string `json:"questions"`
	Options   struct {
		Choices [][]string `json:"choices"`
	} `json:"options"`
	Answers []int `json:"answers"`
}

// QuizSetFromPayload validates a payload and converts it into a QuizSet.
func QuizSetFromPayload(topic string, p QuizPayload) (QuizSet, error) {
	if len(p.Options.Choices) != len(p.Questions) {
		return QuizSet{}, fmt.Errorf("%w: %d questions but %d choice lists", ErrMalformedQuiz, len(p.Questions), len(p.Options.Choices))
	}
	if len(p.Answers) != len(p.Questions) {
		return QuizSet{}, fmt.Errorf("%w: %d questions but %d answers", ErrMalformedQuiz, len(p.Questions), len(p.Answers))
	}
	questions := make([]Question, len(p.Questions))
	for i := range p.Questions {
		questions[i] = Question{
			Prompt:             p.Questions[i],
			Choices:            p.Options.Choices[i],
			CorrectChoiceIndex: p.Answers[i],
		}
	}
	return NewQuizSet(topic, questions)
}

// NewQuizSet checks every question and returns a QuizSet owning a copy of them.
func NewQuizSet(topic string, questions []Question) (QuizSet, error) {
	if len(questions) == 0 {
		return QuizSet{}, fmt.Errorf("%w: no questions", ErrMalformedQuiz)
	}
	out := make([]Question, len(questions))
	for i, q := range questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return QuizSet{}, fmt.Errorf("%w: question %d has no prompt", ErrMalformedQuiz, i)
		}
		if len(q.Choices) < 2 {
			return QuizSet{}, fmt.Errorf("%w: question %d has %d choices", ErrMalformedQuiz, i, len(q.Choices))
		}
		if q.CorrectChoiceIndex < 0 || q.CorrectChoiceIndex >= len(q.Choices) {
			return QuizSet{}, fmt.Errorf("%w: question %d answer %d out of range", ErrMalformedQuiz, i, q.CorrectChoiceIndex)
		}
		out[i] = Question{
			Prompt:             q.Prompt,
			Choices:            append([]string(nil), q.Choices...),
			CorrectChoiceIndex: q.CorrectChoiceIndex,
		}
	}
	return QuizSet{Topic: topic, Questions: out}, nil
}

// Validate re-checks a QuizSet that was decoded from a cache or database.
func (q QuizSet) Validate() error {
	_, err := NewQuizSet(q.Topic, q.Questions)
	return err
}

// Score returns round(100 * correct / total). A zero total scores zero.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// FeedbackFor maps a score onto its feedback tier.
func FeedbackFor(score int) Feedback {
	switch {
	case score >= 90:
		return FeedbackExcellent
	case score >= 70:
		return FeedbackGood
	case score >= 50:
		return FeedbackFair
	default:
		return FeedbackNeedsPractice
	}
}

// NewResultSummary derives the summary for a finished attempt.
func NewResultSummary(topic string, total int, incorrect []int) ResultSummary {
	correct := total - len(incorrect)
	score := Score(correct, total)
	return ResultSummary{
		Topic:            topic,
		Score:            score,
		CorrectCount:     correct,
		TotalQuestions:   total,
		IncorrectIndices: append([]int{}, incorrect...),
		Feedback:         FeedbackFor(score),
	}
}

// NormalizeTopic is the cache key form of a topic.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.Join(strings.Fields(topic), " "))
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MergeTopics appends new topics to existing ones, skipping blanks and
// case-insensitive duplicates while keeping first-seen order.
func MergeTopics(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, topic := range list {
			topic = strings.TrimSpace(topic)
			key := strings.ToLower(topic)
			if topic == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, topic)
		}
	}
	return out
}
