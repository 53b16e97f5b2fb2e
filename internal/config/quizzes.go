package config

import (
	"fmt"
	"os"

	"ai-quiz-tutor/internal/domain"
	"gopkg.in/yaml.v3"
)

type quizFile struct {
	Quizzes []struct {
		Topic     string `yaml:"topic"`
		Questions []struct {
			Prompt  string   `yaml:"prompt"`
			Choices []string `yaml:"choices"`
			Answer  int      `yaml:"answer"`
		} `yaml:"questions"`
	} `yaml:"quizzes"`
}

// LoadQuizzes reads curated quiz sets from a YAML file, keyed by topic.
func LoadQuizzes(path string) (map[string]domain.QuizSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc quizFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	out := make(map[string]domain.QuizSet, len(doc.Quizzes))
	for _, q := range doc.Quizzes {
		questions := make([]domain.Question, len(q.Questions))
		for i, item := range q.Questions {
			questions[i] = domain.Question{Prompt: item.Prompt, Choices: item.Choices, CorrectChoiceIndex: item.Answer}
		}
		set, err := domain.NewQuizSet(q.Topic, questions)
		if err != nil {
			return nil, fmt.Errorf("quiz %q: %w", q.Topic, err)
		}
		if domain.NormalizeTopic(q.Topic) == "" {
			return nil, fmt.Errorf("quiz without topic: %w", domain.ErrEmptyTopic)
		}
		out[q.Topic] = set
	}
	return out, nil
}
