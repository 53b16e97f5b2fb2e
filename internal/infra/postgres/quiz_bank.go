package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ai-quiz-tutor/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizBank loads curated quiz sets stored as JSONB, keyed by normalized topic.
type QuizBank struct {
	pool *pgxpool.Pool
}

func NewQuizBank(pool *pgxpool.Pool) *QuizBank {
	return &QuizBank{pool: pool}
}

// LoadQuiz returns domain.ErrQuizNotFound when the bank has nothing for the topic.
func (b *QuizBank) LoadQuiz(ctx context.Context, topic string) (domain.QuizSet, error) {
	var raw []byte
	err := b.pool.QueryRow(ctx, `SELECT data FROM quiz_bank WHERE topic=$1`, domain.NormalizeTopic(topic)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSet{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizSet{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.QuizSet
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.QuizSet{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	if err := quiz.Validate(); err != nil {
		return domain.QuizSet{}, err
	}
	return quiz, nil
}

// SaveQuiz validates and upserts a curated quiz.
func (b *QuizBank) SaveQuiz(ctx context.Context, quiz domain.QuizSet) error {
	if err := quiz.Validate(); err != nil {
		return err
	}
	topic := domain.NormalizeTopic(quiz.Topic)
	if topic == "" {
		return domain.ErrEmptyTopic
	}
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = b.pool.Exec(ctx, `
		INSERT INTO quiz_bank (topic, data, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (topic) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		topic, string(data))
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}
