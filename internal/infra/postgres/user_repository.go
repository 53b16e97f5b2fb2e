package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-quiz-tutor/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

// UserRepository stores accounts, online days and quiz results.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	user.Email = domain.NormalizeEmail(user.Email)
	if user.WeakTopics == nil {
		user.WeakTopics = []string{}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, weak_topics)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		user.Name, user.Email, user.PasswordHash, user.WeakTopics,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var user domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, weak_topics, created_at
		FROM users WHERE email=$1`,
		domain.NormalizeEmail(email),
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.WeakTopics, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT day FROM user_online_days WHERE user_id=$1 ORDER BY day`, user.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("list online days: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return domain.User{}, fmt.Errorf("scan online day: %w", err)
		}
		user.OnlineDates = append(user.OnlineDates, day)
	}
	return user, rows.Err()
}

func (r *UserRepository) RecordOnline(ctx context.Context, email string, day time.Time) error {
	id, err := r.userID(ctx, email)
	if err != nil {
		return err
	}
	y, m, d := day.UTC().Date()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_online_days (user_id, day) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		id, time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return fmt.Errorf("record online day: %w", err)
	}
	return nil
}

func (r *UserRepository) AddResult(ctx context.Context, email string, result domain.QuizResult) error {
	id, err := r.userID(ctx, email)
	if err != nil {
		return err
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO quiz_results (user_id, topic, score, correct_count, total_questions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, result.Topic, result.Score, result.CorrectCount, result.TotalQuestions, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("add result: %w", err)
	}
	return nil
}

func (r *UserRepository) ListResults(ctx context.Context, email string) ([]domain.QuizResult, error) {
	id, err := r.userID(ctx, email)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT topic, score, correct_count, total_questions, created_at
		FROM quiz_results WHERE user_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := []domain.QuizResult{}
	for rows.Next() {
		var res domain.QuizResult
		if err := rows.Scan(&res.Topic, &res.Score, &res.CorrectCount, &res.TotalQuestions, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *UserRepository) MergeWeakTopics(ctx context.Context, email string, topics []string) error {
	return r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var (
			id      int64
			current []string
		)
		err := tx.QueryRow(ctx, `SELECT id, weak_topics FROM users WHERE email=$1 FOR UPDATE`, domain.NormalizeEmail(email)).Scan(&id, &current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE users SET weak_topics=$2 WHERE id=$1`, id, domain.MergeTopics(current, topics))
		if err != nil {
			return fmt.Errorf("update weak topics: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) userID(ctx context.Context, email string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE email=$1`, domain.NormalizeEmail(email)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup user: %w", err)
	}
	return id, nil
}
