package cli

import (
	"context"

	"ai-quiz-tutor/internal/config"
	"ai-quiz-tutor/internal/infra/postgres"
	"ai-quiz-tutor/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads curated quizzes from a YAML file into the quiz bank.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load curated quizzes into the postgres quiz bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Quiz.File
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runSeed(cmd.Context(), cfg, file, log)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "quiz YAML file (defaults to quiz.file)")
	return cmd
}

func runSeed(ctx context.Context, cfg config.Config, file string, log *logger.Logger) error {
	if cfg.Postgres.URL == "" {
		return errNoPostgres
	}
	quizzes, err := config.LoadQuizzes(file)
	if err != nil {
		return err
	}
	if err := runMigrations(ctx, cfg, log); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	bank := postgres.NewQuizBank(pool)
	for topic, quiz := range quizzes {
		if err := bank.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
		log.Info("quiz seeded", "topic", topic, "questions", quiz.Len())
	}
	return nil
}
