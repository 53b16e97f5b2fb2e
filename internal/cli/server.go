package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-quiz-tutor/internal/app"
	"ai-quiz-tutor/internal/auth"
	"ai-quiz-tutor/internal/config"
	"ai-quiz-tutor/internal/infra/gemini"
	"ai-quiz-tutor/internal/infra/memory"
	"ai-quiz-tutor/internal/infra/postgres"
	"ai-quiz-tutor/internal/infra/rabbit"
	infraredis "ai-quiz-tutor/internal/infra/redis"
	"ai-quiz-tutor/internal/logger"
	transport "ai-quiz-tutor/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz tutor server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret not configured")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var ai app.TextGenerator
	aiTimeout := config.TTLDuration(cfg.AI.Timeout, 60*time.Second)
	if cfg.AI.APIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL, aiTimeout)
		if err != nil {
			return err
		}
		ai = client
	} else {
		log.Warn("ai api key not configured; quiz generation, advice and chat are disabled")
	}

	// Curated quizzes win over generated ones.
	var sources []app.QuizLoader
	if pool != nil {
		sources = append(sources, postgres.NewQuizBank(pool))
	}
	if cfg.Quiz.File != "" {
		quizzes, err := config.LoadQuizzes(cfg.Quiz.File)
		if err != nil {
			return err
		}
		sources = append(sources, memory.NewStaticQuizLoader(quizzes))
	}
	if ai != nil {
		sources = append(sources, gemini.NewQuizGenerator(ai, cfg.Quiz.Questions))
	}
	loader := app.ChainLoaders(sources...)

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	var store app.SessionRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
		store = infraredis.NewSessionStore(redisClient, redisTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		store = memory.NewSessionStore()
	}

	var users app.UserRepository
	if pool != nil {
		users = postgres.NewUserRepository(pool)
	} else {
		users = memory.NewUserStore()
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
	accounts := app.NewAccountService(users, tokens, log)
	results := app.NewResultService(users, ai, log)
	tutor := app.NewTutorService(users, ai, log)
	quizzes := app.NewQuizService(store, quizRepo, results, log)
	if cfg.RabbitMQ.URL != "" {
		exchange := cfg.RabbitMQ.Exchange
		if exchange == "" {
			exchange = "quiz_events"
		}
		publisher, err := rabbit.Dial(cfg.RabbitMQ.URL, exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		quizzes.WithEvents(publisher)
	}

	if cfg.Log.Mode == "prod" || cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.NewRouter(transport.RouterDeps{
		Accounts:       accounts,
		Quizzes:        quizzes,
		Results:        results,
		Tutor:          tutor,
		Log:            log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: aiTimeout + 15*time.Second,
	}

	go func() {
		log.Info("starting quiz tutor", "port", finalPort, "redis", redisClient != nil, "postgres", pool != nil, "rabbitmq", cfg.RabbitMQ.URL != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
