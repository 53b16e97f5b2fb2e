package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"ai-quiz-tutor/internal/app"
	"ai-quiz-tutor/internal/auth"
	"ai-quiz-tutor/internal/domain"
	"ai-quiz-tutor/internal/infra/memory"
	"ai-quiz-tutor/internal/logger"
	"github.com/gin-gonic/gin"
)

type testEnv struct {
	server   *httptest.Server
	accounts *app.AccountService
	users    *memory.UserStore
	ai       *scriptedAI
}

type scriptedAI struct {
	reply string
	err   error
}

func (s *scriptedAI) Generate(context.Context, string) (string, error) {
	return s.reply, s.err
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithSubmitter(t, nil)
}

// newTestEnvWithSubmitter swaps the result submitter used by quiz sessions;
// nil keeps the real result service.
func newTestEnvWithSubmitter(t *testing.T, submitter app.ResultSubmitter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	users := memory.NewUserStore()
	ai := &scriptedAI{reply: `{"suggestion": "Review capitals.", "topics": ["European capitals"]}`}
	accounts := app.NewAccountService(users, auth.NewTokenIssuer("test-secret", time.Hour), log)
	results := app.NewResultService(users, ai, log)
	tutor := app.NewTutorService(users, ai, log)
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	if submitter == nil {
		submitter = results
	}
	quizzes := app.NewQuizService(memory.NewSessionStore(), quizRepo, submitter, log)

	router := NewRouter(RouterDeps{
		Accounts: accounts,
		Quizzes:  quizzes,
		Results:  results,
		Tutor:    tutor,
		Log:      log,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, accounts: accounts, users: users, ai: ai}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	if _, err := e.accounts.Signup(ctx, "Alice", "alice@example.com", "pw"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	token, _, err := e.accounts.Login(ctx, "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return token
}

func sampleQuizzes() map[string]domain.QuizSet {
	return map[string]domain.QuizSet{
		"capitals": {
			Topic: "capitals",
			Questions: []domain.Question{
				{Prompt: "What is the capital of France?", Choices: []string{"Paris", "Rome", "Madrid"}, CorrectChoiceIndex: 0},
				{Prompt: "What is the capital of Italy?", Choices: []string{"Paris", "Rome", "Madrid"}, CorrectChoiceIndex: 1},
			},
		},
	}
}
