package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ai-quiz-tutor/internal/app"
	"ai-quiz-tutor/internal/domain"
	"ai-quiz-tutor/internal/infra/memory"
	"ai-quiz-tutor/internal/logger"
)

func TestResultServiceRecordsAndAdvises(t *testing.T) {
	ctx := context.Background()
	users := seededUsers(t)
	ai := &stubGenerator{reply: "```json\n{\"suggestion\": \"Revisit mammals.\", \"topics\": [\"Mammals\", \"mammals\"]}\n```"}
	results := app.NewResultService(users, ai, logger.NewNop())

	advice, err := results.SubmitResult(ctx, domain.ResultSubmission{
		Email:            "alice@example.com",
		Topic:            "animals",
		IncorrectIndices: []int{2},
		IncorrectPrompts: []string{"What is the largest mammal?"},
		TotalQuestions:   4,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if advice.Suggestion != "Revisit mammals." || len(advice.Topics) != 1 {
		t.Fatalf("unexpected advice %+v", advice)
	}
	if !strings.Contains(ai.prompt, "What is the largest mammal?") || !strings.Contains(ai.prompt, "animals") {
		t.Fatalf("prompt missing context: %s", ai.prompt)
	}

	stored, _ := users.ListResults(ctx, "alice@example.com")
	if len(stored) != 1 || stored[0].Score != 75 {
		t.Fatalf("expected recorded result, got %+v", stored)
	}
	user, _ := users.GetUserByEmail(ctx, "alice@example.com")
	if len(user.WeakTopics) != 1 || user.WeakTopics[0] != "Mammals" {
		t.Fatalf("expected weak topics merged, got %v", user.WeakTopics)
	}
}

func TestResultServiceRejectsMalformedAdvice(t *testing.T) {
	ctx := context.Background()
	users := seededUsers(t)
	results := app.NewResultService(users, &stubGenerator{reply: "You did great, keep going!"}, logger.NewNop())

	_, err := results.SubmitResult(ctx, domain.ResultSubmission{Email: "alice@example.com", Topic: "t", IncorrectIndices: []int{0}, TotalQuestions: 2})
	if !errors.Is(err, domain.ErrMalformedAdvice) || !errors.Is(err, domain.ErrResultSubmissionFailed) {
		t.Fatalf("expected malformed advice, got %v", err)
	}
	stored, _ := users.ListResults(ctx, "alice@example.com")
	if len(stored) != 1 {
		t.Fatalf("result must be recorded even when advice fails")
	}
}

func TestResultServicePerfectScoreSkipsAI(t *testing.T) {
	ai := &stubGenerator{err: errors.New("should not be called")}
	results := app.NewResultService(seededUsers(t), ai, logger.NewNop())

	advice, err := results.SubmitResult(context.Background(), domain.ResultSubmission{Email: "alice@example.com", Topic: "t", TotalQuestions: 3})
	if err != nil || advice.Suggestion == "" {
		t.Fatalf("expected canned advice, got %+v %v", advice, err)
	}
	if ai.calls != 0 {
		t.Fatalf("expected no ai call")
	}
}

func TestParseAdvice(t *testing.T) {
	if _, err := app.ParseAdvice(`{"suggestion": "", "topics": []}`); !errors.Is(err, domain.ErrMalformedAdvice) {
		t.Fatalf("expected empty suggestion rejected, got %v", err)
	}
	if _, err := app.ParseAdvice(`{"topics": "not a list", "suggestion": "x"}`); !errors.Is(err, domain.ErrMalformedAdvice) {
		t.Fatalf("expected wrong type rejected, got %v", err)
	}
	for _, raw := range []string{
		`{"suggestion": "study more", "topics": ["a"]} trailing prose from the model`,
		`{"suggestion": "study more"}`,
		`{"suggestion": "study more", "topics": ["a"]}{"suggestion": 5}`,
		`{"suggestion": "study more", "topics": null}`,
	} {
		if _, err := app.ParseAdvice(raw); !errors.Is(err, domain.ErrMalformedAdvice) {
			t.Fatalf("expected %q rejected, got %v", raw, err)
		}
	}
	advice, err := app.ParseAdvice(`{"suggestion": " ok ", "topics": ["a", " ", "b"]}`)
	if err != nil || advice.Suggestion != "ok" || len(advice.Topics) != 2 {
		t.Fatalf("unexpected parse result %+v %v", advice, err)
	}
}

func TestTutorServiceMentionsWeakTopics(t *testing.T) {
	ctx := context.Background()
	users := seededUsers(t)
	_ = users.MergeWeakTopics(ctx, "alice@example.com", []string{"Optics"})
	ai := &stubGenerator{reply: " Light bends when it changes medium. "}
	tutor := app.NewTutorService(users, ai, logger.NewNop())

	answer, err := tutor.Ask(ctx, "alice@example.com", "Why do lenses work?", "")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer != "Light bends when it changes medium." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if !strings.Contains(ai.prompt, "Optics") || !strings.Contains(ai.prompt, "Why do lenses work?") {
		t.Fatalf("prompt missing details: %s", ai.prompt)
	}

	if _, err := tutor.Ask(ctx, "alice@example.com", "  ", ""); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected missing message, got %v", err)
	}

	ai.reply = ""
	if _, err := tutor.Ask(ctx, "nobody@example.com", "hi", ""); err == nil {
		t.Fatalf("expected empty response error")
	}
	if !strings.Contains(ai.prompt, "None") {
		t.Fatalf("expected None for users without weak topics: %s", ai.prompt)
	}
}

type stubGenerator struct {
	reply  string
	err    error
	prompt string
	calls  int
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.reply, s.err
}

func seededUsers(t *testing.T) *memory.UserStore {
	t.Helper()
	users := memory.NewUserStore()
	if _, err := users.CreateUser(context.Background(), domain.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "x"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return users
}
