package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-quiz-tutor/internal/domain"
)

type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), "k123", "test-model", url, time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGenerateSendsPromptAndReadsText(t *testing.T) {
	var gotPath, gotKey, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if gotKey == "" {
			gotKey = r.URL.Query().Get("key")
		}
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"there"}]}}]}`))
	}))
	defer srv.Close()

	text, err := newTestClient(t, srv.URL).Generate(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Hello there" {
		t.Fatalf("unexpected text %q", text)
	}
	if !strings.HasSuffix(gotPath, "/models/test-model:generateContent") || gotKey != "k123" || gotPrompt != "say hi" {
		t.Fatalf("unexpected request path=%s key=%s prompt=%s", gotPath, gotKey, gotPrompt)
	}
}

func TestGenerateErrors(t *testing.T) {
	status := http.StatusOK
	body := `{"candidates":[]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	client := newTestClient(t, srv.URL)

	if _, err := client.Generate(context.Background(), "p"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected empty response, got %v", err)
	}

	status = http.StatusBadRequest
	body = `{"error":{"code":400,"message":"quota exceeded","status":"INVALID_ARGUMENT"}}`
	_, err := client.Generate(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), "", "", "", 0); err == nil {
		t.Fatalf("expected error without api key")
	}
}

type fixedGenerator struct{ reply string }

func (f fixedGenerator) Generate(context.Context, string) (string, error) { return f.reply, nil }

func TestQuizGeneratorValidatesPayload(t *testing.T) {
	good := "```json\n" + `{"questions":["2+2?","Capital of Italy?"],"options":{"choices":[["3","4"],["Rome","Paris"]]},"answers":[1,0]}` + "\n```"
	quiz, err := NewQuizGenerator(fixedGenerator{reply: good}, 2).LoadQuiz(context.Background(), "mixed")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if quiz.Len() != 2 || quiz.Questions[0].CorrectChoiceIndex != 1 || quiz.Topic != "mixed" {
		t.Fatalf("unexpected quiz %+v", quiz)
	}

	mismatched := `{"questions":["a?","b?"],"options":{"choices":[["x","y"],["x","y"]]},"answers":[0]}`
	if _, err := NewQuizGenerator(fixedGenerator{reply: mismatched}, 2).LoadQuiz(context.Background(), "t"); !errors.Is(err, domain.ErrMalformedQuiz) {
		t.Fatalf("expected malformed quiz, got %v", err)
	}
	if _, err := NewQuizGenerator(fixedGenerator{reply: "Sure! Here is a quiz"}, 2).LoadQuiz(context.Background(), "t"); !errors.Is(err, domain.ErrMalformedQuiz) {
		t.Fatalf("expected malformed quiz for prose, got %v", err)
	}
}
