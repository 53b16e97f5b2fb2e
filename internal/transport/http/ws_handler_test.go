package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"ai-quiz-tutor/internal/domain"
	"github.com/gorilla/websocket"
)

func TestWebSocketQuizFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t)

	conn := dial(t, env, token)
	defer conn.Close()

	state := readType(t, conn, "state")
	if phase := nested(state, "state", "phase"); phase != "selectingTopic" {
		t.Fatalf("expected selectingTopic, got %v", phase)
	}

	send(t, conn, "submitTopic", map[string]any{"topic": "Capitals"})
	state = readType(t, conn, "state")
	if phase := nested(state, "state", "phase"); phase != "answering" {
		t.Fatalf("expected answering, got %v", phase)
	}
	if q, ok := state["question"].(map[string]any); !ok || q["prompt"] != "What is the capital of France?" {
		t.Fatalf("unexpected question %+v", state["question"])
	}
	if q := state["question"].(map[string]any); q["correctChoiceIndex"] != nil {
		t.Fatalf("answer leaked to client")
	}

	// Advancing without a choice is rejected.
	send(t, conn, "advance", nil)
	errPayload := readType(t, conn, "error")
	if errPayload["kind"] != "invalidSelection" {
		t.Fatalf("expected invalidSelection, got %+v", errPayload)
	}
	readType(t, conn, "state")

	for _, choice := range []int{0, 0} {
		send(t, conn, "selectChoice", map[string]any{"index": choice})
		readType(t, conn, "state")
		send(t, conn, "advance", nil)
		state = readType(t, conn, "state")
	}
	if phase := nested(state, "state", "phase"); phase != "finished" {
		t.Fatalf("expected finished, got %v", phase)
	}

	result := readType(t, conn, "result")
	summary := result["summary"].(map[string]any)
	if summary["score"].(float64) != 50 || summary["correctCount"].(float64) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if advice, ok := result["advice"].(map[string]any); !ok || advice["suggestion"] != "Review capitals." {
		t.Fatalf("expected advice, got %+v", result)
	}

	send(t, conn, "restart", nil)
	state = readType(t, conn, "state")
	if phase := nested(state, "state", "phase"); phase != "selectingTopic" {
		t.Fatalf("expected selectingTopic after restart, got %v", phase)
	}
}

type blockingSubmitter struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSubmitter) SubmitResult(ctx context.Context, _ domain.ResultSubmission) (domain.Advice, error) {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
		return domain.Advice{}, ctx.Err()
	}
	return domain.Advice{Suggestion: "too late", Topics: []string{}}, nil
}

func TestWebSocketFinishDoesNotWaitForAdvisor(t *testing.T) {
	advisor := &blockingSubmitter{entered: make(chan struct{}), release: make(chan struct{})}
	env := newTestEnvWithSubmitter(t, advisor)
	conn := dial(t, env, env.token(t))
	defer conn.Close()
	readType(t, conn, "state")

	send(t, conn, "submitTopic", map[string]any{"topic": "capitals"})
	readType(t, conn, "state")

	var state map[string]any
	for _, choice := range []int{0, 1} {
		send(t, conn, "selectChoice", map[string]any{"index": choice})
		readType(t, conn, "state")
		send(t, conn, "advance", nil)
		state = readType(t, conn, "state")
	}
	if phase := nested(state, "state", "phase"); phase != "finished" {
		t.Fatalf("expected finished before advice, got %v", phase)
	}
	if state["summary"] == nil || state["advice"] != nil {
		t.Fatalf("expected local summary without advice, got %+v", state)
	}

	select {
	case <-advisor.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("advisor was never called")
	}

	// The advisor is still pending; restart must be handled right away.
	send(t, conn, "restart", nil)
	state = readType(t, conn, "state")
	if phase := nested(state, "state", "phase"); phase != "selectingTopic" {
		t.Fatalf("expected restart while advisor pending, got %v", phase)
	}

	close(advisor.release)
	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	var late map[string]any
	if err := conn.ReadJSON(&late); err == nil {
		t.Fatalf("stale result delivered after restart: %+v", late)
	}
}

func TestWebSocketFetchFailureIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	conn := dial(t, env, env.token(t))
	defer conn.Close()
	readType(t, conn, "state")

	send(t, conn, "submitTopic", map[string]any{"topic": "underwater basket weaving"})
	errPayload := readType(t, conn, "error")
	if errPayload["kind"] != "contentFetchFailed" {
		t.Fatalf("expected contentFetchFailed, got %+v", errPayload)
	}
	state := readType(t, conn, "state")
	if phase := nested(state, "state", "phase"); phase != "selectingTopic" {
		t.Fatalf("expected selectingTopic, got %v", phase)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func dial(t *testing.T, env *testEnv, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readType(t *testing.T, conn *websocket.Conn, expect string) map[string]any {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%s)", expect, msg.Type, msg.Payload)
	}
	var payload map[string]any
	_ = json.Unmarshal(msg.Payload, &payload)
	return payload
}

func nested(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}
