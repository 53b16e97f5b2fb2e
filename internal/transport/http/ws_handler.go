package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"ai-quiz-tutor/internal/app"
	"ai-quiz-tutor/internal/domain"
	"ai-quiz-tutor/internal/logger"
	"github.com/gorilla/websocket"
)

// Authenticator resolves an access token to the caller's email.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// WSHandler runs one quiz session per websocket connection.
type WSHandler struct {
	service  *app.QuizService
	auth     Authenticator
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, auth Authenticator, log *logger.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		auth:    auth,
		log:     log.With("handler", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type topicPayload struct {
	Topic string `json:"topic"`
}

type choicePayload struct {
	Index *int `json:"index"`
}

type resultPayload struct {
	Summary domain.ResultSummary `json:"summary"`
	Advice  *domain.Advice       `json:"advice,omitempty"`
	Warning string               `json:"warning,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ServeWS authenticates, upgrades and maps inbound actions onto the session controller.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	email, err := h.auth.Authenticate(bearerToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	view := h.service.Start(ctx, email)
	sessionID := view.SessionID
	defer h.service.End(context.Background(), sessionID)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	// outbound calls run off the read loop so a restart can abandon them
	var background sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "sessionId", sessionID, "error", err)
				// keep draining so senders never block
				for range send {
				}
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "state", Payload: view}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submitTopic":
			var payload topicPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalidPayload", "invalid topic payload")
				continue
			}
			background.Add(1)
			go func() {
				defer background.Done()
				view, err := h.service.SubmitTopic(ctx, sessionID, payload.Topic)
				if errors.Is(err, domain.ErrStaleResponse) {
					return
				}
				if err != nil {
					send <- errorMessage(errorKind(err), err.Error())
				}
				send <- outboundMessage[any]{Type: "state", Payload: view}
			}()
		case "selectChoice":
			var payload choicePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Index == nil {
				send <- errorMessage("invalidPayload", "invalid choice payload")
				continue
			}
			h.reply(send, func() (app.SessionView, error) {
				return h.service.SelectChoice(ctx, sessionID, *payload.Index)
			})
		case "advance":
			view, ticket, err := h.service.Step(ctx, sessionID)
			if err != nil {
				send <- errorMessage(errorKind(err), err.Error())
				if errors.Is(err, domain.ErrSessionNotFound) {
					continue
				}
			}
			send <- outboundMessage[any]{Type: "state", Payload: view}
			if ticket == nil {
				continue
			}
			background.Add(1)
			go func() {
				defer background.Done()
				finished, err := h.service.Finish(ctx, *ticket)
				if err != nil || finished.Summary == nil {
					// restarted or closed while the advisor was pending
					return
				}
				send <- outboundMessage[any]{Type: "result", Payload: resultPayload{
					Summary: *finished.Summary,
					Advice:  finished.Advice,
					Warning: finished.Warning,
				}}
			}()
		case "restart":
			h.reply(send, func() (app.SessionView, error) {
				return h.service.Restart(ctx, sessionID)
			})
		default:
			send <- errorMessage("unsupported", "unsupported message type")
		}
	}

	cancel()
	background.Wait()
	close(send)
	<-writerDone
}

// reply runs an action and sends the resulting state, preceded by an error if it was rejected.
func (h *WSHandler) reply(send chan<- outboundMessage[any], action func() (app.SessionView, error)) {
	view, err := action()
	if err != nil {
		send <- errorMessage(errorKind(err), err.Error())
		if errors.Is(err, domain.ErrSessionNotFound) {
			return
		}
	}
	send <- outboundMessage[any]{Type: "state", Payload: view}
}

func errorMessage(kind, message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: kind, Message: message}}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrContentFetchFailed):
		return "contentFetchFailed"
	case errors.Is(err, domain.ErrInvalidSelection),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrEmptyTopic),
		errors.Is(err, domain.ErrFetchInProgress):
		return "invalidSelection"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "sessionNotFound"
	default:
		return "error"
	}
}
