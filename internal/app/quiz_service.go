package app

import (
	"context"
	"errors"
	"time"

	"ai-quiz-tutor/internal/domain"
	"ai-quiz-tutor/internal/logger"
)

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Create(owner string) *Session
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuizRepository supplies quiz content for a topic (from cache/backing store/generator).
type QuizRepository interface {
	GetQuiz(ctx context.Context, topic string) (domain.QuizSet, error)
}

// ResultSubmitter receives finished attempts and answers with advice.
type ResultSubmitter interface {
	SubmitResult(ctx context.Context, submission domain.ResultSubmission) (domain.Advice, error)
}

// EventPublisher announces finished attempts to other services.
type EventPublisher interface {
	PublishFinished(ctx context.Context, event domain.QuizFinished) error
}

// QuizService drives quiz sessions and performs their outbound calls.
type QuizService struct {
	sessions  SessionRepository
	quizzes   QuizRepository
	submitter ResultSubmitter
	events    EventPublisher
	now       func() time.Time
	log       *logger.Logger
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, submitter ResultSubmitter, log *logger.Logger) *QuizService {
	return &QuizService{
		sessions:  store,
		quizzes:   quizzes,
		submitter: submitter,
		now:       time.Now,
		log:       log.With("service", "QuizService"),
	}
}

// WithEvents sets the publisher notified when an attempt finishes.
func (s *QuizService) WithEvents(events EventPublisher) *QuizService {
	s.events = events
	return s
}

// NewSession is exported for infrastructure layers that need to create sessions.
func NewSession(id, owner string) *Session {
	return newSession(id, owner, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id, owner string, now func() time.Time) *Session {
	return newSession(id, owner, now)
}

// Start opens a fresh session for a user.
func (s *QuizService) Start(_ context.Context, ownerEmail string) SessionView {
	session := s.sessions.Create(domain.NormalizeEmail(ownerEmail))
	s.log.Debug("session started", "sessionId", session.ID(), "owner", session.Owner())
	return session.View()
}

// View returns the current snapshot of a session.
func (s *QuizService) View(_ context.Context, sessionID string) (SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	return session.View(), nil
}

// SubmitTopic requests a quiz for the topic and moves the session to answering on success.
// A fetch failure leaves the session in topic selection and returns ErrContentFetchFailed.
func (s *QuizService) SubmitTopic(ctx context.Context, sessionID, topic string) (SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}

	ticket, err := session.submitTopic(topic)
	if err != nil {
		return session.View(), err
	}

	session.outbound.Lock()
	quiz, fetchErr := s.quizzes.GetQuiz(ctx, ticket.Topic)
	session.outbound.Unlock()

	if fetchErr != nil {
		s.log.Warn("quiz fetch failed", "sessionId", sessionID, "topic", ticket.Topic, "error", fetchErr)
	}
	if err := session.deliverQuiz(ticket, quiz, fetchErr); err != nil {
		if errors.Is(err, domain.ErrStaleResponse) {
			s.log.Debug("discarding stale quiz", "sessionId", sessionID, "generation", ticket.Generation)
		}
		return session.View(), err
	}
	return session.View(), nil
}

// SelectChoice records the answer choice for the current question.
func (s *QuizService) SelectChoice(_ context.Context, sessionID string, choice int) (SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	err := session.selectChoice(choice)
	return session.View(), err
}

// FinishTicket carries a just-finished attempt to Finish.
type FinishTicket struct {
	SessionID string
	outcome   finishOutcome
}

// Advance moves past the current question. After the last question it also
// submits the result, keeping a submission failure as a warning.
func (s *QuizService) Advance(ctx context.Context, sessionID string) (SessionView, error) {
	view, ticket, err := s.Step(ctx, sessionID)
	if err != nil || ticket == nil {
		return view, err
	}
	finished, err := s.Finish(ctx, *ticket)
	if errors.Is(err, domain.ErrStaleResponse) {
		err = nil
	}
	return finished, err
}

// Step moves past the current question without any outbound call. The
// returned ticket is non-nil when the attempt just reached Finished; pass it
// to Finish to submit the result.
func (s *QuizService) Step(ctx context.Context, sessionID string) (SessionView, *FinishTicket, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionView{}, nil, domain.ErrSessionNotFound
	}

	outcome, err := session.advance()
	if err != nil || outcome == nil {
		return session.View(), nil, err
	}

	if s.events != nil {
		event := domain.QuizFinished{
			SessionID:  sessionID,
			Email:      session.Owner(),
			Summary:    outcome.summary,
			FinishedAt: s.now().UTC(),
		}
		if err := s.events.PublishFinished(ctx, event); err != nil {
			s.log.Warn("publish finished event failed", "sessionId", sessionID, "error", err)
		}
	}
	return session.View(), &FinishTicket{SessionID: sessionID, outcome: *outcome}, nil
}

// Finish submits a finished attempt and attaches the advice, or the failure
// as a warning. It returns ErrStaleResponse when the session was restarted
// while the submission was outstanding.
func (s *QuizService) Finish(ctx context.Context, ticket FinishTicket) (SessionView, error) {
	session, ok := s.sessions.Get(ticket.SessionID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}

	outcome := ticket.outcome
	submission := domain.ResultSubmission{
		Email:            session.Owner(),
		Topic:            outcome.summary.Topic,
		IncorrectIndices: outcome.summary.IncorrectIndices,
		IncorrectPrompts: outcome.incorrectPrompts,
		TotalQuestions:   outcome.summary.TotalQuestions,
		Score:            outcome.summary.Score,
	}

	var (
		advice    domain.Advice
		submitErr error
	)
	if s.submitter == nil {
		submitErr = errors.New("no result endpoint configured")
	} else {
		session.outbound.Lock()
		advice, submitErr = s.submitter.SubmitResult(ctx, submission)
		session.outbound.Unlock()
	}
	if submitErr != nil {
		s.log.Warn("result submission failed", "sessionId", ticket.SessionID, "topic", submission.Topic, "error", submitErr)
	}

	if err := session.attachAdvice(outcome.generation, advice, submitErr); err != nil {
		s.log.Debug("discarding stale advice", "sessionId", ticket.SessionID)
		return session.View(), err
	}
	return session.View(), nil
}

// Restart discards the current attempt and returns to topic selection.
func (s *QuizService) Restart(_ context.Context, sessionID string) (SessionView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	session.restart()
	return session.View(), nil
}

// End drops the session.
func (s *QuizService) End(_ context.Context, sessionID string) {
	s.sessions.Delete(sessionID)
}

// QuizLoader fetches quiz content from a source without caching (bank, generator).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, topic string) (domain.QuizSet, error)
}

// ChainLoaders returns a loader that tries each source in order and moves on
// only when a source has no quiz for the topic.
func ChainLoaders(sources ...QuizLoader) QuizLoader {
	return loaderChain(sources)
}

type loaderChain []QuizLoader

func (c loaderChain) LoadQuiz(ctx context.Context, topic string) (domain.QuizSet, error) {
	for _, source := range c {
		if source == nil {
			continue
		}
		quiz, err := source.LoadQuiz(ctx, topic)
		if errors.Is(err, domain.ErrQuizNotFound) {
			continue
		}
		return quiz, err
	}
	return domain.QuizSet{}, domain.ErrQuizNotFound
}
