package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-quiz-tutor/internal/domain"
)

// FetchTicket identifies an outstanding quiz fetch. Deliveries carrying an
// older generation than the session's current one are discarded.
type FetchTicket struct {
	SessionID  string
	Generation uint64
	Topic      string
}

// QuestionView is the current question without its answer.
type QuestionView struct {
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
}

// SessionView is a snapshot of a session for clients.
type SessionView struct {
	SessionID  string                `json:"sessionId"`
	State      domain.SessionState   `json:"state"`
	Question   *QuestionView         `json:"question,omitempty"`
	Summary    *domain.ResultSummary `json:"summary,omitempty"`
	Advice     *domain.Advice        `json:"advice,omitempty"`
	Warning    string                `json:"warning,omitempty"`
	FetchError string                `json:"fetchError,omitempty"`
}

// finishOutcome is returned by advance when the last question was answered.
type finishOutcome struct {
	generation       uint64
	summary          domain.ResultSummary
	incorrectPrompts []string
}

// Session is the quiz session controller: it owns one attempt's state and
// applies every transition atomically under mu.
type Session struct {
	id        string
	owner     string
	createdAt time.Time

	// outbound serializes the fetch and submit calls of this session.
	outbound sync.Mutex

	mu         sync.Mutex
	generation uint64
	phase      domain.Phase
	topic      string
	quiz       *domain.QuizSet
	index      int
	selected   *int
	incorrect  []int
	loading    bool
	summary    *domain.ResultSummary
	advice     *domain.Advice
	warning    error
	fetchErr   error
}

func newSession(id, owner string, now func() time.Time) *Session {
	return &Session{
		id:        id,
		owner:     owner,
		createdAt: now(),
		phase:     domain.PhaseSelectingTopic,
		incorrect: []int{},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Owner returns the email of the user who started the session.
func (s *Session) Owner() string { return s.owner }

// CreatedAt returns when the session was started.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) submitTopic(topic string) (FetchTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	topic = strings.TrimSpace(topic)
	if s.phase != domain.PhaseSelectingTopic {
		return FetchTicket{}, fmt.Errorf("%w: submit topic in %s", domain.ErrInvalidTransition, s.phase)
	}
	if s.loading {
		return FetchTicket{}, domain.ErrFetchInProgress
	}
	if topic == "" {
		return FetchTicket{}, domain.ErrEmptyTopic
	}

	s.generation++
	s.topic = topic
	s.loading = true
	s.fetchErr = nil
	return FetchTicket{SessionID: s.id, Generation: s.generation, Topic: topic}, nil
}

func (s *Session) deliverQuiz(ticket FetchTicket, quiz domain.QuizSet, fetchErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.Generation != s.generation || !s.loading {
		return domain.ErrStaleResponse
	}
	s.loading = false

	if fetchErr == nil {
		fetchErr = quiz.Validate()
	}
	if fetchErr != nil {
		s.fetchErr = fetchErr
		return fmt.Errorf("%w: %v", domain.ErrContentFetchFailed, fetchErr)
	}

	s.quiz = &quiz
	s.index = 0
	s.selected = nil
	s.incorrect = []int{}
	s.summary = nil
	s.advice = nil
	s.warning = nil
	s.phase = domain.PhaseAnswering
	return nil
}

func (s *Session) selectChoice(choice int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseAnswering {
		return fmt.Errorf("%w: select choice in %s", domain.ErrInvalidTransition, s.phase)
	}
	n := len(s.quiz.Questions[s.index].Choices)
	if choice < 0 || choice >= n {
		return fmt.Errorf("%w: choice %d of %d", domain.ErrInvalidSelection, choice, n)
	}
	s.selected = &choice
	return nil
}

// advance returns a non-nil outcome when the attempt just finished.
func (s *Session) advance() (*finishOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != domain.PhaseAnswering {
		return nil, fmt.Errorf("%w: advance in %s", domain.ErrInvalidTransition, s.phase)
	}
	if s.selected == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSelection, domain.ErrNoSelection)
	}

	if *s.selected != s.quiz.Questions[s.index].CorrectChoiceIndex {
		s.incorrect = append(s.incorrect, s.index)
	}
	s.selected = nil

	if s.index < s.quiz.Len()-1 {
		s.index++
		return nil, nil
	}

	summary := domain.NewResultSummary(s.topic, s.quiz.Len(), s.incorrect)
	s.summary = &summary
	s.phase = domain.PhaseFinished

	prompts := make([]string, 0, len(s.incorrect))
	for _, i := range s.incorrect {
		prompts = append(prompts, s.quiz.Questions[i].Prompt)
	}
	return &finishOutcome{generation: s.generation, summary: summary, incorrectPrompts: prompts}, nil
}

func (s *Session) attachAdvice(generation uint64, advice domain.Advice, submitErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.phase != domain.PhaseFinished {
		return domain.ErrStaleResponse
	}
	if submitErr != nil {
		if !errors.Is(submitErr, domain.ErrResultSubmissionFailed) {
			submitErr = fmt.Errorf("%w: %w", domain.ErrResultSubmissionFailed, submitErr)
		}
		s.warning = submitErr
		s.advice = nil
		return nil
	}
	s.advice = &advice
	s.warning = nil
	return nil
}

// restart discards the attempt; any outstanding response becomes stale.
func (s *Session) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.phase = domain.PhaseSelectingTopic
	s.topic = ""
	s.quiz = nil
	s.index = 0
	s.selected = nil
	s.incorrect = []int{}
	s.loading = false
	s.summary = nil
	s.advice = nil
	s.warning = nil
	s.fetchErr = nil
}

// State returns a copy of the progress record.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// View returns a client-facing snapshot.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := SessionView{SessionID: s.id, State: s.stateLocked()}
	if s.phase == domain.PhaseAnswering {
		q := s.quiz.Questions[s.index]
		view.Question = &QuestionView{
			Index:   s.index,
			Total:   s.quiz.Len(),
			Prompt:  q.Prompt,
			Choices: append([]string(nil), q.Choices...),
		}
	}
	if s.summary != nil {
		summary := *s.summary
		summary.IncorrectIndices = append([]int{}, s.summary.IncorrectIndices...)
		view.Summary = &summary
	}
	if s.advice != nil {
		advice := *s.advice
		view.Advice = &advice
	}
	if s.warning != nil {
		view.Warning = s.warning.Error()
	}
	if s.fetchErr != nil {
		view.FetchError = s.fetchErr.Error()
	}
	return view
}

func (s *Session) stateLocked() domain.SessionState {
	state := domain.SessionState{
		Phase:            s.phase,
		Topic:            s.topic,
		CurrentIndex:     s.index,
		IncorrectIndices: append([]int{}, s.incorrect...),
		Loading:          s.loading,
	}
	if s.selected != nil {
		selected := *s.selected
		state.SelectedChoice = &selected
	}
	return state
}
