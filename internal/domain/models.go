package domain

import "time"

// Question is a single multiple-choice question.
type Question struct {
	Prompt             string   `json:"prompt"`
	Choices            []string `json:"choices"`
	CorrectChoiceIndex int      `json:"correctChoiceIndex"`
}

// QuizSet is the fixed, validated sequence of questions for one attempt.
// Build it with NewQuizSet or QuizSetFromPayload.
type QuizSet struct {
	Topic     string     `json:"topic"`
	Questions []Question `json:"questions"`
}

// Len returns the number of questions.
func (q QuizSet) Len() int { return len(q.Questions) }

// Phase is the step of a quiz attempt.
type Phase string

const (
	PhaseSelectingTopic Phase = "selectingTopic"
	PhaseAnswering      Phase = "answering"
	PhaseFinished       Phase = "finished"
)

// SessionState is the per-attempt progress record, as exposed to clients.
type SessionState struct {
	Phase            Phase  `json:"phase"`
	Topic            string `json:"topic,omitempty"`
	CurrentIndex     int    `json:"currentIndex"`
	SelectedChoice   *int   `json:"selectedChoice,omitempty"`
	IncorrectIndices []int  `json:"incorrectIndices"`
	Loading          bool   `json:"loading"`
}

// Feedback is the coarse grade derived from a score.
type Feedback string

const (
	FeedbackExcellent     Feedback = "excellent"
	FeedbackGood          Feedback = "good"
	FeedbackFair          Feedback = "fair"
	FeedbackNeedsPractice Feedback = "needs practice"
)

// ResultSummary is computed once when an attempt finishes.
type ResultSummary struct {
	Topic            string   `json:"topic"`
	Score            int      `json:"score"`
	CorrectCount     int      `json:"correctCount"`
	TotalQuestions   int      `json:"totalQuestions"`
	IncorrectIndices []int    `json:"incorrectIndices"`
	Feedback         Feedback `json:"feedback"`
}

// ResultSubmission is what the result collaborator receives when a quiz ends.
type ResultSubmission struct {
	Email            string   `json:"email"`
	Topic            string   `json:"topic"`
	IncorrectIndices []int    `json:"incorrectIndices"`
	IncorrectPrompts []string `json:"incorrectQuestions"`
	TotalQuestions   int      `json:"totalQuestions"`
	Score            int      `json:"score"`
}

// Advice is the validated advisor response.
type Advice struct {
	Suggestion string   `json:"suggestion"`
	Topics     []string `json:"topics"`
}

// User is a registered account.
type User struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	WeakTopics   []string    `json:"weakTopics"`
	OnlineDates  []time.Time `json:"onlineDates"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// QuizResult is one recorded attempt.
type QuizResult struct {
	Topic          string    `json:"topic"`
	Score          int       `json:"score"`
	CorrectCount   int       `json:"correctCount"`
	TotalQuestions int       `json:"totalQuestions"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PerformancePoint is one entry of the dashboard chart.
type PerformancePoint struct {
	QuizNumber int `json:"quizNumber"`
	Marks      int `json:"marks"`
}

// Dashboard aggregates what the dashboard page shows.
type Dashboard struct {
	User struct {
		Name string `json:"name"`
	} `json:"user"`
	PerformanceData []PerformancePoint `json:"performanceData"`
	WeakTopics      []string           `json:"weakTopics"`
	OnlineDates     []string           `json:"onlineDates"`
}

// QuizFinished is published once per finished attempt.
type QuizFinished struct {
	SessionID  string        `json:"sessionId"`
	Email      string        `json:"email"`
	Summary    ResultSummary `json:"summary"`
	FinishedAt time.Time     `json:"finishedAt"`
}
