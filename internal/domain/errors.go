package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session has not been started.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates no quiz content exists for a topic.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrMalformedQuiz indicates quiz content failed validation.
	ErrMalformedQuiz = errors.New("malformed quiz")

	// ErrContentFetchFailed is retryable: the session stays in topic selection.
	ErrContentFetchFailed = errors.New("quiz content fetch failed")
	// ErrInvalidSelection covers every rejected guard; the session is left unchanged.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrNoSelection is returned when advancing without a chosen answer.
	ErrNoSelection = errors.New("no choice selected")
	// ErrInvalidTransition is returned for actions not allowed in the current phase.
	ErrInvalidTransition = errors.New("action not allowed in current phase")
	// ErrEmptyTopic is returned when a blank topic is submitted.
	ErrEmptyTopic = errors.New("topic is required")
	// ErrFetchInProgress is returned when a topic is submitted while another fetch is outstanding.
	ErrFetchInProgress = errors.New("quiz fetch already in progress")
	// ErrStaleResponse marks a collaborator response from an abandoned attempt.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrResultSubmissionFailed is non-fatal; the quiz still finishes with the local summary.
	ErrResultSubmissionFailed = errors.New("result submission failed")
	// ErrMalformedAdvice indicates the advisor response was not the expected JSON shape.
	ErrMalformedAdvice = errors.New("malformed advice response")

	// ErrUserNotFound is returned when no account exists for an email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned on signup with an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrMissingField is returned when a required request field is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrUnauthorized is returned for missing or invalid tokens.
	ErrUnauthorized = errors.New("unauthorized")
)
