package proctor

import "errors"

// Domain errors surfaced by the session core. Handlers map these to typed
// response codes at the HTTP edge.
var (
	// ErrNoQuestionsAvailable aborts Initialize before any session exists.
	ErrNoQuestionsAvailable = errors.New("no questions available for domain and experience level")

	// ErrInterviewActive rejects a second concurrent session per candidate.
	ErrInterviewActive = errors.New("candidate already has an active interview session")

	// ErrInvalidState rejects an operation outside its declared valid states.
	ErrInvalidState = errors.New("operation not valid in current session state")

	// ErrSessionTerminal rejects mutations of a Completed or Abandoned session.
	ErrSessionTerminal = errors.New("session is already finalized")

	// ErrMediaAccessDenied is raised when capture acquisition is refused and
	// policy blocks the start.
	ErrMediaAccessDenied = errors.New("media capture access denied")

	// ErrFullscreenDenied is raised when the fullscreen request is refused.
	ErrFullscreenDenied = errors.New("fullscreen request denied")

	// ErrCapabilityUnavailable means Start was called before the client
	// attached its capability channel (the proctor WebSocket).
	ErrCapabilityUnavailable = errors.New("no capability provider attached")

	// ErrQuestionNotAssigned rejects answers for questions outside the session.
	ErrQuestionNotAssigned = errors.New("question is not assigned to this session")

	// ErrNotCodingQuestion rejects RunCode on non-coding questions.
	ErrNotCodingQuestion = errors.New("question is not a coding question")

	// ErrIndexOutOfRange rejects navigation beyond the assigned question set.
	ErrIndexOutOfRange = errors.New("question index out of range")
)
