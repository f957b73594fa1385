package model

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionResult is the value object returned by the code-execution sandbox.
// Failures are represented in Status, never as a Go error.
type ExecutionResult struct {
	Output          string `json:"output,omitempty"`
	Error           string `json:"error,omitempty"`
	Status          string `json:"status"` // "success" | "error"
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// ValidationResult is the value object returned by the AI validation service.
type ValidationResult struct {
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Feedback string  `json:"feedback"`
}

// Answer is the candidate's response to one question within one session.
// Resubmission overwrites the draft; scoring makes it immutable.
type Answer struct {
	SessionID        uuid.UUID        `json:"session_id"`
	QuestionID       uuid.UUID        `json:"question_id"`
	Text             string           `json:"text,omitempty"`
	Code             string           `json:"code,omitempty"`
	SelectedOption   string           `json:"selected_option,omitempty"`
	ExecutionResult  *ExecutionResult `json:"execution_result,omitempty"`
	Score            float64          `json:"score"`
	MaxScore         float64          `json:"max_score"`
	Feedback         string           `json:"feedback,omitempty"`
	TimeSpentSeconds int              `json:"time_spent_seconds"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// AnswerPayload is the request body for recording an answer draft. Exactly
// one of the fields is expected, matching the question type.
type AnswerPayload struct {
	Text             string `json:"text" binding:"omitempty,max=20000"`
	Code             string `json:"code" binding:"omitempty,max=100000"`
	SelectedOption   string `json:"selected_option" binding:"omitempty,max=10"`
	TimeSpentSeconds int    `json:"time_spent_seconds" binding:"min=0"`
}
