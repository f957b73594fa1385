package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates interview session states.
type SessionStatus string

const (
	SessionStatusNotStarted    SessionStatus = "NOT_STARTED"
	SessionStatusAwaitingStart SessionStatus = "AWAITING_START"
	SessionStatusActive        SessionStatus = "ACTIVE"
	SessionStatusFinalizing    SessionStatus = "FINALIZING"
	SessionStatusCompleted     SessionStatus = "COMPLETED"
	SessionStatusAbandoned     SessionStatus = "ABANDONED"
)

// Terminal reports whether a session in this status can never change again.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}

// OverallRating is the discrete band a percentage score maps to.
type OverallRating string

const (
	RatingExcellent OverallRating = "excellent"
	RatingGood      OverallRating = "good"
	RatingAverage   OverallRating = "average"
	RatingPoor      OverallRating = "poor"
)

// BandRating maps a percentage score to its rating band.
func BandRating(percentage float64) OverallRating {
	switch {
	case percentage >= 90:
		return RatingExcellent
	case percentage >= 75:
		return RatingGood
	case percentage >= 60:
		return RatingAverage
	default:
		return RatingPoor
	}
}

// SubmitTrigger identifies which path requested finalization of a session.
type SubmitTrigger string

const (
	TriggerCandidateSubmit SubmitTrigger = "candidate_submit"
	TriggerTimeExpired     SubmitTrigger = "time_expired"
	TriggerViolationLimit  SubmitTrigger = "violation_limit"
	TriggerTeardown        SubmitTrigger = "teardown"
)

// InterviewSession represents one candidate's timed attempt at an assigned
// question set. It is owned exclusively by the session controller; every
// mutation goes through controller operations.
type InterviewSession struct {
	ID                   uuid.UUID     `json:"id"`
	CandidateID          int           `json:"candidate_id"`
	DomainID             uuid.UUID     `json:"domain_id"`
	AccessCode           string        `json:"access_code,omitempty"`
	ExperienceLevel      string        `json:"experience_level"`
	Status               SessionStatus `json:"status"`
	QuestionIDs          []uuid.UUID   `json:"question_ids"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	TimeRemainingSeconds int           `json:"time_remaining_seconds"`
	ViolationCount       int           `json:"violation_count"`
	TotalScore           float64       `json:"total_score"`
	MaxPossibleScore     float64       `json:"max_possible_score"`
	PercentageScore      float64       `json:"percentage_score"`
	OverallRating        OverallRating `json:"overall_rating,omitempty"`
	SubmitTrigger        SubmitTrigger `json:"submit_trigger,omitempty"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	FinishedAt           *time.Time    `json:"finished_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
}

// CreateInterviewRequest is the payload for initializing a session.
type CreateInterviewRequest struct {
	DomainID        uuid.UUID `json:"domain_id" binding:"required"`
	ExperienceLevel string    `json:"experience_level" binding:"required,oneof=junior mid senior"`
}

// NavigateRequest is the payload for moving the current question index.
type NavigateRequest struct {
	Index int `json:"index" binding:"min=0"`
}
