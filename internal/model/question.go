package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported answer formats.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeCoding         QuestionType = "CODING"
	QuestionTypeFreeText       QuestionType = "FREE_TEXT"
)

// Question represents a single interview question. Questions are read-only to
// the session core; authoring happens elsewhere.
type Question struct {
	ID               uuid.UUID       `json:"id"`
	DomainID         uuid.UUID       `json:"domain_id"`
	Text             string          `json:"text"`
	Type             QuestionType    `json:"type"`
	Difficulty       string          `json:"difficulty"`
	ExperienceLevel  string          `json:"experience_level"`
	MaxScore         float64         `json:"max_score"`
	TimeLimitSeconds int             `json:"time_limit_seconds"`
	Options          json.RawMessage `json:"options,omitempty"`
	CorrectOption    string          `json:"-"` // never serialized to candidates
	StarterCode      string          `json:"starter_code,omitempty"`
	Language         string          `json:"language,omitempty"`
	TestCases        json.RawMessage `json:"test_cases,omitempty"`
}

// QuestionForCandidate is the candidate-facing projection of a question.
type QuestionForCandidate struct {
	ID               uuid.UUID       `json:"id"`
	Text             string          `json:"text"`
	Type             QuestionType    `json:"type"`
	MaxScore         float64         `json:"max_score"`
	TimeLimitSeconds int             `json:"time_limit_seconds"`
	Options          json.RawMessage `json:"options,omitempty"`
	StarterCode      string          `json:"starter_code,omitempty"`
	Language         string          `json:"language,omitempty"`
}

// ForCandidate strips authoring-only fields from a question.
func (q *Question) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:               q.ID,
		Text:             q.Text,
		Type:             q.Type,
		MaxScore:         q.MaxScore,
		TimeLimitSeconds: q.TimeLimitSeconds,
		Options:          q.Options,
		StarterCode:      q.StarterCode,
		Language:         q.Language,
	}
}
