package collaborator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// AIValidator grades answers through the external AI validation service.
// Failures are returned as errors; the scoring coordinator degrades them to a
// zero score with a diagnostic.
type AIValidator struct {
	client *resty.Client
	log    zerolog.Logger
}

// NewAIValidator creates a validation client against baseURL.
func NewAIValidator(baseURL string, timeout time.Duration, log zerolog.Logger) *AIValidator {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &AIValidator{
		client: client,
		log:    log.With().Str("component", "ai_validator").Logger(),
	}
}

type validateRequest struct {
	QuestionText    string          `json:"question_text"`
	QuestionType    string          `json:"question_type"`
	MaxScore        float64         `json:"max_score"`
	CorrectOption   string          `json:"correct_option,omitempty"`
	TestCases       json.RawMessage `json:"test_cases,omitempty"`
	Text            string          `json:"text,omitempty"`
	Code            string          `json:"code,omitempty"`
	SelectedOption  string          `json:"selected_option,omitempty"`
	ExecutionOutput string          `json:"execution_output,omitempty"`
}

// Validate grades one answer against its question.
func (v *AIValidator) Validate(ctx context.Context, q model.Question, a model.Answer) (model.ValidationResult, error) {
	// Multiple choice is graded locally; the answer key never leaves the
	// backend and the external service is not consulted.
	if q.Type == model.QuestionTypeMultipleChoice {
		result := model.ValidationResult{MaxScore: q.MaxScore}
		if a.SelectedOption != "" && a.SelectedOption == q.CorrectOption {
			result.Score = q.MaxScore
			result.Feedback = "Correct answer."
		} else {
			result.Feedback = "Incorrect answer."
		}
		return result, nil
	}

	req := validateRequest{
		QuestionText:   q.Text,
		QuestionType:   string(q.Type),
		MaxScore:       q.MaxScore,
		TestCases:      q.TestCases,
		Text:           a.Text,
		Code:           a.Code,
		SelectedOption: a.SelectedOption,
	}
	if a.ExecutionResult != nil {
		req.ExecutionOutput = a.ExecutionResult.Output
	}

	var result model.ValidationResult
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/validate")
	if err != nil {
		return model.ValidationResult{}, fmt.Errorf("call validation service: %w", err)
	}
	if resp.IsError() {
		return model.ValidationResult{}, fmt.Errorf("validation service returned %d", resp.StatusCode())
	}

	if result.MaxScore == 0 {
		result.MaxScore = q.MaxScore
	}
	return result, nil
}
