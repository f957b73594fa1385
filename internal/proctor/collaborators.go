package proctor

import (
	"context"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
)

// QuestionSource supplies the assigned question set. May return an empty
// slice; the core treats empty as fatal for Initialize.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, domainID uuid.UUID, experienceLevel string) ([]model.Question, error)
}

// Gateway is the durable persistence collaborator. The core does not retry
// internally — failures surface to the caller and the in-memory session state
// stays authoritative.
type Gateway interface {
	CreateSession(ctx context.Context, s *model.InterviewSession) error
	UpdateSession(ctx context.Context, s *model.InterviewSession) error
	SaveAnswerDraft(ctx context.Context, a *model.Answer) error
	SaveViolation(ctx context.Context, v *model.Violation) error
	// SaveFinalResult persists the completed session together with its scored
	// answers. Called exactly once per session, from the arbiter's claimed path.
	SaveFinalResult(ctx context.Context, s *model.InterviewSession, answers []model.Answer) error
}

// CodeExecutor runs candidate code in the external sandbox. It must not
// return a Go error: timeouts and failures are represented as
// ExecutionResult.Status == "error".
type CodeExecutor interface {
	Execute(ctx context.Context, code, language string) model.ExecutionResult
}

// AnswerValidator grades one answer via the external AI validation service.
// Scores are within [0, question.MaxScore]; the scoring coordinator clamps
// defensively anyway.
type AnswerValidator interface {
	Validate(ctx context.Context, q model.Question, a model.Answer) (model.ValidationResult, error)
}

// Notifier pushes non-blocking notices to the candidate's client. All methods
// must be safe to call from timer/monitor goroutines and must never block the
// session core.
type Notifier interface {
	NotifyViolation(v model.Violation, count, limit int)
	NotifyTick(remainingSeconds int)
	NotifyFinalized(s model.InterviewSession)
}

// nopNotifier is used while no client channel is attached.
type nopNotifier struct{}

func (nopNotifier) NotifyViolation(model.Violation, int, int) {}
func (nopNotifier) NotifyTick(int)                            {}
func (nopNotifier) NotifyFinalized(model.InterviewSession)    {}
