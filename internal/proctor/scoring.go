package proctor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const scoringParallelism = 4

// ScoringCoordinator runs the finalize scoring pass: every assigned question
// gets a scored answer, answered or not. Validator failures and timeouts
// degrade to a zero score with a diagnostic feedback string so the session
// can always complete — a hung external call never blocks finalization.
type ScoringCoordinator struct {
	validator AnswerValidator
	timeout   time.Duration
	log       zerolog.Logger
}

// NewScoringCoordinator creates a scoring coordinator. timeout bounds each
// individual validation call.
func NewScoringCoordinator(validator AnswerValidator, timeout time.Duration, log zerolog.Logger) *ScoringCoordinator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ScoringCoordinator{
		validator: validator,
		timeout:   timeout,
		log:       log.With().Str("component", "scoring_coordinator").Logger(),
	}
}

// FinalizeScoring scores every question. The answers map is a snapshot owned
// by the caller; entries for unanswered questions are synthesized with score
// zero. Returns the total score and the complete scored answer list, ordered
// like the question set. Never fails: degraded results are still results.
func (s *ScoringCoordinator) FinalizeScoring(ctx context.Context, sessionID uuid.UUID, questions []model.Question, answers map[uuid.UUID]*model.Answer) (float64, []model.Answer) {
	scored := make([]model.Answer, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoringParallelism)

	for i, q := range questions {
		i, q := i, q
		draft := answers[q.ID]

		if draft == nil {
			scored[i] = model.Answer{
				SessionID:  sessionID,
				QuestionID: q.ID,
				Score:      0,
				MaxScore:   q.MaxScore,
				Feedback:   "No answer submitted.",
			}
			continue
		}

		g.Go(func() error {
			scored[i] = s.scoreOne(gctx, q, *draft)
			return nil
		})
	}

	// Workers never return errors; Wait is for completion only.
	_ = g.Wait()

	var total float64
	for i := range scored {
		total += scored[i].Score
	}
	return total, scored
}

func (s *ScoringCoordinator) scoreOne(ctx context.Context, q model.Question, a model.Answer) model.Answer {
	a.MaxScore = q.MaxScore

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.validator.Validate(callCtx, q, a)
	if err != nil {
		s.log.Warn().Err(err).
			Str("question_id", q.ID.String()).
			Msg("Validation failed, falling back to zero score")
		a.Score = 0
		a.Feedback = fmt.Sprintf("Automatic scoring unavailable: %v", err)
		return a
	}

	score := result.Score
	if score < 0 {
		score = 0
	}
	if score > q.MaxScore {
		score = q.MaxScore
	}
	a.Score = score
	a.Feedback = result.Feedback
	return a
}
