package collaborator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/intervia/proctor-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const activeInterviewTTL = 24 * time.Hour

// StoreGateway is the session core's persistence collaborator. Session state
// goes straight to PostgreSQL; answer drafts and violations are queued through
// Redis so a slow database write never blocks an in-session operation, and
// accepted violations are additionally published for live dashboards.
type StoreGateway struct {
	sessions   *repository.SessionRepository
	answers    *repository.AnswerRepository
	violations *repository.ViolationRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewStoreGateway creates the persistence gateway.
func NewStoreGateway(
	sessions *repository.SessionRepository,
	answers *repository.AnswerRepository,
	violations *repository.ViolationRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *StoreGateway {
	return &StoreGateway{
		sessions:   sessions,
		answers:    answers,
		violations: violations,
		rdb:        rdb,
		log:        log.With().Str("component", "store_gateway").Logger(),
	}
}

// CreateSession persists a new session and marks it as the candidate's active
// interview.
func (g *StoreGateway) CreateSession(ctx context.Context, s *model.InterviewSession) error {
	if err := g.sessions.Create(ctx, s); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	key := config.CacheKey.CandidateActiveInterviewKey(s.CandidateID)
	if err := g.rdb.Set(ctx, key, s.ID.String(), activeInterviewTTL).Err(); err != nil {
		g.log.Warn().Err(err).Msg("Caching active interview failed")
	}
	return nil
}

// UpdateSession writes the session's mutable state. Terminal transitions also
// clear the candidate's active-interview marker.
func (g *StoreGateway) UpdateSession(ctx context.Context, s *model.InterviewSession) error {
	if err := g.sessions.Update(ctx, s); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if s.Status.Terminal() {
		g.rdb.Del(ctx,
			config.CacheKey.CandidateActiveInterviewKey(s.CandidateID),
			config.CacheKey.InterviewDraftAnswersKey(s.ID.String()),
			config.CacheKey.InterviewRecordingKey(s.ID.String()))
	}
	return nil
}

// SaveAnswerDraft queues the draft for asynchronous persistence and mirrors it
// into the live draft hash the dashboard reads.
func (g *StoreGateway) SaveAnswerDraft(ctx context.Context, a *model.Answer) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal answer draft: %w", err)
	}

	pipe := g.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, data)
	pipe.HSet(ctx, config.CacheKey.InterviewDraftAnswersKey(a.SessionID.String()), a.QuestionID.String(), data)
	pipe.Expire(ctx, config.CacheKey.InterviewDraftAnswersKey(a.SessionID.String()), activeInterviewTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue answer draft: %w", err)
	}
	return nil
}

// SaveViolation queues the violation for asynchronous persistence and
// publishes it to the live monitor channel.
func (g *StoreGateway) SaveViolation(ctx context.Context, v *model.Violation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}

	pipe := g.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	pipe.Publish(ctx, config.CacheKey.ViolationMonitorChannel(), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue violation: %w", err)
	}
	return nil
}

// SaveFinalResult persists the completed session together with its scored
// answers. Scored answers bypass the queue: finalization happens once and the
// caller needs a durable result.
func (g *StoreGateway) SaveFinalResult(ctx context.Context, s *model.InterviewSession, answers []model.Answer) error {
	if err := g.sessions.Update(ctx, s); err != nil {
		return fmt.Errorf("update final session: %w", err)
	}
	for i := range answers {
		if err := g.answers.Upsert(ctx, &answers[i]); err != nil {
			return fmt.Errorf("upsert scored answer %s: %w", answers[i].QuestionID, err)
		}
	}

	g.rdb.Del(ctx,
		config.CacheKey.CandidateActiveInterviewKey(s.CandidateID),
		config.CacheKey.InterviewDraftAnswersKey(s.ID.String()),
		config.CacheKey.InterviewRecordingKey(s.ID.String()))
	return nil
}
