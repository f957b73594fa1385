package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// LiveSession combines candidate data with their session state for the admin
// live dashboard.
type LiveSession struct {
	SessionID            uuid.UUID           `json:"session_id"`
	CandidateID          int                 `json:"candidate_id"`
	CandidateName        string              `json:"candidate_name"`
	CandidateEmail       string              `json:"candidate_email"`
	DomainName           string              `json:"domain_name"`
	Status               model.SessionStatus `json:"status"`
	CurrentQuestionIndex int                 `json:"current_question_index"`
	QuestionCount        int                 `json:"question_count"`
	AnsweredCount        int64               `json:"answered_count"`
	ViolationCount       int                 `json:"violation_count"`
	TimeRemainingSeconds int                 `json:"time_remaining_seconds"`
	StartedAt            *time.Time          `json:"started_at,omitempty"`
}

// MonitorRepository provides data access for the live proctoring dashboard.
// It combines PostgreSQL (session state) and Redis (live draft counts).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// ListLiveSessions returns every non-terminal session with its candidate and
// live answer counts.
func (r *MonitorRepository) ListLiveSessions(ctx context.Context) ([]LiveSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, c.id, c.name, c.email, d.name, s.status,
		        s.current_question_index, COALESCE(array_length(s.question_ids, 1), 0),
		        s.violation_count, s.time_remaining_seconds, s.started_at
		 FROM interview_sessions s
		 JOIN candidates c ON c.id = s.candidate_id
		 JOIN domains d ON d.id = s.domain_id
		 WHERE s.status IN ('AWAITING_START', 'ACTIVE', 'FINALIZING')
		 ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []LiveSession
	for rows.Next() {
		var ls LiveSession
		if err := rows.Scan(&ls.SessionID, &ls.CandidateID, &ls.CandidateName, &ls.CandidateEmail,
			&ls.DomainName, &ls.Status, &ls.CurrentQuestionIndex, &ls.QuestionCount,
			&ls.ViolationCount, &ls.TimeRemainingSeconds, &ls.StartedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Draft counts come from the Redis autosave hash, not the answers table,
	// so the dashboard reflects drafts the worker has not flushed yet.
	for i := range sessions {
		count, err := r.rdb.HLen(ctx, config.CacheKey.InterviewDraftAnswersKey(sessions[i].SessionID.String())).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		sessions[i].AnsweredCount = count
	}
	return sessions, rows.Err()
}

// SubscribeViolations subscribes to the live violation feed.
func (r *MonitorRepository) SubscribeViolations(ctx context.Context) *redis.PubSub {
	return r.rdb.Subscribe(ctx, config.CacheKey.ViolationMonitorChannel())
}
