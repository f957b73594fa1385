package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles interview session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, candidate_id, domain_id, experience_level, status, question_ids,
	 current_question_index, time_remaining_seconds, violation_count,
	 total_score, max_possible_score, percentage_score, overall_rating,
	 submit_trigger, started_at, finished_at, created_at`

// Create inserts a new interview session.
func (r *SessionRepository) Create(ctx context.Context, s *model.InterviewSession) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO interview_sessions
		   (id, candidate_id, domain_id, experience_level, status, question_ids,
		    time_remaining_seconds, max_possible_score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.CandidateID, s.DomainID, s.ExperienceLevel, s.Status, s.QuestionIDs,
		s.TimeRemainingSeconds, s.MaxPossibleScore, s.CreatedAt)
	return err
}

// Update writes the full mutable state of a session.
func (r *SessionRepository) Update(ctx context.Context, s *model.InterviewSession) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE interview_sessions
		 SET status = $1, current_question_index = $2, time_remaining_seconds = $3,
		     violation_count = $4, total_score = $5, percentage_score = $6,
		     overall_rating = NULLIF($7, ''), submit_trigger = NULLIF($8, ''),
		     started_at = $9, finished_at = $10
		 WHERE id = $11`,
		s.Status, s.CurrentQuestionIndex, s.TimeRemainingSeconds,
		s.ViolationCount, s.TotalScore, s.PercentageScore,
		string(s.OverallRating), string(s.SubmitTrigger),
		s.StartedAt, s.FinishedAt, s.ID)
	return err
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.InterviewSession, error) {
	s := &model.InterviewSession{}
	var rating, trigger *string
	err := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM interview_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.CandidateID, &s.DomainID, &s.ExperienceLevel, &s.Status, &s.QuestionIDs,
		&s.CurrentQuestionIndex, &s.TimeRemainingSeconds, &s.ViolationCount,
		&s.TotalScore, &s.MaxPossibleScore, &s.PercentageScore, &rating,
		&trigger, &s.StartedAt, &s.FinishedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if rating != nil {
		s.OverallRating = model.OverallRating(*rating)
	}
	if trigger != nil {
		s.SubmitTrigger = model.SubmitTrigger(*trigger)
	}
	return s, nil
}

// ListByCandidate retrieves all sessions for a candidate, newest first.
func (r *SessionRepository) ListByCandidate(ctx context.Context, candidateID int) ([]model.InterviewSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM interview_sessions
		 WHERE candidate_id = $1
		 ORDER BY created_at DESC`, candidateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ListByStatus retrieves a page of sessions in a given status, newest first,
// for the admin dashboard. Also returns the total count for pagination.
func (r *SessionRepository) ListByStatus(ctx context.Context, status model.SessionStatus, limit, offset int) ([]model.InterviewSession, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM interview_sessions WHERE status = $1`, status,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM interview_sessions
		 WHERE status = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, status, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	sessions, err := scanSessions(rows)
	return sessions, total, err
}

func scanSessions(rows pgx.Rows) ([]model.InterviewSession, error) {
	var sessions []model.InterviewSession
	for rows.Next() {
		var s model.InterviewSession
		var rating, trigger *string
		if err := rows.Scan(&s.ID, &s.CandidateID, &s.DomainID, &s.ExperienceLevel, &s.Status, &s.QuestionIDs,
			&s.CurrentQuestionIndex, &s.TimeRemainingSeconds, &s.ViolationCount,
			&s.TotalScore, &s.MaxPossibleScore, &s.PercentageScore, &rating,
			&trigger, &s.StartedAt, &s.FinishedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		if rating != nil {
			s.OverallRating = model.OverallRating(*rating)
		}
		if trigger != nil {
			s.SubmitTrigger = model.SubmitTrigger(*trigger)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
