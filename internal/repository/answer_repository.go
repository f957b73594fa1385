package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerRepository handles answer data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert writes a draft or scored answer. Resubmissions overwrite; there is
// exactly one row per (session, question).
func (r *AnswerRepository) Upsert(ctx context.Context, a *model.Answer) error {
	var execution []byte
	if a.ExecutionResult != nil {
		b, err := json.Marshal(a.ExecutionResult)
		if err != nil {
			return err
		}
		execution = b
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answers
		   (session_id, question_id, text, code, selected_option, execution_result,
		    score, max_score, feedback, time_spent_seconds, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET text = EXCLUDED.text,
		     code = EXCLUDED.code,
		     selected_option = EXCLUDED.selected_option,
		     execution_result = EXCLUDED.execution_result,
		     score = EXCLUDED.score,
		     max_score = EXCLUDED.max_score,
		     feedback = EXCLUDED.feedback,
		     time_spent_seconds = EXCLUDED.time_spent_seconds,
		     updated_at = EXCLUDED.updated_at`,
		a.SessionID, a.QuestionID, a.Text, a.Code, a.SelectedOption, execution,
		a.Score, a.MaxScore, a.Feedback, a.TimeSpentSeconds, a.UpdatedAt)
	return err
}

// ListBySession retrieves all answers of a session, in question order within
// the session's assigned set.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id, text, code, selected_option, execution_result,
		        score, max_score, feedback, time_spent_seconds, updated_at
		 FROM answers
		 WHERE session_id = $1
		 ORDER BY updated_at`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		var execution []byte
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.Text, &a.Code, &a.SelectedOption, &execution,
			&a.Score, &a.MaxScore, &a.Feedback, &a.TimeSpentSeconds, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if len(execution) > 0 {
			var result model.ExecutionResult
			if err := json.Unmarshal(execution, &result); err == nil {
				a.ExecutionResult = &result
			}
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
