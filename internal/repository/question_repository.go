package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, domain_id, text, type, difficulty, experience_level,
	 max_score, time_limit_seconds, options, correct_option, starter_code, language, test_cases`

// FetchForInterview selects the question set for a new session: every question
// of the domain matching the candidate's experience level, ordered so mixed
// sets start with the cheaper formats.
func (r *QuestionRepository) FetchForInterview(ctx context.Context, domainID uuid.UUID, experienceLevel string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 WHERE domain_id = $1 AND experience_level = $2
		 ORDER BY CASE type
		   WHEN 'MULTIPLE_CHOICE' THEN 0
		   WHEN 'FREE_TEXT' THEN 1
		   ELSE 2
		 END, created_at`,
		domainID, experienceLevel,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var correct, starter, language *string
		if err := rows.Scan(&q.ID, &q.DomainID, &q.Text, &q.Type, &q.Difficulty, &q.ExperienceLevel,
			&q.MaxScore, &q.TimeLimitSeconds, &q.Options, &correct, &starter, &language, &q.TestCases); err != nil {
			return nil, err
		}
		if correct != nil {
			q.CorrectOption = *correct
		}
		if starter != nil {
			q.StarterCode = *starter
		}
		if language != nil {
			q.Language = *language
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetByIDs retrieves questions by ID, preserving no particular order.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var correct, starter, language *string
		if err := rows.Scan(&q.ID, &q.DomainID, &q.Text, &q.Type, &q.Difficulty, &q.ExperienceLevel,
			&q.MaxScore, &q.TimeLimitSeconds, &q.Options, &correct, &starter, &language, &q.TestCases); err != nil {
			return nil, err
		}
		if correct != nil {
			q.CorrectOption = *correct
		}
		if starter != nil {
			q.StarterCode = *starter
		}
		if language != nil {
			q.Language = *language
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions
		   (domain_id, text, type, difficulty, experience_level, max_score,
		    time_limit_seconds, options, correct_option, starter_code, language, test_cases)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12)
		 RETURNING id`,
		q.DomainID, q.Text, q.Type, q.Difficulty, q.ExperienceLevel, q.MaxScore,
		q.TimeLimitSeconds, q.Options, q.CorrectOption, q.StarterCode, q.Language, q.TestCases,
	).Scan(&q.ID)
}
