package collaborator

import (
	"context"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/intervia/proctor-backend/internal/repository"
)

// QuestionSource adapts the question repository to the session core.
type QuestionSource struct {
	repo *repository.QuestionRepository
}

// NewQuestionSource creates the question source.
func NewQuestionSource(repo *repository.QuestionRepository) *QuestionSource {
	return &QuestionSource{repo: repo}
}

// FetchQuestions returns the assigned set for a new session.
func (s *QuestionSource) FetchQuestions(ctx context.Context, domainID uuid.UUID, experienceLevel string) ([]model.Question, error) {
	return s.repo.FetchForInterview(ctx, domainID, experienceLevel)
}
