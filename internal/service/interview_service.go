package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/intervia/proctor-backend/internal/proctor"
	"github.com/intervia/proctor-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

var ErrNoActiveInterview = errors.New("no active interview session")

// InterviewSnapshot is the candidate-facing view of an in-flight session.
type InterviewSnapshot struct {
	Session    model.InterviewSession       `json:"session"`
	Questions  []model.QuestionForCandidate `json:"questions"`
	Violations []model.Violation            `json:"violations"`
}

// SessionDetail is the admin-facing view of a finished session, read from
// durable storage rather than the in-memory registry.
type SessionDetail struct {
	Session    model.InterviewSession `json:"session"`
	Answers    []model.Answer         `json:"answers"`
	Violations []model.Violation      `json:"violations"`
}

// InterviewService bridges the HTTP/WS surface to the in-memory session
// registry and, for finished sessions, to the repositories.
type InterviewService struct {
	registry   *proctor.Registry
	sessions   *repository.SessionRepository
	answers    *repository.AnswerRepository
	violations *repository.ViolationRepository
	domains    *repository.DomainRepository
}

// NewInterviewService creates a new InterviewService.
func NewInterviewService(
	registry *proctor.Registry,
	sessions *repository.SessionRepository,
	answers *repository.AnswerRepository,
	violations *repository.ViolationRepository,
	domains *repository.DomainRepository,
) *InterviewService {
	return &InterviewService{
		registry:   registry,
		sessions:   sessions,
		answers:    answers,
		violations: violations,
		domains:    domains,
	}
}

// Initialize creates a new session for the candidate and returns its snapshot.
func (s *InterviewService) Initialize(ctx context.Context, candidateID int, req *model.CreateInterviewRequest, accessCode string) (*InterviewSnapshot, error) {
	if _, err := s.domains.GetByID(ctx, req.DomainID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("domain %s: %w", req.DomainID, pgx.ErrNoRows)
		}
		return nil, fmt.Errorf("look up domain: %w", err)
	}

	ctrl, err := s.registry.Initialize(ctx, candidateID, req.DomainID, accessCode, req.ExperienceLevel)
	if err != nil {
		return nil, err
	}
	return snapshotOf(ctrl), nil
}

// GetController returns the candidate's in-flight controller.
func (s *InterviewService) GetController(candidateID int) (*proctor.Controller, error) {
	ctrl, ok := s.registry.GetByCandidate(candidateID)
	if !ok {
		return nil, ErrNoActiveInterview
	}
	return ctrl, nil
}

// GetControllerForSession returns the controller for a session the candidate
// owns.
func (s *InterviewService) GetControllerForSession(candidateID int, sessionID uuid.UUID) (*proctor.Controller, error) {
	ctrl, ok := s.registry.Get(sessionID)
	if !ok || ctrl.CandidateID() != candidateID {
		return nil, ErrNoActiveInterview
	}
	return ctrl, nil
}

// Snapshot returns the candidate's current session view.
func (s *InterviewService) Snapshot(candidateID int) (*InterviewSnapshot, error) {
	ctrl, err := s.GetController(candidateID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(ctrl), nil
}

// History lists the candidate's past sessions from durable storage.
func (s *InterviewService) History(ctx context.Context, candidateID int) ([]model.InterviewSession, error) {
	return s.sessions.ListByCandidate(ctx, candidateID)
}

// GetSessionDetail reads a finished session with its answers and violations.
func (s *InterviewService) GetSessionDetail(ctx context.Context, sessionID uuid.UUID) (*SessionDetail, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	violations, err := s.violations.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	return &SessionDetail{Session: *session, Answers: answers, Violations: violations}, nil
}

// ListCompleted lists a page of completed sessions for the admin dashboard,
// newest first, with the total count for pagination.
func (s *InterviewService) ListCompleted(ctx context.Context, page, perPage int) ([]model.InterviewSession, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	return s.sessions.ListByStatus(ctx, model.SessionStatusCompleted, perPage, (page-1)*perPage)
}

func snapshotOf(ctrl *proctor.Controller) *InterviewSnapshot {
	session, violations := ctrl.Snapshot()
	return &InterviewSnapshot{
		Session:    session,
		Questions:  ctrl.Questions(),
		Violations: violations,
	}
}
