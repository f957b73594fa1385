package proctor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// Deps bundles the collaborators every controller is built from.
type Deps struct {
	Gateway          Gateway
	Questions        QuestionSource
	Executor         CodeExecutor
	Validator        AnswerValidator
	Clock            Clock
	Policy           config.ProctorPolicy
	ValidatorTimeout time.Duration
	Log              zerolog.Logger
}

// Registry holds all in-flight session controllers and enforces that a
// candidate has at most one non-terminal session at a time.
type Registry struct {
	deps Deps

	mu          sync.Mutex
	byID        map[uuid.UUID]*Controller
	byCandidate map[int]uuid.UUID
}

// NewRegistry creates an empty controller registry.
func NewRegistry(deps Deps) *Registry {
	if deps.Clock == nil {
		deps.Clock = WallClock{}
	}
	return &Registry{
		deps:        deps,
		byID:        make(map[uuid.UUID]*Controller),
		byCandidate: make(map[int]uuid.UUID),
	}
}

// Initialize fetches the assigned question set, creates the session record in
// AwaitingStart, and registers a controller for it. Fails with
// ErrNoQuestionsAvailable before any session exists if the set is empty, and
// with ErrInterviewActive if the candidate already has one in flight.
func (r *Registry) Initialize(ctx context.Context, candidateID int, domainID uuid.UUID, accessCode, experienceLevel string) (*Controller, error) {
	r.mu.Lock()
	if _, exists := r.byCandidate[candidateID]; exists {
		r.mu.Unlock()
		return nil, ErrInterviewActive
	}
	// Reserve the slot before the blocking fetch so two concurrent
	// Initialize calls cannot both pass the check.
	r.byCandidate[candidateID] = uuid.Nil
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if r.byCandidate[candidateID] == uuid.Nil {
			delete(r.byCandidate, candidateID)
		}
		r.mu.Unlock()
	}

	questions, err := r.deps.Questions.FetchQuestions(ctx, domainID, experienceLevel)
	if err != nil {
		release()
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	if len(questions) == 0 {
		release()
		return nil, ErrNoQuestionsAvailable
	}

	var maxScore float64
	var budgetSeconds int
	questionIDs := make([]uuid.UUID, len(questions))
	for i := range questions {
		questionIDs[i] = questions[i].ID
		maxScore += questions[i].MaxScore
		budgetSeconds += questions[i].TimeLimitSeconds
	}

	session := &model.InterviewSession{
		ID:                   uuid.New(),
		CandidateID:          candidateID,
		DomainID:             domainID,
		AccessCode:           accessCode,
		ExperienceLevel:      experienceLevel,
		Status:               model.SessionStatusAwaitingStart,
		QuestionIDs:          questionIDs,
		TimeRemainingSeconds: budgetSeconds,
		MaxPossibleScore:     maxScore,
		CreatedAt:            r.deps.Clock.Now(),
	}

	if err := r.deps.Gateway.CreateSession(ctx, session); err != nil {
		release()
		return nil, fmt.Errorf("create session: %w", err)
	}

	scoring := NewScoringCoordinator(r.deps.Validator, r.deps.ValidatorTimeout, r.deps.Log)
	ctrl := newController(
		session,
		questions,
		r.deps.Policy,
		r.deps.Clock,
		r.deps.Gateway,
		r.deps.Executor,
		scoring,
		func() { r.remove(session.ID, candidateID) },
		r.deps.Log,
	)

	r.mu.Lock()
	r.byID[session.ID] = ctrl
	r.byCandidate[candidateID] = session.ID
	r.mu.Unlock()

	return ctrl, nil
}

// Get looks up a controller by session ID.
func (r *Registry) Get(sessionID uuid.UUID) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctrl, ok := r.byID[sessionID]
	return ctrl, ok
}

// GetByCandidate looks up the candidate's in-flight controller.
func (r *Registry) GetByCandidate(candidateID int) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCandidate[candidateID]
	if !ok || id == uuid.Nil {
		return nil, false
	}
	ctrl, ok := r.byID[id]
	return ctrl, ok
}

func (r *Registry) remove(sessionID uuid.UUID, candidateID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, sessionID)
	if r.byCandidate[candidateID] == sessionID {
		delete(r.byCandidate, candidateID)
	}
}

// Shutdown finalizes every in-flight session. Active sessions complete with
// whatever answers exist (trigger teardown); sessions that never started are
// abandoned.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	controllers := make([]*Controller, 0, len(r.byID))
	for _, ctrl := range r.byID {
		controllers = append(controllers, ctrl)
	}
	r.mu.Unlock()

	for _, ctrl := range controllers {
		session, _ := ctrl.Snapshot()
		switch session.Status {
		case model.SessionStatusActive, model.SessionStatusFinalizing:
			if _, err := ctrl.Submit(ctx, model.TriggerTeardown); err != nil {
				r.deps.Log.Error().Err(err).
					Str("session_id", session.ID.String()).
					Msg("Teardown finalization failed")
			}
		default:
			ctrl.abandon(ctx)
		}
	}
}
