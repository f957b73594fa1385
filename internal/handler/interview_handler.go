package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/intervia/proctor-backend/internal/middleware"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/intervia/proctor-backend/internal/proctor"
	"github.com/intervia/proctor-backend/internal/response"
	"github.com/intervia/proctor-backend/internal/service"
	"github.com/intervia/proctor-backend/internal/validator"
)

// InterviewHandler handles candidate-facing interview session endpoints.
type InterviewHandler struct {
	interviewService *service.InterviewService
}

// NewInterviewHandler creates a new InterviewHandler.
func NewInterviewHandler(interviewService *service.InterviewService) *InterviewHandler {
	return &InterviewHandler{interviewService: interviewService}
}

// Initialize godoc
// POST /api/v1/candidate/interviews
// Assigns a question set and creates a session in AWAITING_START.
func (h *InterviewHandler) Initialize(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateInterviewRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snapshot, err := h.interviewService.Initialize(c.Request.Context(), claims.UserID, &req, claims.AccessCode)
	if err != nil {
		switch {
		case errors.Is(err, proctor.ErrInterviewActive):
			response.Fail(c, http.StatusConflict, response.ErrInterviewActive)
		case errors.Is(err, proctor.ErrNoQuestionsAvailable):
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrPersistence)
		}
		return
	}

	response.Success(c, http.StatusCreated, snapshot)
}

// GetActive godoc
// GET /api/v1/candidate/interviews/active
// Returns the candidate's in-flight session snapshot.
func (h *InterviewHandler) GetActive(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	snapshot, err := h.interviewService.Snapshot(claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, snapshot)
}

// GetSnapshot godoc
// GET /api/v1/candidate/interviews/:id
// Returns the session snapshot with questions and violations.
func (h *InterviewHandler) GetSnapshot(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	session, violations := ctrl.Snapshot()
	response.Success(c, http.StatusOK, gin.H{
		"session":    session,
		"questions":  ctrl.Questions(),
		"violations": violations,
	})
}

// Start godoc
// POST /api/v1/candidate/interviews/:id/start
// Runs the capture handshake and moves the session to ACTIVE.
func (h *InterviewHandler) Start(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	if err := ctrl.Start(c.Request.Context()); err != nil {
		h.failProctor(c, err)
		return
	}

	session, _ := ctrl.Snapshot()
	response.Success(c, http.StatusOK, session)
}

// RecordAnswer godoc
// PUT /api/v1/candidate/interviews/:id/answers/:question_id
func (h *InterviewHandler) RecordAnswer(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var payload model.AnswerPayload
	if fields := validator.Bind(c, &payload); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := ctrl.RecordAnswer(c.Request.Context(), questionID, payload); err != nil {
		h.failProctor(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// RunCode godoc
// POST /api/v1/candidate/interviews/:id/answers/:question_id/run
// Executes the candidate's current code draft in the sandbox.
func (h *InterviewHandler) RunCode(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := ctrl.RunCode(c.Request.Context(), questionID)
	if err != nil {
		h.failProctor(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Navigate godoc
// POST /api/v1/candidate/interviews/:id/navigate
func (h *InterviewHandler) Navigate(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := ctrl.Navigate(c.Request.Context(), req.Index); err != nil {
		h.failProctor(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Submit godoc
// POST /api/v1/candidate/interviews/:id/submit
// Finalizes the session with the candidate_submit trigger.
func (h *InterviewHandler) Submit(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	session, err := ctrl.Submit(c.Request.Context(), model.TriggerCandidateSubmit)
	if err != nil {
		h.failProctor(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// History godoc
// GET /api/v1/candidate/interviews/history
func (h *InterviewHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.interviewService.History(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrPersistence)
		return
	}

	response.Success(c, http.StatusOK, sessions)
}

// controller resolves the controller for the session in the path, checking
// candidate ownership, or writes the error response and returns ok=false.
func (h *InterviewHandler) controller(c *gin.Context) (*proctor.Controller, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	ctrl, err := h.interviewService.GetControllerForSession(claims.UserID, sessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return nil, false
	}
	return ctrl, true
}

// failProctor maps controller errors onto API error codes.
func (h *InterviewHandler) failProctor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, proctor.ErrSessionTerminal):
		response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
	case errors.Is(err, proctor.ErrInvalidState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidSessionState)
	case errors.Is(err, proctor.ErrMediaAccessDenied):
		response.Fail(c, http.StatusForbidden, response.ErrMediaAccessDenied)
	case errors.Is(err, proctor.ErrFullscreenDenied):
		response.Fail(c, http.StatusForbidden, response.ErrMediaAccessDenied)
	case errors.Is(err, proctor.ErrCapabilityUnavailable):
		response.Fail(c, http.StatusConflict, response.ErrInvalidSessionState)
	case errors.Is(err, proctor.ErrQuestionNotAssigned):
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotAssigned)
	case errors.Is(err, proctor.ErrNotCodingQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrNotCodingQuestion)
	case errors.Is(err, proctor.ErrIndexOutOfRange):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrPersistence)
	}
}
