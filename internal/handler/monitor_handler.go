package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/intervia/proctor-backend/internal/model"
	"github.com/intervia/proctor-backend/internal/response"
	"github.com/intervia/proctor-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler exposes the admin dashboard endpoints.
type MonitorHandler struct {
	interviewService *service.InterviewService
	monitorService   *service.MonitorService
	log              zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	interviewService *service.InterviewService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		interviewService: interviewService,
		monitorService:   monitorService,
		log:              log.With().Str("component", "monitor_handler").Logger(),
	}
}

// ListLive godoc
// GET /api/v1/admin/interviews/overview
// One-shot snapshot of every non-terminal session.
func (h *MonitorHandler) ListLive(c *gin.Context) {
	sessions, err := h.monitorService.ListLiveSessions(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrPersistence)
		return
	}

	response.Success(c, http.StatusOK, sessions)
}

// LiveSSE godoc
// GET /api/v1/admin/interviews/live
// Streams the live dashboard: an initial snapshot, violation events as they
// are published, periodic refreshes, and keepalive pings.
func (h *MonitorHandler) LiveSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	h.sendSnapshot(c, reqCtx, "snapshot")

	pubsub := h.monitorService.SubscribeViolations(reqCtx)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Msg("Admin attached to live monitor SSE")

	// Reusable ping payload, never changes
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			h.sendSnapshot(c, reqCtx, "refresh")

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// GetSessionDetail godoc
// GET /api/v1/admin/interviews/:session_id
func (h *MonitorHandler) GetSessionDetail(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	detail, err := h.interviewService.GetSessionDetail(c.Request.Context(), sessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, detail)
}

// GetSessionViolations godoc
// GET /api/v1/admin/interviews/:session_id/violations
func (h *MonitorHandler) GetSessionViolations(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	detail, err := h.interviewService.GetSessionDetail(c.Request.Context(), sessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, detail.Violations)
}

// ListCompleted godoc
// GET /api/v1/admin/interviews?page=1&per_page=50
func (h *MonitorHandler) ListCompleted(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	sessions, total, err := h.interviewService.ListCompleted(c.Request.Context(), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrPersistence)
		return
	}

	totalPages := (total + perPage - 1) / perPage
	response.SuccessWithPagination(c, http.StatusOK, sessions, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

// sendSnapshot queries the live dashboard state and writes one SSE event.
// A scoped timeout keeps a slow query from stalling the loop.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, eventType string) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	sessions, err := h.monitorService.ListLiveSessions(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch live sessions for SSE")
		return
	}

	totalActive := 0
	totalViolations := 0
	for _, s := range sessions {
		if s.Status == model.SessionStatusActive {
			totalActive++
		}
		totalViolations += s.ViolationCount
	}

	c.SSEvent("message", map[string]interface{}{
		"type": eventType,
		"stats": map[string]interface{}{
			"total_live":       len(sessions),
			"total_active":     totalActive,
			"total_violations": totalViolations,
		},
		"sessions": sessions,
	})
	c.Writer.Flush()
}
