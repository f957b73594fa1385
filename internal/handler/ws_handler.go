package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/middleware"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/intervia/proctor-backend/internal/proctor"
	"github.com/intervia/proctor-backend/internal/service"
	ws "github.com/intervia/proctor-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the proctor WebSocket channel. Each connection becomes
// the session's capability provider: the server requests fullscreen and
// capture through it, the browser relays environment signals back.
type WSHandler struct {
	rdb              *redis.Client
	interviewService *service.InterviewService
	policy           config.ProctorPolicy
	log              zerolog.Logger
	upgrader         websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, interviewService *service.InterviewService, policy config.ProctorPolicy, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:              rdb,
		interviewService: interviewService,
		policy:           policy,
		log:              log.With().Str("component", "ws_handler").Logger(),
		upgrader:         buildUpgrader(allowedOrigins),
	}
}

// ProctorStream godoc
// WS /ws/v1/candidate/interviews/:session_id/proctor
// Upgrades to WebSocket and attaches the connection to the session controller
// as its capability provider and notice channel.
func (h *WSHandler) ProctorStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	ctrl, err := h.interviewService.GetControllerForSession(claims.UserID, sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	wsLog := h.log.With().
		Int("candidate_id", claims.UserID).
		Str("session_id", sessionID.String()).
		Logger()

	client := newWSClient(conn, wsLog)
	if err := ctrl.AttachClient(client, client); err != nil {
		ws.WriteError(conn, "session already finished")
		conn.Close()
		return
	}

	wsLog.Info().Msg("Candidate connected")
	h.readLoop(client, ctrl, wsLog)
}

func (h *WSHandler) readLoop(client *wsClient, ctrl *proctor.Controller, wsLog zerolog.Logger) {
	for {
		var envelope ws.RequestEnvelope
		raw, err := client.readMessage(&envelope)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch envelope.Action {
		case ws.ActionSignal:
			var msg ws.SignalRequest
			if unmarshalOrError(client, raw, &msg) {
				client.pushSignal(proctor.Signal{
					Kind:   proctor.SignalKind(msg.Kind),
					Detail: msg.Detail,
					At:     time.Now(),
				})
			}
		case ws.ActionCaptureGranted:
			client.ackCapture(nil)
		case ws.ActionCaptureDenied:
			client.ackCapture(proctor.ErrMediaAccessDenied)
		case ws.ActionFullscreenOK:
			client.ackFullscreen(nil)
		case ws.ActionFullscreenDenied:
			client.ackFullscreen(proctor.ErrFullscreenDenied)
		case ws.ActionChunk:
			var msg ws.ChunkRequest
			if unmarshalOrError(client, raw, &msg) && msg.Ref != "" {
				h.handleChunk(ctrl, msg.Ref)
			}
		case ws.ActionToggle:
			var msg ws.ToggleRequest
			if unmarshalOrError(client, raw, &msg) {
				if err := ctrl.Toggle(proctor.Track(msg.Track), msg.Enabled); err != nil {
					client.writeTyped(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
				}
			}
		case ws.ActionPing:
			client.writeTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			client.writeTyped(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(envelope.Action)})
		}
	}
}

// handleChunk records the chunk reference in the in-memory rolling buffer and
// mirrors it into Redis so the buffer survives a backend restart.
func (h *WSHandler) handleChunk(ctrl *proctor.Controller, ref string) {
	ctrl.AppendRecordingChunk(ref)

	ctx := context.Background()
	key := config.CacheKey.InterviewRecordingKey(ctrl.SessionID().String())
	pipe := h.rdb.Pipeline()
	pipe.RPush(ctx, key, ref)
	pipe.LTrim(ctx, key, int64(-h.policy.RecordingChunks), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Mirroring recording chunk failed")
	}
}

func unmarshalOrError(client *wsClient, raw []byte, v interface{}) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		client.writeTyped(ws.ErrorResponse{Event: ws.EventError, Error: "malformed payload"})
		return false
	}
	return true
}

// ─── wsClient: CapabilityProvider + Notifier over one connection ────────────

// wsClient adapts a proctor WebSocket connection to the session core's
// CapabilityProvider and Notifier interfaces. Capability requests are
// event/ack pairs; acks arrive through the read loop.
type wsClient struct {
	conn *websocket.Conn
	log  zerolog.Logger

	writeMu sync.Mutex

	signals       chan proctor.Signal
	captureAck    chan error
	fullscreenAck chan error

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSClient(conn *websocket.Conn, log zerolog.Logger) *wsClient {
	return &wsClient{
		conn:          conn,
		log:           log,
		signals:       make(chan proctor.Signal, 64),
		captureAck:    make(chan error, 1),
		fullscreenAck: make(chan error, 1),
		closed:        make(chan struct{}),
	}
}

// RequestCapture asks the browser for camera+microphone and waits for the ack.
func (w *wsClient) RequestCapture(ctx context.Context) (proctor.CaptureStream, error) {
	if err := w.writeTyped(ws.CaptureRequestEvent{Event: ws.EventCaptureRequest}); err != nil {
		return nil, err
	}
	select {
	case err := <-w.captureAck:
		if err != nil {
			return nil, err
		}
		return &wsStream{client: w}, nil
	case <-w.closed:
		return nil, proctor.ErrCapabilityUnavailable
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RequestFullscreen asks the browser to enter fullscreen and waits for the ack.
func (w *wsClient) RequestFullscreen(ctx context.Context) error {
	if err := w.writeTyped(ws.FullscreenRequestEvent{Event: ws.EventFullscreenRequest}); err != nil {
		return err
	}
	select {
	case err := <-w.fullscreenAck:
		return err
	case <-w.closed:
		return proctor.ErrCapabilityUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExitFullscreen tells the browser to leave fullscreen. Best effort.
func (w *wsClient) ExitFullscreen() {
	w.writeTyped(ws.FullscreenRequestEvent{Event: ws.EventFullscreenExit})
}

func (w *wsClient) Signals() <-chan proctor.Signal { return w.signals }

func (w *wsClient) Close() {
	w.closeOnce.Do(func() {
		close(w.closed)
		w.conn.Close()
	})
}

// NotifyViolation pushes a violation notice to the candidate.
func (w *wsClient) NotifyViolation(v model.Violation, count, limit int) {
	w.writeTyped(ws.ViolationEvent{
		Event:  ws.EventViolation,
		Type:   string(v.Type),
		Detail: v.Detail,
		Count:  count,
		Limit:  limit,
	})
}

// NotifyTick pushes the authoritative remaining time.
func (w *wsClient) NotifyTick(remainingSeconds int) {
	w.writeTyped(ws.TickEvent{Event: ws.EventTick, RemainingSeconds: remainingSeconds})
}

// NotifyFinalized pushes the completed session summary.
func (w *wsClient) NotifyFinalized(s model.InterviewSession) {
	w.writeTyped(ws.FinalizedEvent{
		Event:           ws.EventFinalized,
		Status:          string(s.Status),
		Trigger:         string(s.SubmitTrigger),
		TotalScore:      s.TotalScore,
		PercentageScore: s.PercentageScore,
		OverallRating:   string(s.OverallRating),
	})
}

func (w *wsClient) writeTyped(v interface{}) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	select {
	case <-w.closed:
		return websocket.ErrCloseSent
	default:
	}
	if err := ws.WriteTyped(w.conn, v); err != nil {
		w.log.Debug().Err(err).Msg("WebSocket write failed")
		return err
	}
	return nil
}

// readMessage reads one raw frame and peeks at its action envelope.
func (w *wsClient) readMessage(envelope *ws.RequestEnvelope) ([]byte, error) {
	w.conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	_, raw, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, envelope); err != nil {
		return nil, err
	}
	return raw, nil
}

func (w *wsClient) pushSignal(s proctor.Signal) {
	select {
	case w.signals <- s:
	default:
		// A stalled monitor must not block the read loop.
		w.log.Warn().Str("kind", string(s.Kind)).Msg("Signal buffer full, dropping")
	}
}

func (w *wsClient) ackCapture(err error) {
	select {
	case w.captureAck <- err:
	default:
	}
}

func (w *wsClient) ackFullscreen(err error) {
	select {
	case w.fullscreenAck <- err:
	default:
	}
}

// wsStream is the owned handle to the browser's capture stream. Track state
// lives in the browser; the server side only relays teardown, which the
// client performs on the finalized event.
type wsStream struct {
	client *wsClient
}

func (s *wsStream) SetTrackEnabled(track proctor.Track, enabled bool) error { return nil }

func (s *wsStream) Stop() error { return nil }
