package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSignal           Action = "signal"
	ActionCaptureGranted   Action = "capture_granted"
	ActionCaptureDenied    Action = "capture_denied"
	ActionFullscreenOK     Action = "fullscreen_ok"
	ActionFullscreenDenied Action = "fullscreen_denied"
	ActionChunk            Action = "chunk"
	ActionToggle           Action = "toggle"
	ActionPing             Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SignalRequest relays one raw proctoring signal observed by the client.
type SignalRequest struct {
	Action Action `json:"action"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// CaptureAckRequest answers a capture_request event. Denied acks carry the
// browser's rejection reason.
type CaptureAckRequest struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// ChunkRequest reports one uploaded recording-chunk reference.
type ChunkRequest struct {
	Action Action `json:"action"`
	Ref    string `json:"ref"`
}

// ToggleRequest enables or disables a capture track.
type ToggleRequest struct {
	Action  Action `json:"action"`
	Track   string `json:"track"` // "camera" | "microphone"
	Enabled bool   `json:"enabled"`
}

// PingRequest keeps the connection alive.
type PingRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventCaptureRequest    Event = "capture_request"
	EventFullscreenRequest Event = "fullscreen_request"
	EventFullscreenExit    Event = "fullscreen_exit"
	EventViolation         Event = "violation"
	EventTick              Event = "tick"
	EventFinalized         Event = "finalized"
	EventError             Event = "error"
	EventPong              Event = "pong"
)

// CaptureRequestEvent asks the client to request camera+microphone access.
type CaptureRequestEvent struct {
	Event Event `json:"event"`
}

// FullscreenRequestEvent asks the client to enter (or leave) fullscreen.
type FullscreenRequestEvent struct {
	Event Event `json:"event"`
}

// ViolationEvent notifies the candidate of an accepted violation.
type ViolationEvent struct {
	Event  Event  `json:"event"`
	Type   string `json:"type"`
	Detail string `json:"detail,omitempty"`
	Count  int    `json:"count"`
	Limit  int    `json:"limit"`
}

// TickEvent carries the authoritative remaining time.
type TickEvent struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// FinalizedEvent carries the completed session summary.
type FinalizedEvent struct {
	Event           Event   `json:"event"`
	Status          string  `json:"status"`
	Trigger         string  `json:"trigger"`
	TotalScore      float64 `json:"total_score"`
	PercentageScore float64 `json:"percentage_score"`
	OverallRating   string  `json:"overall_rating"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
