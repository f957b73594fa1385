package proctor

import (
	"context"
	"time"
)

// SignalKind identifies an environment event relayed by the client.
type SignalKind string

const (
	SignalFullscreenEnter   SignalKind = "fullscreen_enter"
	SignalFullscreenExit    SignalKind = "fullscreen_exit"
	SignalVisibilityHidden  SignalKind = "visibility_hidden"
	SignalVisibilityVisible SignalKind = "visibility_visible"
	SignalKeyCombo          SignalKind = "key_combo"
	SignalContextMenu       SignalKind = "context_menu"
	SignalCameraReady       SignalKind = "camera_ready"
	SignalCameraOff         SignalKind = "camera_off"
	SignalCameraOn          SignalKind = "camera_on"
	SignalMicrophoneOff     SignalKind = "microphone_off"
	SignalMicrophoneOn      SignalKind = "microphone_on"
)

// Signal is one environment event observed in the candidate's browser.
type Signal struct {
	Kind   SignalKind `json:"kind"`
	Detail string     `json:"detail,omitempty"`
	At     time.Time  `json:"at"`
}

// Track identifies a capture track.
type Track string

const (
	TrackCamera     Track = "camera"
	TrackMicrophone Track = "microphone"
)

// CaptureStream is the owned handle to the acquired audio/video capability.
// Only the capture manager ever holds it.
type CaptureStream interface {
	// SetTrackEnabled toggles a single track on the remote stream.
	SetTrackEnabled(track Track, enabled bool) error
	// Stop tears the whole stream down. Implementations must tolerate a
	// single call only; the capture manager guarantees exactly one.
	Stop() error
}

// CapabilityProvider abstracts acquisition of camera/microphone streams,
// fullscreen entry/exit, and the environment signal feed. The production
// implementation relays a candidate's browser over the proctor WebSocket.
type CapabilityProvider interface {
	// RequestCapture acquires the combined audio/video capability. May block
	// until the user answers the permission prompt; a refusal is returned as
	// ErrMediaAccessDenied.
	RequestCapture(ctx context.Context) (CaptureStream, error)
	// RequestFullscreen asks the environment to enter fullscreen. A refusal
	// is returned as ErrFullscreenDenied.
	RequestFullscreen(ctx context.Context) error
	// ExitFullscreen leaves fullscreen if held. Best effort.
	ExitFullscreen()
	// Signals is the environment event feed. The channel closes when the
	// underlying transport goes away.
	Signals() <-chan Signal
	// Close releases the provider's transport resources.
	Close()
}
