package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationType tags a detected integrity breach.
type ViolationType string

const (
	ViolationFullscreenExit     ViolationType = "fullscreen_exit"
	ViolationTabSwitch          ViolationType = "tab_switch"
	ViolationCameraDisabled     ViolationType = "camera_disabled"
	ViolationMicrophoneDisabled ViolationType = "microphone_disabled"
	ViolationForbiddenShortcut  ViolationType = "forbidden_shortcut"
	ViolationContextMenuAttempt ViolationType = "context_menu_attempt"
	ViolationMediaAccessDenied  ViolationType = "media_access_denied"
	ViolationFullscreenDenied   ViolationType = "fullscreen_denied"
)

// Violation is an append-only record of an integrity breach during an Active
// session. Violations are never mutated or deleted.
type Violation struct {
	ID         uuid.UUID     `json:"id"`
	SessionID  uuid.UUID     `json:"session_id"`
	Type       ViolationType `json:"type"`
	Detail     string        `json:"detail,omitempty"`
	RecordedAt time.Time     `json:"recorded_at"`
}
