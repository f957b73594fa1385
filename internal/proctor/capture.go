package proctor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// CaptureManager owns the capture stream for one session. No other component
// ever sees the raw handle — the controller requests toggles and status only.
type CaptureManager struct {
	provider CapabilityProvider
	log      zerolog.Logger

	mu         sync.Mutex
	stream     CaptureStream
	cameraOn   bool
	micOn      bool
	fullscreen bool
	chunks     []string
	chunkCap   int

	released atomic.Bool
}

// NewCaptureManager creates a capture manager. chunkCap bounds the rolling
// recording buffer.
func NewCaptureManager(provider CapabilityProvider, chunkCap int, log zerolog.Logger) *CaptureManager {
	if chunkCap <= 0 {
		chunkCap = 30
	}
	return &CaptureManager{
		provider: provider,
		chunkCap: chunkCap,
		log:      log.With().Str("component", "capture_manager").Logger(),
	}
}

// Acquire requests fullscreen and the combined audio/video capability.
// Denials are returned as ErrFullscreenDenied / ErrMediaAccessDenied; partial
// acquisition is rolled back so Release stays the single teardown path.
func (m *CaptureManager) Acquire(ctx context.Context) error {
	if err := m.provider.RequestFullscreen(ctx); err != nil {
		if errors.Is(err, ErrFullscreenDenied) {
			return ErrFullscreenDenied
		}
		return err
	}

	m.mu.Lock()
	m.fullscreen = true
	m.mu.Unlock()

	stream, err := m.provider.RequestCapture(ctx)
	if err != nil {
		// Leave fullscreen again — acquire must not leak on error paths.
		m.provider.ExitFullscreen()
		m.mu.Lock()
		m.fullscreen = false
		m.mu.Unlock()
		if errors.Is(err, ErrMediaAccessDenied) {
			return ErrMediaAccessDenied
		}
		return err
	}

	m.mu.Lock()
	if m.released.Load() {
		// Released while the permission prompt was still open. Roll the
		// late acquisition back instead of holding a stream nothing owns.
		m.fullscreen = false
		m.mu.Unlock()
		if err := stream.Stop(); err != nil {
			m.log.Warn().Err(err).Msg("Stream stop failed")
		}
		m.provider.ExitFullscreen()
		return ErrCapabilityUnavailable
	}
	m.stream = stream
	m.cameraOn = true
	m.micOn = true
	m.mu.Unlock()

	m.log.Info().Msg("Capture acquired")
	return nil
}

// SetTrack toggles a single track. Returns the previous enabled state so the
// controller can decide whether a disable is a new violation.
func (m *CaptureManager) SetTrack(track Track, enabled bool) (wasEnabled bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return false, ErrCapabilityUnavailable
	}

	switch track {
	case TrackCamera:
		wasEnabled = m.cameraOn
		m.cameraOn = enabled
	case TrackMicrophone:
		wasEnabled = m.micOn
		m.micOn = enabled
	}

	if err := m.stream.SetTrackEnabled(track, enabled); err != nil {
		return wasEnabled, err
	}
	return wasEnabled, nil
}

// AppendChunk records a recording-chunk reference into the rolling buffer,
// evicting the oldest entry once capacity is reached.
func (m *CaptureManager) AppendChunk(ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released.Load() || m.stream == nil {
		return
	}
	m.chunks = append(m.chunks, ref)
	if len(m.chunks) > m.chunkCap {
		m.chunks = m.chunks[len(m.chunks)-m.chunkCap:]
	}
}

// Chunks returns a copy of the current rolling buffer.
func (m *CaptureManager) Chunks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.chunks))
	copy(out, m.chunks)
	return out
}

// Status reports the current track and fullscreen state.
func (m *CaptureManager) Status() (camera, mic, fullscreen bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cameraOn, m.micOn, m.fullscreen
}

// Release stops all tracks, discards the recording buffer and exits
// fullscreen if held. Safe to call from any finalization path; only the first
// call has effect.
func (m *CaptureManager) Release() {
	if !m.released.CompareAndSwap(false, true) {
		return
	}

	m.mu.Lock()
	stream := m.stream
	fullscreen := m.fullscreen
	m.stream = nil
	m.cameraOn = false
	m.micOn = false
	m.fullscreen = false
	m.chunks = nil
	m.mu.Unlock()

	if stream != nil {
		if err := stream.Stop(); err != nil {
			m.log.Warn().Err(err).Msg("Stream stop failed")
		}
	}
	if fullscreen {
		m.provider.ExitFullscreen()
	}
	m.log.Info().Msg("Capture released")
}
