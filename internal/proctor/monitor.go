package proctor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/intervia/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// Monitor consumes capability signals while the session is Active and turns
// qualifying ones into violations. It stays disarmed through initial
// acquisition: the fullscreen-enter and camera-ready events caused by Start
// are setup, not violations.
type Monitor struct {
	policy ViolationPolicy
	now    func() time.Time
	log    zerolog.Logger

	armed    atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu           sync.Mutex
	lastAccepted map[model.ViolationType]time.Time

	// onViolation is invoked for every accepted signal, from the monitor
	// goroutine. The controller records, persists and counts.
	onViolation func(t model.ViolationType, detail string)
}

// ViolationPolicy is the monitor's slice of the proctoring policy.
type ViolationPolicy struct {
	DebounceWindow time.Duration
}

// NewMonitor creates a monitor. Call Run with the provider's signal channel,
// then Arm once acquisition has completed.
func NewMonitor(policy ViolationPolicy, now func() time.Time, onViolation func(model.ViolationType, string), log zerolog.Logger) *Monitor {
	return &Monitor{
		policy:       policy,
		now:          now,
		onViolation:  onViolation,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		lastAccepted: make(map[model.ViolationType]time.Time),
		log:          log.With().Str("component", "violation_monitor").Logger(),
	}
}

// Run consumes the signal channel until Stop is called or the channel closes.
// Call in a goroutine.
func (m *Monitor) Run(signals <-chan Signal) {
	defer close(m.done)

	for {
		select {
		case <-m.stop:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			m.handle(sig)
		}
	}
}

// Arm enables violation accounting. Transitions observed before arming do not
// count.
func (m *Monitor) Arm() {
	m.armed.Store(true)
	m.log.Debug().Msg("Monitor armed")
}

// Stop synchronously stops the monitor. After Stop returns, no further
// violations will be emitted.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
	m.armed.Store(false)
}

func (m *Monitor) handle(sig Signal) {
	if !m.armed.Load() {
		return
	}

	vtype, ok := classify(sig.Kind)
	if !ok {
		return
	}

	if m.debounced(vtype) {
		m.log.Debug().Str("type", string(vtype)).Msg("Signal coalesced within debounce window")
		return
	}

	m.onViolation(vtype, sig.Detail)
}

// debounced reports whether an identical violation was accepted within the
// debounce window, and marks the acceptance time otherwise.
func (m *Monitor) debounced(vtype model.ViolationType) bool {
	if m.policy.DebounceWindow <= 0 {
		return false
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.lastAccepted[vtype]; ok && now.Sub(last) < m.policy.DebounceWindow {
		return true
	}
	m.lastAccepted[vtype] = now
	return false
}

// classify maps an environment signal to a violation type. Setup and
// restorative signals (entering fullscreen, tab becoming visible, tracks
// coming back on) are not violations.
func classify(kind SignalKind) (model.ViolationType, bool) {
	switch kind {
	case SignalFullscreenExit:
		return model.ViolationFullscreenExit, true
	case SignalVisibilityHidden:
		return model.ViolationTabSwitch, true
	case SignalKeyCombo:
		return model.ViolationForbiddenShortcut, true
	case SignalContextMenu:
		return model.ViolationContextMenuAttempt, true
	case SignalCameraOff:
		return model.ViolationCameraDisabled, true
	case SignalMicrophoneOff:
		return model.ViolationMicrophoneDisabled, true
	default:
		return "", false
	}
}
