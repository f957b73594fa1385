package proctor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer counts a session's remaining budget down at one tick per second.
// Reaching zero requests finalization exactly once; the timer guards its own
// firing independent of the arbiter's claim, since ticks may still be
// delivered after zero is first reached.
type Timer struct {
	clock Clock

	remaining      atomic.Int64
	sliceRemaining atomic.Int64

	fired    atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	onTick         func(remaining int)
	onExpired      func()
	onSliceExpired func()
}

// NewTimer creates a timer with the given budget in seconds. onExpired runs
// once when the budget reaches zero; onTick runs every second with the new
// remaining value; onSliceExpired (optional) fires when the per-question
// slice set via ResetSlice runs out.
func NewTimer(clock Clock, budgetSeconds int, onTick func(int), onExpired func(), onSliceExpired func()) *Timer {
	t := &Timer{
		clock:          clock,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
		onTick:         onTick,
		onExpired:      onExpired,
		onSliceExpired: onSliceExpired,
	}
	t.remaining.Store(int64(budgetSeconds))
	t.sliceRemaining.Store(-1)
	return t
}

// Start launches the countdown goroutine. The ticker is created here, before
// the goroutine spawns, so ticks delivered immediately after Start cannot be
// dropped.
func (t *Timer) Start() {
	ticker := t.clock.NewTicker(time.Second)
	go t.run(ticker)
}

func (t *Timer) run(ticker Ticker) {
	defer close(t.done)
	defer ticker.Stop()

	for {
		// Prefer stop over ticks already buffered in the ticker channel, so
		// expiry cannot fire after Stop.
		select {
		case <-t.stop:
			return
		default:
		}

		select {
		case <-t.stop:
			return
		case <-ticker.C():
			n := t.remaining.Add(-1)
			if n < 0 {
				// Late tick after zero — never fire twice.
				return
			}

			if t.onTick != nil {
				t.onTick(int(n))
			}

			if s := t.sliceRemaining.Load(); s > 0 {
				if t.sliceRemaining.Add(-1) == 0 && t.onSliceExpired != nil {
					t.onSliceExpired()
				}
			}

			if n == 0 {
				if t.fired.CompareAndSwap(false, true) {
					t.onExpired()
				}
				return
			}
		}
	}
}

// Stop halts the countdown. Idempotent; does not wait for in-flight callbacks.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Remaining returns the current remaining budget in seconds.
func (t *Timer) Remaining() int {
	n := t.remaining.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// ResetSlice arms the per-question slice countdown. Pass a non-positive value
// to disarm.
func (t *Timer) ResetSlice(seconds int) {
	if seconds <= 0 {
		t.sliceRemaining.Store(-1)
		return
	}
	t.sliceRemaining.Store(int64(seconds))
}
