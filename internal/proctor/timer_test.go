package proctor

import (
	"sync/atomic"
	"testing"
)

func TestTimerCountsDown(t *testing.T) {
	clock := newFakeClock()
	var last atomic.Int64

	timer := NewTimer(clock, 10, func(remaining int) {
		last.Store(int64(remaining))
	}, func() {}, nil)
	timer.Start()
	defer timer.Stop()

	clock.Tick(3)
	waitUntil(t, func() bool { return last.Load() == 7 }, "tick callback at 7")

	if got := timer.Remaining(); got != 7 {
		t.Fatalf("Remaining = %d, want 7", got)
	}
}

func TestTimerFiresExactlyOnceAtZero(t *testing.T) {
	clock := newFakeClock()
	var fired atomic.Int32

	timer := NewTimer(clock, 3, nil, func() { fired.Add(1) }, nil)
	timer.Start()

	// Deliver more ticks than the budget — late ticks after zero must not
	// re-fire.
	clock.Tick(6)
	waitUntil(t, func() bool { return fired.Load() == 1 }, "expiry fired")

	if got := fired.Load(); got != 1 {
		t.Fatalf("expiry fired %d times, want 1", got)
	}
	if got := timer.Remaining(); got != 0 {
		t.Fatalf("Remaining = %d, want 0", got)
	}
}

func TestTimerStopPreventsExpiry(t *testing.T) {
	clock := newFakeClock()
	var fired atomic.Int32

	timer := NewTimer(clock, 2, nil, func() { fired.Add(1) }, nil)
	timer.Start()
	timer.Stop()
	timer.Stop() // idempotent

	clock.Tick(4)
	<-timer.done

	if got := fired.Load(); got != 0 {
		t.Fatalf("expiry fired %d times after Stop, want 0", got)
	}
}

func TestTimerSliceExpiry(t *testing.T) {
	clock := newFakeClock()
	var sliceFired atomic.Int32

	timer := NewTimer(clock, 100, nil, func() {}, func() { sliceFired.Add(1) })
	timer.Start()
	defer timer.Stop()

	timer.ResetSlice(2)
	clock.Tick(2)
	waitUntil(t, func() bool { return sliceFired.Load() == 1 }, "slice expiry")

	// Disarmed slice does not fire again.
	clock.Tick(3)
	if got := sliceFired.Load(); got != 1 {
		t.Fatalf("slice fired %d times, want 1", got)
	}

	timer.ResetSlice(2)
	clock.Tick(2)
	waitUntil(t, func() bool { return sliceFired.Load() == 2 }, "second slice expiry")
}
