package proctor

import (
	"context"
	"sync/atomic"

	"github.com/intervia/proctor-backend/internal/model"
)

// Arbiter guarantees exactly-once finalization across concurrent triggers
// (candidate submit, timer expiry, violation limit, teardown). The claim is
// an atomic test-and-set — never a check-then-act pair — so two triggers can
// never both observe "not yet claimed".
type Arbiter struct {
	claimed atomic.Bool
	done    chan struct{}

	// result and err are written once, before done is closed.
	result *model.InterviewSession
	err    error

	finalize func(ctx context.Context, trigger model.SubmitTrigger) (*model.InterviewSession, error)
}

// NewArbiter creates an arbiter around the controller's finalize pass.
func NewArbiter(finalize func(context.Context, model.SubmitTrigger) (*model.InterviewSession, error)) *Arbiter {
	return &Arbiter{
		done:     make(chan struct{}),
		finalize: finalize,
	}
}

// Claimed reports whether finalization has been claimed.
func (a *Arbiter) Claimed() bool {
	return a.claimed.Load()
}

// Submit requests finalization. The first caller claims it and runs the
// finalize pass; every other caller blocks until the winner finishes and
// receives the same completed record. Finalization is therefore idempotent
// in effect even though it runs exactly once.
func (a *Arbiter) Submit(ctx context.Context, trigger model.SubmitTrigger) (*model.InterviewSession, error) {
	if a.claimed.CompareAndSwap(false, true) {
		a.result, a.err = a.finalize(ctx, trigger)
		close(a.done)
		return a.result, a.err
	}

	select {
	case <-a.done:
		return a.result, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
