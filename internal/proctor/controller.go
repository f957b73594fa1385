package proctor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// Controller owns one interview session. Every mutation of the session record
// goes through it; the timer, monitor and capture manager emit events that
// the controller applies under its lock. The only cross-goroutine race —
// which trigger finalizes first — is resolved by the arbiter.
type Controller struct {
	policy config.ProctorPolicy
	clock  Clock
	log    zerolog.Logger

	gateway  Gateway
	executor CodeExecutor
	scoring  *ScoringCoordinator
	arbiter  *Arbiter

	mu         sync.Mutex
	session    *model.InterviewSession
	questions  []model.Question
	qIndex     map[uuid.UUID]int
	answers    map[uuid.UUID]*model.Answer
	violations []model.Violation
	provider   CapabilityProvider
	notifier   Notifier
	capture    *CaptureManager
	monitor    *Monitor
	timer      *Timer
	starting   bool
	abandoning bool

	// onTerminal is the registry's removal hook, called once after the
	// session reaches a terminal status.
	onTerminal func()
}

func newController(
	session *model.InterviewSession,
	questions []model.Question,
	policy config.ProctorPolicy,
	clock Clock,
	gateway Gateway,
	executor CodeExecutor,
	scoring *ScoringCoordinator,
	onTerminal func(),
	log zerolog.Logger,
) *Controller {
	qIndex := make(map[uuid.UUID]int, len(questions))
	for i := range questions {
		qIndex[questions[i].ID] = i
	}

	c := &Controller{
		policy:     policy,
		clock:      clock,
		gateway:    gateway,
		executor:   executor,
		scoring:    scoring,
		session:    session,
		questions:  questions,
		qIndex:     qIndex,
		answers:    make(map[uuid.UUID]*model.Answer),
		notifier:   nopNotifier{},
		onTerminal: onTerminal,
		log: log.With().
			Str("component", "session_controller").
			Str("session_id", session.ID.String()).
			Logger(),
	}
	c.arbiter = NewArbiter(c.finalize)
	return c
}

// SessionID returns the controlled session's identity.
func (c *Controller) SessionID() uuid.UUID {
	return c.session.ID
}

// CandidateID returns the owning candidate's identity.
func (c *Controller) CandidateID() int {
	return c.session.CandidateID
}

// AttachClient wires the candidate's capability channel (the proctor
// WebSocket) and notice sink into the controller. On reconnect the previous
// provider is closed and, if the session is Active, monitoring resumes armed
// on the new signal feed.
func (c *Controller) AttachClient(provider CapabilityProvider, notifier Notifier) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status.Terminal() {
		return ErrSessionTerminal
	}

	if c.provider != nil {
		c.provider.Close()
	}
	c.provider = provider
	if notifier != nil {
		c.notifier = notifier
	}

	if c.session.Status == model.SessionStatusActive {
		if c.monitor != nil {
			// Old monitor drains the dead channel; replace it.
			go c.monitor.Stop()
		}
		monitor := NewMonitor(
			ViolationPolicy{DebounceWindow: c.policy.DebounceWindow},
			c.clock.Now,
			c.handleViolation,
			c.log,
		)
		c.monitor = monitor
		go monitor.Run(provider.Signals())
		monitor.Arm()
	}

	return nil
}

// Start transitions AwaitingStart -> Active: acquires fullscreen and capture,
// arms the violation monitor after acquisition, and starts the countdown.
// It must be driven by an explicit candidate action. Calling Start once
// Active is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.session.Status {
	case model.SessionStatusActive:
		c.mu.Unlock()
		return nil
	case model.SessionStatusAwaitingStart:
		// proceed
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, c.session.Status)
	}
	if c.starting {
		c.mu.Unlock()
		return nil
	}
	if c.provider == nil {
		c.mu.Unlock()
		return ErrCapabilityUnavailable
	}
	c.starting = true
	provider := c.provider
	capture := NewCaptureManager(provider, c.policy.RecordingChunks, c.log)
	c.capture = capture
	c.mu.Unlock()

	// Acquisition may block pending the user's permission prompt.
	if err := capture.Acquire(ctx); err != nil {
		switch {
		case errors.Is(err, ErrFullscreenDenied):
			c.recordViolation(model.ViolationFullscreenDenied, "fullscreen request rejected at start")
		case errors.Is(err, ErrMediaAccessDenied):
			c.recordViolation(model.ViolationMediaAccessDenied, "capture request rejected at start")
		default:
			c.mu.Lock()
			c.starting = false
			status := c.session.Status
			c.mu.Unlock()
			if status != model.SessionStatusAwaitingStart {
				return fmt.Errorf("%w: %s", ErrSessionTerminal, status)
			}
			return fmt.Errorf("acquire capture: %w", err)
		}

		if c.policy.BlockOnMediaDenied {
			c.abandon(ctx)
			return err
		}
		// Degraded mode: the session proceeds, the denial is on record.
		c.log.Warn().Err(err).Msg("Starting session degraded without full capture")
	}

	c.mu.Lock()
	if c.session.Status != model.SessionStatusAwaitingStart {
		// Finalized while Acquire blocked on the permission prompt.
		// Terminal states are immutable, so the fresh capture is dropped.
		status := c.session.Status
		c.starting = false
		c.capture = nil
		c.mu.Unlock()
		capture.Release()
		return fmt.Errorf("%w: %s", ErrSessionTerminal, status)
	}
	now := c.clock.Now()
	c.session.Status = model.SessionStatusActive
	c.session.StartedAt = &now
	c.starting = false

	monitor := NewMonitor(
		ViolationPolicy{DebounceWindow: c.policy.DebounceWindow},
		c.clock.Now,
		c.handleViolation,
		c.log,
	)
	timer := NewTimer(c.clock, c.session.TimeRemainingSeconds, c.handleTick, c.handleExpired, c.handleSliceExpired)
	c.monitor = monitor
	c.timer = timer

	if c.policy.QuestionSlicing && len(c.questions) > 0 {
		timer.ResetSlice(c.questions[c.session.CurrentQuestionIndex].TimeLimitSeconds)
	}
	patch := c.cloneSessionLocked()
	c.mu.Unlock()

	// Arm only after acquisition: the initial fullscreen-enter and
	// camera-ready signals are setup, not violations.
	go monitor.Run(provider.Signals())
	monitor.Arm()
	timer.Start()

	if err := c.gateway.UpdateSession(ctx, patch); err != nil {
		c.log.Error().Err(err).Msg("Persisting session start failed")
	}

	c.log.Info().Int("budget_seconds", patch.TimeRemainingSeconds).Msg("Session started")
	return nil
}

// RecordAnswer stores or overwrites the draft answer for a question. Valid
// only while Active; drafts are not scored until finalization.
func (c *Controller) RecordAnswer(ctx context.Context, questionID uuid.UUID, payload model.AnswerPayload) error {
	c.mu.Lock()
	if c.session.Status != model.SessionStatusActive {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, c.session.Status)
	}
	if _, ok := c.qIndex[questionID]; !ok {
		c.mu.Unlock()
		return ErrQuestionNotAssigned
	}

	draft, ok := c.answers[questionID]
	if !ok {
		draft = &model.Answer{
			SessionID:  c.session.ID,
			QuestionID: questionID,
		}
		c.answers[questionID] = draft
	}
	// Overwrite, never duplicate. An attached execution result survives a
	// resubmission of the same code.
	draft.Text = payload.Text
	draft.Code = payload.Code
	draft.SelectedOption = payload.SelectedOption
	draft.TimeSpentSeconds = payload.TimeSpentSeconds
	draft.UpdatedAt = c.clock.Now()
	saved := *draft
	c.mu.Unlock()

	if err := c.gateway.SaveAnswerDraft(ctx, &saved); err != nil {
		// The in-memory draft is authoritative; the caller may retry the write.
		return fmt.Errorf("persist answer draft: %w", err)
	}
	return nil
}

// RunCode executes the current code draft of a coding question in the
// external sandbox and attaches the result to the draft. Execution failures
// are not errors — they come back as a failed ExecutionResult.
func (c *Controller) RunCode(ctx context.Context, questionID uuid.UUID) (*model.ExecutionResult, error) {
	c.mu.Lock()
	if c.session.Status != model.SessionStatusActive {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, c.session.Status)
	}
	idx, ok := c.qIndex[questionID]
	if !ok {
		c.mu.Unlock()
		return nil, ErrQuestionNotAssigned
	}
	question := c.questions[idx]
	if question.Type != model.QuestionTypeCoding {
		c.mu.Unlock()
		return nil, ErrNotCodingQuestion
	}

	code := question.StarterCode
	if draft, ok := c.answers[questionID]; ok && draft.Code != "" {
		code = draft.Code
	}
	c.mu.Unlock()

	result := c.executor.Execute(ctx, code, question.Language)

	c.mu.Lock()
	if c.session.Status == model.SessionStatusActive {
		draft, ok := c.answers[questionID]
		if !ok {
			draft = &model.Answer{
				SessionID:  c.session.ID,
				QuestionID: questionID,
				Code:       code,
			}
			c.answers[questionID] = draft
		}
		draft.ExecutionResult = &result
		draft.UpdatedAt = c.clock.Now()
	}
	c.mu.Unlock()

	return &result, nil
}

// Navigate moves the current question index. Rejected while not Active.
func (c *Controller) Navigate(ctx context.Context, index int) error {
	c.mu.Lock()
	if c.session.Status != model.SessionStatusActive {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, c.session.Status)
	}
	if index < 0 || index >= len(c.questions) {
		c.mu.Unlock()
		return ErrIndexOutOfRange
	}
	c.session.CurrentQuestionIndex = index
	if c.policy.QuestionSlicing && c.timer != nil {
		c.timer.ResetSlice(c.questions[index].TimeLimitSeconds)
	}
	patch := c.cloneSessionLocked()
	c.mu.Unlock()

	if err := c.gateway.UpdateSession(ctx, patch); err != nil {
		c.log.Warn().Err(err).Msg("Persisting navigation failed")
	}
	return nil
}

// Toggle enables or disables a capture track. Disabling a track while Active
// records a violation but does not by itself finalize the session.
func (c *Controller) Toggle(track Track, enabled bool) error {
	c.mu.Lock()
	if c.session.Status != model.SessionStatusActive {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, c.session.Status)
	}
	capture := c.capture
	c.mu.Unlock()

	if capture == nil {
		return ErrCapabilityUnavailable
	}

	wasEnabled, err := capture.SetTrack(track, enabled)
	if err != nil {
		return fmt.Errorf("toggle %s: %w", track, err)
	}

	if !enabled && wasEnabled {
		switch track {
		case TrackCamera:
			c.handleViolation(model.ViolationCameraDisabled, "camera disabled by candidate")
		case TrackMicrophone:
			c.handleViolation(model.ViolationMicrophoneDisabled, "microphone disabled by candidate")
		}
	}
	return nil
}

// AppendRecordingChunk stores a recording-chunk reference in the rolling
// buffer while the session is Active.
func (c *Controller) AppendRecordingChunk(ref string) {
	c.mu.Lock()
	capture := c.capture
	active := c.session.Status == model.SessionStatusActive
	c.mu.Unlock()

	if active && capture != nil {
		capture.AppendChunk(ref)
	}
}

// Submit requests finalization. Whichever trigger claims the arbiter first
// runs the finalize pass; concurrent triggers receive the same completed
// record.
func (c *Controller) Submit(ctx context.Context, trigger model.SubmitTrigger) (*model.InterviewSession, error) {
	c.mu.Lock()
	status := c.session.Status
	c.mu.Unlock()

	switch status {
	case model.SessionStatusActive, model.SessionStatusFinalizing:
		// valid
	case model.SessionStatusCompleted, model.SessionStatusAbandoned:
		return nil, ErrSessionTerminal
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, status)
	}

	return c.arbiter.Submit(ctx, trigger)
}

// Snapshot returns read-only copies of the session and its violations for
// display.
func (c *Controller) Snapshot() (model.InterviewSession, []model.Violation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session := *c.cloneSessionLocked()
	violations := make([]model.Violation, len(c.violations))
	copy(violations, c.violations)
	return session, violations
}

// Questions returns the candidate-facing projection of the assigned set.
func (c *Controller) Questions() []model.QuestionForCandidate {
	out := make([]model.QuestionForCandidate, len(c.questions))
	for i := range c.questions {
		out[i] = c.questions[i].ForCandidate()
	}
	return out
}

// ─── Internal event handlers ────────────────────────────────────────────────

func (c *Controller) handleTick(remaining int) {
	c.mu.Lock()
	if c.session.Status != model.SessionStatusActive {
		c.mu.Unlock()
		return
	}
	c.session.TimeRemainingSeconds = remaining
	notifier := c.notifier
	c.mu.Unlock()

	notifier.NotifyTick(remaining)
}

func (c *Controller) handleExpired() {
	// Run finalization off the timer goroutine; the timer's own once-guard
	// already ensured this fires a single time.
	go func() {
		if _, err := c.Submit(context.Background(), model.TriggerTimeExpired); err != nil && !errors.Is(err, ErrSessionTerminal) {
			c.log.Error().Err(err).Msg("Time-expired finalization failed")
		}
	}()
}

func (c *Controller) handleSliceExpired() {
	go func() {
		c.mu.Lock()
		next := c.session.CurrentQuestionIndex + 1
		last := next >= len(c.questions)
		c.mu.Unlock()
		if last {
			return
		}
		if err := c.Navigate(context.Background(), next); err != nil && !errors.Is(err, ErrInvalidState) {
			c.log.Warn().Err(err).Msg("Slice auto-advance failed")
		}
	}()
}

// handleViolation records one accepted violation: appends it, persists it,
// surfaces it to the candidate, and requests finalization when the configured
// limit is reached.
func (c *Controller) handleViolation(vtype model.ViolationType, detail string) {
	c.mu.Lock()
	if c.session.Status != model.SessionStatusActive {
		c.mu.Unlock()
		return
	}
	v := c.recordViolationLocked(vtype, detail)
	count := c.session.ViolationCount
	notifier := c.notifier
	c.mu.Unlock()

	c.persistViolation(&v)
	notifier.NotifyViolation(v, count, c.policy.ViolationLimit)

	if count >= c.policy.ViolationLimit {
		go func() {
			if _, err := c.Submit(context.Background(), model.TriggerViolationLimit); err != nil && !errors.Is(err, ErrSessionTerminal) {
				c.log.Error().Err(err).Msg("Violation-limit finalization failed")
			}
		}()
	}
}

// recordViolation is the pre-Active variant used for acquisition denials
// during Start.
func (c *Controller) recordViolation(vtype model.ViolationType, detail string) {
	c.mu.Lock()
	if c.session.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	v := c.recordViolationLocked(vtype, detail)
	count := c.session.ViolationCount
	notifier := c.notifier
	c.mu.Unlock()

	c.persistViolation(&v)
	notifier.NotifyViolation(v, count, c.policy.ViolationLimit)
}

// recordViolationLocked appends and counts only. Persisting goes through
// persistViolation after the lock is dropped so a slow store never stalls
// timer ticks or other session operations.
func (c *Controller) recordViolationLocked(vtype model.ViolationType, detail string) model.Violation {
	v := model.Violation{
		ID:         uuid.New(),
		SessionID:  c.session.ID,
		Type:       vtype,
		Detail:     detail,
		RecordedAt: c.clock.Now(),
	}
	c.violations = append(c.violations, v)
	c.session.ViolationCount++

	c.log.Warn().
		Str("type", string(vtype)).
		Int("count", c.session.ViolationCount).
		Msg("Violation recorded")
	return v
}

func (c *Controller) persistViolation(v *model.Violation) {
	if err := c.gateway.SaveViolation(context.Background(), v); err != nil {
		c.log.Error().Err(err).Str("type", string(v.Type)).Msg("Persisting violation failed")
	}
}

// abandon terminates a session that failed to start irrecoverably. It claims
// the same arbiter as regular finalization so a late trigger can never run
// the scoring pass on an abandoned session.
func (c *Controller) abandon(ctx context.Context) {
	c.mu.Lock()
	c.abandoning = true
	c.mu.Unlock()

	if _, err := c.arbiter.Submit(ctx, model.TriggerTeardown); err != nil {
		c.log.Error().Err(err).Msg("Abandon failed")
	}
}

// finalize is the arbiter's single-claim pass. Ordering: stop the timer and
// the monitor before releasing media, so a late-arriving signal can never
// mutate a Finalizing session.
func (c *Controller) finalize(ctx context.Context, trigger model.SubmitTrigger) (*model.InterviewSession, error) {
	c.mu.Lock()
	timer, monitor, capture := c.timer, c.monitor, c.capture
	provider := c.provider
	abandoning := c.abandoning
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if monitor != nil {
		monitor.Stop()
	}
	if capture != nil {
		capture.Release()
	}

	if abandoning {
		return c.finishAbandoned(ctx, provider)
	}

	c.mu.Lock()
	c.session.Status = model.SessionStatusFinalizing
	c.session.SubmitTrigger = trigger
	if timer != nil {
		c.session.TimeRemainingSeconds = timer.Remaining()
	}
	questions := c.questions
	answers := make(map[uuid.UUID]*model.Answer, len(c.answers))
	for id, a := range c.answers {
		copied := *a
		answers[id] = &copied
	}
	patch := c.cloneSessionLocked()
	c.mu.Unlock()

	if err := c.gateway.UpdateSession(ctx, patch); err != nil {
		c.log.Warn().Err(err).Msg("Persisting finalizing status failed")
	}

	total, scored := c.scoring.FinalizeScoring(ctx, patch.ID, questions, answers)

	c.mu.Lock()
	now := c.clock.Now()
	c.session.TotalScore = total
	if c.session.MaxPossibleScore > 0 {
		c.session.PercentageScore = total / c.session.MaxPossibleScore * 100
	}
	c.session.OverallRating = model.BandRating(c.session.PercentageScore)
	c.session.Status = model.SessionStatusCompleted
	c.session.FinishedAt = &now
	final := c.cloneSessionLocked()
	notifier := c.notifier
	c.mu.Unlock()

	// The session always completes with a score; a failed write is logged
	// and the in-memory record returned so the caller is never left hanging.
	if err := c.gateway.SaveFinalResult(ctx, final, scored); err != nil {
		c.log.Error().Err(err).Msg("Persisting final result failed")
	}

	notifier.NotifyFinalized(*final)
	if provider != nil {
		provider.Close()
	}
	if c.onTerminal != nil {
		c.onTerminal()
	}

	c.log.Info().
		Str("trigger", string(trigger)).
		Float64("score", final.TotalScore).
		Str("rating", string(final.OverallRating)).
		Msg("Session completed")

	return final, nil
}

func (c *Controller) finishAbandoned(ctx context.Context, provider CapabilityProvider) (*model.InterviewSession, error) {
	c.mu.Lock()
	now := c.clock.Now()
	c.session.Status = model.SessionStatusAbandoned
	c.session.FinishedAt = &now
	final := c.cloneSessionLocked()
	c.mu.Unlock()

	if err := c.gateway.UpdateSession(ctx, final); err != nil {
		c.log.Error().Err(err).Msg("Persisting abandoned status failed")
	}
	if provider != nil {
		provider.Close()
	}
	if c.onTerminal != nil {
		c.onTerminal()
	}

	c.log.Warn().Msg("Session abandoned")
	return final, nil
}

// cloneSessionLocked deep-copies the session record. Callers hold c.mu.
func (c *Controller) cloneSessionLocked() *model.InterviewSession {
	clone := *c.session
	clone.QuestionIDs = make([]uuid.UUID, len(c.session.QuestionIDs))
	copy(clone.QuestionIDs, c.session.QuestionIDs)
	return &clone
}
