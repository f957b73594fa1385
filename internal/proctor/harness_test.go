package proctor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// ─── Clock ──────────────────────────────────────────────────────────────────

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time, 256)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// Tick delivers n one-second ticks to every registered ticker.
func (c *fakeClock) Tick(n int) {
	for i := 0; i < n; i++ {
		c.mu.Lock()
		c.now = c.now.Add(time.Second)
		now := c.now
		tickers := append([]*fakeTicker(nil), c.tickers...)
		c.mu.Unlock()
		for _, t := range tickers {
			t.ch <- now
		}
	}
}

// Advance moves Now without delivering ticks (for debounce tests).
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ─── Capability provider ────────────────────────────────────────────────────

type fakeStream struct {
	stopCalls   atomic.Int32
	toggleCalls atomic.Int32
}

func (s *fakeStream) SetTrackEnabled(track Track, enabled bool) error {
	s.toggleCalls.Add(1)
	return nil
}

func (s *fakeStream) Stop() error {
	s.stopCalls.Add(1)
	return nil
}

type fakeProvider struct {
	signals        chan Signal
	stream         *fakeStream
	denyCapture    bool
	denyFullscreen bool
	// Non-nil fullscreenGate makes the permission prompt hang until closed.
	fullscreenGate chan struct{}

	fullscreenReqs atomic.Int32
	fullscreenExit atomic.Int32
	closed         atomic.Bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		signals: make(chan Signal, 64),
		stream:  &fakeStream{},
	}
}

func (p *fakeProvider) RequestCapture(ctx context.Context) (CaptureStream, error) {
	if p.denyCapture {
		return nil, ErrMediaAccessDenied
	}
	return p.stream, nil
}

func (p *fakeProvider) RequestFullscreen(ctx context.Context) error {
	p.fullscreenReqs.Add(1)
	if p.fullscreenGate != nil {
		<-p.fullscreenGate
	}
	if p.denyFullscreen {
		return ErrFullscreenDenied
	}
	return nil
}

func (p *fakeProvider) ExitFullscreen() { p.fullscreenExit.Add(1) }

func (p *fakeProvider) Signals() <-chan Signal { return p.signals }

func (p *fakeProvider) Close() { p.closed.Store(true) }

func (p *fakeProvider) emit(kind SignalKind) {
	p.signals <- Signal{Kind: kind, At: time.Now()}
}

// ─── Gateway ────────────────────────────────────────────────────────────────

type fakeGateway struct {
	mu             sync.Mutex
	created        []*model.InterviewSession
	updates        []*model.InterviewSession
	drafts         []*model.Answer
	violations     []*model.Violation
	finalSessions  []*model.InterviewSession
	finalAnswers   [][]model.Answer
	createErr      error
	draftErr       error
	finalCallCount atomic.Int32

	// Non-nil violationGate makes SaveViolation hang until closed.
	violationGate   chan struct{}
	violationStarts atomic.Int32
}

func (g *fakeGateway) CreateSession(ctx context.Context, s *model.InterviewSession) error {
	if g.createErr != nil {
		return g.createErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	// Copy so assertions see the row as it was written.
	row := *s
	g.created = append(g.created, &row)
	return nil
}

func (g *fakeGateway) UpdateSession(ctx context.Context, s *model.InterviewSession) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, s)
	return nil
}

func (g *fakeGateway) SaveAnswerDraft(ctx context.Context, a *model.Answer) error {
	if g.draftErr != nil {
		return g.draftErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drafts = append(g.drafts, a)
	return nil
}

func (g *fakeGateway) SaveViolation(ctx context.Context, v *model.Violation) error {
	g.violationStarts.Add(1)
	if g.violationGate != nil {
		<-g.violationGate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.violations = append(g.violations, v)
	return nil
}

func (g *fakeGateway) SaveFinalResult(ctx context.Context, s *model.InterviewSession, answers []model.Answer) error {
	g.finalCallCount.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finalSessions = append(g.finalSessions, s)
	g.finalAnswers = append(g.finalAnswers, answers)
	return nil
}

func (g *fakeGateway) violationCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.violations)
}

// ─── Question source / executor / validator ─────────────────────────────────

type fakeQuestionSource struct {
	questions []model.Question
	err       error
}

func (s *fakeQuestionSource) FetchQuestions(ctx context.Context, domainID uuid.UUID, level string) ([]model.Question, error) {
	return s.questions, s.err
}

type fakeExecutor struct {
	result model.ExecutionResult
	calls  atomic.Int32
}

func (e *fakeExecutor) Execute(ctx context.Context, code, language string) model.ExecutionResult {
	e.calls.Add(1)
	return e.result
}

type fakeValidator struct {
	mu    sync.Mutex
	fn    func(q model.Question, a model.Answer) (model.ValidationResult, error)
	calls int
}

func (v *fakeValidator) Validate(ctx context.Context, q model.Question, a model.Answer) (model.ValidationResult, error) {
	v.mu.Lock()
	v.calls++
	fn := v.fn
	v.mu.Unlock()
	if fn != nil {
		return fn(q, a)
	}
	return model.ValidationResult{Score: q.MaxScore, MaxScore: q.MaxScore, Feedback: "ok"}, nil
}

func (v *fakeValidator) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// ─── Fixtures ───────────────────────────────────────────────────────────────

func testQuestions() []model.Question {
	domain := uuid.New()
	return []model.Question{
		{ID: uuid.New(), DomainID: domain, Text: "Pick one", Type: model.QuestionTypeMultipleChoice, MaxScore: 5, TimeLimitSeconds: 60, CorrectOption: "b"},
		{ID: uuid.New(), DomainID: domain, Text: "Explain", Type: model.QuestionTypeFreeText, MaxScore: 10, TimeLimitSeconds: 120},
		{ID: uuid.New(), DomainID: domain, Text: "Implement", Type: model.QuestionTypeCoding, MaxScore: 15, TimeLimitSeconds: 300, Language: "go", StarterCode: "package main"},
	}
}

func testPolicy() config.ProctorPolicy {
	return config.ProctorPolicy{
		ViolationLimit:  3,
		DebounceWindow:  0,
		RecordingChunks: 5,
	}
}

type harness struct {
	clock     *fakeClock
	gateway   *fakeGateway
	source    *fakeQuestionSource
	executor  *fakeExecutor
	validator *fakeValidator
	registry  *Registry
}

func newHarness(policy config.ProctorPolicy, questions []model.Question) *harness {
	h := &harness{
		clock:     newFakeClock(),
		gateway:   &fakeGateway{},
		source:    &fakeQuestionSource{questions: questions},
		executor:  &fakeExecutor{result: model.ExecutionResult{Status: "success", Output: "ok"}},
		validator: &fakeValidator{},
	}
	h.registry = NewRegistry(Deps{
		Gateway:          h.gateway,
		Questions:        h.source,
		Executor:         h.executor,
		Validator:        h.validator,
		Clock:            h.clock,
		Policy:           policy,
		ValidatorTimeout: time.Second,
		Log:              zerolog.Nop(),
	})
	return h
}

func (h *harness) startSession(t *testing.T, provider *fakeProvider) *Controller {
	t.Helper()
	ctrl, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := ctrl.AttachClient(provider, nil); err != nil {
		t.Fatalf("AttachClient: %v", err)
	}
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return ctrl
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
