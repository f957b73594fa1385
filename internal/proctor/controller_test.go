package proctor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
)

func TestControllerFullLifecycle(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)

	session, _ := ctrl.Snapshot()
	if session.Status != model.SessionStatusActive {
		t.Fatalf("status after start = %s, want ACTIVE", session.Status)
	}
	if session.TimeRemainingSeconds != 60+120+300 {
		t.Fatalf("budget = %d, want 480", session.TimeRemainingSeconds)
	}

	questions := ctrl.Questions()
	for _, q := range questions {
		payload := model.AnswerPayload{Text: "answer", SelectedOption: "b", TimeSpentSeconds: 30}
		if q.Type == model.QuestionTypeCoding {
			payload = model.AnswerPayload{Code: "package main\nfunc main() {}", TimeSpentSeconds: 30}
		}
		if err := ctrl.RecordAnswer(context.Background(), q.ID, payload); err != nil {
			t.Fatalf("RecordAnswer(%s): %v", q.ID, err)
		}
	}

	final, err := ctrl.Submit(context.Background(), model.TriggerCandidateSubmit)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if final.Status != model.SessionStatusCompleted {
		t.Fatalf("final status = %s, want COMPLETED", final.Status)
	}
	if final.SubmitTrigger != model.TriggerCandidateSubmit {
		t.Fatalf("trigger = %s, want candidate_submit", final.SubmitTrigger)
	}
	if final.TotalScore != 30 || final.PercentageScore != 100 {
		t.Fatalf("score = %v (%v%%), want 30 (100%%)", final.TotalScore, final.PercentageScore)
	}
	if final.OverallRating != model.RatingExcellent {
		t.Fatalf("rating = %s, want excellent", final.OverallRating)
	}
	if final.FinishedAt == nil {
		t.Fatal("FinishedAt not set")
	}
	if got := h.gateway.finalCallCount.Load(); got != 1 {
		t.Fatalf("final result persisted %d times, want 1", got)
	}
	if got := provider.stream.stopCalls.Load(); got != 1 {
		t.Fatalf("stream stopped %d times, want 1", got)
	}
	if !provider.closed.Load() {
		t.Fatal("provider not closed after completion")
	}
}

func TestControllerScoresUnansweredAsZero(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)

	// Answer only the first two questions (max 5 + 10 of 30 total).
	questions := ctrl.Questions()
	for _, q := range questions[:2] {
		if err := ctrl.RecordAnswer(context.Background(), q.ID, model.AnswerPayload{Text: "x", SelectedOption: "b"}); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
	}

	final, err := ctrl.Submit(context.Background(), model.TriggerCandidateSubmit)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if final.TotalScore != 15 {
		t.Fatalf("total = %v, want 15", final.TotalScore)
	}
	if final.PercentageScore != 50 {
		t.Fatalf("percentage = %v, want 50", final.PercentageScore)
	}
	if final.OverallRating != model.RatingPoor {
		t.Fatalf("rating = %s, want poor", final.OverallRating)
	}

	h.gateway.mu.Lock()
	scored := h.gateway.finalAnswers[0]
	h.gateway.mu.Unlock()
	if len(scored) != 3 {
		t.Fatalf("persisted %d scored answers, want 3", len(scored))
	}
	if scored[2].Score != 0 || scored[2].Feedback != "No answer submitted." {
		t.Fatalf("unanswered question not synthesized: %+v", scored[2])
	}
}

func TestControllerViolationLimitFinalizes(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)

	provider.emit(SignalVisibilityHidden)
	provider.emit(SignalFullscreenExit)
	provider.emit(SignalKeyCombo)

	waitUntil(t, func() bool {
		session, _ := ctrl.Snapshot()
		return session.Status == model.SessionStatusCompleted
	}, "session completed on violation limit")

	session, violations := ctrl.Snapshot()
	if session.SubmitTrigger != model.TriggerViolationLimit {
		t.Fatalf("trigger = %s, want violation_limit", session.SubmitTrigger)
	}
	if session.ViolationCount != 3 || len(violations) != 3 {
		t.Fatalf("violation count = %d (%d recorded), want 3", session.ViolationCount, len(violations))
	}
	if got := h.gateway.finalCallCount.Load(); got != 1 {
		t.Fatalf("final result persisted %d times, want 1", got)
	}
}

func TestControllerTimeExpiryFinalizes(t *testing.T) {
	questions := []model.Question{
		{ID: uuid.New(), DomainID: uuid.New(), Text: "Quick", Type: model.QuestionTypeFreeText, MaxScore: 10, TimeLimitSeconds: 3},
	}
	h := newHarness(testPolicy(), questions)
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)

	h.clock.Tick(4)

	waitUntil(t, func() bool {
		session, _ := ctrl.Snapshot()
		return session.Status == model.SessionStatusCompleted
	}, "session completed on time expiry")

	session, _ := ctrl.Snapshot()
	if session.SubmitTrigger != model.TriggerTimeExpired {
		t.Fatalf("trigger = %s, want time_expired", session.SubmitTrigger)
	}
	if session.TimeRemainingSeconds != 0 {
		t.Fatalf("remaining = %d, want 0", session.TimeRemainingSeconds)
	}
}

// Concurrent submissions from the candidate and the expiring timer must
// produce exactly one final result.
func TestControllerConcurrentSubmitAndExpiry(t *testing.T) {
	questions := []model.Question{
		{ID: uuid.New(), DomainID: uuid.New(), Text: "Quick", Type: model.QuestionTypeFreeText, MaxScore: 10, TimeLimitSeconds: 2},
	}
	h := newHarness(testPolicy(), questions)
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)

	var wg sync.WaitGroup
	results := make([]*model.InterviewSession, 8)
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			final, err := ctrl.Submit(context.Background(), model.TriggerCandidateSubmit)
			if err == nil {
				results[i] = final
			}
		}(i)
	}
	h.clock.Tick(3)
	wg.Wait()

	waitUntil(t, func() bool {
		return h.gateway.finalCallCount.Load() >= 1
	}, "final result persisted")

	if got := h.gateway.finalCallCount.Load(); got != 1 {
		t.Fatalf("final result persisted %d times, want 1", got)
	}
	// Every successful submitter observed the same completed record.
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Status != model.SessionStatusCompleted {
			t.Fatalf("a submitter saw status %s", r.Status)
		}
	}
	if got := provider.stream.stopCalls.Load(); got != 1 {
		t.Fatalf("stream stopped %d times, want 1", got)
	}
}

func TestControllerRejectsMutationsAfterCompletion(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)
	questions := ctrl.Questions()

	if _, err := ctrl.Submit(context.Background(), model.TriggerCandidateSubmit); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := ctrl.RecordAnswer(context.Background(), questions[0].ID, model.AnswerPayload{Text: "late"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("RecordAnswer after completion = %v, want ErrInvalidState", err)
	}
	if err := ctrl.Navigate(context.Background(), 1); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Navigate after completion = %v, want ErrInvalidState", err)
	}
	if _, err := ctrl.Submit(context.Background(), model.TriggerCandidateSubmit); !errors.Is(err, ErrSessionTerminal) {
		t.Fatalf("second Submit = %v, want ErrSessionTerminal", err)
	}
	if _, err := ctrl.RunCode(context.Background(), questions[2].ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("RunCode after completion = %v, want ErrInvalidState", err)
	}
}

func TestControllerStartRequiresAwaitingStart(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	ctrl, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// No capability channel attached yet.
	if err := ctrl.Start(context.Background()); !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("Start without provider = %v, want ErrCapabilityUnavailable", err)
	}

	provider := newFakeProvider()
	if err := ctrl.AttachClient(provider, nil); err != nil {
		t.Fatalf("AttachClient: %v", err)
	}
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Starting an already-active session is a no-op.
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := provider.fullscreenReqs.Load(); got != 1 {
		t.Fatalf("fullscreen requested %d times, want 1", got)
	}
}

func TestControllerMediaDeniedDegrades(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	provider := newFakeProvider()
	provider.denyCapture = true

	ctrl, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := ctrl.AttachClient(provider, nil); err != nil {
		t.Fatalf("AttachClient: %v", err)
	}
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start in degraded mode: %v", err)
	}

	session, violations := ctrl.Snapshot()
	if session.Status != model.SessionStatusActive {
		t.Fatalf("status = %s, want ACTIVE", session.Status)
	}
	if len(violations) != 1 || violations[0].Type != model.ViolationMediaAccessDenied {
		t.Fatalf("violations = %+v, want single media_access_denied", violations)
	}
}

func TestControllerMediaDeniedBlocks(t *testing.T) {
	policy := testPolicy()
	policy.BlockOnMediaDenied = true
	h := newHarness(policy, testQuestions())
	provider := newFakeProvider()
	provider.denyCapture = true

	ctrl, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := ctrl.AttachClient(provider, nil); err != nil {
		t.Fatalf("AttachClient: %v", err)
	}

	if err := ctrl.Start(context.Background()); !errors.Is(err, ErrMediaAccessDenied) {
		t.Fatalf("Start = %v, want ErrMediaAccessDenied", err)
	}
	session, _ := ctrl.Snapshot()
	if session.Status != model.SessionStatusAbandoned {
		t.Fatalf("status = %s, want ABANDONED", session.Status)
	}
	if got := h.gateway.finalCallCount.Load(); got != 0 {
		t.Fatalf("abandoned session was scored (%d final writes)", got)
	}
	// The freed candidate may initialize a fresh session.
	if _, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid"); err != nil {
		t.Fatalf("Initialize after abandon: %v", err)
	}
}

func TestControllerRunCode(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)
	questions := ctrl.Questions()

	if _, err := ctrl.RunCode(context.Background(), questions[0].ID); !errors.Is(err, ErrNotCodingQuestion) {
		t.Fatalf("RunCode on multiple-choice = %v, want ErrNotCodingQuestion", err)
	}
	if _, err := ctrl.RunCode(context.Background(), uuid.New()); !errors.Is(err, ErrQuestionNotAssigned) {
		t.Fatalf("RunCode on foreign question = %v, want ErrQuestionNotAssigned", err)
	}

	result, err := ctrl.RunCode(context.Background(), questions[2].ID)
	if err != nil {
		t.Fatalf("RunCode: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("result status = %s, want success", result.Status)
	}
	if got := h.executor.calls.Load(); got != 1 {
		t.Fatalf("executor called %d times, want 1", got)
	}

	// The result sticks to the draft and survives finalization.
	final, err := ctrl.Submit(context.Background(), model.TriggerCandidateSubmit)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h.gateway.mu.Lock()
	scored := h.gateway.finalAnswers[0]
	h.gateway.mu.Unlock()
	if scored[2].ExecutionResult == nil {
		t.Fatal("execution result dropped before persistence")
	}
	_ = final
}

func TestControllerNavigateBounds(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)

	if err := ctrl.Navigate(context.Background(), -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Navigate(-1) = %v, want ErrIndexOutOfRange", err)
	}
	if err := ctrl.Navigate(context.Background(), 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Navigate(3) = %v, want ErrIndexOutOfRange", err)
	}
	if err := ctrl.Navigate(context.Background(), 2); err != nil {
		t.Fatalf("Navigate(2): %v", err)
	}
	session, _ := ctrl.Snapshot()
	if session.CurrentQuestionIndex != 2 {
		t.Fatalf("index = %d, want 2", session.CurrentQuestionIndex)
	}
}

func TestControllerToggleRecordsViolation(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)

	if err := ctrl.Toggle(TrackCamera, false); err != nil {
		t.Fatalf("Toggle off: %v", err)
	}
	_, violations := ctrl.Snapshot()
	if len(violations) != 1 || violations[0].Type != model.ViolationCameraDisabled {
		t.Fatalf("violations = %+v, want single camera_disabled", violations)
	}

	// Disabling an already-disabled track is not a fresh violation.
	if err := ctrl.Toggle(TrackCamera, false); err != nil {
		t.Fatalf("Toggle off again: %v", err)
	}
	_, violations = ctrl.Snapshot()
	if len(violations) != 1 {
		t.Fatalf("duplicate disable counted: %d violations", len(violations))
	}

	if err := ctrl.Toggle(TrackCamera, true); err != nil {
		t.Fatalf("Toggle on: %v", err)
	}
	if err := ctrl.Toggle(TrackMicrophone, false); err != nil {
		t.Fatalf("Toggle mic off: %v", err)
	}
	_, violations = ctrl.Snapshot()
	if len(violations) != 2 || violations[1].Type != model.ViolationMicrophoneDisabled {
		t.Fatalf("violations = %+v, want camera_disabled then microphone_disabled", violations)
	}
}

func TestControllerRecordingBufferRolls(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions()) // 5-chunk buffer
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)

	for _, ref := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		ctrl.AppendRecordingChunk(ref)
	}

	ctrl.mu.Lock()
	chunks := ctrl.capture.Chunks()
	ctrl.mu.Unlock()
	if len(chunks) != 5 || chunks[0] != "c" || chunks[4] != "g" {
		t.Fatalf("chunks = %v, want [c d e f g]", chunks)
	}
}

func TestControllerSliceExpiryAdvances(t *testing.T) {
	policy := testPolicy()
	policy.QuestionSlicing = true
	questions := []model.Question{
		{ID: uuid.New(), DomainID: uuid.New(), Text: "A", Type: model.QuestionTypeFreeText, MaxScore: 5, TimeLimitSeconds: 2},
		{ID: uuid.New(), DomainID: uuid.New(), Text: "B", Type: model.QuestionTypeFreeText, MaxScore: 5, TimeLimitSeconds: 30},
	}
	h := newHarness(policy, questions)
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)

	h.clock.Tick(2)

	waitUntil(t, func() bool {
		session, _ := ctrl.Snapshot()
		return session.CurrentQuestionIndex == 1
	}, "auto-advance to the next question")

	session, _ := ctrl.Snapshot()
	if session.Status != model.SessionStatusActive {
		t.Fatalf("status = %s, want ACTIVE", session.Status)
	}
}

func TestControllerSlowViolationPersistDoesNotStallSession(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	h.gateway.violationGate = make(chan struct{})
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)

	toggleDone := make(chan struct{})
	go func() {
		defer close(toggleDone)
		if err := ctrl.Toggle(TrackCamera, false); err != nil {
			t.Errorf("Toggle: %v", err)
		}
	}()
	waitUntil(t, func() bool { return h.gateway.violationStarts.Load() == 1 }, "violation persist entered")

	// Other session operations keep flowing while the store hangs.
	opsDone := make(chan struct{})
	go func() {
		defer close(opsDone)
		ctrl.Snapshot()
		if err := ctrl.RecordAnswer(context.Background(), ctrl.Questions()[0].ID, model.AnswerPayload{SelectedOption: "b"}); err != nil {
			t.Errorf("RecordAnswer: %v", err)
		}
	}()
	select {
	case <-opsDone:
	case <-time.After(2 * time.Second):
		t.Fatal("session operations blocked behind violation persist")
	}

	close(h.gateway.violationGate)
	<-toggleDone
	_, violations := ctrl.Snapshot()
	if len(violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(violations))
	}
	if got := h.gateway.violationCount(); got != 1 {
		t.Fatalf("persisted %d violations, want 1", got)
	}
}
