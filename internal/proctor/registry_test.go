package proctor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/model"
)

func TestRegistrySingleActiveSessionPerCandidate(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())

	ctrl, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid"); !errors.Is(err, ErrInterviewActive) {
		t.Fatalf("second Initialize = %v, want ErrInterviewActive", err)
	}
	// A different candidate is unaffected.
	if _, err := h.registry.Initialize(context.Background(), 43, uuid.New(), "WXYZ-9876", "senior"); err != nil {
		t.Fatalf("Initialize for other candidate: %v", err)
	}

	got, ok := h.registry.GetByCandidate(42)
	if !ok || got.SessionID() != ctrl.SessionID() {
		t.Fatal("GetByCandidate did not return the registered controller")
	}
	if _, ok := h.registry.Get(ctrl.SessionID()); !ok {
		t.Fatal("Get did not find the registered controller")
	}
}

func TestRegistryConcurrentInitializeAdmitsOne(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())

	var wg sync.WaitGroup
	var admitted, rejected int
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, ErrInterviewActive):
				rejected++
			}
		}()
	}
	wg.Wait()

	if admitted != 1 || rejected != 9 {
		t.Fatalf("admitted=%d rejected=%d, want 1/9", admitted, rejected)
	}
}

func TestRegistryNoQuestionsCreatesNoSession(t *testing.T) {
	h := newHarness(testPolicy(), nil)

	_, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid")
	if !errors.Is(err, ErrNoQuestionsAvailable) {
		t.Fatalf("Initialize = %v, want ErrNoQuestionsAvailable", err)
	}

	h.gateway.mu.Lock()
	created := len(h.gateway.created)
	h.gateway.mu.Unlock()
	if created != 0 {
		t.Fatalf("%d sessions persisted, want 0", created)
	}

	// The failed attempt must not leave the candidate slot reserved.
	h.source.questions = testQuestions()
	if _, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid"); err != nil {
		t.Fatalf("Initialize after empty set: %v", err)
	}
}

func TestRegistryCreateFailureReleasesSlot(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	h.gateway.createErr = errors.New("db down")

	if _, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid"); err == nil {
		t.Fatal("Initialize succeeded despite create failure")
	}

	h.gateway.createErr = nil
	if _, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid"); err != nil {
		t.Fatalf("Initialize after recovery: %v", err)
	}
}

func TestRegistryBudgetAndMaxScoreFromQuestionSet(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	ctrl, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	session, _ := ctrl.Snapshot()
	if session.Status != model.SessionStatusAwaitingStart {
		t.Fatalf("status = %s, want AWAITING_START", session.Status)
	}
	if session.TimeRemainingSeconds != 480 {
		t.Fatalf("budget = %d, want 480", session.TimeRemainingSeconds)
	}
	if session.MaxPossibleScore != 30 {
		t.Fatalf("max score = %v, want 30", session.MaxPossibleScore)
	}
	if len(session.QuestionIDs) != 3 {
		t.Fatalf("question ids = %d, want 3", len(session.QuestionIDs))
	}
}

func TestRegistryRemovesControllerOnCompletion(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())
	provider := newFakeProvider()
	ctrl := h.startSession(t, provider)
	sessionID := ctrl.SessionID()

	if _, err := ctrl.Submit(context.Background(), model.TriggerCandidateSubmit); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, ok := h.registry.Get(sessionID); ok {
		t.Fatal("completed controller still registered")
	}
	if _, ok := h.registry.GetByCandidate(42); ok {
		t.Fatal("candidate slot still held after completion")
	}
	// The candidate may start over.
	if _, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid"); err != nil {
		t.Fatalf("Initialize after completion: %v", err)
	}
}

func TestRegistryShutdownFinalizesInFlightSessions(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())

	activeProvider := newFakeProvider()
	active := h.startSession(t, activeProvider)
	if err := active.RecordAnswer(context.Background(), active.Questions()[0].ID, model.AnswerPayload{SelectedOption: "b"}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	pending, err := h.registry.Initialize(context.Background(), 43, uuid.New(), "WXYZ-9876", "senior")
	if err != nil {
		t.Fatalf("Initialize pending: %v", err)
	}

	h.registry.Shutdown(context.Background())

	activeSession, _ := active.Snapshot()
	if activeSession.Status != model.SessionStatusCompleted {
		t.Fatalf("active session status = %s, want COMPLETED", activeSession.Status)
	}
	if activeSession.SubmitTrigger != model.TriggerTeardown {
		t.Fatalf("trigger = %s, want teardown", activeSession.SubmitTrigger)
	}
	if activeSession.TotalScore != 5 {
		t.Fatalf("teardown score = %v, want 5", activeSession.TotalScore)
	}

	pendingSession, _ := pending.Snapshot()
	if pendingSession.Status != model.SessionStatusAbandoned {
		t.Fatalf("pending session status = %s, want ABANDONED", pendingSession.Status)
	}
	if got := h.gateway.finalCallCount.Load(); got != 1 {
		t.Fatalf("final result persisted %d times, want 1", got)
	}
}

func TestRegistryPersistsSessionAwaitingStart(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())

	ctrl, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := len(h.gateway.created); got != 1 {
		t.Fatalf("created %d sessions, want 1", got)
	}
	if got := h.gateway.created[0].Status; got != model.SessionStatusAwaitingStart {
		t.Fatalf("persisted status = %s, want AWAITING_START", got)
	}
	session, _ := ctrl.Snapshot()
	if session.Status != model.SessionStatusAwaitingStart {
		t.Fatalf("in-memory status = %s, want AWAITING_START", session.Status)
	}
}

func TestRegistryShutdownDuringStartStaysAbandoned(t *testing.T) {
	h := newHarness(testPolicy(), testQuestions())

	ctrl, err := h.registry.Initialize(context.Background(), 42, uuid.New(), "ABCD-1234", "mid")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	provider := newFakeProvider()
	provider.fullscreenGate = make(chan struct{})
	if err := ctrl.AttachClient(provider, nil); err != nil {
		t.Fatalf("AttachClient: %v", err)
	}

	startErr := make(chan error, 1)
	go func() { startErr <- ctrl.Start(context.Background()) }()
	waitUntil(t, func() bool { return provider.fullscreenReqs.Load() == 1 }, "fullscreen prompt opened")

	// Teardown arrives while the permission prompt is still open.
	h.registry.Shutdown(context.Background())
	session, _ := ctrl.Snapshot()
	if session.Status != model.SessionStatusAbandoned {
		t.Fatalf("status after shutdown = %s, want ABANDONED", session.Status)
	}

	close(provider.fullscreenGate)
	if err := <-startErr; !errors.Is(err, ErrSessionTerminal) {
		t.Fatalf("Start resolved after teardown = %v, want ErrSessionTerminal", err)
	}

	session, _ = ctrl.Snapshot()
	if session.Status != model.SessionStatusAbandoned {
		t.Fatalf("status after prompt resolved = %s, want ABANDONED", session.Status)
	}
	if session.StartedAt != nil {
		t.Fatal("abandoned session has a start time")
	}
	// The late-granted capture must not be left running.
	waitUntil(t, func() bool { return provider.stream.stopCalls.Load() >= 1 }, "late stream stopped")
	if got := provider.fullscreenExit.Load(); got < 1 {
		t.Fatalf("fullscreen exited %d times, want at least 1", got)
	}
}
