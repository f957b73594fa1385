package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

type fakeAnswerStore struct {
	mu       sync.Mutex
	upserted []*model.Answer
}

func (s *fakeAnswerStore) Upsert(_ context.Context, a *model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, a)
	return nil
}

func (s *fakeAnswerStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserted)
}

func pushAnswer(t *testing.T, mr *miniredis.Miniredis, a *model.Answer) {
	t.Helper()
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal answer: %v", err)
	}
	if _, err := mr.RPush(config.WorkerKey.PersistAnswersQueue, string(data)); err != nil {
		t.Fatalf("rpush: %v", err)
	}
}

func TestAnswerWorkerPersistsQueuedDrafts(t *testing.T) {
	mr, rdb := newViolationHarness(t)

	draft := &model.Answer{
		SessionID:  uuid.New(),
		QuestionID: uuid.New(),
		Code:       "print('hello')",
		UpdatedAt:  time.Now().UTC(),
	}
	pushAnswer(t, mr, draft)

	store := &fakeAnswerStore{}
	w := NewAnswerWorker(store, rdb, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for store.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	<-done

	if got := store.count(); got != 1 {
		t.Fatalf("persisted %d drafts, want 1", got)
	}
	got := store.upserted[0]
	if got.QuestionID != draft.QuestionID || got.Code != draft.Code {
		t.Fatalf("persisted draft = %+v, want %+v", got, draft)
	}
}

func TestAnswerWorkerDrainsQueueOnShutdown(t *testing.T) {
	mr, rdb := newViolationHarness(t)

	sessionID := uuid.New()
	for i := 0; i < 4; i++ {
		pushAnswer(t, mr, &model.Answer{
			SessionID:  sessionID,
			QuestionID: uuid.New(),
			Text:       "draft",
			UpdatedAt:  time.Now().UTC(),
		})
	}

	store := &fakeAnswerStore{}
	w := NewAnswerWorker(store, rdb, zerolog.Nop())

	// Context is already canceled, so Start goes straight to the drain path.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	if got := store.count(); got != 4 {
		t.Fatalf("drained %d drafts, want 4", got)
	}
	if mr.Exists(config.WorkerKey.PersistAnswersQueue) {
		t.Fatal("queue not empty after drain")
	}
}
