package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeViolationStore struct {
	mu        sync.Mutex
	inserted  []*model.Violation
	bulkErr   error
	createErr func(v *model.Violation) error
}

func (s *fakeViolationStore) BulkInsert(_ context.Context, batch []*model.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bulkErr != nil {
		return s.bulkErr
	}
	s.inserted = append(s.inserted, batch...)
	return nil
}

func (s *fakeViolationStore) Create(_ context.Context, v *model.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		if err := s.createErr(v); err != nil {
			return err
		}
	}
	s.inserted = append(s.inserted, v)
	return nil
}

func (s *fakeViolationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

func newViolationHarness(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func pushViolation(t *testing.T, mr *miniredis.Miniredis, v *model.Violation) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal violation: %v", err)
	}
	if _, err := mr.RPush(config.WorkerKey.PersistViolationsQueue, string(data)); err != nil {
		t.Fatalf("rpush: %v", err)
	}
}

func TestViolationWorkerDrainsQueueInBatch(t *testing.T) {
	mr, rdb := newViolationHarness(t)

	sessionID := uuid.New()
	for i := 0; i < 3; i++ {
		pushViolation(t, mr, &model.Violation{
			ID:         uuid.New(),
			SessionID:  sessionID,
			Type:       model.ViolationTabSwitch,
			RecordedAt: time.Now().UTC(),
		})
	}

	store := &fakeViolationStore{}
	w := NewViolationWorker(store, rdb, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for store.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	<-done

	if got := store.count(); got != 3 {
		t.Fatalf("persisted %d violations, want 3", got)
	}
	for _, v := range store.inserted {
		if v.SessionID != sessionID {
			t.Fatalf("persisted violation for session %s, want %s", v.SessionID, sessionID)
		}
	}
}

func TestViolationWorkerDiscardsMalformedEntries(t *testing.T) {
	mr, rdb := newViolationHarness(t)

	if _, err := mr.RPush(config.WorkerKey.PersistViolationsQueue, "{not json"); err != nil {
		t.Fatalf("rpush: %v", err)
	}
	valid := &model.Violation{
		ID:         uuid.New(),
		SessionID:  uuid.New(),
		Type:       model.ViolationFullscreenExit,
		RecordedAt: time.Now().UTC(),
	}
	pushViolation(t, mr, valid)

	store := &fakeViolationStore{}
	w := NewViolationWorker(store, rdb, zerolog.Nop())

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
		t.Fatalf("persisted %d violations, want 1", got)
	}
	if store.inserted[0].ID != valid.ID {
		t.Fatalf("persisted violation %s, want %s", store.inserted[0].ID, valid.ID)
	}
}

func TestViolationWorkerRequeuesOnInsertFailure(t *testing.T) {
	mr, rdb := newViolationHarness(t)

	ok := &model.Violation{ID: uuid.New(), SessionID: uuid.New(), Type: model.ViolationTabSwitch}
	bad := &model.Violation{ID: uuid.New(), SessionID: uuid.New(), Type: model.ViolationCameraDisabled}

	store := &fakeViolationStore{
		bulkErr: errors.New("copy failed"),
		createErr: func(v *model.Violation) error {
			if v.ID == bad.ID {
				return errors.New("insert failed")
			}
			return nil
		},
	}
	w := NewViolationWorker(store, rdb, zerolog.Nop())

	w.flushSafe(context.Background(), []*model.Violation{ok, bad})

	if got := store.count(); got != 1 {
		t.Fatalf("persisted %d violations via fallback, want 1", got)
	}
	if store.inserted[0].ID != ok.ID {
		t.Fatalf("fallback persisted %s, want %s", store.inserted[0].ID, ok.ID)
	}

	queued, err := mr.Lpop(config.WorkerKey.PersistViolationsQueue)
	if err != nil {
		t.Fatalf("expected failed violation back on queue: %v", err)
	}
	var requeued model.Violation
	if err := json.Unmarshal([]byte(queued), &requeued); err != nil {
		t.Fatalf("unmarshal requeued violation: %v", err)
	}
	if requeued.ID != bad.ID {
		t.Fatalf("requeued violation %s, want %s", requeued.ID, bad.ID)
	}
}
