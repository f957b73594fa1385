package collaborator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestGateway(t *testing.T) (*StoreGateway, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStoreGateway(nil, nil, nil, rdb, zerolog.Nop()), mr
}

func TestGatewayQueuesAnswerDraft(t *testing.T) {
	g, mr := newTestGateway(t)

	a := &model.Answer{
		SessionID:  uuid.New(),
		QuestionID: uuid.New(),
		Text:       "my answer",
		UpdatedAt:  time.Now().UTC(),
	}
	if err := g.SaveAnswerDraft(context.Background(), a); err != nil {
		t.Fatalf("SaveAnswerDraft: %v", err)
	}

	queued, err := mr.Lpop(config.WorkerKey.PersistAnswersQueue)
	if err != nil {
		t.Fatalf("queue empty: %v", err)
	}
	var got model.Answer
	if err := json.Unmarshal([]byte(queued), &got); err != nil {
		t.Fatalf("unmarshal queued draft: %v", err)
	}
	if got.QuestionID != a.QuestionID || got.Text != a.Text {
		t.Fatalf("queued draft = %+v, want %+v", got, a)
	}

	// The live draft hash mirrors the queue for the dashboard.
	hashKey := config.CacheKey.InterviewDraftAnswersKey(a.SessionID.String())
	if v := mr.HGet(hashKey, a.QuestionID.String()); v == "" {
		t.Fatal("draft hash not written")
	}
}

func TestGatewayQueuesAndPublishesViolation(t *testing.T) {
	g, mr := newTestGateway(t)

	v := &model.Violation{
		ID:         uuid.New(),
		SessionID:  uuid.New(),
		Type:       model.ViolationTabSwitch,
		Detail:     "visibility hidden",
		RecordedAt: time.Now().UTC(),
	}
	if err := g.SaveViolation(context.Background(), v); err != nil {
		t.Fatalf("SaveViolation: %v", err)
	}

	queued, err := mr.Lpop(config.WorkerKey.PersistViolationsQueue)
	if err != nil {
		t.Fatalf("queue empty: %v", err)
	}
	var got model.Violation
	if err := json.Unmarshal([]byte(queued), &got); err != nil {
		t.Fatalf("unmarshal queued violation: %v", err)
	}
	if got.ID != v.ID || got.Type != model.ViolationTabSwitch {
		t.Fatalf("queued violation = %+v, want %+v", got, v)
	}
}
