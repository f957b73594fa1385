package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/intervia/proctor-backend/internal/config"
	"github.com/intervia/proctor-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerStore is the slice of the answer repository the worker needs.
type AnswerStore interface {
	Upsert(ctx context.Context, a *model.Answer) error
}

// AnswerWorker consumes persist_answers_queue and UPSERTs answer drafts to
// PostgreSQL. Drafts for the same question overwrite each other, so ordering
// within a session is preserved by the single queue.
type AnswerWorker struct {
	repo AnswerStore
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(repo AnswerStore, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "answer_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var a model.Answer
	if err := json.Unmarshal([]byte(result[1]), &a); err != nil {
		w.log.Error().Err(err).Msg("Discarding malformed answer draft")
		return
	}

	if err := w.repo.Upsert(ctx, &a); err != nil {
		w.log.Error().Err(err).
			Str("session_id", a.SessionID.String()).
			Str("question_id", a.QuestionID.String()).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var a model.Answer
		if err := json.Unmarshal([]byte(result), &a); err != nil {
			continue
		}
		if err := w.repo.Upsert(ctx, &a); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error, dropping item")
			continue
		}
		drained++
	}
	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining answer drafts")
	}
}
