package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepdeck/prepdeck-backend/internal/config"
	"github.com/prepdeck/prepdeck-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	EventBatchSize    = 50
	EventBatchTimeout = 2 * time.Second
	EventPollTimeout  = 1 * time.Second
)

// AuditQueue enqueues finalization events onto the Redis audit queue.
// Implements service.AuditSink. Best-effort: a lost audit event never fails
// the finalize path that produced it.
type AuditQueue struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewAuditQueue creates a new AuditQueue.
func NewAuditQueue(rdb *redis.Client, log zerolog.Logger) *AuditQueue {
	return &AuditQueue{
		rdb: rdb,
		log: log.With().Str("component", "audit_queue").Logger(),
	}
}

// RecordFinalize pushes one finalization event for asynchronous persistence.
func (q *AuditQueue) RecordFinalize(ctx context.Context, ev model.AttemptEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		q.log.Error().Err(err).Msg("Marshal audit event failed")
		return
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.AttemptEventsQueue, raw).Err(); err != nil {
		q.log.Error().Err(err).Str("attempt_id", ev.AttemptID.String()).Msg("Enqueue audit event failed")
	}
}

// AuditWorker consumes the audit queue and persists finalization events to
// the attempt_events table in batches.
type AuditWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAuditWorker creates a new AuditWorker.
func NewAuditWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AuditWorker {
	return &AuditWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "audit_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine; cancel the context to
// stop, remaining batch items are flushed on the way out.
func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AuditWorker started")

	batch := make([]*model.AttemptEvent, 0, EventBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= EventBatchSize || time.Since(lastFlush) >= EventBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, EventPollTimeout, config.WorkerKey.AttemptEventsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var ev model.AttemptEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &ev)
		}
	}
}

func (w *AuditWorker) flushSafe(ctx context.Context, batch []*model.AttemptEvent) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsertEvents(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk event insert failed, using fallback")

		for _, ev := range batch {
			if err := w.persistSingle(ctx, ev); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(ev)
				w.rdb.RPush(ctx, config.WorkerKey.AttemptEventsQueue, raw)
			}
		}
	}
}

// bulkInsertEvents inserts the batch with a single UNNEST statement.
func (w *AuditWorker) bulkInsertEvents(ctx context.Context, batch []*model.AttemptEvent) error {
	n := len(batch)

	attemptIDs := make([]uuid.UUID, 0, n)
	examIDs := make([]uuid.UUID, 0, n)
	userIDs := make([]int, 0, n)
	triggers := make([]string, 0, n)
	scores := make([]float64, 0, n)
	occurredAts := make([]time.Time, 0, n)

	for _, ev := range batch {
		attemptIDs = append(attemptIDs, ev.AttemptID)
		examIDs = append(examIDs, ev.ExamID)
		userIDs = append(userIDs, ev.UserID)
		triggers = append(triggers, string(ev.Trigger))
		scores = append(scores, ev.Score)
		occurredAts = append(occurredAts, ev.OccurredAt)
	}

	query := `
		INSERT INTO attempt_events (attempt_id, exam_id, user_id, trigger, score, occurred_at)
		SELECT u.attempt_id, u.exam_id, u.user_id, u.trigger, u.score, u.occurred_at
		FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::int[],
			$4::text[],
			$5::float8[],
			$6::timestamptz[]
		) AS u (attempt_id, exam_id, user_id, trigger, score, occurred_at)
		ON CONFLICT (attempt_id) DO NOTHING
	`

	_, err := w.pool.Exec(ctx, query, attemptIDs, examIDs, userIDs, triggers, scores, occurredAts)
	return err
}

func (w *AuditWorker) persistSingle(ctx context.Context, ev *model.AttemptEvent) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO attempt_events (attempt_id, exam_id, user_id, trigger, score, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (attempt_id) DO NOTHING`,
		ev.AttemptID, ev.ExamID, ev.UserID, string(ev.Trigger), ev.Score, ev.OccurredAt,
	)
	return err
}
