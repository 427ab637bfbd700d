package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepdeck/prepdeck-backend/internal/config"
	"github.com/prepdeck/prepdeck-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerRepository persists answer records in PostgreSQL and mirrors them
// into a Redis hash so a reconnecting client restores its state without
// touching the database.
type AnswerRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AnswerRepository {
	return &AnswerRepository{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "answer_repository").Logger(),
	}
}

// Upsert records one answer, overwriting any prior answer for the same
// question. The insert is guarded by the owning attempt still being running
// in the same statement, so a write racing a finalize cannot land after the
// attempt closes: zero rows means ErrAttemptNotRunning.
func (r *AnswerRepository) Upsert(ctx context.Context, rec model.AnswerRecord) error {
	var attemptID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, selected_option, recorded_at)
		 SELECT $1, $2, $3, $4
		 WHERE EXISTS (SELECT 1 FROM attempts WHERE id = $1 AND status = $5)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option, recorded_at = EXCLUDED.recorded_at
		 RETURNING attempt_id`,
		rec.AttemptID, rec.QuestionID, rec.Selected, rec.RecordedAt, model.AttemptStatusRunning,
	).Scan(&attemptID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAttemptNotRunning
	}
	if err != nil {
		return err
	}

	// Mirror into the answers hash. Best-effort: Saved heals from PostgreSQL
	// on the next read if this write is lost.
	key := config.CacheKey.AttemptAnswersKey(rec.AttemptID.String())
	if err := r.rdb.HSet(ctx, key, rec.QuestionID.String(), string(rec.Selected)).Err(); err != nil {
		r.log.Warn().Err(err).Str("attempt_id", rec.AttemptID.String()).Msg("Answer cache write failed")
	}
	return nil
}

// ListByAttempt retrieves all answer records for an attempt from PostgreSQL.
// Used at finalization: scoring reads the durable records, never the cache.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.AnswerRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, question_id, selected_option, recorded_at
		 FROM attempt_answers
		 WHERE attempt_id = $1`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AnswerRecord
	for rows.Next() {
		var rec model.AnswerRecord
		if err := rows.Scan(&rec.AttemptID, &rec.QuestionID, &rec.Selected, &rec.RecordedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Saved returns the question-id → selected-option map for UI state restore.
// Served from the Redis hash; on a miss the database copy is loaded and the
// hash re-primed.
func (r *AnswerRepository) Saved(ctx context.Context, attemptID uuid.UUID) (map[string]string, error) {
	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	cached, err := r.rdb.HGetAll(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	if err != nil {
		r.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Answer cache read failed, using database")
	}

	records, err := r.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	saved := make(map[string]string, len(records))
	for _, rec := range records {
		saved[rec.QuestionID.String()] = string(rec.Selected)
	}

	if len(saved) > 0 {
		pairs := make([]any, 0, len(saved)*2)
		for qid, opt := range saved {
			pairs = append(pairs, qid, opt)
		}
		if err := r.rdb.HSet(ctx, key, pairs...).Err(); err != nil {
			r.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Answer cache heal failed")
		}
	}
	return saved, nil
}

// ClearCache drops the answers hash after finalization. Best-effort.
func (r *AnswerRepository) ClearCache(ctx context.Context, attemptID uuid.UUID) {
	key := config.CacheKey.AttemptAnswersKey(attemptID.String())
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		r.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Answer cache clear failed")
	}
}
