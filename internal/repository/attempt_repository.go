package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepdeck/prepdeck-backend/internal/model"
)

// AttemptRepository handles attempt lifecycle data access. The two writes
// that matter under concurrency — create and finalize — are single
// conditional statements, so the lifecycle invariants hold without
// application-level locking.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new running attempt. The check for an existing running
// attempt and the insert are one atomic statement: a partial unique index on
// (user_id, exam_id) WHERE status = 'running' rejects a duplicate, which
// surfaces as ErrAlreadyRunning. Two concurrent starts can therefore never
// both succeed.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (id, user_id, exam_id, started_at, deadline, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		a.ID, a.UserID, a.ExamID, a.StartedAt, a.Deadline, model.AttemptStatusRunning,
	).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlreadyRunning
	}
	if err != nil {
		return err
	}
	a.Status = model.AttemptStatusRunning
	return nil
}

// GetByID retrieves one attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, exam_id, started_at, deadline, status, finalized_at, finalize_trigger
		 FROM attempts
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.ExamID, &a.StartedAt, &a.Deadline, &a.Status, &a.FinalizedAt, &a.Trigger)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByUser retrieves all attempts for a user, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, exam_id, started_at, deadline, status, finalized_at, finalize_trigger
		 FROM attempts
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.ExamID, &a.StartedAt, &a.Deadline, &a.Status, &a.FinalizedAt, &a.Trigger); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Finalize transitions the attempt to submitted, stamping when and why. The
// transition is conditional on the current status still being 'running', so
// of any number of racing callers (user submit vs. lazy timeout) exactly one
// wins; the rest observe ErrAlreadyFinalized and treat it as a no-op.
func (r *AttemptRepository) Finalize(ctx context.Context, id uuid.UUID, trigger model.FinalizeTrigger, at time.Time) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET status = $2, finalize_trigger = $3, finalized_at = $4
		 WHERE id = $1 AND status = $5
		 RETURNING id, user_id, exam_id, started_at, deadline, status, finalized_at, finalize_trigger`,
		id, model.AttemptStatusSubmitted, trigger, at, model.AttemptStatusRunning,
	).Scan(&a.ID, &a.UserID, &a.ExamID, &a.StartedAt, &a.Deadline, &a.Status, &a.FinalizedAt, &a.Trigger)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the attempt does not exist or another caller won the race.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrAlreadyFinalized
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// AttemptDeadline loads the durable deadline for an attempt. Implements
// clock.DeadlineFallback for cache-miss recovery.
func (r *AttemptRepository) AttemptDeadline(ctx context.Context, id uuid.UUID) (time.Time, bool, error) {
	var deadline time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT deadline FROM attempts WHERE id = $1`, id,
	).Scan(&deadline)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return deadline, true, nil
}
