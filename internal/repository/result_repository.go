package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepdeck/prepdeck-backend/internal/model"
)

// ResultRepository persists grading snapshots. A result is written exactly
// once per attempt and never updated: the insert ignores conflicts so the
// loser of a finalize race is a silent no-op, and no code path issues an
// UPDATE against this table.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Save inserts the result snapshot. Idempotent: a second save for the same
// attempt leaves the first snapshot untouched.
func (r *ResultRepository) Save(ctx context.Context, res *model.Result) error {
	sections, err := json.Marshal(res.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	questions, err := json.Marshal(res.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO results (attempt_id, exam_id, score, total_marks, percentage,
		                      correct_count, answered_count, total_questions,
		                      sections, questions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (attempt_id) DO NOTHING`,
		res.AttemptID, res.ExamID, res.Score, res.TotalMarks, res.Percentage,
		res.CorrectCount, res.AnsweredCount, res.TotalQuestions,
		sections, questions, res.CreatedAt,
	)
	return err
}

// GetByAttempt retrieves the stored snapshot for an attempt.
func (r *ResultRepository) GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	res := &model.Result{}
	var sections, questions []byte
	err := r.pool.QueryRow(ctx,
		`SELECT attempt_id, exam_id, score, total_marks, percentage,
		        correct_count, answered_count, total_questions,
		        sections, questions, created_at
		 FROM results
		 WHERE attempt_id = $1`, attemptID,
	).Scan(&res.AttemptID, &res.ExamID, &res.Score, &res.TotalMarks, &res.Percentage,
		&res.CorrectCount, &res.AnsweredCount, &res.TotalQuestions,
		&sections, &questions, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(sections, &res.Sections); err != nil {
		return nil, fmt.Errorf("unmarshal sections: %w", err)
	}
	if err := json.Unmarshal(questions, &res.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return res, nil
}
