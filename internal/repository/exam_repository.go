package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepdeck/prepdeck-backend/internal/config"
	"github.com/prepdeck/prepdeck-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const paperCacheTTL = time.Hour

// ExamRepository reads exam definitions owned by the content catalog. All
// access is read-only from this service's perspective.
type ExamRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ExamRepository {
	return &ExamRepository{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "exam_repository").Logger(),
	}
}

// GetDefinition loads a full exam definition including its answer key.
// Never expose the returned value to clients directly — use Paper.
func (r *ExamRepository) GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	def := &model.ExamDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, year, duration_minutes, total_marks, access_tier,
		        is_published, available_from, available_until, wrong_penalty
		 FROM exams
		 WHERE id = $1`, examID,
	).Scan(&def.ID, &def.Name, &def.Year, &def.DurationMinutes, &def.TotalMarks,
		&def.AccessTier, &def.Published, &def.AvailableFrom, &def.AvailableUntil,
		&def.Marking.WrongPenalty)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadSections(ctx, def); err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	return def, nil
}

func (r *ExamRepository) loadSections(ctx context.Context, def *model.ExamDefinition) error {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, s.section_order, s.max_marks,
		        q.id, q.question_number, q.question_text,
		        q.option_a, q.option_b, q.option_c, q.option_d,
		        q.correct_option, q.marks
		 FROM sections s
		 JOIN questions q ON q.section_id = s.id
		 WHERE s.exam_id = $1
		 ORDER BY s.section_order, q.question_number`, def.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var current *model.Section
	for rows.Next() {
		var (
			sec model.Section
			q   model.Question
		)
		if err := rows.Scan(&sec.ID, &sec.Name, &sec.Order, &sec.MaxMarks,
			&q.ID, &q.Number, &q.Text,
			&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectOption, &q.Marks); err != nil {
			return err
		}
		if current == nil || current.ID != sec.ID {
			def.Sections = append(def.Sections, sec)
			current = &def.Sections[len(def.Sections)-1]
		}
		current.Questions = append(current.Questions, q)
	}
	return rows.Err()
}

// ListPublished returns the catalog of published exams.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.ExamSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.name, e.year, e.duration_minutes, e.total_marks, e.access_tier,
		        (SELECT COUNT(*) FROM questions q JOIN sections s ON q.section_id = s.id WHERE s.exam_id = e.id)
		 FROM exams e
		 WHERE e.is_published
		 ORDER BY e.year DESC, e.name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.ExamSummary
	for rows.Next() {
		var (
			sum  model.ExamSummary
			name string
		)
		if err := rows.Scan(&sum.ID, &name, &sum.Year, &sum.DurationMinutes, &sum.TotalMarks, &sum.AccessTier, &sum.QuestionCount); err != nil {
			return nil, err
		}
		sum.Title = fmt.Sprintf("%s %d", name, sum.Year)
		exams = append(exams, sum)
	}
	return exams, rows.Err()
}

// Paper returns the student-facing question payload, cached in Redis.
// Questions rarely change, so a cache miss rebuilds from PostgreSQL and the
// entry lives for an hour.
func (r *ExamRepository) Paper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	key := config.CacheKey.ExamPaperKey(examID.String())

	raw, err := r.rdb.Get(ctx, key).Result()
	if err == nil {
		paper := &model.ExamPaper{}
		if unmarshalErr := json.Unmarshal([]byte(raw), paper); unmarshalErr == nil {
			return paper, nil
		}
		// Corrupt cache entry falls through to a rebuild.
	} else if !errors.Is(err, redis.Nil) {
		r.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Paper cache read failed, using database")
	}

	def, err := r.GetDefinition(ctx, examID)
	if err != nil {
		return nil, err
	}
	paper := def.PaperFor()

	if encoded, marshalErr := json.Marshal(paper); marshalErr == nil {
		if cacheErr := r.rdb.Set(ctx, key, encoded, paperCacheTTL).Err(); cacheErr != nil {
			r.log.Warn().Err(cacheErr).Str("exam_id", examID.String()).Msg("Paper cache write failed")
		}
	}
	return paper, nil
}
