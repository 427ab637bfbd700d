package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prepdeck/prepdeck-backend/internal/model"
	"github.com/prepdeck/prepdeck-backend/internal/repository"
	"github.com/prepdeck/prepdeck-backend/internal/scoring"
	"github.com/rs/zerolog"
)

// Session errors surfaced to the handler layer.
var (
	ErrForbidden           = errors.New("attempt does not belong to the requesting user")
	ErrTimeExpired         = errors.New("exam time has expired")
	ErrExamNotAvailable    = errors.New("exam is not available")
	ErrUpgradeRequired     = errors.New("exam requires a pro subscription")
	ErrQuestionNotInExam   = errors.New("question does not belong to this exam")
	ErrAttemptStillRunning = errors.New("attempt is still in progress")
)

// AttemptStore is the attempt lifecycle storage contract.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	ListByUser(ctx context.Context, userID int) ([]model.Attempt, error)
	Finalize(ctx context.Context, id uuid.UUID, trigger model.FinalizeTrigger, at time.Time) (*model.Attempt, error)
}

// AnswerStore records and retrieves answer selections.
type AnswerStore interface {
	Upsert(ctx context.Context, rec model.AnswerRecord) error
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.AnswerRecord, error)
	Saved(ctx context.Context, attemptID uuid.UUID) (map[string]string, error)
	ClearCache(ctx context.Context, attemptID uuid.UUID)
}

// ResultStore persists and retrieves immutable grading snapshots.
type ResultStore interface {
	Save(ctx context.Context, res *model.Result) error
	GetByAttempt(ctx context.Context, attemptID uuid.UUID) (*model.Result, error)
}

// ExamSource supplies read-only exam definitions from the content catalog.
type ExamSource interface {
	GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error)
	ListPublished(ctx context.Context) ([]model.ExamSummary, error)
	Paper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error)
}

// ClockStore is the deadline authority. All expiry decisions route through
// Remaining; an error from it is "unknown", never "not expired".
type ClockStore interface {
	SetDeadline(ctx context.Context, attemptID uuid.UUID, deadline time.Time) error
	Remaining(ctx context.Context, attemptID uuid.UUID) (seconds int64, expired bool, err error)
	Clear(ctx context.Context, attemptID uuid.UUID) error
}

// AuditSink receives finalization events for the audit trail. Best-effort;
// implementations must not fail the finalize path.
type AuditSink interface {
	RecordFinalize(ctx context.Context, ev model.AttemptEvent)
}

// SessionService is the timed exam session controller: it starts attempts,
// guards answer submission behind the server-side clock, and forces
// deterministic finalization at expiry.
type SessionService struct {
	attempts AttemptStore
	answers  AnswerStore
	results  ResultStore
	exams    ExamSource
	clock    ClockStore
	audit    AuditSink
	log      zerolog.Logger

	now func() time.Time // overridable in tests
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	attempts AttemptStore,
	answers AnswerStore,
	results ResultStore,
	exams ExamSource,
	clock ClockStore,
	audit AuditSink,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		attempts: attempts,
		answers:  answers,
		results:  results,
		exams:    exams,
		clock:    clock,
		audit:    audit,
		log:      log.With().Str("component", "session_service").Logger(),
		now:      time.Now,
	}
}

// Catalog returns the published exam catalog.
func (s *SessionService) Catalog(ctx context.Context) ([]model.ExamSummary, error) {
	return s.exams.ListPublished(ctx)
}

// History returns the user's attempts, newest first.
func (s *SessionService) History(ctx context.Context, userID int) ([]model.Attempt, error) {
	return s.attempts.ListByUser(ctx, userID)
}

// StartAttempt creates a new running attempt with its deadline fixed at
// creation time. Fails with repository.ErrAlreadyRunning if the user already
// has a running attempt for this exam — the client is expected to resume it,
// not retry-create.
func (s *SessionService) StartAttempt(ctx context.Context, userID int, plan model.AccessTier, examID uuid.UUID) (*model.StartAttemptResponse, error) {
	def, err := s.exams.GetDefinition(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	now := s.now()
	if !def.AvailableAt(now) {
		return nil, ErrExamNotAvailable
	}
	if def.AccessTier == model.AccessTierPro && plan != model.AccessTierPro {
		return nil, ErrUpgradeRequired
	}

	attempt := &model.Attempt{
		ID:        uuid.New(),
		UserID:    userID,
		ExamID:    examID,
		StartedAt: now,
		Deadline:  now.Add(def.Duration()),
		Status:    model.AttemptStatusRunning,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	// The deadline also lives on the attempt row, so a failed cache write is
	// recoverable: Remaining falls back to PostgreSQL.
	if err := s.clock.SetDeadline(ctx, attempt.ID, attempt.Deadline); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Deadline cache write failed")
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("exam_id", examID.String()).
		Int("user_id", userID).
		Time("deadline", attempt.Deadline).
		Msg("Attempt started")

	return &model.StartAttemptResponse{
		AttemptID:        attempt.ID,
		ExamID:           examID,
		ExamTitle:        def.Title(),
		DurationMinutes:  def.DurationMinutes,
		RemainingSeconds: int64(def.Duration() / time.Second),
		TotalQuestions:   def.QuestionCount(),
		TotalMarks:       def.TotalMarks,
	}, nil
}

// Clock reports the server-authoritative remaining time. If the deadline has
// passed while the attempt is still labeled running, this call itself forces
// the timeout finalization before answering — a client never observes an
// expired deadline on a running attempt.
func (s *SessionService) Clock(ctx context.Context, userID int, attemptID uuid.UUID) (*model.ClockResponse, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == model.AttemptStatusSubmitted {
		return &model.ClockResponse{RemainingSeconds: 0, Status: attempt.PublicStatus()}, nil
	}

	remaining, expired, err := s.clock.Remaining(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("clock remaining: %w", err)
	}
	if expired {
		s.expire(ctx, attempt)
		return &model.ClockResponse{RemainingSeconds: 0, Status: model.AttemptStatusExpired}, nil
	}
	return &model.ClockResponse{RemainingSeconds: remaining, Status: model.AttemptStatusRunning}, nil
}

// Paper returns the attempt's question set (no answer keys) together with
// previously saved answers, so a reconnecting client can restore its state.
func (s *SessionService) Paper(ctx context.Context, userID int, attemptID uuid.UUID) (*model.AttemptPaper, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOpen(ctx, attempt); err != nil {
		return nil, err
	}

	paper, err := s.exams.Paper(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get paper: %w", err)
	}
	saved, err := s.answers.Saved(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get saved answers: %w", err)
	}

	return &model.AttemptPaper{
		AttemptID:    attemptID,
		ExamTitle:    paper.Title,
		Questions:    paper.Questions,
		SavedAnswers: saved,
	}, nil
}

// RecordAnswer saves one answer selection, overwriting any prior answer for
// the question. The expiry check runs first: an answer arriving past the
// deadline triggers the timeout finalization and is rejected with
// ErrTimeExpired.
func (s *SessionService) RecordAnswer(ctx context.Context, userID int, attemptID uuid.UUID, req model.SubmitAnswerRequest) error {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return err
	}
	if err := s.ensureOpen(ctx, attempt); err != nil {
		return err
	}

	// Membership check against the cached paper payload; no answer key needed.
	paper, err := s.exams.Paper(ctx, attempt.ExamID)
	if err != nil {
		return fmt.Errorf("get paper: %w", err)
	}
	known := false
	for i := range paper.Questions {
		if paper.Questions[i].ID == req.QuestionID {
			known = true
			break
		}
	}
	if !known {
		return ErrQuestionNotInExam
	}

	return s.answers.Upsert(ctx, model.AnswerRecord{
		AttemptID:  attemptID,
		QuestionID: req.QuestionID,
		Selected:   req.SelectedOption,
		RecordedAt: s.now(),
	})
}

// SubmitExam finalizes the attempt on the user's request and returns the
// grading result. An attempt whose deadline already passed is closed with the
// timeout trigger instead, exactly as the lazy path would have. Racing a
// concurrent finalize is benign: the loser returns the stored result.
func (s *SessionService) SubmitExam(ctx context.Context, userID int, attemptID uuid.UUID) (*model.Result, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == model.AttemptStatusSubmitted {
		return s.waitForResult(ctx, attempt)
	}

	trigger := model.TriggerUserSubmit
	_, expired, err := s.clock.Remaining(ctx, attemptID)
	if err != nil {
		// Fail closed: without a trustworthy clock reading the submission is
		// not accepted as in-time.
		return nil, fmt.Errorf("clock remaining: %w", err)
	}
	if expired {
		trigger = model.TriggerTimeout
	}

	return s.finalize(ctx, attempt, trigger)
}

// Result returns the stored grading snapshot for a finished attempt. On a
// running attempt whose deadline has passed, the read itself triggers the
// timeout finalization and returns the fresh result.
func (s *SessionService) Result(ctx context.Context, userID int, attemptID uuid.UUID) (*model.Result, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	if attempt.Status == model.AttemptStatusRunning {
		_, expired, err := s.clock.Remaining(ctx, attemptID)
		if err != nil {
			return nil, fmt.Errorf("clock remaining: %w", err)
		}
		if !expired {
			return nil, ErrAttemptStillRunning
		}
		return s.finalize(ctx, attempt, model.TriggerTimeout)
	}

	res, err := s.results.GetByAttempt(ctx, attemptID)
	if errors.Is(err, repository.ErrNotFound) {
		// The status flip committed but the snapshot write was lost.
		return s.rescore(ctx, attempt)
	}
	return res, err
}

// ownedAttempt loads an attempt and verifies ownership.
func (s *SessionService) ownedAttempt(ctx context.Context, userID int, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, ErrForbidden
	}
	return attempt, nil
}

// ensureOpen re-validates that the attempt accepts mutations right now. The
// persisted status alone is not enough: an attempt can be temporally expired
// while still labeled running, so the live clock is consulted and expiry is
// finalized on the spot.
func (s *SessionService) ensureOpen(ctx context.Context, attempt *model.Attempt) error {
	if attempt.Status == model.AttemptStatusSubmitted {
		if attempt.PublicStatus() == model.AttemptStatusExpired {
			return ErrTimeExpired
		}
		return repository.ErrAttemptNotRunning
	}

	_, expired, err := s.clock.Remaining(ctx, attempt.ID)
	if err != nil {
		return fmt.Errorf("clock remaining: %w", err)
	}
	if expired {
		s.expire(ctx, attempt)
		return ErrTimeExpired
	}
	return nil
}

// expire forces the timeout finalization. Losing the race to another
// finalizer is expected and benign.
func (s *SessionService) expire(ctx context.Context, attempt *model.Attempt) {
	if _, err := s.finalize(ctx, attempt, model.TriggerTimeout); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Timeout finalization failed")
	}
}

// finalize performs the one-time close: conditional status transition, score
// computation, result snapshot, deadline release, audit event. Exactly one
// of any number of concurrent callers wins the transition; the rest receive
// the winner's stored result.
func (s *SessionService) finalize(ctx context.Context, attempt *model.Attempt, trigger model.FinalizeTrigger) (*model.Result, error) {
	finalized, err := s.attempts.Finalize(ctx, attempt.ID, trigger, s.now())
	if errors.Is(err, repository.ErrAlreadyFinalized) {
		return s.waitForResult(ctx, attempt)
	}
	if err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	result, err := s.score(ctx, finalized)
	if err != nil {
		return nil, err
	}

	if err := s.clock.Clear(ctx, attempt.ID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Deadline clear failed")
	}
	s.answers.ClearCache(ctx, attempt.ID)

	s.audit.RecordFinalize(ctx, model.AttemptEvent{
		AttemptID:  attempt.ID,
		ExamID:     attempt.ExamID,
		UserID:     attempt.UserID,
		Trigger:    trigger,
		Score:      result.Score,
		OccurredAt: s.now(),
	})

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("trigger", string(trigger)).
		Float64("score", result.Score).
		Msg("Attempt finalized")

	return result, nil
}

// score computes and persists the result snapshot for a finalized attempt.
// Scoring is a pure function of durable inputs and the store ignores a
// conflicting insert, so calling this again for the same attempt is safe.
func (s *SessionService) score(ctx context.Context, attempt *model.Attempt) (*model.Result, error) {
	records, err := s.answers.ListByAttempt(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	def, err := s.exams.GetDefinition(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	result := scoring.Score(attempt, records, def)
	result.CreatedAt = s.now()
	if err := s.results.Save(ctx, &result); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	return &result, nil
}

// rescore rebuilds the snapshot for a submitted attempt that has no stored
// result — the finalize transition committed but the result write was lost.
// The recomputation is deterministic and the save is insert-once, so if a
// concurrent writer got there first its snapshot wins and is returned.
func (s *SessionService) rescore(ctx context.Context, attempt *model.Attempt) (*model.Result, error) {
	s.log.Warn().Str("attempt_id", attempt.ID.String()).Msg("Missing result snapshot, rescoring")

	if _, err := s.score(ctx, attempt); err != nil {
		return nil, err
	}
	return s.results.GetByAttempt(ctx, attempt.ID)
}

// waitForResult fetches the result written by a concurrent finalizer. The
// winner persists its snapshot moments after the status flip, so a short
// poll covers the gap; if no snapshot ever appears the attempt is rescored
// from its durable answers instead of being reported as unavailable.
func (s *SessionService) waitForResult(ctx context.Context, attempt *model.Attempt) (*model.Result, error) {
	const (
		polls    = 5
		interval = 100 * time.Millisecond
	)
	for i := 0; i < polls; i++ {
		res, err := s.results.GetByAttempt(ctx, attempt.ID)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return s.rescore(ctx, attempt)
}
