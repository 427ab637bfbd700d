package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates exam attempt states.
//
// "expired" never persists: an attempt whose deadline has passed is closed
// (status submitted, trigger timeout) by whichever request notices first.
// It exists as an API-level label so clients can distinguish "closed because
// time ran out" from "closed because you submitted".
type AttemptStatus string

const (
	AttemptStatusRunning   AttemptStatus = "running"
	AttemptStatusExpired   AttemptStatus = "expired"
	AttemptStatusSubmitted AttemptStatus = "submitted"
)

// FinalizeTrigger records why an attempt was closed. All triggers share the
// identical state transition and scoring path; the value is audit data only.
type FinalizeTrigger string

const (
	TriggerUserSubmit FinalizeTrigger = "user-submit"
	TriggerTimeout    FinalizeTrigger = "timeout"
	TriggerAdmin      FinalizeTrigger = "admin"
)

// Attempt represents one user's single timed sitting of one exam.
type Attempt struct {
	ID          uuid.UUID        `json:"id"`
	UserID      int              `json:"user_id"`
	ExamID      uuid.UUID        `json:"exam_id"`
	StartedAt   time.Time        `json:"started_at"`
	Deadline    time.Time        `json:"deadline"`
	Status      AttemptStatus    `json:"status"`
	FinalizedAt *time.Time       `json:"finalized_at,omitempty"`
	Trigger     *FinalizeTrigger `json:"finalize_trigger,omitempty"`
}

// PublicStatus maps the persisted status + trigger onto the status label
// exposed by the clock endpoint: running | expired | submitted.
func (a *Attempt) PublicStatus() AttemptStatus {
	if a.Status == AttemptStatusSubmitted && a.Trigger != nil && *a.Trigger == TriggerTimeout {
		return AttemptStatusExpired
	}
	return a.Status
}

// AnswerRecord is one selected option for one question of one attempt.
// At most one per (attempt, question); resubmission overwrites.
type AnswerRecord struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Selected   OptionKey `json:"selected_option"`
	RecordedAt time.Time `json:"recorded_at"`
}

// AttemptEvent is an audit trail entry written when an attempt is finalized.
type AttemptEvent struct {
	AttemptID  uuid.UUID       `json:"attempt_id"`
	ExamID     uuid.UUID       `json:"exam_id"`
	UserID     int             `json:"user_id"`
	Trigger    FinalizeTrigger `json:"trigger"`
	Score      float64         `json:"score"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// StartAttemptResponse is returned when an attempt is started.
type StartAttemptResponse struct {
	AttemptID        uuid.UUID `json:"attempt_id"`
	ExamID           uuid.UUID `json:"exam_id"`
	ExamTitle        string    `json:"exam_title"`
	DurationMinutes  int       `json:"duration_minutes"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	TotalQuestions   int       `json:"total_questions"`
	TotalMarks       int       `json:"total_marks"`
}

// ClockResponse reports server-authoritative remaining time for an attempt.
type ClockResponse struct {
	RemainingSeconds int64         `json:"remaining_seconds"`
	Status           AttemptStatus `json:"status"`
}

// AttemptPaper bundles the question set with previously saved answers so a
// reconnecting client can restore its state.
type AttemptPaper struct {
	AttemptID    uuid.UUID            `json:"attempt_id"`
	ExamTitle    string               `json:"exam_title"`
	Questions    []QuestionForStudent `json:"questions"`
	SavedAnswers map[string]string    `json:"saved_answers"`
}

// SubmitAnswerRequest is the payload for recording one answer.
type SubmitAnswerRequest struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedOption OptionKey `json:"selected_option" binding:"required,oneof=A B C D"`
}
