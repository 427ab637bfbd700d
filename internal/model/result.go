package model

import (
	"time"

	"github.com/google/uuid"
)

// Result is the immutable grading snapshot produced exactly once when an
// attempt is finalized. It is never recomputed, even if the exam's answer
// key is later edited upstream.
type Result struct {
	AttemptID      uuid.UUID        `json:"attempt_id"`
	ExamID         uuid.UUID        `json:"exam_id"`
	Score          float64          `json:"score"`
	TotalMarks     int              `json:"total_marks"`
	Percentage     float64          `json:"percentage"`
	CorrectCount   int              `json:"correct_count"`
	AnsweredCount  int              `json:"answered_count"`
	TotalQuestions int              `json:"total_questions"`
	Sections       []SectionResult  `json:"sections"`
	Questions      []QuestionResult `json:"questions"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Summary strips the per-question review, for the submit response.
func (r *Result) Summary() ResultSummary {
	return ResultSummary{
		AttemptID:      r.AttemptID,
		Score:          r.Score,
		TotalMarks:     r.TotalMarks,
		Percentage:     r.Percentage,
		CorrectCount:   r.CorrectCount,
		TotalQuestions: r.TotalQuestions,
	}
}

// ResultSummary is the condensed result returned on exam submission.
type ResultSummary struct {
	AttemptID      uuid.UUID `json:"attempt_id"`
	Score          float64   `json:"score"`
	TotalMarks     int       `json:"total_marks"`
	Percentage     float64   `json:"percentage"`
	CorrectCount   int       `json:"correct_count"`
	TotalQuestions int       `json:"total_questions"`
}

// SectionResult is the per-section breakdown of a result.
type SectionResult struct {
	Name          string  `json:"section_name"`
	Score         float64 `json:"score"`
	MaxMarks      int     `json:"max_marks"`
	CorrectCount  int     `json:"correct_count"`
	AnsweredCount int     `json:"answered_count"`
	QuestionCount int     `json:"question_count"`
	Accuracy      float64 `json:"accuracy"`
}

// QuestionResult is one row of the question-by-question review.
type QuestionResult struct {
	QuestionID    uuid.UUID  `json:"question_id"`
	Number        int        `json:"question_number"`
	SectionName   string     `json:"section_name"`
	Selected      *OptionKey `json:"selected_option,omitempty"`
	CorrectOption OptionKey  `json:"correct_option"`
	IsCorrect     bool       `json:"is_correct"`
	Marks         int        `json:"marks"`
	MarksAwarded  float64    `json:"marks_awarded"`
}
