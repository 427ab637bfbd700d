package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccessTier gates exam availability by subscription plan.
type AccessTier string

const (
	AccessTierFree AccessTier = "FREE"
	AccessTierPro  AccessTier = "PRO"
)

// OptionKey is one of the four answer choices of a question.
type OptionKey string

const (
	OptionA OptionKey = "A"
	OptionB OptionKey = "B"
	OptionC OptionKey = "C"
	OptionD OptionKey = "D"
)

// Valid reports whether k is one of the four enumerated option keys.
func (k OptionKey) Valid() bool {
	switch k {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// MarkingScheme is the per-exam grading policy. It lives on the exam
// definition so different exam types can grade differently; the scoring
// engine itself carries no policy constants.
type MarkingScheme struct {
	// WrongPenalty is deducted for each incorrectly answered question.
	// Zero for this platform's mock tests; entrance exams elsewhere use 0.25 etc.
	WrongPenalty float64 `json:"wrong_penalty"`
}

// ExamDefinition is the read-only description of one exam as supplied by the
// content catalog. This core never mutates it.
type ExamDefinition struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Year            int           `json:"year"`
	DurationMinutes int           `json:"duration_minutes"`
	TotalMarks      int           `json:"total_marks"`
	AccessTier      AccessTier    `json:"access_tier"`
	Published       bool          `json:"is_published"`
	AvailableFrom   *time.Time    `json:"available_from,omitempty"`
	AvailableUntil  *time.Time    `json:"available_until,omitempty"`
	Marking         MarkingScheme `json:"marking_scheme"`
	Sections        []Section     `json:"sections"`
}

// Title returns the display title, e.g. "DCET 2023".
func (e *ExamDefinition) Title() string {
	return fmt.Sprintf("%s %d", e.Name, e.Year)
}

// Duration returns the exam duration as a time.Duration.
func (e *ExamDefinition) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// AvailableAt reports whether the exam is published and inside its
// availability window at the given instant.
func (e *ExamDefinition) AvailableAt(now time.Time) bool {
	if !e.Published {
		return false
	}
	if e.AvailableFrom != nil && now.Before(*e.AvailableFrom) {
		return false
	}
	if e.AvailableUntil != nil && now.After(*e.AvailableUntil) {
		return false
	}
	return true
}

// QuestionCount returns the total number of questions across all sections.
func (e *ExamDefinition) QuestionCount() int {
	n := 0
	for i := range e.Sections {
		n += len(e.Sections[i].Questions)
	}
	return n
}

// QuestionByID finds a question within the exam. Returns nil if the id does
// not belong to this exam.
func (e *ExamDefinition) QuestionByID(id uuid.UUID) *Question {
	for i := range e.Sections {
		for j := range e.Sections[i].Questions {
			if e.Sections[i].Questions[j].ID == id {
				return &e.Sections[i].Questions[j]
			}
		}
	}
	return nil
}

// Section is a named, ordered subset of an exam's questions.
type Section struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Order     int        `json:"order"`
	MaxMarks  int        `json:"max_marks"`
	Questions []Question `json:"questions"`
}

// Question is a single four-option question with its answer key.
type Question struct {
	ID            uuid.UUID `json:"id"`
	Number        int       `json:"question_number"`
	Text          string    `json:"question_text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectOption OptionKey `json:"correct_option"`
	Marks         int       `json:"marks"`
}

// ExamSummary is a catalog row shown to users browsing exams.
type ExamSummary struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Year            int        `json:"year"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      int        `json:"total_marks"`
	AccessTier      AccessTier `json:"access_tier"`
	QuestionCount   int        `json:"question_count"`
}

// QuestionForStudent is a question stripped of its answer key, safe to send
// to an exam taker.
type QuestionForStudent struct {
	ID           uuid.UUID `json:"id"`
	Number       int       `json:"question_number"`
	Text         string    `json:"question_text"`
	OptionA      string    `json:"option_a"`
	OptionB      string    `json:"option_b"`
	OptionC      string    `json:"option_c"`
	OptionD      string    `json:"option_d"`
	Marks        int       `json:"marks"`
	SectionName  string    `json:"section_name"`
	SectionOrder int       `json:"section_order"`
}

// ExamPaper is the Redis-cached payload served to exam takers (no correct keys).
type ExamPaper struct {
	ExamID    uuid.UUID            `json:"exam_id"`
	Title     string               `json:"title"`
	Duration  int                  `json:"duration_minutes"`
	Questions []QuestionForStudent `json:"questions"`
}

// PaperFor flattens the exam's sections into the student-facing paper payload.
func (e *ExamDefinition) PaperFor() *ExamPaper {
	paper := &ExamPaper{
		ExamID:    e.ID,
		Title:     e.Title(),
		Duration:  e.DurationMinutes,
		Questions: make([]QuestionForStudent, 0, e.QuestionCount()),
	}
	for i := range e.Sections {
		sec := &e.Sections[i]
		for j := range sec.Questions {
			q := &sec.Questions[j]
			paper.Questions = append(paper.Questions, QuestionForStudent{
				ID:           q.ID,
				Number:       q.Number,
				Text:         q.Text,
				OptionA:      q.OptionA,
				OptionB:      q.OptionB,
				OptionC:      q.OptionC,
				OptionD:      q.OptionD,
				Marks:        q.Marks,
				SectionName:  sec.Name,
				SectionOrder: sec.Order,
			})
		}
	}
	return paper
}
