// Package scoring grades a finalized attempt's answers against an exam's
// answer key. It is a pure function of its inputs: no clock, no I/O, no
// policy constants — the marking scheme comes from the exam definition, so
// a result can be replayed byte-for-byte during dispute resolution.
package scoring

import (
	"math"

	"github.com/prepdeck/prepdeck-backend/internal/model"
)

// Score computes the immutable Result for one attempt.
//
// Per question: a matching answer earns the question's marks; a wrong answer
// deducts the scheme's penalty; an unanswered question earns zero. Section
// aggregates follow the definition's section layout. The total is floored at
// zero when penalties would drive it negative.
func Score(attempt *model.Attempt, answers []model.AnswerRecord, def *model.ExamDefinition) model.Result {
	selected := make(map[string]model.OptionKey, len(answers))
	for _, a := range answers {
		selected[a.QuestionID.String()] = a.Selected
	}

	res := model.Result{
		AttemptID:  attempt.ID,
		ExamID:     def.ID,
		TotalMarks: def.TotalMarks,
		Sections:   make([]model.SectionResult, 0, len(def.Sections)),
		Questions:  make([]model.QuestionResult, 0, def.QuestionCount()),
	}

	var total float64

	for i := range def.Sections {
		sec := &def.Sections[i]
		secRes := model.SectionResult{
			Name:          sec.Name,
			MaxMarks:      sec.MaxMarks,
			QuestionCount: len(sec.Questions),
		}

		var secScore float64
		for j := range sec.Questions {
			q := &sec.Questions[j]
			row := model.QuestionResult{
				QuestionID:    q.ID,
				Number:        q.Number,
				SectionName:   sec.Name,
				CorrectOption: q.CorrectOption,
				Marks:         q.Marks,
			}

			if picked, ok := selected[q.ID.String()]; ok {
				p := picked
				row.Selected = &p
				secRes.AnsweredCount++
				if picked == q.CorrectOption {
					row.IsCorrect = true
					row.MarksAwarded = float64(q.Marks)
					secRes.CorrectCount++
				} else {
					row.MarksAwarded = -def.Marking.WrongPenalty
				}
			}

			secScore += row.MarksAwarded
			res.Questions = append(res.Questions, row)
		}

		secRes.Score = secScore
		if secRes.MaxMarks > 0 {
			secRes.Accuracy = RoundHalfUp(secScore/float64(secRes.MaxMarks)*100, 1)
		}
		res.Sections = append(res.Sections, secRes)

		total += secScore
		res.CorrectCount += secRes.CorrectCount
		res.AnsweredCount += secRes.AnsweredCount
		res.TotalQuestions += secRes.QuestionCount
	}

	if total < 0 {
		total = 0
	}
	res.Score = total
	if def.TotalMarks > 0 {
		res.Percentage = RoundHalfUp(total/float64(def.TotalMarks)*100, 1)
	}

	return res
}

// RoundHalfUp rounds v to the given number of decimal places, with ties
// going away from zero toward positive infinity (0.05 → 0.1 at 1 place).
func RoundHalfUp(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Floor(v*shift+0.5) / shift
}
