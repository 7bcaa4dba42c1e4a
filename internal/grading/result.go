package grading

import (
	"github.com/abhisek/lingua/internal/exercise"
)

// Answer is a learner's response to one question. Which field is read
// depends on the question type.
type Answer struct {
	Choice *int   `json:"choice,omitempty"`
	Text   string `json:"text,omitempty"`

	// Analysis is the upstream speech analysis of Text for spoken
	// questions. Grading treats it as opaque input.
	Analysis *AxisScores `json:"analysis,omitempty"`
}

// QuestionResult is the outcome for a single question.
type QuestionResult struct {
	Index         int         `json:"index"`
	Answered      bool        `json:"answered"`
	IsCorrect     bool        `json:"is_correct"`
	Submitted     string      `json:"submitted,omitempty"`
	CorrectAnswer string      `json:"correct_answer,omitempty"`
	CorrectIndex  *int        `json:"correct_index,omitempty"`
	Explanation   string      `json:"explanation,omitempty"`
	Axes          *AxisScores `json:"axes,omitempty"`
	OverallScore  *float64    `json:"overall_score,omitempty"`
}

// Result is the graded outcome of one exercise attempt.
type Result struct {
	ExerciseID   string           `json:"exercise_id"`
	Kind         exercise.Kind    `json:"kind"`
	Questions    []QuestionResult `json:"questions"`
	CorrectCount int              `json:"correct_count"`
	TotalCount   int              `json:"total_count"`
	Score        int              `json:"score"`

	// Speaking exercises only.
	Axes         *AxisScores `json:"axes,omitempty"`
	OverallScore *float64    `json:"overall_score,omitempty"`
}

// Grade scores answers against ex. Missing answers are unanswered and
// incorrect. Grade never fails; malformed answers are simply wrong.
func Grade(ex *exercise.Exercise, answers map[int]Answer) *Result {
	res := &Result{
		ExerciseID: ex.ID,
		Kind:       ex.Kind,
		Questions:  make([]QuestionResult, len(ex.Questions)),
		TotalCount: len(ex.Questions),
	}

	var spoken []AxisScores
	for i, q := range ex.Questions {
		ans, answered := answers[i]
		qr := QuestionResult{Index: i, Explanation: q.Explanation}

		switch q.Type {
		case exercise.QuestionMultipleChoice:
			qr.Answered = answered && ans.Choice != nil
			qr.IsCorrect = GradeChoice(ans.Choice, q.CorrectIndex)
			if qr.Answered && *ans.Choice >= 0 && *ans.Choice < len(q.Options) {
				qr.Submitted = q.Options[*ans.Choice]
			}
			idx := q.CorrectIndex
			qr.CorrectIndex = &idx
			if idx >= 0 && idx < len(q.Options) {
				qr.CorrectAnswer = q.Options[idx]
			}

		case exercise.QuestionFreeText:
			qr.Answered = answered && ans.Text != ""
			qr.Submitted = ans.Text
			qr.IsCorrect = GradeFreeText(ans.Text, q.CanonicalAnswer)
			qr.CorrectAnswer = q.CanonicalAnswer

		case exercise.QuestionSpoken:
			qr.Answered = answered && ans.Analysis != nil
			qr.Submitted = ans.Text
			qr.CorrectAnswer = q.CanonicalAnswer
			axes := AxisScores{}
			if qr.Answered {
				axes = ans.Analysis.Clamp()
				overall := Overall(axes)
				qr.Axes = &axes
				qr.OverallScore = &overall
				qr.IsCorrect = overall >= SpokenPassMark
			}
			spoken = append(spoken, axes)
		}

		if qr.IsCorrect {
			res.CorrectCount++
		}
		res.Questions[i] = qr
	}

	res.Score = Score(res.CorrectCount, res.TotalCount)

	if ex.Kind == exercise.KindSpeaking {
		avg := averageAxes(spoken)
		overall := Overall(avg)
		res.Axes = &avg
		res.OverallScore = &overall
	}
	return res
}
