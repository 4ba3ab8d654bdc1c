// Package grading scores a completed session. It is pure: the same questions,
// answers and settings always give the same Outcome.
package grading

import "github.com/mind-engage/examroom/internal/exam"

// Outcome is the scored form of one session.
type Outcome struct {
	CorrectAnswers int  `json:"correctAnswers"`
	TotalQuestions int  `json:"totalQuestions"`
	Score          int  `json:"score"`
	IsPassed       bool `json:"isPassed"`
}

// Correct reports whether answer selects q's correct option. Answers are
// option positions in the same order as q.Options.
func Correct(q exam.Question, answer int) bool {
	return answer == q.CorrectIndex && answer >= 0 && answer < len(q.Options)
}

// Score counts questions whose recorded answer is correct. Unanswered
// questions count toward TotalQuestions only; answers for questions outside
// the list are ignored.
func Score(questions []exam.Question, answers map[string]int, s exam.Settings) Outcome {
	out := Outcome{TotalQuestions: len(questions)}
	for _, q := range questions {
		a, ok := answers[q.ID]
		if ok && Correct(q, a) {
			out.CorrectAnswers++
		}
	}
	out.Score = out.CorrectAnswers * s.PointsPerAnswer
	out.IsPassed = out.Score >= s.PassingScore
	return out
}
