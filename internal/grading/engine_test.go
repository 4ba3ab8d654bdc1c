package grading_test

import (
	"testing"

	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/grading"
)

func questions(n int) []exam.Question {
	qs := make([]exam.Question, n)
	for i := range qs {
		qs[i] = exam.Question{
			ID:           string(rune('a' + i)),
			Options:      []string{"0", "1", "2", "3"},
			CorrectIndex: i % 4,
		}
	}
	return qs
}

func TestScore(t *testing.T) {
	qs := questions(5)
	settings := exam.Settings{PointsPerAnswer: 5, PassingScore: 15}
	cases := []struct {
		name    string
		answers map[string]int
		want    grading.Outcome
	}{
		{"nothing answered", nil, grading.Outcome{TotalQuestions: 5, IsPassed: false}},
		{"exactly passing", map[string]int{"a": 0, "b": 1, "c": 2}, grading.Outcome{3, 5, 15, true}},
		{"one short", map[string]int{"a": 0, "b": 1, "c": 3}, grading.Outcome{2, 5, 10, false}},
		{"all correct", map[string]int{"a": 0, "b": 1, "c": 2, "d": 3, "e": 0}, grading.Outcome{5, 5, 25, true}},
		{"foreign ids ignored", map[string]int{"zz": 0, "a": 0}, grading.Outcome{1, 5, 5, false}},
		{"out of range answer", map[string]int{"a": 9, "b": -1}, grading.Outcome{0, 5, 0, false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := grading.Score(qs, tc.answers, settings)
			if got != tc.want {
				t.Fatalf("Score = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestScoreZeroPassingAlwaysPasses(t *testing.T) {
	got := grading.Score(questions(3), nil, exam.Settings{PointsPerAnswer: 2})
	if !got.IsPassed || got.Score != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestScoreIgnoresQuestionOrder(t *testing.T) {
	qs := questions(4)
	answers := map[string]int{"a": 0, "b": 2, "d": 3}
	s := exam.Settings{PointsPerAnswer: 3, PassingScore: 6}
	want := grading.Score(qs, answers, s)
	reversed := []exam.Question{qs[3], qs[2], qs[1], qs[0]}
	if got := grading.Score(reversed, answers, s); got != want {
		t.Fatalf("reordered = %+v, want %+v", got, want)
	}
}

func TestCorrect(t *testing.T) {
	q := exam.Question{Options: []string{"x", "y"}, CorrectIndex: 1}
	if !grading.Correct(q, 1) || grading.Correct(q, 0) || grading.Correct(q, 2) {
		t.Fatalf("Correct misclassified")
	}
}
