package results_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mind-engage/examroom/internal/db"
	"github.com/mind-engage/examroom/internal/event"
	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/results"
	"github.com/mind-engage/examroom/internal/selection"
	"github.com/mind-engage/examroom/internal/session"
	syncx "github.com/mind-engage/examroom/internal/sync"
)

var at = time.Date(2024, 3, 4, 10, 30, 0, 123456789, time.UTC)

func testCatalog() exam.Catalog {
	opts := []string{"a", "b", "c", "d"}
	return exam.Catalog{
		Groups:   []exam.Group{{ID: "g1"}},
		Subjects: []exam.Subject{{ID: "s1"}, {ID: "s2"}},
		Modules: []exam.Module{
			{ID: "m1", Kind: exam.KindGraded, GroupIDs: []string{"g1"},
				SubjectConfigs: []exam.SubjectConfig{{SubjectID: "s1", QuestionCount: 2}},
				Settings:       exam.Settings{PointsPerAnswer: 5, DurationMinutes: 10, PassingScore: 10, IsActive: true}},
			{ID: "demo", Kind: exam.KindPractice, GroupIDs: []string{"g1"},
				SubjectConfigs: []exam.SubjectConfig{{SubjectID: "s1", QuestionCount: 2}},
				Settings:       exam.Settings{PointsPerAnswer: 5, DurationMinutes: 8, PassingScore: 10, IsActive: true}},
		},
		Questions: []exam.Question{
			{ID: "q1", SubjectID: "s1", Options: opts, CorrectIndex: 1},
			{ID: "q2", SubjectID: "s1", Options: opts, CorrectIndex: 2},
			{ID: "x1", SubjectID: "s2", Options: opts, CorrectIndex: 0},
		},
	}
}

func memStore(t *testing.T) *exam.MemoryStore {
	t.Helper()
	s := exam.NewInMemoryStore()
	if err := s.PutCatalog(context.Background(), testCatalog()); err != nil {
		t.Fatal(err)
	}
	return s
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("r%d", n.Add(1)) }
}

func submission(module string, answers map[string]int) session.Submission {
	return session.Submission{
		SessionID:        "s-1",
		ParticipantID:    "x",
		GroupID:          "g1",
		ModuleID:         module,
		QuestionIDs:      []string{"q1", "q2"},
		Answers:          answers,
		TimeTakenSeconds: 95,
		CompletedAt:      at,
		Trigger:          session.Manual,
	}
}

func TestSubmitScoresAgainstStoredQuestions(t *testing.T) {
	s := memStore(t)
	pub := &event.Recorder{}
	rec := results.NewRecorder(s, s, results.WithPublisher(pub), results.WithIDGenerator(sequentialIDs()))

	// q1 right, q2 wrong
	res, err := rec.Submit(context.Background(), submission("m1", map[string]int{"q1": 1, "q2": 0}))
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != "r1" || res.CorrectAnswers != 1 || res.TotalQuestions != 2 || res.Score != 5 || res.IsPassed {
		t.Fatalf("result = %+v", res)
	}
	if res.GroupID != "g1" || *res.TimeTaken != 95 || !res.Date.Equal(exam.ResultDate(at)) {
		t.Fatalf("metadata = %+v", res)
	}
	if got := pub.Types(); len(got) != 1 || got[0] != event.ResultRecorded {
		t.Fatalf("events = %v", got)
	}
}

func TestSubmitRetryReturnsStoredResult(t *testing.T) {
	s := memStore(t)
	pub := &event.Recorder{}
	rec := results.NewRecorder(s, s, results.WithPublisher(pub), results.WithIDGenerator(sequentialIDs()))
	sub := submission("m1", map[string]int{"q1": 1, "q2": 2})

	first, err := rec.Submit(context.Background(), sub)
	if err != nil {
		t.Fatal(err)
	}
	again, err := rec.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if again.ID != first.ID || again.Score != 10 || !again.IsPassed {
		t.Fatalf("retry = %+v, first %+v", again, first)
	}
	rs, _ := s.ListResults(context.Background(), exam.ResultFilter{ParticipantID: "x"})
	if len(rs) != 1 || len(pub.Types()) != 1 {
		t.Fatalf("stored %d results, %d events", len(rs), len(pub.Types()))
	}
}

func TestSubmitGradedAfterOtherResult(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	if _, _, err := s.InsertResult(ctx, exam.TestResult{ID: "old", ParticipantID: "x", ModuleID: "m1", Date: at.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}
	rec := results.NewRecorder(s, s)
	_, err := rec.Submit(ctx, submission("m1", nil))
	if !errors.Is(err, exam.ErrAlreadyAttempted) {
		t.Fatalf("err = %v, want ErrAlreadyAttempted", err)
	}
}

func TestSubmitPracticeAppends(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	rec := results.NewRecorder(s, s, results.WithIDGenerator(sequentialIDs()))
	for i := 0; i < 3; i++ {
		sub := submission("demo", map[string]int{"q1": 1})
		sub.CompletedAt = at.Add(time.Duration(i) * time.Minute)
		if _, err := rec.Submit(ctx, sub); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	rs, _ := s.ListResults(ctx, exam.ResultFilter{ParticipantID: "x", ModuleID: "demo"})
	if len(rs) != 3 {
		t.Fatalf("practice results = %d", len(rs))
	}
}

func TestSubmitRejectsBadQuestionSets(t *testing.T) {
	s := memStore(t)
	rec := results.NewRecorder(s, s)
	cases := []struct {
		name   string
		module string
		ids    []string
		want   error
	}{
		{"empty", "m1", nil, results.ErrInvalidSubmission},
		{"repeated", "m1", []string{"q1", "q1"}, results.ErrInvalidSubmission},
		{"foreign subject", "m1", []string{"q1", "x1"}, results.ErrInvalidSubmission},
		{"missing", "m1", []string{"q1", "q9"}, exam.ErrQuestionNotFound},
		{"unknown module", "m9", []string{"q1"}, exam.ErrModuleNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := submission(tc.module, nil)
			sub.QuestionIDs = tc.ids
			if _, err := rec.Submit(context.Background(), sub); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

// An answer given in shuffled order and translated back scores the same as
// the authored answer.
func TestShuffledAnswerScoresLikeAuthored(t *testing.T) {
	s := memStore(t)
	rec := results.NewRecorder(s, s, results.WithIDGenerator(sequentialIDs()))
	sel := selection.New(selection.NewSource(5))
	qs, _ := s.Questions(context.Background(), []string{"q1", "q2"})

	answers := map[string]int{}
	for _, q := range qs {
		p := sel.Shuffle(q)
		shown := -1
		for i, o := range p.Question.Options {
			if o == q.Options[q.CorrectIndex] {
				shown = i
			}
		}
		orig, ok := p.OriginalIndex(shown)
		if !ok || orig != q.CorrectIndex {
			t.Fatalf("%s: shown %d maps to %d", q.ID, shown, orig)
		}
		answers[q.ID] = orig
	}
	res, err := rec.Submit(context.Background(), submission("m1", answers))
	if err != nil || res.Score != 10 || !res.IsPassed {
		t.Fatalf("result = %+v, %v", res, err)
	}
}

func TestJournalIsWrittenWithResult(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:recorder_journal?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	store := exam.NewSQLStore(conn, string(db.DriverSQLite))
	if err := store.PutCatalog(ctx, testCatalog()); err != nil {
		t.Fatal(err)
	}
	journal := syncx.NewEventRepo(conn, "site-a")
	rec := results.NewRecorder(store, store, results.WithJournal(journal), results.WithIDGenerator(sequentialIDs()))

	sub := submission("m1", map[string]int{"q1": 1, "q2": 2})
	res, err := rec.Submit(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Submit(ctx, sub); err != nil {
		t.Fatalf("retry: %v", err)
	}
	evs, err := journal.Since(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Type != syncx.TestResultRecorded || evs[0].Key != res.ID || evs[0].SiteID != "site-a" {
		t.Fatalf("journal = %+v", evs)
	}
	stored, err := store.FindResult(ctx, res.ID)
	if err != nil || stored.Score != 10 {
		t.Fatalf("stored = %+v, %v", stored, err)
	}
}

func TestSubmitScoresAgainstSessionSnapshot(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	original := testCatalog()
	// the catalog changes after the session started
	changed := testCatalog()
	changed.Modules[0].Settings.PointsPerAnswer = 1
	changed.Questions = changed.Questions[2:]
	if err := s.PutCatalog(ctx, changed); err != nil {
		t.Fatal(err)
	}
	rec := results.NewRecorder(s, s, results.WithIDGenerator(sequentialIDs()))

	sub := submission("m1", map[string]int{"q1": 1, "q2": 2})
	sub.Module = original.Modules[0]
	sub.Questions = original.Questions[:2]
	res, err := rec.Submit(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	if res.CorrectAnswers != 2 || res.Score != 10 || !res.IsPassed {
		t.Fatalf("result = %+v", res)
	}

	bad := sub
	bad.Module.ID = "demo"
	if _, err := rec.Submit(ctx, bad); !errors.Is(err, results.ErrInvalidSubmission) || !errors.Is(err, exam.ErrSubmissionRejected) {
		t.Fatalf("mismatched module = %v", err)
	}
	foreign := sub
	foreign.Questions = []exam.Question{original.Questions[0], original.Questions[2]}
	if _, err := rec.Submit(ctx, foreign); !errors.Is(err, exam.ErrSubmissionRejected) {
		t.Fatalf("foreign subject = %v", err)
	}
}
