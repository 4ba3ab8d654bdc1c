// Package results is the server side of session submission: it re-scores the
// submitted answers against the stored questions and records the result.
package results

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/examroom/internal/event"
	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/grading"
	"github.com/mind-engage/examroom/internal/session"
	syncx "github.com/mind-engage/examroom/internal/sync"
)

// ErrInvalidSubmission is an exam.ErrSubmissionRejected; retrying it fails
// the same way.
var ErrInvalidSubmission = fmt.Errorf("%w: invalid submission", exam.ErrSubmissionRejected)

// TxInserter is implemented by stores that can run extra writes in the
// transaction that inserts a result. exam.SQLStore implements it.
type TxInserter interface {
	InsertResultTx(ctx context.Context, r exam.TestResult, after func(ctx context.Context, tx *sql.Tx, stored exam.TestResult) error) (exam.TestResult, bool, error)
}

type Option func(*Recorder)

// WithJournal appends a TestResultRecorded event with every new result.
func WithJournal(j *syncx.EventRepo) Option { return func(r *Recorder) { r.journal = j } }
func WithPublisher(p event.Publisher) Option { return func(r *Recorder) { r.events = p } }
func WithLogger(l *zap.Logger) Option { return func(r *Recorder) { r.log = l } }
func WithIDGenerator(f func() string) Option {
	return func(r *Recorder) { r.newID = f }
}

type Recorder struct {
	catalog exam.CatalogStore
	results exam.ResultStore
	journal *syncx.EventRepo
	events  event.Publisher
	log     *zap.Logger
	newID   func() string
}

func NewRecorder(catalog exam.CatalogStore, results exam.ResultStore, opts ...Option) *Recorder {
	r := &Recorder{
		catalog: catalog,
		results: results,
		events:  event.Discard,
		log:     zap.NewNop(),
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Submit scores sub and stores the result. A retry carrying the same
// completion date returns the result stored by the first call. For graded
// modules any other existing result is ErrAlreadyAttempted.
func (r *Recorder) Submit(ctx context.Context, sub session.Submission) (exam.TestResult, error) {
	m, qs, err := r.inputs(ctx, sub)
	if err != nil {
		return exam.TestResult{}, err
	}
	out := grading.Score(qs, sub.Answers, m.Settings)
	date := exam.ResultDate(sub.CompletedAt)

	if !m.IsPractice() {
		existing, err := r.results.ListResults(ctx, exam.ResultFilter{ParticipantID: sub.ParticipantID, ModuleID: m.ID})
		if err != nil {
			return exam.TestResult{}, err
		}
		for _, e := range existing {
			if e.Date.Equal(date) {
				return e, nil
			}
		}
		if len(existing) > 0 {
			return exam.TestResult{}, fmt.Errorf("participant %s module %s: %w", sub.ParticipantID, m.ID, exam.ErrAlreadyAttempted)
		}
	}

	taken := sub.TimeTakenSeconds
	res := exam.TestResult{
		ID:             r.newID(),
		ParticipantID:  sub.ParticipantID,
		ModuleID:       m.ID,
		GroupID:        sub.GroupID,
		CorrectAnswers: out.CorrectAnswers,
		TotalQuestions: out.TotalQuestions,
		Score:          out.Score,
		IsPassed:       out.IsPassed,
		Date:           date,
		TimeTaken:      &taken,
	}
	stored, inserted, err := r.insert(ctx, res)
	if err != nil {
		return exam.TestResult{}, err
	}
	if !inserted {
		return stored, nil
	}
	r.log.Info("result recorded",
		zap.String("result", stored.ID),
		zap.String("participant", stored.ParticipantID),
		zap.String("module", stored.ModuleID),
		zap.String("trigger", string(sub.Trigger)),
		zap.Int("score", stored.Score),
		zap.Bool("passed", stored.IsPassed))
	if err := r.events.Publish(ctx, event.ResultRecorded, stored); err != nil {
		r.log.Warn("publish result", zap.String("result", stored.ID), zap.Error(err))
	}
	return stored, nil
}

// inputs returns the module and questions to score against. A submission
// from the controller carries the data its session started with; otherwise
// both are loaded from the catalog.
func (r *Recorder) inputs(ctx context.Context, sub session.Submission) (exam.Module, []exam.Question, error) {
	if len(sub.Questions) > 0 {
		m := sub.Module
		if m.ID != sub.ModuleID {
			return exam.Module{}, nil, fmt.Errorf("%w: module %q does not match %q", ErrInvalidSubmission, m.ID, sub.ModuleID)
		}
		if err := m.Runnable(); err != nil {
			return exam.Module{}, nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
		}
		for _, q := range sub.Questions {
			if !q.Valid() {
				return exam.Module{}, nil, fmt.Errorf("%w: question %s is malformed", ErrInvalidSubmission, q.ID)
			}
		}
		qs, err := checkQuestions(m, sub.Questions)
		return m, qs, err
	}

	m, err := r.catalog.GetModule(ctx, sub.ModuleID)
	if err != nil {
		return exam.Module{}, nil, err
	}
	if len(sub.QuestionIDs) == 0 {
		return exam.Module{}, nil, fmt.Errorf("%w: no questions", ErrInvalidSubmission)
	}
	seen := make(map[string]bool, len(sub.QuestionIDs))
	for _, id := range sub.QuestionIDs {
		if seen[id] {
			return exam.Module{}, nil, fmt.Errorf("%w: question %s repeated", ErrInvalidSubmission, id)
		}
		seen[id] = true
	}
	qs, err := r.catalog.Questions(ctx, sub.QuestionIDs)
	if err != nil {
		return exam.Module{}, nil, err
	}
	if len(qs) != len(sub.QuestionIDs) {
		return exam.Module{}, nil, fmt.Errorf("%w: %d of %d questions", exam.ErrQuestionNotFound, len(qs), len(sub.QuestionIDs))
	}
	qs, err = checkQuestions(m, qs)
	return m, qs, err
}

// checkQuestions rejects an empty or repeated question set and questions
// outside m's subjects.
func checkQuestions(m exam.Module, qs []exam.Question) ([]exam.Question, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrInvalidSubmission)
	}
	subjects := make(map[string]bool, len(m.SubjectConfigs))
	for _, id := range m.SubjectIDs() {
		subjects[id] = true
	}
	seen := make(map[string]bool, len(qs))
	for _, q := range qs {
		if seen[q.ID] {
			return nil, fmt.Errorf("%w: question %s repeated", ErrInvalidSubmission, q.ID)
		}
		seen[q.ID] = true
		if !subjects[q.SubjectID] {
			return nil, fmt.Errorf("%w: question %s is not part of module %s", ErrInvalidSubmission, q.ID, m.ID)
		}
	}
	return qs, nil
}

func (r *Recorder) insert(ctx context.Context, res exam.TestResult) (exam.TestResult, bool, error) {
	txs, ok := r.results.(TxInserter)
	if !ok || r.journal == nil {
		return r.results.InsertResult(ctx, res)
	}
	return txs.InsertResultTx(ctx, res, func(ctx context.Context, tx *sql.Tx, stored exam.TestResult) error {
		ev, err := syncx.NewEvent(syncx.TestResultRecorded, stored.ID, stored)
		if err != nil {
			return err
		}
		return r.journal.Append(ctx, tx, ev)
	})
}
