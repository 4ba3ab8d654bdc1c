// Package session runs timed assessment sessions: it checks eligibility, draws
// questions, keeps the countdown and hands completed answers to the result
// collaborator.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/examroom/internal/clock"
	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/grading"
	"github.com/mind-engage/examroom/internal/selection"
)

// Gate decides whether a participant may start a module. attempt.Guard
// implements it.
type Gate interface {
	CheckStart(ctx context.Context, p exam.Participant, m exam.Module) error
}

// Submitter persists a completed session and returns the stored result.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (exam.TestResult, error)
}

// Observer receives lifecycle notifications; metrics.Collector implements it.
type Observer interface {
	SessionStarted(kind exam.Kind)
	SessionCompleted(kind exam.Kind, trigger Trigger, passed bool)
	SessionAbandoned(kind exam.Kind)
	StartBlocked(reason string)
	SubmissionFailed()
	ActiveSessions(n int)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(exam.Kind) {}
func (nopObserver) SessionCompleted(exam.Kind, Trigger, bool) {}
func (nopObserver) SessionAbandoned(exam.Kind) {}
func (nopObserver) StartBlocked(string) {}
func (nopObserver) SubmissionFailed() {}
func (nopObserver) ActiveSessions(int) {}

type Option func(*Controller)

func WithObserver(o Observer) Option { return func(c *Controller) { c.obs = o } }
func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.log = l } }
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *Controller) { c.submitTimeout = d }
}
func WithIDGenerator(f func() string) Option { return func(c *Controller) { c.newID = f } }

// Controller owns every live session. At most one session per participant is
// active at a time.
type Controller struct {
	catalog   exam.CatalogStore
	gate      Gate
	selector  *selection.Selector
	submitter Submitter
	clk       clock.Clock

	obs           Observer
	log           *zap.Logger
	submitTimeout time.Duration
	newID         func() string

	mu            sync.Mutex
	sessions      map[string]*entry
	byParticipant map[string]string // participant id -> session id, "" while starting
}

type entry struct {
	mu sync.Mutex // held for the whole of a submission
	s  *Session
}

func NewController(catalog exam.CatalogStore, gate Gate, selector *selection.Selector, submitter Submitter, clk clock.Clock, opts ...Option) *Controller {
	c := &Controller{
		catalog:       catalog,
		gate:          gate,
		selector:      selector,
		submitter:     submitter,
		clk:           clk,
		obs:           nopObserver{},
		log:           zap.NewNop(),
		submitTimeout: 15 * time.Second,
		newID:         uuid.NewString,
		sessions:      map[string]*entry{},
		byParticipant: map[string]string{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start runs the eligibility check and the draw, then opens the session and
// its countdown. Nothing is created when either step fails.
func (c *Controller) Start(ctx context.Context, p exam.Participant, moduleID string) (View, error) {
	c.mu.Lock()
	if _, busy := c.byParticipant[p.ID]; busy {
		c.mu.Unlock()
		return View{}, exam.ErrSessionInProgress
	}
	c.byParticipant[p.ID] = ""
	c.mu.Unlock()

	s, err := c.open(ctx, p, moduleID)
	if err != nil {
		c.mu.Lock()
		delete(c.byParticipant, p.ID)
		c.mu.Unlock()
		c.obs.StartBlocked(blockReason(err))
		c.log.Info("session start refused",
			zap.String("participant", p.ID),
			zap.String("module", moduleID),
			zap.Error(err))
		return View{}, err
	}

	e := &entry{s: s}
	e.mu.Lock()
	c.mu.Lock()
	c.sessions[s.ID] = e
	c.byParticipant[p.ID] = s.ID
	active := len(c.sessions)
	c.mu.Unlock()
	s.countdown = c.startCountdown(e, s.Deadline)
	v := s.view(c.clk.Now())
	e.mu.Unlock()

	c.obs.SessionStarted(s.Module.Kind)
	c.obs.ActiveSessions(active)
	c.log.Info("session started",
		zap.String("session", s.ID),
		zap.String("participant", p.ID),
		zap.String("module", s.Module.ID),
		zap.Int("questions", len(s.Questions)),
		zap.Time("deadline", s.Deadline))
	return v, nil
}

func (c *Controller) open(ctx context.Context, p exam.Participant, moduleID string) (*Session, error) {
	m, err := c.catalog.GetModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if err := m.Runnable(); err != nil {
		return nil, err
	}
	// EligibleCheck
	if err := c.gate.CheckStart(ctx, p, m); err != nil {
		return nil, err
	}
	// Drawing
	pool, err := c.catalog.SubjectPool(ctx, m.SubjectIDs())
	if err != nil {
		return nil, fmt.Errorf("load question pool: %w", err)
	}
	qs, err := c.selector.Prepare(m, pool)
	if err != nil {
		return nil, err
	}
	now := c.clk.Now()
	return &Session{
		ID:          c.newID(),
		Participant: p,
		Module:      m,
		Questions:   qs,
		Answers:     map[string]int{},
		StartedAt:   now,
		Deadline:    now.Add(m.Settings.Duration()),
		State:       InProgress,
	}, nil
}

func (c *Controller) startCountdown(e *entry, deadline time.Time) *Countdown {
	var cd *Countdown
	cd = StartCountdown(c.clk, deadline, nil, func() { c.expire(e, cd) })
	return cd
}

// expire is the countdown's zero callback. It is a no-op if the session
// already left InProgress or the countdown was replaced.
func (c *Controller) expire(e *entry, cd *Countdown) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.s
	if s.State != InProgress || s.countdown != cd {
		return
	}
	if s.CompletedAt.IsZero() {
		s.CompletedAt = s.Deadline
		s.Trigger = Timeout
	}
	if _, err := c.complete(context.Background(), s); err != nil {
		c.log.Warn("auto submission failed", zap.String("session", s.ID), zap.Error(err))
	}
}

// RecordAnswer stores the displayed option index for one question. A later
// answer for the same question replaces the earlier one.
func (c *Controller) RecordAnswer(participantID, sessionID, questionID string, option int) (View, error) {
	e, err := c.lookup(participantID, sessionID)
	if err != nil {
		return View{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.s
	now := c.clk.Now()
	if s.State != InProgress {
		return View{}, ErrNotInProgress
	}
	if !now.Before(s.Deadline) {
		return View{}, ErrTimeUp
	}
	p, ok := s.presented(questionID)
	if !ok {
		return View{}, fmt.Errorf("%w: question %s is not in this session", ErrInvalidAnswer, questionID)
	}
	if option < 0 || option >= len(p.Question.Options) {
		return View{}, fmt.Errorf("%w: option %d out of range", ErrInvalidAnswer, option)
	}
	s.Answers[questionID] = option
	return s.view(now), nil
}

// Finish completes the session manually, or retries a failed submission.
// When the countdown already completed the session the stored result is
// returned.
func (c *Controller) Finish(ctx context.Context, participantID, sessionID string) (View, error) {
	e, err := c.lookup(participantID, sessionID)
	if err != nil {
		return View{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.s
	switch s.State {
	case Scored:
		return s.view(c.clk.Now()), nil
	case InProgress:
	default:
		return View{}, ErrNotInProgress
	}
	if s.CompletedAt.IsZero() {
		now := c.clk.Now()
		s.Trigger = Manual
		if !now.Before(s.Deadline) {
			now, s.Trigger = s.Deadline, Timeout
		}
		s.CompletedAt = now
	}
	_, err = c.complete(ctx, s)
	return s.view(c.clk.Now()), err
}

// complete submits s. The caller holds the entry lock and has set
// CompletedAt and Trigger.
func (c *Controller) complete(ctx context.Context, s *Session) (exam.TestResult, error) {
	s.State = Completing
	if s.countdown != nil {
		s.countdown.Cancel()
		s.countdown = nil
	}
	local := c.localOutcome(s)
	s.Outcome = &local

	sub := s.submission()
	sctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	res, err := c.submitter.Submit(sctx, sub)
	cancel()

	switch {
	case err == nil:
		s.State = Scored
		s.Result = &res
		s.LastError = ""
		c.discard(s)
		if res.Score != local.Score || res.IsPassed != local.IsPassed {
			c.log.Warn("recorded score differs from session score",
				zap.String("session", s.ID),
				zap.Int("recorded", res.Score),
				zap.Int("local", local.Score))
		}
		c.obs.SessionCompleted(s.Module.Kind, s.Trigger, res.IsPassed)
		c.log.Info("session scored",
			zap.String("session", s.ID),
			zap.String("trigger", string(s.Trigger)),
			zap.Int("score", res.Score),
			zap.Bool("passed", res.IsPassed))
		return res, nil

	case errors.Is(err, exam.ErrAlreadyAttempted):
		s.State = Blocked
		s.LastError = err.Error()
		c.discard(s)
		c.obs.StartBlocked(blockReason(err))
		return exam.TestResult{}, err

	case rejected(err):
		s.State = Aborted
		s.LastError = err.Error()
		c.discard(s)
		c.obs.SubmissionFailed()
		c.log.Error("submission rejected",
			zap.String("session", s.ID),
			zap.String("participant", s.Participant.ID),
			zap.Error(err))
		if !errors.Is(err, exam.ErrSubmissionRejected) {
			err = fmt.Errorf("%w: %w", exam.ErrSubmissionRejected, err)
		}
		return exam.TestResult{}, err

	default:
		s.State = InProgress
		s.LastError = err.Error()
		c.obs.SubmissionFailed()
		if c.clk.Now().Before(s.Deadline) {
			s.countdown = c.resume(s)
		}
		c.log.Warn("submission failed",
			zap.String("session", s.ID),
			zap.Bool("clock_running", s.countdown != nil),
			zap.Error(err))
		return exam.TestResult{}, fmt.Errorf("%w: %v", exam.ErrSubmissionFailed, err)
	}
}

// resume restarts the countdown against the original deadline.
func (c *Controller) resume(s *Session) *Countdown {
	c.mu.Lock()
	e := c.sessions[s.ID]
	c.mu.Unlock()
	if e == nil {
		return nil
	}
	return c.startCountdown(e, s.Deadline)
}

func (c *Controller) localOutcome(s *Session) grading.Outcome {
	qs := make([]exam.Question, len(s.Questions))
	for i, p := range s.Questions {
		qs[i] = p.Question
	}
	return grading.Score(qs, s.Answers, s.Module.Settings)
}

// Abandon cancels the countdown and drops the session without recording
// anything.
func (c *Controller) Abandon(participantID, sessionID string) error {
	e, err := c.lookup(participantID, sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.s
	if s.State != InProgress {
		return ErrNotInProgress
	}
	if s.countdown != nil {
		s.countdown.Cancel()
		s.countdown = nil
	}
	s.State = Aborted
	c.discard(s)
	c.obs.SessionAbandoned(s.Module.Kind)
	c.log.Info("session abandoned", zap.String("session", s.ID), zap.String("participant", participantID))
	return nil
}

func (c *Controller) Get(participantID, sessionID string) (View, error) {
	e, err := c.lookup(participantID, sessionID)
	if err != nil {
		return View{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.view(c.clk.Now()), nil
}

// Active returns the participant's live session, if any.
func (c *Controller) Active(participantID string) (View, bool) {
	c.mu.Lock()
	id := c.byParticipant[participantID]
	c.mu.Unlock()
	if id == "" {
		return View{}, false
	}
	v, err := c.Get(participantID, id)
	return v, err == nil
}

// Shutdown cancels every countdown. Sessions are dropped unrecorded.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	entries := make([]*entry, 0, len(c.sessions))
	for _, e := range c.sessions {
		entries = append(entries, e)
	}
	c.mu.Unlock()
	for _, e := range entries {
		e.mu.Lock()
		if e.s.countdown != nil {
			e.s.countdown.Cancel()
			e.s.countdown = nil
		}
		e.mu.Unlock()
	}
}

func (c *Controller) lookup(participantID, sessionID string) (*entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.sessions[sessionID]
	if !ok || e.s.Participant.ID != participantID {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// discard removes s from the registry. The caller holds the entry lock.
func (c *Controller) discard(s *Session) {
	c.mu.Lock()
	delete(c.sessions, s.ID)
	if c.byParticipant[s.Participant.ID] == s.ID {
		delete(c.byParticipant, s.Participant.ID)
	}
	n := len(c.sessions)
	c.mu.Unlock()
	c.obs.ActiveSessions(n)
}

// rejected reports whether a retry of the same submission cannot succeed.
func rejected(err error) bool {
	return errors.Is(err, exam.ErrSubmissionRejected) ||
		errors.Is(err, exam.ErrModuleNotFound) ||
		errors.Is(err, exam.ErrQuestionNotFound)
}

func blockReason(err error) string {
	switch {
	case errors.Is(err, exam.ErrAlreadyAttempted):
		return "already_attempted"
	case errors.Is(err, exam.ErrEmptyQuestionPool):
		return "empty_pool"
	case errors.Is(err, exam.ErrModuleInactive):
		return "inactive"
	case errors.Is(err, exam.ErrNotAssigned):
		return "not_assigned"
	case errors.Is(err, exam.ErrMalformedModuleConfig):
		return "malformed_config"
	case errors.Is(err, exam.ErrModuleNotFound):
		return "not_found"
	default:
		return "error"
	}
}
