package session

import (
	"errors"
	"time"

	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/grading"
	"github.com/mind-engage/examroom/internal/selection"
)

type State string

const (
	Idle          State = "idle"
	EligibleCheck State = "eligible_check"
	Drawing       State = "drawing"
	InProgress    State = "in_progress"
	Completing    State = "completing"
	Scored        State = "scored"
	Blocked       State = "blocked"
	Aborted       State = "aborted"
)

// Trigger says how a session was completed.
type Trigger string

const (
	Manual  Trigger = "manual"
	Timeout Trigger = "timeout"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotInProgress   = errors.New("session is not in progress")
	ErrTimeUp          = errors.New("session time is up")
	ErrInvalidAnswer   = errors.New("invalid answer")
)

// Submission is what the controller hands to the result collaborator.
// Answers are keyed by question id and hold indices into the authored option
// order. Module and Questions are the catalog data the session started with,
// questions in authored order; the receiver scores against them, so a catalog
// replaced while the session ran does not change its outcome.
type Submission struct {
	SessionID        string          `json:"sessionId"`
	ParticipantID    string          `json:"participantId"`
	GroupID          string          `json:"groupId"`
	ModuleID         string          `json:"moduleId"`
	QuestionIDs      []string        `json:"questionIds"`
	Answers          map[string]int  `json:"answers"`
	TimeTakenSeconds int             `json:"timeTakenSeconds"`
	CompletedAt      time.Time       `json:"completedAt"`
	Trigger          Trigger         `json:"trigger"`
	Module           exam.Module     `json:"module"`
	Questions        []exam.Question `json:"questions"`
}

// Session is one participant's run through a module. Its fields are guarded
// by the controller.
type Session struct {
	ID          string
	Participant exam.Participant
	Module      exam.Module
	Questions   []selection.Presented
	Answers     map[string]int // displayed option index per question id
	StartedAt   time.Time
	Deadline    time.Time
	State       State
	CompletedAt time.Time // set at first completion, reused on retries
	Trigger     Trigger
	Result      *exam.TestResult
	LastError   string
	Outcome     *grading.Outcome // participant-side score of the displayed questions

	countdown *Countdown
}

// QuestionView never carries the correct index.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// View is the participant-facing state of a session.
type View struct {
	ID               string           `json:"id"`
	ModuleID         string           `json:"moduleId"`
	ModuleName       string           `json:"moduleName"`
	Practice         bool             `json:"practice"`
	State            State            `json:"state"`
	Questions        []QuestionView   `json:"questions"`
	Answers          map[string]int   `json:"answers"`
	StartedAt        time.Time        `json:"startedAt"`
	Deadline         time.Time        `json:"deadline"`
	RemainingSeconds int              `json:"remainingSeconds"`
	Result           *exam.TestResult `json:"result,omitempty"`
	Error            string           `json:"error,omitempty"`
	Retryable        bool             `json:"retryable,omitempty"`
}

func (s *Session) view(now time.Time) View {
	v := View{
		ID:         s.ID,
		ModuleID:   s.Module.ID,
		ModuleName: s.Module.Name,
		Practice:   s.Module.IsPractice(),
		State:      s.State,
		Questions:  make([]QuestionView, len(s.Questions)),
		Answers:    make(map[string]int, len(s.Answers)),
		StartedAt:  s.StartedAt,
		Deadline:   s.Deadline,
		Result:     s.Result,
		Error:      s.LastError,
	}
	for i, p := range s.Questions {
		v.Questions[i] = QuestionView{
			ID:      p.Question.ID,
			Text:    p.Question.Text,
			Options: append([]string(nil), p.Question.Options...),
		}
	}
	for k, a := range s.Answers {
		v.Answers[k] = a
	}
	if s.State == InProgress {
		v.RemainingSeconds = remaining(s.Deadline, now)
	}
	v.Retryable = s.State == InProgress && s.LastError != ""
	return v
}

func (s *Session) presented(questionID string) (selection.Presented, bool) {
	for _, p := range s.Questions {
		if p.Question.ID == questionID {
			return p, true
		}
	}
	return selection.Presented{}, false
}

// submission translates the displayed answers back to authored indices.
func (s *Session) submission() Submission {
	sub := Submission{
		SessionID:     s.ID,
		ParticipantID: s.Participant.ID,
		GroupID:       s.Participant.GroupID,
		ModuleID:      s.Module.ID,
		QuestionIDs:   make([]string, len(s.Questions)),
		Answers:       make(map[string]int, len(s.Answers)),
		CompletedAt:   s.CompletedAt,
		Trigger:       s.Trigger,
		Module:        s.Module,
		Questions:     make([]exam.Question, len(s.Questions)),
	}
	for i, p := range s.Questions {
		sub.QuestionIDs[i] = p.Question.ID
		sub.Questions[i] = p.Authored()
		if shown, ok := s.Answers[p.Question.ID]; ok {
			if orig, ok := p.OriginalIndex(shown); ok {
				sub.Answers[p.Question.ID] = orig
			}
		}
	}
	taken := s.CompletedAt.Sub(s.StartedAt)
	if limit := s.Module.Settings.Duration(); taken > limit {
		taken = limit
	}
	if taken < 0 {
		taken = 0
	}
	sub.TimeTakenSeconds = int(taken / time.Second)
	return sub
}
