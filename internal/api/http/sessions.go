package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/examroom/internal/auth/middleware"
	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/session"
)

// Sessions is the part of session.Controller the handlers use.
type Sessions interface {
	Start(ctx context.Context, p exam.Participant, moduleID string) (session.View, error)
	RecordAnswer(participantID, sessionID, questionID string, option int) (session.View, error)
	Finish(ctx context.Context, participantID, sessionID string) (session.View, error)
	Abandon(participantID, sessionID string) error
	Get(participantID, sessionID string) (session.View, error)
	Active(participantID string) (session.View, bool)
}

func participant(w http.ResponseWriter, r *http.Request) (exam.Participant, bool) {
	p, ok := auth.ParticipantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
	return p, ok
}

// POST /sessions  { "moduleId": "..." }
func StartSessionHandler(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participant(w, r)
		if !ok {
			return
		}
		var req struct {
			ModuleID string `json:"moduleId"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.ModuleID == "" {
			http.Error(w, "moduleId required", http.StatusBadRequest)
			return
		}
		v, err := s.Start(r.Context(), p, req.ModuleID)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Location", "/sessions/"+v.ID)
		writeJSON(w, http.StatusCreated, v)
	}
}

func GetSessionHandler(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participant(w, r)
		if !ok {
			return
		}
		v, err := s.Get(p.ID, chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// GET /sessions/active lets a reconnecting client pick up its live session.
func ActiveSessionHandler(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participant(w, r)
		if !ok {
			return
		}
		v, ok := s.Active(p.ID)
		if !ok {
			writeError(w, session.ErrSessionNotFound)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// PUT /sessions/{sessionID}/answers  { "questionId": "...", "option": 2 }
// option is the index in the order the session displayed.
func RecordAnswerHandler(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participant(w, r)
		if !ok {
			return
		}
		var req struct {
			QuestionID string `json:"questionId"`
			Option     *int   `json:"option"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.QuestionID == "" || req.Option == nil {
			http.Error(w, "questionId and option required", http.StatusBadRequest)
			return
		}
		v, err := s.RecordAnswer(p.ID, chi.URLParam(r, "sessionID"), req.QuestionID, *req.Option)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// POST /sessions/{sessionID}/finish also retries a failed submission.
func FinishSessionHandler(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participant(w, r)
		if !ok {
			return
		}
		v, err := s.Finish(r.Context(), p.ID, chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func AbandonSessionHandler(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participant(w, r)
		if !ok {
			return
		}
		if err := s.Abandon(p.ID, chi.URLParam(r, "sessionID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type AvailableTest struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Kind            exam.Kind `json:"kind"`
	DurationMinutes int       `json:"durationMinutes"`
	QuestionCount   int       `json:"questionCount"`
	PassingScore    int       `json:"passingScore"`
	MaxScore        int       `json:"maxScore"`
	AlreadyTaken    bool      `json:"alreadyTaken"`
	Attempts        int       `json:"attempts"`
	Eligible        bool      `json:"eligible"`
}

// GET /tests/available lists the active modules of the caller's group.
// QuestionCount is the configured count; a draw may return fewer.
func AvailableTestsHandler(catalog exam.CatalogStore, guard Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participant(w, r)
		if !ok {
			return
		}
		c, err := catalog.Catalog(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		var mods []exam.Module
		for _, m := range c.Modules {
			if m.Settings.IsActive && m.AssignedTo(p.GroupID) {
				mods = append(mods, m)
			}
		}
		avail, err := guard.Eligibility(r.Context(), p.ID, mods)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]AvailableTest, 0, len(mods))
		for _, m := range mods {
			n := 0
			for _, sc := range m.SubjectConfigs {
				if sc.QuestionCount > 0 {
					n += sc.QuestionCount
				}
			}
			a := avail[m.ID]
			out = append(out, AvailableTest{
				ID:              m.ID,
				Name:            m.Name,
				Kind:            m.Kind,
				DurationMinutes: m.Settings.DurationMinutes,
				QuestionCount:   n,
				PassingScore:    m.Settings.PassingScore,
				MaxScore:        n * m.Settings.PointsPerAnswer,
				AlreadyTaken:    !m.IsPractice() && a.Attempts > 0,
				Attempts:        a.Attempts,
				Eligible:        a.Eligible,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
