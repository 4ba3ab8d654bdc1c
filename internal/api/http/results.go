package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/examroom/internal/attempt"
	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/rbac"
	"github.com/mind-engage/examroom/internal/report"
)

// Guard is the part of attempt.Guard the handlers use.
type Guard interface {
	Eligibility(ctx context.Context, participantID string, modules []exam.Module) (map[string]attempt.Availability, error)
	LatestAttempt(ctx context.Context, participantID, moduleID string) (exam.TestResult, bool, error)
	GroupStatus(ctx context.Context, participantID, groupID string) (attempt.Status, error)
	GrantRestart(ctx context.Context, participantID, moduleID string) (int, error)
	GrantGroupRestart(ctx context.Context, participantID, groupID string) (int, error)
}

func resultFilter(r *http.Request) exam.ResultFilter {
	q := r.URL.Query()
	return exam.ResultFilter{
		ParticipantID: strings.TrimSpace(q.Get("participantId")),
		ModuleID:      strings.TrimSpace(q.Get("moduleId")),
		GroupID:       strings.TrimSpace(q.Get("groupId")),
		Kind:          exam.Kind(q.Get("kind")),
		FailedOnly:    q.Get("failed") == "true",
	}
}

// GET /results?participantId=&moduleId=&groupId=&kind=&failed=true
// Without results:view-all the participant filter is forced to the caller.
func ListResultsHandler(results exam.ResultStore, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participant(w, r)
		if !ok {
			return
		}
		f := resultFilter(r)
		if !checker.Has(string(p.Role), rbac.PermResultsViewAll) {
			f.ParticipantID = p.ID
		}
		list, err := results.ListResults(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /results/latest?moduleId=
func LatestResultHandler(guard Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participant(w, r)
		if !ok {
			return
		}
		moduleID := r.URL.Query().Get("moduleId")
		if moduleID == "" {
			http.Error(w, "moduleId required", http.StatusBadRequest)
			return
		}
		res, found, err := guard.LatestAttempt(r.Context(), p.ID, moduleID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !found {
			writeError(w, exam.ErrResultNotFound)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /admin/restart-grants  { "participantId": "...", "moduleId": "..." }
// or with "groupId" instead of "moduleId" for a group-wide grant.
func RestartGrantHandler(guard Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ParticipantID string `json:"participantId"`
			ModuleID      string `json:"moduleId"`
			GroupID       string `json:"groupId"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.ParticipantID == "" || (req.ModuleID == "") == (req.GroupID == "") {
			http.Error(w, "participantId and exactly one of moduleId, groupId required", http.StatusBadRequest)
			return
		}
		var n int
		var err error
		if req.ModuleID != "" {
			n, err = guard.GrantRestart(r.Context(), req.ParticipantID, req.ModuleID)
		} else {
			n, err = guard.GrantGroupRestart(r.Context(), req.ParticipantID, req.GroupID)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"removed": n})
	}
}

// GET /admin/groups/{groupID}/status?participantId=
func GroupStatusHandler(guard Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := chi.URLParam(r, "groupID")
		pid := r.URL.Query().Get("participantId")
		if pid == "" {
			http.Error(w, "participantId required", http.StatusBadRequest)
			return
		}
		st, err := guard.GroupStatus(r.Context(), pid, groupID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"participantId": pid,
			"groupId":       groupID,
			"status":        string(st),
		})
	}
}

// GET /reports/summary?groupId=&moduleId=&kind=
func ReportSummaryHandler(results exam.ResultStore, catalog exam.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := resultFilter(r)
		f.ParticipantID = ""
		list, err := results.ListResults(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		c, err := catalog.Catalog(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report.Summarize(list, c))
	}
}
