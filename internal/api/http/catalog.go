package http

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/rbac"
	syncx "github.com/mind-engage/examroom/internal/sync"
)

// PUT /admin/catalog replaces the whole catalog with the posted snapshot.
// journal may be nil.
func PutCatalogHandler(catalog exam.CatalogStore, optionCount int, journal *syncx.EventRepo, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c exam.Catalog
		if err := decode(r, &c); err != nil {
			writeError(w, err)
			return
		}
		if err := c.Validate(optionCount); err != nil {
			writeError(w, err)
			return
		}
		if err := catalog.PutCatalog(r.Context(), c); err != nil {
			writeError(w, err)
			return
		}
		counts := map[string]int{
			"groups":    len(c.Groups),
			"subjects":  len(c.Subjects),
			"modules":   len(c.Modules),
			"questions": len(c.Questions),
		}
		if journal != nil {
			ev, err := syncx.NewEvent(syncx.CatalogReplaced, "catalog", counts)
			if err == nil {
				err = journal.Append(r.Context(), nil, ev)
			}
			if err != nil {
				log.Warn("journal catalog replace", zap.Error(err))
			}
		}
		log.Info("catalog replaced",
			zap.Int("modules", len(c.Modules)),
			zap.Int("questions", len(c.Questions)))
		writeJSON(w, http.StatusOK, counts)
	}
}

// GET /snapshot. Roles with results:view-all get the full catalog.
// Participants get their group, its active modules and their subjects;
// questions are only ever served through a session.
func SnapshotHandler(catalog exam.CatalogStore, checker *rbac.Checker) http.HandlerFunc {
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
		if checker.Has(string(p.Role), rbac.PermResultsViewAll) {
			writeJSON(w, http.StatusOK, c)
			return
		}
		writeJSON(w, http.StatusOK, scopeToGroup(c, p.GroupID))
	}
}

func scopeToGroup(c exam.Catalog, groupID string) exam.Catalog {
	out := exam.Catalog{Groups: []exam.Group{}, Subjects: []exam.Subject{}, Modules: []exam.Module{}, Questions: []exam.Question{}}
	for _, g := range c.Groups {
		if g.ID == groupID {
			out.Groups = append(out.Groups, g)
		}
	}
	subjects := map[string]bool{}
	for _, m := range c.Modules {
		if m.Settings.IsActive && m.AssignedTo(groupID) {
			out.Modules = append(out.Modules, m)
			for _, id := range m.SubjectIDs() {
				subjects[id] = true
			}
		}
	}
	for _, s := range c.Subjects {
		if subjects[s.ID] {
			out.Subjects = append(out.Subjects, s)
		}
	}
	return out
}

// GET /sync/events?after=0&limit=100
func EventsSinceHandler(journal *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		evs, err := journal.Since(r.Context(), after, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, evs)
	}
}
