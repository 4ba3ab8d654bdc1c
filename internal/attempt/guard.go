// Package attempt decides whether a participant may start a module and owns
// the administrative restart grants.
package attempt

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mind-engage/examroom/internal/event"
	"github.com/mind-engage/examroom/internal/exam"
)

// ErrRestartNotPermitted is returned by a group grant when the participant's
// status in the group is not Failed.
var ErrRestartNotPermitted = errors.New("restart not permitted")

type Status string

const (
	NotAttempted Status = "not_attempted"
	Passed       Status = "passed"
	Failed       Status = "failed"
)

// classify: no results, any passing, or only failing.
func classify(results []exam.TestResult) Status {
	if len(results) == 0 {
		return NotAttempted
	}
	for _, r := range results {
		if r.IsPassed {
			return Passed
		}
	}
	return Failed
}

type Guard struct {
	results exam.ResultStore
	catalog exam.CatalogStore
	events  event.Publisher
	log     *zap.Logger
}

func NewGuard(results exam.ResultStore, catalog exam.CatalogStore, events event.Publisher, log *zap.Logger) *Guard {
	if events == nil {
		events = event.Discard
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{results: results, catalog: catalog, events: events, log: log}
}

// CheckStart returns nil when p may open a new session on m.
func (g *Guard) CheckStart(ctx context.Context, p exam.Participant, m exam.Module) error {
	if !m.Settings.IsActive {
		return fmt.Errorf("module %s: %w", m.ID, exam.ErrModuleInactive)
	}
	if !m.AssignedTo(p.GroupID) {
		return fmt.Errorf("module %s group %q: %w", m.ID, p.GroupID, exam.ErrNotAssigned)
	}
	ok, err := g.Eligible(ctx, p.ID, m)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("module %s: %w", m.ID, exam.ErrAlreadyAttempted)
	}
	return nil
}

// Eligible applies the attempt rule only: practice modules always, graded
// modules while no result exists for the pair.
func (g *Guard) Eligible(ctx context.Context, participantID string, m exam.Module) (bool, error) {
	if m.IsPractice() {
		return true, nil
	}
	rs, err := g.results.ListResults(ctx, exam.ResultFilter{ParticipantID: participantID, ModuleID: m.ID})
	if err != nil {
		return false, err
	}
	return len(rs) == 0, nil
}

// Availability is one module's attempt state for a participant.
type Availability struct {
	Eligible bool
	Attempts int
}

// Eligibility applies Eligible to every module and counts the stored results,
// all from a single result query.
func (g *Guard) Eligibility(ctx context.Context, participantID string, modules []exam.Module) (map[string]Availability, error) {
	rs, err := g.results.ListResults(ctx, exam.ResultFilter{ParticipantID: participantID})
	if err != nil {
		return nil, err
	}
	attempts := make(map[string]int, len(rs))
	for _, r := range rs {
		attempts[r.ModuleID]++
	}
	out := make(map[string]Availability, len(modules))
	for _, m := range modules {
		n := attempts[m.ID]
		out[m.ID] = Availability{Eligible: m.IsPractice() || n == 0, Attempts: n}
	}
	return out, nil
}

// Attempts counts stored results for the pair.
func (g *Guard) Attempts(ctx context.Context, participantID, moduleID string) (int, error) {
	rs, err := g.results.ListResults(ctx, exam.ResultFilter{ParticipantID: participantID, ModuleID: moduleID})
	return len(rs), err
}

// LatestAttempt returns the chronologically last result for the pair.
func (g *Guard) LatestAttempt(ctx context.Context, participantID, moduleID string) (exam.TestResult, bool, error) {
	rs, err := g.results.ListResults(ctx, exam.ResultFilter{ParticipantID: participantID, ModuleID: moduleID})
	if err != nil || len(rs) == 0 {
		return exam.TestResult{}, false, err
	}
	latest := rs[0]
	for _, r := range rs[1:] {
		if r.Date.After(latest.Date) {
			latest = r
		}
	}
	return latest, true, nil
}

// Status classifies the participant's results for one module.
func (g *Guard) Status(ctx context.Context, participantID, moduleID string) (Status, error) {
	rs, err := g.results.ListResults(ctx, exam.ResultFilter{ParticipantID: participantID, ModuleID: moduleID})
	if err != nil {
		return "", err
	}
	return classify(rs), nil
}

// GroupStatus classifies the results the participant earned under groupID on
// modules in the group's scope.
func (g *Guard) GroupStatus(ctx context.Context, participantID, groupID string) (Status, error) {
	f, err := g.groupFilter(ctx, participantID, groupID)
	if err != nil {
		return "", err
	}
	rs, err := g.results.ListResults(ctx, f)
	if err != nil {
		return "", err
	}
	return classify(rs), nil
}

// GrantRestart removes the pair's failing results. Passing results stay, so a
// passed module remains blocked and the call is a no-op.
func (g *Guard) GrantRestart(ctx context.Context, participantID, moduleID string) (int, error) {
	n, err := g.results.DeleteFailing(ctx, exam.ResultFilter{ParticipantID: participantID, ModuleID: moduleID})
	if err != nil {
		return 0, err
	}
	g.granted(ctx, participantID, "module", moduleID, n)
	return n, nil
}

// GrantGroupRestart removes the participant's failing results under groupID,
// limited to the group's modules when it has any. It requires GroupStatus to
// be Failed.
func (g *Guard) GrantGroupRestart(ctx context.Context, participantID, groupID string) (int, error) {
	f, err := g.groupFilter(ctx, participantID, groupID)
	if err != nil {
		return 0, err
	}
	rs, err := g.results.ListResults(ctx, f)
	if err != nil {
		return 0, err
	}
	if st := classify(rs); st != Failed {
		return 0, fmt.Errorf("participant %s in group %s is %s: %w", participantID, groupID, st, ErrRestartNotPermitted)
	}
	n, err := g.results.DeleteFailing(ctx, f)
	if err != nil {
		return 0, err
	}
	g.granted(ctx, participantID, "group", groupID, n)
	return n, nil
}

func (g *Guard) groupFilter(ctx context.Context, participantID, groupID string) (exam.ResultFilter, error) {
	grp, err := g.catalog.GetGroup(ctx, groupID)
	if err != nil {
		return exam.ResultFilter{}, err
	}
	f := exam.ResultFilter{ParticipantID: participantID, GroupID: groupID}
	if len(grp.ModuleIDs) > 0 {
		f.ModuleIDs = grp.ModuleIDs
	}
	return f, nil
}

// RestartGrant is the restart.granted payload.
type RestartGrant struct {
	ParticipantID string `json:"participantId"`
	Scope         string `json:"scope"` // module | group
	ScopeID       string `json:"scopeId"`
	Removed       int    `json:"removed"`
}

func (g *Guard) granted(ctx context.Context, participantID, scope, scopeID string, removed int) {
	g.log.Info("restart granted",
		zap.String("participant", participantID),
		zap.String("scope", scope),
		zap.String("scope_id", scopeID),
		zap.Int("removed", removed))
	if removed == 0 {
		return
	}
	ev := RestartGrant{ParticipantID: participantID, Scope: scope, ScopeID: scopeID, Removed: removed}
	if err := g.events.Publish(ctx, event.RestartGranted, ev); err != nil {
		g.log.Warn("publish restart grant", zap.Error(err))
	}
}
