// Package report aggregates stored results for the monitoring view.
package report

import (
	"sort"

	"github.com/mind-engage/examroom/internal/exam"
)

type Counts struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

func (c *Counts) add(passed bool) {
	if passed {
		c.Passed++
	} else {
		c.Failed++
	}
}

type GroupRow struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
	Counts
}

type MonthRow struct {
	Month string `json:"month"` // YYYY-MM, UTC
	Counts
}

type ModuleRow struct {
	ModuleID     string  `json:"moduleId"`
	Name         string  `json:"name"`
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"averageScore"`
}

type Summary struct {
	Counts
	Total    int         `json:"total"`
	ByGroup  []GroupRow  `json:"byGroup"`
	ByMonth  []MonthRow  `json:"byMonth"`
	ByModule []ModuleRow `json:"byModule"`
}

// Summarize counts passed and failed results overall, per group and per month,
// and averages scores per module. Results without a group are left out of
// ByGroup. Rows are sorted by key.
func Summarize(results []exam.TestResult, c exam.Catalog) Summary {
	groupNames := map[string]string{}
	for _, g := range c.Groups {
		groupNames[g.ID] = g.Name
	}
	moduleNames := map[string]string{}
	for _, m := range c.Modules {
		moduleNames[m.ID] = m.Name
	}

	var s Summary
	groups := map[string]*GroupRow{}
	months := map[string]*MonthRow{}
	modules := map[string]*ModuleRow{}
	sums := map[string]int{}
	for _, r := range results {
		s.Total++
		s.Counts.add(r.IsPassed)

		if r.GroupID != "" {
			g := groups[r.GroupID]
			if g == nil {
				g = &GroupRow{GroupID: r.GroupID, Name: groupNames[r.GroupID]}
				groups[r.GroupID] = g
			}
			g.add(r.IsPassed)
		}

		key := r.Date.UTC().Format("2006-01")
		mo := months[key]
		if mo == nil {
			mo = &MonthRow{Month: key}
			months[key] = mo
		}
		mo.add(r.IsPassed)

		md := modules[r.ModuleID]
		if md == nil {
			md = &ModuleRow{ModuleID: r.ModuleID, Name: moduleNames[r.ModuleID]}
			modules[r.ModuleID] = md
		}
		md.Attempts++
		sums[r.ModuleID] += r.Score
	}

	s.ByGroup = make([]GroupRow, 0, len(groups))
	for _, g := range groups {
		s.ByGroup = append(s.ByGroup, *g)
	}
	sort.Slice(s.ByGroup, func(i, j int) bool { return s.ByGroup[i].GroupID < s.ByGroup[j].GroupID })

	s.ByMonth = make([]MonthRow, 0, len(months))
	for _, m := range months {
		s.ByMonth = append(s.ByMonth, *m)
	}
	sort.Slice(s.ByMonth, func(i, j int) bool { return s.ByMonth[i].Month < s.ByMonth[j].Month })

	s.ByModule = make([]ModuleRow, 0, len(modules))
	for id, m := range modules {
		m.AverageScore = float64(sums[id]) / float64(m.Attempts)
		s.ByModule = append(s.ByModule, *m)
	}
	sort.Slice(s.ByModule, func(i, j int) bool { return s.ByModule[i].ModuleID < s.ByModule[j].ModuleID })
	return s
}
