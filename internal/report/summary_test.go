package report

import (
	"reflect"
	"testing"
	"time"

	"github.com/mind-engage/examroom/internal/exam"
)

func TestSummarize(t *testing.T) {
	jan := time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC)
	results := []exam.TestResult{
		{ModuleID: "m1", GroupID: "g1", Score: 20, IsPassed: true, Date: jan},
		{ModuleID: "m1", GroupID: "g1", Score: 5, IsPassed: false, Date: feb},
		{ModuleID: "m2", GroupID: "g2", Score: 10, IsPassed: true, Date: feb},
		{ModuleID: "m2", Score: 0, IsPassed: false, Date: feb},
	}
	cat := exam.Catalog{
		Groups:  []exam.Group{{ID: "g1", Name: "Tasviriy San'at - 2024-01"}, {ID: "g2", Name: "B"}},
		Modules: []exam.Module{{ID: "m1", Name: "Final"}, {ID: "m2", Name: "Demo"}},
	}
	s := Summarize(results, cat)

	if s.Total != 4 || s.Passed != 2 || s.Failed != 2 {
		t.Fatalf("totals = %+v", s)
	}
	wantGroups := []GroupRow{
		{GroupID: "g1", Name: "Tasviriy San'at - 2024-01", Counts: Counts{Passed: 1, Failed: 1}},
		{GroupID: "g2", Name: "B", Counts: Counts{Passed: 1}},
	}
	if !reflect.DeepEqual(s.ByGroup, wantGroups) {
		t.Fatalf("by group = %+v", s.ByGroup)
	}
	wantMonths := []MonthRow{
		{Month: "2024-01", Counts: Counts{Passed: 1}},
		{Month: "2024-02", Counts: Counts{Passed: 1, Failed: 2}},
	}
	if !reflect.DeepEqual(s.ByMonth, wantMonths) {
		t.Fatalf("by month = %+v", s.ByMonth)
	}
	wantModules := []ModuleRow{
		{ModuleID: "m1", Name: "Final", Attempts: 2, AverageScore: 12.5},
		{ModuleID: "m2", Name: "Demo", Attempts: 2, AverageScore: 5},
	}
	if !reflect.DeepEqual(s.ByModule, wantModules) {
		t.Fatalf("by module = %+v", s.ByModule)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, exam.Catalog{})
	if s.Total != 0 || len(s.ByGroup) != 0 || s.ByMonth == nil {
		t.Fatalf("empty summary = %+v", s)
	}
}
