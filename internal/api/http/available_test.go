package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mind-engage/examroom/internal/attempt"
	auth "github.com/mind-engage/examroom/internal/auth/middleware"
	"github.com/mind-engage/examroom/internal/exam"
)

// countingResults counts ListResults calls.
type countingResults struct {
	exam.ResultStore
	lists atomic.Int32
}

func (c *countingResults) ListResults(ctx context.Context, f exam.ResultFilter) ([]exam.TestResult, error) {
	c.lists.Add(1)
	return c.ResultStore.ListResults(ctx, f)
}

func TestAvailableTestsUsesOneResultQuery(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore()
	if err := store.PutCatalog(ctx, testCatalog()); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, r := range []exam.TestResult{
		{ID: "r1", ParticipantID: "u1", ModuleID: "m1", GroupID: "g1", Date: at},
		{ID: "r2", ParticipantID: "u1", ModuleID: "m2", GroupID: "g1", Date: at},
		{ID: "r3", ParticipantID: "u1", ModuleID: "m2", GroupID: "g1", Date: at.Add(time.Hour)},
		{ID: "r4", ParticipantID: "u2", ModuleID: "m1", GroupID: "g1", Date: at},
	} {
		if _, _, err := store.InsertResult(ctx, r); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	counted := &countingResults{ResultStore: store}
	h := AvailableTestsHandler(store, attempt.NewGuard(counted, store, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/tests/available", nil)
	req = req.WithContext(auth.WithParticipant(req.Context(), exam.Participant{ID: "u1", GroupID: "g1"}))
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got []AvailableTest
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	byID := map[string]AvailableTest{}
	for _, a := range got {
		byID[a.ID] = a
	}
	if len(got) != 2 {
		t.Fatalf("listed %d modules, want the two active ones", len(got))
	}
	if m1 := byID["m1"]; !m1.AlreadyTaken || m1.Eligible || m1.Attempts != 1 {
		t.Fatalf("m1 = %+v", m1)
	}
	if m2 := byID["m2"]; m2.AlreadyTaken || !m2.Eligible || m2.Attempts != 2 {
		t.Fatalf("m2 = %+v", m2)
	}
	if n := counted.lists.Load(); n != 1 {
		t.Fatalf("ListResults called %d times", n)
	}
}
