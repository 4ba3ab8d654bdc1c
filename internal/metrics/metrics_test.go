package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/session"
)

func TestSessionCounters(t *testing.T) {
	c := New()
	c.SessionStarted(exam.KindGraded)
	c.SessionStarted(exam.KindPractice)
	c.SessionCompleted(exam.KindGraded, session.Timeout, true)
	c.StartBlocked("already_attempted")
	c.StartBlocked("already_attempted")
	c.SubmissionFailed()
	c.ActiveSessions(3)

	if got := testutil.ToFloat64(c.started.WithLabelValues("graded")); got != 1 {
		t.Fatalf("graded started = %v", got)
	}
	if got := testutil.ToFloat64(c.completed.WithLabelValues("graded", "timeout", "true")); got != 1 {
		t.Fatalf("completed = %v", got)
	}
	if got := testutil.ToFloat64(c.blocked.WithLabelValues("already_attempted")); got != 2 {
		t.Fatalf("blocked = %v", got)
	}
	if testutil.ToFloat64(c.failures) != 1 || testutil.ToFloat64(c.active) != 3 {
		t.Fatalf("failures/active wrong")
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	c := New()
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/results/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	r.Handle("/metrics", c.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/results/1", nil))
	if got := testutil.ToFloat64(c.requests.WithLabelValues("GET", "/results/{id}", "418")); got != 1 {
		t.Fatalf("request counter = %v", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("metrics output: %d", rec.Code)
	}
}
