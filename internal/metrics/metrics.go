// Package metrics exposes Prometheus collectors for the HTTP surface and the
// session lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/logging"
	"github.com/mind-engage/examroom/internal/session"
)

type Collector struct {
	reg *prometheus.Registry

	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	abandoned *prometheus.CounterVec
	blocked   *prometheus.CounterVec
	failures  prometheus.Counter
	active    prometheus.Gauge
}

var _ session.Observer = (*Collector)(nil)

// New registers every collector on a private registry.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examroom_sessions_started_total",
			Help: "Sessions that passed the eligibility check and the draw",
		}, []string{"kind"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examroom_sessions_completed_total",
			Help: "Sessions with a recorded result",
		}, []string{"kind", "trigger", "passed"}),
		abandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examroom_sessions_abandoned_total",
			Help: "Sessions dropped without a result",
		}, []string{"kind"}),
		blocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examroom_start_blocked_total",
			Help: "Refused session starts and submissions by reason",
		}, []string{"reason"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "examroom_submission_failures_total",
			Help: "Result submissions that failed and can be retried",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "examroom_active_sessions",
			Help: "Sessions currently held by the controller",
		}),
	}
	c.reg.MustRegister(
		c.requests, c.duration, c.started, c.completed, c.abandoned, c.blocked, c.failures, c.active,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := logging.RoutePattern(r)
		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (c *Collector) SessionStarted(kind exam.Kind) { c.started.WithLabelValues(string(kind)).Inc() }

func (c *Collector) SessionCompleted(kind exam.Kind, trigger session.Trigger, passed bool) {
	c.completed.WithLabelValues(string(kind), string(trigger), strconv.FormatBool(passed)).Inc()
}

func (c *Collector) SessionAbandoned(kind exam.Kind) { c.abandoned.WithLabelValues(string(kind)).Inc() }
func (c *Collector) StartBlocked(reason string) { c.blocked.WithLabelValues(reason).Inc() }
func (c *Collector) SubmissionFailed() { c.failures.Inc() }
func (c *Collector) ActiveSessions(n int) { c.active.Set(float64(n)) }
