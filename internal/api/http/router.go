package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	auth "github.com/mind-engage/examroom/internal/auth/middleware"
	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/logging"
	"github.com/mind-engage/examroom/internal/metrics"
	"github.com/mind-engage/examroom/internal/rbac"
	syncx "github.com/mind-engage/examroom/internal/sync"
)

// Deps are the collaborators behind the HTTP surface. Journal, Metrics,
// LoginLimiter and Ready are optional.
type Deps struct {
	Catalog  exam.CatalogStore
	Results  exam.ResultStore
	Users    exam.UserStore
	Sessions Sessions
	Guard    Guard
	Auth     *auth.AuthService

	Journal      *syncx.EventRepo
	Metrics      *metrics.Collector
	LoginLimiter *auth.IPLimiter
	Ready        func(ctx context.Context) error

	EnableLocalAuth bool
	OptionCount     int
	Log             *zap.Logger
}

func NewRouter(d Deps) chi.Router {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	checker := rbac.NewChecker(nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.AccessLog(d.Log), middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	if d.EnableLocalAuth {
		login := http.Handler(auth.LoginHandler(d.Auth, d.Users, d.Log))
		if d.LoginLimiter != nil {
			login = d.LoginLimiter.Middleware(login)
		}
		r.Method(http.MethodPost, "/auth/login", login)
	}

	// JWT -> stored account -> role in context -> RBAC
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth), auth.AttachParticipant(d.Users))

		pr.With(rbac.Require(rbac.PermTestsTake)).Get("/tests/available", AvailableTestsHandler(d.Catalog, d.Guard))
		pr.Route("/sessions", func(sr chi.Router) {
			sr.Use(rbac.Require(rbac.PermTestsTake))
			sr.Post("/", StartSessionHandler(d.Sessions))
			sr.Get("/active", ActiveSessionHandler(d.Sessions))
			sr.Get("/{sessionID}", GetSessionHandler(d.Sessions))
			sr.Put("/{sessionID}/answers", RecordAnswerHandler(d.Sessions))
			sr.Post("/{sessionID}/finish", FinishSessionHandler(d.Sessions))
			sr.Delete("/{sessionID}", AbandonSessionHandler(d.Sessions))
		})

		pr.With(rbac.RequireAny(rbac.PermResultsViewOwn, rbac.PermResultsViewAll)).
			Get("/results", ListResultsHandler(d.Results, checker))
		pr.With(rbac.Require(rbac.PermResultsViewOwn)).
			Get("/results/latest", LatestResultHandler(d.Guard))

		pr.Get("/snapshot", SnapshotHandler(d.Catalog, checker))

		pr.With(rbac.Require(rbac.PermChangePassword)).
			Post("/users/change-password", ChangePasswordHandler(d.Users))
		pr.With(rbac.Require(rbac.PermUsersBulkUpsert)).
			Post("/users/bulk", BulkUpsertUsersHandler(d.Users))
		pr.With(rbac.Require(rbac.PermUsersList)).
			Get("/users", ListUsersHandler(d.Users))

		pr.With(rbac.Require(rbac.PermCatalogSync)).
			Put("/admin/catalog", PutCatalogHandler(d.Catalog, d.OptionCount, d.Journal, d.Log))
		pr.With(rbac.Require(rbac.PermRestartGrant)).
			Post("/admin/restart-grants", RestartGrantHandler(d.Guard))
		pr.With(rbac.Require(rbac.PermResultsViewAll)).
			Get("/admin/groups/{groupID}/status", GroupStatusHandler(d.Guard))
		pr.With(rbac.Require(rbac.PermReportsView)).
			Get("/reports/summary", ReportSummaryHandler(d.Results, d.Catalog))

		if d.Journal != nil {
			pr.With(rbac.Require(rbac.PermCatalogSync)).
				Get("/sync/events", EventsSinceHandler(d.Journal))
		}
	})
	return r
}
