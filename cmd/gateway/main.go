package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"go.uber.org/zap"

	api "github.com/mind-engage/examroom/internal/api/http"
	"github.com/mind-engage/examroom/internal/attempt"
	auth "github.com/mind-engage/examroom/internal/auth/middleware"
	"github.com/mind-engage/examroom/internal/clock"
	"github.com/mind-engage/examroom/internal/config"
	"github.com/mind-engage/examroom/internal/db"
	"github.com/mind-engage/examroom/internal/event"
	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/logging"
	"github.com/mind-engage/examroom/internal/metrics"
	"github.com/mind-engage/examroom/internal/results"
	"github.com/mind-engage/examroom/internal/selection"
	"github.com/mind-engage/examroom/internal/session"
	syncx "github.com/mind-engage/examroom/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		logger.Fatal("db open failed", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer dbh.Close()
	store := exam.NewSQLStore(dbh, cfg.DBDriver)
	journal := syncx.NewEventRepo(dbh, cfg.SiteID)

	// --- Events ---
	var publisher event.Publisher = event.Discard
	if cfg.AMQPURL != "" {
		p, err := event.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger.Named("amqp"))
		if err != nil {
			logger.Warn("amqp unavailable, events are not published", zap.Error(err))
		} else {
			defer p.Close()
			publisher = p
		}
	}

	// --- Engine ---
	collector := metrics.New()
	guard := attempt.NewGuard(store, store, publisher, logger.Named("attempt"))
	recorder := results.NewRecorder(store, store,
		results.WithJournal(journal),
		results.WithPublisher(publisher),
		results.WithLogger(logger.Named("results")))
	ctrl := session.NewController(store, guard,
		selection.New(selection.NewSource(cfg.SelectionSeed)),
		recorder, clock.Real(),
		session.WithObserver(collector),
		session.WithLogger(logger.Named("session")),
		session.WithSubmitTimeout(cfg.SubmitTimeout))
	defer ctrl.Shutdown()

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.AuthTokenTTL)
	limiter := auth.NewIPLimiter(cfg.LoginRatePerMin)
	go sweep(ctx, limiter)

	// --- Router ---
	r := api.NewRouter(api.Deps{
		Catalog:         store,
		Results:         store,
		Users:           store,
		Sessions:        ctrl,
		Guard:           guard,
		Auth:            authSvc,
		Journal:         journal,
		Metrics:         collector,
		LoginLimiter:    limiter,
		Ready:           dbh.PingContext,
		EnableLocalAuth: cfg.EnableLocalAuth,
		OptionCount:     cfg.QuestionOptionCount,
		Log:             logger.Named("http"),
	})
	handler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	})(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	logger.Info("listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("mode", string(cfg.Mode)),
		zap.String("db", cfg.DBDriver))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server", zap.Error(err))
	}
}

func sweep(ctx context.Context, l *auth.IPLimiter) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep(10 * time.Minute)
		}
	}
}
