package logging

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", ""); err == nil {
		t.Fatalf("unknown level accepted")
	}
	l, err := New("debug", filepath.Join(t.TempDir(), "app.log"))
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hello")
	_ = l.Sync()
}

func TestAccessLogUsesRoutePattern(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := chi.NewRouter()
	r.Use(middleware.RequestID, AccessLog(zap.New(core)))
	r.Get("/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/abc", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	f := entries[0].ContextMap()
	if f["route"] != "/sessions/{sessionID}" || f["status"] != int64(404) || f["request_id"] == "" {
		t.Fatalf("fields = %v", f)
	}
	if entries[0].Level != zap.WarnLevel {
		t.Fatalf("level = %v", entries[0].Level)
	}
}
