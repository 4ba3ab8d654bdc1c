package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/mind-engage/examroom/internal/auth/middleware"
	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/rbac"
)

func seedUsers(t *testing.T) *exam.MemoryStore {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	s := exam.NewInMemoryStore()
	_, _, err = s.UpsertParticipants(context.Background(), []exam.ParticipantRow{{
		Participant:  exam.Participant{ID: "u1", Username: "tinglovchi", Role: exam.RoleParticipant, GroupID: "g1"},
		PasswordHash: string(hash),
	}})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func login(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
	return rec
}

func TestLoginIssuesTokenWithClaims(t *testing.T) {
	a := auth.NewAuthService("secret", time.Hour)
	h := auth.LoginHandler(a, seedUsers(t), zap.NewNop())

	rec := login(h, `{"username":"tinglovchi","password":"123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var resp auth.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	c, err := a.Parse(resp.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Permissions) != 3 {
		t.Fatalf("permissions = %v", resp.Permissions)
	}
	if c.Sub != "u1" || c.Role != "PARTICIPANT" || c.Group != "g1" || resp.ExpiresIn != 3600 {
		t.Fatalf("claims = %+v, expires %d", c, resp.ExpiresIn)
	}

	for _, body := range []string{
		`{"username":"tinglovchi","password":"nope"}`,
		`{"username":"ghost","password":"123"}`,
	} {
		if rec := login(h, body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status %d", body, rec.Code)
		}
	}
	if rec := login(h, `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status %d", rec.Code)
	}
}

func TestParseRejectsOtherSecretAndExpired(t *testing.T) {
	p := exam.Participant{ID: "u1", Role: exam.RoleAdmin}
	a := auth.NewAuthService("secret", time.Minute)
	tok, err := a.IssueJWT(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.NewAuthService("other", time.Minute).Parse(tok); err == nil {
		t.Fatalf("token accepted with wrong secret")
	}
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		Sub: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "examroom",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	stale, err := expired.SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Parse(stale); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expired token: %v", err)
	}
	if _, err := a.Parse(tok); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
}

func TestJWTMiddlewareAndAttach(t *testing.T) {
	store := seedUsers(t)
	a := auth.NewAuthService("secret", time.Hour)
	var gotRole, gotGroup string
	var gotP exam.Participant
	h := auth.JWTMiddleware(a)(auth.AttachParticipant(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = rbac.RoleFromContext(r.Context())
		gotGroup = auth.GroupFromContext(r.Context())
		gotP, _ = auth.ParticipantFromContext(r.Context())
	})))

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := do(""); code != http.StatusUnauthorized {
		t.Fatalf("no header: %d", code)
	}
	if code := do("Bearer garbage"); code != http.StatusUnauthorized {
		t.Fatalf("garbage token: %d", code)
	}

	// token claims an old group; the stored account wins
	tok, _ := a.IssueJWT(exam.Participant{ID: "u1", Role: exam.RoleAdmin, GroupID: "old"})
	if code := do("Bearer " + tok); code != http.StatusOK {
		t.Fatalf("valid token: %d", code)
	}
	if gotRole != "PARTICIPANT" || gotGroup != "g1" || gotP.Username != "tinglovchi" {
		t.Fatalf("context role=%q group=%q participant=%+v", gotRole, gotGroup, gotP)
	}

	ghost, _ := a.IssueJWT(exam.Participant{ID: "ghost", Role: exam.RoleAdmin})
	if code := do("Bearer " + ghost); code != http.StatusUnauthorized {
		t.Fatalf("unknown subject: %d", code)
	}
}

func TestIPLimiter(t *testing.T) {
	l := auth.NewIPLimiter(2)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if !l.Allow("10.0.0.2") {
		t.Fatalf("other client throttled")
	}
	l.Sweep(-time.Second)
	if !l.Allow("10.0.0.1") {
		t.Fatalf("swept client still throttled")
	}
}
