package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/rbac"
)

type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresIn   int              `json:"expires_in"`
	User        exam.Participant `json:"user"`
	Permissions []string         `json:"permissions"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginHandler serves POST /auth/login with a username/password body.
func LoginHandler(a *AuthService, users exam.UserStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in credentials
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		p, hash, err := users.FindByUsername(r.Context(), strings.TrimSpace(in.Username))
		switch {
		case errors.Is(err, exam.ErrParticipantNotFound):
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		case err != nil:
			log.Error("login lookup", zap.Error(err))
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(in.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(p)
		if err != nil {
			log.Error("issue token", zap.Error(err))
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		log.Info("login", zap.String("user", p.ID), zap.String("role", string(p.Role)))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(LoginResponse{
			AccessToken: tok,
			ExpiresIn:   int(a.TTL() / time.Second),
			User:        p,
			Permissions: rbac.Permissions(string(p.Role)),
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || tok == "" {
		return "", false
	}
	return strings.TrimSpace(tok), true
}

// JWTMiddleware verifies the bearer token and puts subject, role and group on
// the request context.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(raw)
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := rbac.WithRole(WithGroup(WithSubject(r.Context(), c.Sub), c.Group), c.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
