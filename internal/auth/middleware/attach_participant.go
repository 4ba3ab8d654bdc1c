package auth

import (
	"errors"
	"net/http"

	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/rbac"
)

// AttachParticipant loads the token subject from the users table. The stored
// role and group win over the token claims, so a regrouped or demoted account
// takes effect without a new login.
func AttachParticipant(users exam.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, err := users.GetParticipant(ctx, SubjectFromContext(ctx))
			switch {
			case errors.Is(err, exam.ErrParticipantNotFound):
				http.Error(w, "unknown account", http.StatusUnauthorized)
				return
			case err != nil:
				http.Error(w, "load account", http.StatusInternalServerError)
				return
			}
			ctx = WithParticipant(ctx, p)
			ctx = WithGroup(ctx, p.GroupID)
			ctx = rbac.WithRole(ctx, string(p.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
