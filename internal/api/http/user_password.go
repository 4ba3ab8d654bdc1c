package http

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examroom/internal/exam"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func ChangePasswordHandler(users exam.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participant(w, r)
		if !ok {
			return
		}
		var req changePasswordReq
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.NewPassword == "" {
			http.Error(w, "new password required", http.StatusBadRequest)
			return
		}
		_, stored, err := users.FindByUsername(r.Context(), p.Username)
		if err != nil {
			writeError(w, err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(stored), []byte(req.OldPassword)) != nil {
			http.Error(w, "incorrect old password", http.StatusForbidden)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := users.SetPasswordHash(r.Context(), p.ID, string(hash)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
