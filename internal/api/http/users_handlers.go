package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examroom/internal/exam"
)

// bcryptCost is lowered by tests.
var bcryptCost = 12

// userRow is one account in a bulk upsert. Role defaults to PARTICIPANT;
// Password is plaintext and may be omitted for existing accounts.
type userRow struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	Workplace string    `json:"workplace"`
	Role      exam.Role `json:"role"`
	GroupID   string    `json:"groupId"`
	Password  string    `json:"password"`
}

// POST /users/bulk  [ {userRow}, ... ]
func BulkUpsertUsersHandler(users exam.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []userRow
		if err := decode(r, &rows); err != nil {
			writeError(w, err)
			return
		}
		if len(rows) == 0 {
			writeJSON(w, http.StatusOK, map[string]int{"inserted": 0, "updated": 0})
			return
		}
		prepared := make([]exam.ParticipantRow, 0, len(rows))
		for _, u := range rows {
			row, err := prepareUser(r, users, u)
			if err != nil {
				writeError(w, err)
				return
			}
			prepared = append(prepared, row)
		}
		ins, upd, err := users.UpsertParticipants(r.Context(), prepared)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"inserted": ins, "updated": upd})
	}
}

func prepareUser(r *http.Request, users exam.UserStore, u userRow) (exam.ParticipantRow, error) {
	u.ID = strings.TrimSpace(u.ID)
	u.Username = strings.TrimSpace(u.Username)
	if u.ID == "" || u.Username == "" {
		return exam.ParticipantRow{}, fmt.Errorf("%w: id and username required", errBadRequest)
	}
	if u.Role == "" {
		u.Role = exam.RoleParticipant
	}
	switch u.Role {
	case exam.RoleParticipant, exam.RoleManager, exam.RoleAdmin:
	default:
		return exam.ParticipantRow{}, fmt.Errorf("%w: invalid role %q", errBadRequest, u.Role)
	}
	var hash string
	if u.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcryptCost)
		if err != nil {
			return exam.ParticipantRow{}, err
		}
		hash = string(b)
	} else {
		_, err := users.GetParticipant(r.Context(), u.ID)
		if errors.Is(err, exam.ErrParticipantNotFound) {
			return exam.ParticipantRow{}, fmt.Errorf("%w: password required for new user %s", errBadRequest, u.Username)
		}
		if err != nil {
			return exam.ParticipantRow{}, err
		}
	}
	return exam.ParticipantRow{
		Participant: exam.Participant{
			ID:        u.ID,
			Username:  u.Username,
			FullName:  u.FullName,
			Workplace: u.Workplace,
			Role:      u.Role,
			GroupID:   u.GroupID,
		},
		PasswordHash: hash,
	}, nil
}

// GET /users?role=PARTICIPANT
func ListUsersHandler(users exam.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.ListParticipants(r.Context(), exam.Role(r.URL.Query().Get("role")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
