package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mind-engage/examroom/internal/attempt"
	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := errorBody{Error: err.Error(), Code: code}
	if status == http.StatusBadGateway {
		body.Retryable = true
	}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, exam.ErrAlreadyAttempted):
		return http.StatusConflict, "already_attempted"
	case errors.Is(err, exam.ErrSessionInProgress):
		return http.StatusConflict, "session_in_progress"
	case errors.Is(err, attempt.ErrRestartNotPermitted):
		return http.StatusConflict, "restart_not_permitted"
	case errors.Is(err, session.ErrNotInProgress), errors.Is(err, session.ErrTimeUp):
		return http.StatusConflict, "not_in_progress"
	case errors.Is(err, exam.ErrEmptyQuestionPool):
		return http.StatusUnprocessableEntity, "empty_question_pool"
	case errors.Is(err, exam.ErrSubmissionFailed):
		return http.StatusBadGateway, "submission_failed"
	case errors.Is(err, exam.ErrSubmissionRejected):
		return http.StatusUnprocessableEntity, "submission_rejected"
	case errors.Is(err, exam.ErrModuleNotFound),
		errors.Is(err, exam.ErrGroupNotFound),
		errors.Is(err, exam.ErrQuestionNotFound),
		errors.Is(err, exam.ErrParticipantNotFound),
		errors.Is(err, exam.ErrResultNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, exam.ErrModuleInactive), errors.Is(err, exam.ErrNotAssigned):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, exam.ErrMalformedModuleConfig),
		errors.Is(err, exam.ErrMalformedQuestion),
		errors.Is(err, session.ErrInvalidAnswer),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

var errBadRequest = errors.New("bad request")

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
