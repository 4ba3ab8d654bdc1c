package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/session"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: reset", exam.ErrSubmissionFailed), http.StatusBadGateway, "submission_failed"},
		{fmt.Errorf("%w: %w", exam.ErrSubmissionRejected, exam.ErrQuestionNotFound), http.StatusUnprocessableEntity, "submission_rejected"},
		{exam.ErrEmptyQuestionPool, http.StatusUnprocessableEntity, "empty_question_pool"},
		{exam.ErrAlreadyAttempted, http.StatusConflict, "already_attempted"},
		{session.ErrSessionNotFound, http.StatusNotFound, "not_found"},
		{exam.ErrNotAssigned, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("%w: x", errBadRequest), http.StatusBadRequest, "bad_request"},
		{fmt.Errorf("disk full"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("classify(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
