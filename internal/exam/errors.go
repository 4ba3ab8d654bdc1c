package exam

import "errors"

var (
	ErrEmptyQuestionPool     = errors.New("no questions available for module")
	ErrAlreadyAttempted      = errors.New("module already attempted")
	ErrSubmissionFailed      = errors.New("result submission failed")
	// ErrSubmissionRejected marks a submission that will fail the same way on
	// every retry.
	ErrSubmissionRejected = errors.New("submission rejected")
	ErrMalformedModuleConfig = errors.New("malformed module config")
	ErrMalformedQuestion     = errors.New("malformed question")
	ErrModuleInactive        = errors.New("module is not active")
	ErrNotAssigned           = errors.New("module is not assigned to participant group")
	ErrSessionInProgress     = errors.New("another session is in progress")

	ErrModuleNotFound      = errors.New("module not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrResultNotFound      = errors.New("result not found")
)
