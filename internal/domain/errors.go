package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	// ErrStillRunning is returned when a bounded wait expires before the instance finishes.
	ErrStillRunning = errors.New("still running")
	ErrTransport    = errors.New("transport failure")
)

const (
	ErrorCodeMfaTimeout = "mfa_timeout"
	ErrorCodeStepFailed = "step_failed"

	ErrorMsgMfaTimeout = "MFA not provided in time"
)

// OrchestrationFailure is the terminal failure of an orchestrator instance.
type OrchestrationFailure struct {
	Code    string
	Message string
}

func (e *OrchestrationFailure) Error() string {
	return fmt.Sprintf("orchestration failed (%s): %s", e.Code, e.Message)
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Transport wraps an infrastructure error so callers can classify it.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}
