package error_handler

import (
	"errors"
	"net/http"

	"rcmos/commons/response"
	"rcmos/internal/domain"
)

type ErrorCollection struct {
	errors []response.Errors
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		errors: make([]response.Errors, 0),
	}
}

func (ec *ErrorCollection) AddError(code int, message string, data any) *ErrorCollection {
	ec.errors = append(ec.errors, response.Errors{
		ErrorCode: code,
		Message:   message,
		Data:      data,
	})
	return ec
}

func (ec *ErrorCollection) HasErrors() bool {
	return len(ec.errors) > 0
}

func (ec *ErrorCollection) GetErrors() []response.Errors {
	return ec.errors
}

// GetHTTPStatus returns the status of the most severe error collected.
func (ec *ErrorCollection) GetHTTPStatus() int {
	if !ec.HasErrors() {
		return http.StatusOK
	}

	status := 0
	for _, err := range ec.errors {
		if s := statusFor(err.ErrorCode); s > status {
			status = s
		}
	}
	return status
}

func statusFor(code int) int {
	switch code {
	case CodeValidationError, CodeNotFound, CodeConflict, CodeUnprocessable,
		CodeInternalServerError, CodeServiceUnavailable:
		return code
	}
	if code >= 500 {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// Common error codes
const (
	CodeValidationError     = 400
	CodeNotFound            = 404
	CodeConflict            = 409
	CodeUnprocessable       = 422
	CodeInternalServerError = 500
	CodeServiceUnavailable  = 503
)

// FromError maps the domain error taxonomy onto an error collection.
func FromError(err error) *ErrorCollection {
	ec := NewErrorCollection()
	var failure *domain.OrchestrationFailure

	switch {
	case err == nil:
		return ec
	case errors.Is(err, domain.ErrValidation):
		return ec.AddError(CodeValidationError, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return ec.AddError(CodeNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrConflict):
		return ec.AddError(CodeConflict, err.Error(), nil)
	case errors.As(err, &failure):
		return ec.AddError(CodeConflict, failure.Message, map[string]string{"error_code": failure.Code})
	case errors.Is(err, domain.ErrTransport):
		return ec.AddError(CodeServiceUnavailable, "upstream dependency unavailable", nil)
	default:
		return ec.AddError(CodeInternalServerError, "Internal server error", nil)
	}
}

// GetInternalServerError is the error entry used for recovered panics.
func GetInternalServerError(message string) response.Errors {
	return response.Errors{
		ErrorCode: CodeInternalServerError,
		Message:   message,
		Data:      nil,
	}
}
