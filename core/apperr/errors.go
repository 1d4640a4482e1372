package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrUniqueViolation = errors.New("unique violation")
)

// ValidationError is a field-level rejection of user input or of a domain rule.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func Invalid(field, code, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}

// PolicyWarning is a user-facing refusal of an otherwise well-formed request.
type PolicyWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w *PolicyWarning) Error() string {
	return w.Message
}

func Warn(code, message string) *PolicyWarning {
	return &PolicyWarning{Code: code, Message: message}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsPolicy(err error) bool {
	var w *PolicyWarning
	return errors.As(err, &w)
}

// HTTPStatus maps an error to the status used by the API layer.
func HTTPStatus(err error) int {
	var v *ValidationError
	var w *PolicyWarning
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &v):
		return http.StatusBadRequest
	case errors.As(err, &w):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrUniqueViolation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Body renders the JSON error payload for err.
func Body(err error) map[string]any {
	var v *ValidationError
	var w *PolicyWarning
	switch {
	case errors.As(err, &v):
		return map[string]any{"error": map[string]string{"code": v.Code, "field": v.Field, "message": v.Message}}
	case errors.As(err, &w):
		return map[string]any{"warning": map[string]string{"code": w.Code, "message": w.Message}}
	case errors.Is(err, ErrForbidden):
		return map[string]any{"error": map[string]string{"code": "common.forbidden"}}
	case errors.Is(err, ErrNotFound):
		return map[string]any{"error": map[string]string{"code": "common.notFound"}}
	case errors.Is(err, ErrConflict), errors.Is(err, ErrUniqueViolation):
		return map[string]any{"error": map[string]string{"code": "common.conflict"}}
	default:
		return map[string]any{"error": map[string]string{"code": "common.serverError"}}
	}
}
