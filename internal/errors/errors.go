package errors

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// APIError is an error that knows how it should be rendered to the client.
type APIError struct {
	Status   int               `json:"-"`
	Message  string            `json:"error"`
	Details  map[string]string `json:"details,omitempty"`
	Internal error             `json:"-"`
	// Bare errors are answered with the status code only.
	Bare bool `json:"-"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Internal
}

func New(status int, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Message:  message,
		Internal: err,
	}
}

func BadRequest(message string, err error) *APIError {
	return New(http.StatusBadRequest, message, err)
}

func Unauthorized(message string, err error) *APIError {
	return New(http.StatusUnauthorized, message, err)
}

// Denied is the single answer for every refused realtime session: a 401 with
// no body, whether the caller is unauthenticated, not permitted, or asked for
// a room that does not exist.
func Denied(err error) *APIError {
	e := New(http.StatusUnauthorized, "Unauthorized", err)
	e.Bare = true
	return e
}

func Forbidden(message string, err error) *APIError {
	return New(http.StatusForbidden, message, err)
}

func NotFound(message string, err error) *APIError {
	return New(http.StatusNotFound, message, err)
}

func Conflict(message string, err error) *APIError {
	return New(http.StatusConflict, message, err)
}

func UnprocessableEntity(message string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, message, err)
}

func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// Unavailable marks a failed or timed out upstream call. Clients may retry.
func Unavailable(err error) *APIError {
	return New(http.StatusServiceUnavailable, "Service unavailable", err)
}

// NewValidationError turns binding failures into a 422 with per-field details.
func NewValidationError(err error) *APIError {
	apiErr := UnprocessableEntity("Validation failed", err)

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		apiErr.Details = make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			apiErr.Details[fe.Field()] = validationMessage(fe)
		}
		return apiErr
	}

	// malformed JSON and friends
	apiErr.Message = "Invalid request body"
	return apiErr
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

// IsStatus reports whether err is an APIError carrying status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
