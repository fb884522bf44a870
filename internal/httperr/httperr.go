// Package httperr defines the canonical error taxonomy for the API.  Every
// workflow failure is raised as an *Error carrying a numeric code, a short
// description and a human-readable message; validation and store failures
// additionally carry a per-field detail list.  The Echo error handler in
// this package renders the taxonomy as JSON so handlers can simply return
// errors.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Canonical descriptions, one per taxonomy kind.
const (
	DescBadRequest   = "Bad Requests"
	DescUnauthorized = "Unauthorized"
	DescForbidden    = "Forbidden"
	DescNotFound     = "Not Found"
	DescInternal     = "Internal Server Error"
)

// FieldError is one entry of a per-field detail list attached to
// validation and uniqueness failures.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error type raised by workflows.  Code doubles as
// the HTTP status the transport layer responds with.
type Error struct {
	Code        int          `json:"error_code"`
	Description string       `json:"description"`
	Message     string       `json:"message"`
	Fields      []FieldError `json:"errors,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// BadRequest reports a violated precondition, invariant or malformed input.
func BadRequest(message string) *Error {
	return &Error{Code: http.StatusBadRequest, Description: DescBadRequest, Message: message}
}

// Unauthorized reports a missing or invalid token, or an absent principal.
func Unauthorized(message string) *Error {
	return &Error{Code: http.StatusUnauthorized, Description: DescUnauthorized, Message: message}
}

// Forbidden reports an authenticated caller that is not entitled to the
// resource.
func Forbidden(message string) *Error {
	return &Error{Code: http.StatusForbidden, Description: DescForbidden, Message: message}
}

// NotFound reports an absent or scoped-out entity.
func NotFound(message string) *Error {
	return &Error{Code: http.StatusNotFound, Description: DescNotFound, Message: message}
}

// Internal reports an unclassified failure.
func Internal(message string) *Error {
	return &Error{Code: http.StatusInternalServerError, Description: DescInternal, Message: message}
}

// Validation reports a request body that failed the declarative field
// rules.  The detail list is always non-empty.
func Validation(fields []FieldError) *Error {
	return &Error{
		Code:        http.StatusBadRequest,
		Description: DescBadRequest,
		Message:     "Validation Error",
		Fields:      fields,
	}
}

// Duplicate reports a uniqueness violation surfaced by the store.
func Duplicate(field, message string) *Error {
	return &Error{
		Code:        http.StatusBadRequest,
		Description: DescBadRequest,
		Message:     "Duplicate entry",
		Fields:      []FieldError{{Field: field, Message: message}},
	}
}

// Store wraps a store-level rejection.  The driver message is surfaced to
// the caller rather than swallowed; the operation is never retried here.
func Store(err error) *Error {
	return &Error{
		Code:        http.StatusBadRequest,
		Description: DescBadRequest,
		Message:     "Database SQL Error",
		Fields:      []FieldError{{Field: "", Message: err.Error()}},
	}
}

// EchoHandler returns a central echo.HTTPErrorHandler that renders
// taxonomy errors as-is and folds everything else into the taxonomy.
func EchoHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var e *Error
		if !errors.As(err, &e) {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				e = &Error{Code: he.Code, Description: http.StatusText(he.Code), Message: fmtMessage(he.Message)}
			} else {
				log.Error().Err(err).Str("path", c.Path()).Msg("unclassified error")
				e = Internal("Internal Server Error")
			}
		}
		if err := c.JSON(e.Code, e); err != nil {
			log.Error().Err(err).Msg("write error response failed")
		}
	}
}

func fmtMessage(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return http.StatusText(http.StatusInternalServerError)
}
