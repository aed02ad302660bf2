package apperrors

import (
	"errors"
	"net/http"
)

// Error is the taxonomy entry surfaced to clients:
// {statusCode, errorCode, errorDescription, errorMessage}.
type Error struct {
	StatusCode       int    `json:"statusCode"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	ErrorMessage     string `json:"errorMessage"`
}

func (e *Error) Error() string {
	return e.ErrorCode + ": " + e.ErrorMessage
}

// Is matches on the error code so sentinel comparison via errors.Is works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.ErrorCode == t.ErrorCode
}

func New(status int, code, description, message string) *Error {
	return &Error{
		StatusCode:       status,
		ErrorCode:        code,
		ErrorDescription: description,
		ErrorMessage:     message,
	}
}

func BadRequest(code, description, message string) *Error {
	return New(http.StatusBadRequest, code, description, message)
}

func Unauthorized(code, description, message string) *Error {
	return New(http.StatusUnauthorized, code, description, message)
}

func Forbidden(code, description, message string) *Error {
	return New(http.StatusForbidden, code, description, message)
}

func NotFound(code, description, message string) *Error {
	return New(http.StatusNotFound, code, description, message)
}

func Conflict(code, description, message string) *Error {
	return New(http.StatusConflict, code, description, message)
}

// Code extracts the taxonomy code from any error, empty when the error
// is not part of the taxonomy.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.ErrorCode
	}
	return ""
}
