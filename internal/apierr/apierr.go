package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound       = "not_found"
	CodeUnauthorized   = "unauthorized"
	CodeInvalidState   = "invalid_state"
	CodeLimitExceeded  = "limit_exceeded"
	CodeInfrastructure = "infrastructure"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(http.StatusForbidden, CodeUnauthorized, fmt.Errorf(format, args...))
}

func InvalidState(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, CodeInvalidState, fmt.Errorf(format, args...))
}

func LimitExceeded(format string, args ...interface{}) *Error {
	return New(http.StatusForbidden, CodeLimitExceeded, fmt.Errorf(format, args...))
}

// Infrastructure wraps a storage/signing/transient failure so handlers can
// surface it as a 500 without leaking internals into the code field.
func Infrastructure(err error) *Error {
	return New(http.StatusInternalServerError, CodeInfrastructure, err)
}

// From normalizes any error into an *Error. Already-typed errors pass
// through untouched; everything else is treated as infrastructure.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Infrastructure(err)
}

// HasCode reports whether err carries the given taxonomy code.
func HasCode(err error, code string) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
