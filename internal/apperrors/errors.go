package apperrors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/lib/pq"
)

// Error is an error that knows which HTTP status it maps to.
type Error struct {
	Status  int
	Message string
	Detail  string
	Err     error
	Stack   string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(status int, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newError(http.StatusNotFound, format, args...)
}

func BadRequest(format string, args ...any) *Error {
	return newError(http.StatusBadRequest, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(http.StatusUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(http.StatusForbidden, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(http.StatusConflict, format, args...)
}

// Internal wraps an unexpected error and captures the current stack.
func Internal(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
		Err:     err,
		Stack:   string(debug.Stack()),
	}
}

// Postgres SQLSTATE codes translated by From.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeInvalidText         = "22P02"
)

// From converts any error into an *Error. Typed errors pass through, store
// integrity violations become 409/400 with the constraint attached, and
// everything else is a 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Status: http.StatusNotFound, Message: "Resource not found", Err: err}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			return &Error{Status: http.StatusConflict, Message: "Resource already exists", Detail: constraintDetail(pqErr), Err: err}
		case codeForeignKeyViolation:
			return &Error{Status: http.StatusBadRequest, Message: "Referenced resource does not exist", Detail: constraintDetail(pqErr), Err: err}
		case codeCheckViolation, codeNotNullViolation, codeInvalidText:
			return &Error{Status: http.StatusBadRequest, Message: "Invalid data", Detail: constraintDetail(pqErr), Err: err}
		}
	}

	return Internal(err)
}

func constraintDetail(e *pq.Error) string {
	if e.Constraint != "" && e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Constraint, e.Detail)
	}
	if e.Constraint != "" {
		return e.Constraint
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

func StatusOf(err error) int {
	return From(err).Status
}
