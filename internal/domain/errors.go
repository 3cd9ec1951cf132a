package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrNotMember     = errors.New("not a member")
	ErrCapacity      = errors.New("room is full")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidConfig = errors.New("invalid media config")
	ErrBadInput      = errors.New("bad input")
	ErrInternal      = errors.New("internal error")

	ErrRoomNotFound = fmt.Errorf("room %w", ErrNotFound)
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
)

// kindError carries a caller-facing message while matching its kind with errors.Is.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func Errorf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func invalidConfig(format string, args ...any) error {
	return Errorf(ErrInvalidConfig, format, args...)
}

func badInput(format string, args ...any) error {
	return Errorf(ErrBadInput, format, args...)
}

// StatusCode maps an error kind to the HTTP-style code shared by both entry points.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotMember):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrCapacity), errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrBadInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
