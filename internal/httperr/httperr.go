package httperr

import (
	"errors"
	"net/http"
)

// Error carries the HTTP status an error is rendered with.
type Error struct {
	Err      error
	Status   int
	Location string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Status)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Status == e.Status && (t.Err == nil || errors.Is(e.Err, t.Err))
}

func New(err error, status int) error {
	return &Error{
		Err:    err,
		Status: status,
	}
}

func Found(location string) error {
	return &Error{
		Status:   http.StatusFound,
		Location: location,
	}
}

func NotFound(err error) error {
	return New(err, http.StatusNotFound)
}

func BadRequest(err error) error {
	return New(err, http.StatusBadRequest)
}

func Unauthorized(err error) error {
	return New(err, http.StatusUnauthorized)
}

func Forbidden(err error) error {
	return New(err, http.StatusForbidden)
}

func Conflict(err error) error {
	return New(err, http.StatusConflict)
}

func RequestEntityTooLarge(err error) error {
	return New(err, http.StatusRequestEntityTooLarge)
}

func UnsupportedMediaType(err error) error {
	return New(err, http.StatusUnsupportedMediaType)
}

func TooManyRequests(err error) error {
	return New(err, http.StatusTooManyRequests)
}

func InternalServerError(err error) error {
	return New(err, http.StatusInternalServerError)
}

func ServiceUnavailable(err error) error {
	return New(err, http.StatusServiceUnavailable)
}
