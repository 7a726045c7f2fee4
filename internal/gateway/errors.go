package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is wrapped by Error when the backend has no such record.
var ErrNotFound = errors.New("not found")

// Error is a failed backend call. Message is human readable and safe to show
// to the user.
type Error struct {
	Op      string // fetch, create, remove, lookup, register
	Message string
	Status  int // HTTP status when the backend speaks HTTP, 0 otherwise
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return e.Op + " failed"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an Error for op wrapping err.
func Errorf(op string, err error, format string, args ...any) *Error {
	return &Error{Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// StatusError builds an Error for a non-2xx HTTP response.
func StatusError(op string, status int) *Error {
	e := &Error{
		Op:      op,
		Status:  status,
		Message: fmt.Sprintf("%s failed: %d %s", op, status, http.StatusText(status)),
	}
	if status == http.StatusNotFound {
		e.Err = ErrNotFound
	}
	return e
}

// IsNotFound reports whether err is a gateway not-found failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
