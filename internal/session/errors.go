package session

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrWeakSecret         = errors.New("password must be at least 6 characters")
)

// AuthError is returned by SignIn and Register. Reason is one of the
// sentinel errors above, or nil when the directory itself failed (Err set).
type AuthError struct {
	Op     string
	Reason error
	Err    error
}

func (e *AuthError) Error() string {
	switch {
	case e.Reason != nil:
		return e.Reason.Error()
	case e.Err != nil:
		return e.Op + " failed: " + e.Err.Error()
	default:
		return e.Op + " failed"
	}
}

// Is lets errors.Is match the sentinel reason.
func (e *AuthError) Is(target error) bool {
	return e.Reason != nil && e.Reason == target
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
