package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrUnauthorized       = errors.New("auth: unauthorized")
)

// LockedError is returned while an account is inside an active lock episode.
// It carries the moment the lock expires so callers can surface it. Opened
// is set when the failing attempt itself crossed the threshold, as opposed
// to hitting a lock that already existed.
type LockedError struct {
	LockedUntil time.Time
	Opened      bool
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("auth: account locked until %s", e.LockedUntil.UTC().Format(time.RFC3339))
}

// IsLocked reports whether err is a LockedError and returns it if so.
func IsLocked(err error) (*LockedError, bool) {
	var le *LockedError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
