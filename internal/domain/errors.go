package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConflict             = errors.New("user with that username or email already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNotFound             = errors.New("not found")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrRateLimited          = errors.New("too many requests, please wait before trying again")
	ErrQuotaExceeded        = errors.New("daily generation limit reached")
	ErrWeakPassword         = errors.New("password is too short")
	ErrPasswordReuse        = errors.New("new password must be different from the current password")
	ErrMissingTopic         = errors.New("topic is required")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
)

// QuotaError reports the limit that was hit. It matches ErrQuotaExceeded.
type QuotaError struct {
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily generation limit of %d reached, try again tomorrow or upgrade your plan", e.Limit)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// WeakPasswordError carries the minimum length. It matches ErrWeakPassword.
type WeakPasswordError struct {
	MinLength int
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password must be at least %d characters", e.MinLength)
}

func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}

// IsPermanent reports whether retrying the same generation cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMissingTopic) ||
		errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrNotFound)
}
