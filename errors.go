package sphereauth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is an exported constant or variable used by the authentication engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = fmt.Errorf("%w: password does not satisfy policy", ErrInvalidInput)
	// ErrDuplicateIdentity is an exported constant or variable used by the authentication engine.
	ErrDuplicateIdentity = errors.New("email is already registered")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidReset is an exported constant or variable used by the authentication engine.
	ErrInvalidReset = errors.New("invalid reset code")
	// ErrExpiredReset is an exported constant or variable used by the authentication engine.
	ErrExpiredReset = errors.New("reset code expired")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrRegNoTaken is an exported constant or variable used by the authentication engine.
	ErrRegNoTaken = errors.New("registration number already assigned")
	// ErrStudentNotFound is an exported constant or variable used by the authentication engine.
	ErrStudentNotFound = errors.New("student not found")
	// ErrLoginRateLimited is an exported constant or variable used by the authentication engine.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRegistrationRateLimited is an exported constant or variable used by the authentication engine.
	ErrRegistrationRateLimited = errors.New("registration rate limited")
	// ErrPasswordResetRateLimited is an exported constant or variable used by the authentication engine.
	ErrPasswordResetRateLimited = errors.New("password reset rate limited")
	// ErrRateLimiterUnavailable is an exported constant or variable used by the authentication engine.
	ErrRateLimiterUnavailable = errors.New("rate limiter backend unavailable")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsRateLimited reports whether err is one of the throttling sentinels.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrLoginRateLimited) ||
		errors.Is(err, ErrRegistrationRateLimited) ||
		errors.Is(err, ErrPasswordResetRateLimited)
}

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrDuplicateIdentity),
		errors.Is(err, ErrRegNoTaken),
		errors.Is(err, ErrStudentNotFound),
		errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
