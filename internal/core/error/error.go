package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// StorageErrorMessage describes object storage failures.
	StorageErrorMessage = "object storage operation failed"
	// StorageNotFoundMessage describes a missing object.
	StorageNotFoundMessage = "object not found"
	// CredentialsErrorMessage describes authorization failures against a backend.
	CredentialsErrorMessage = "credentials or authorization error"
	// ConfigErrorMessage describes missing required configuration.
	ConfigErrorMessage = "missing required configuration"
)

// AppError wraps an underlying error with an HTTP-ish status and safe message.
// The status doubles as a coarse failure class: 404 means the resource does
// not exist and 401/403 mean a configuration problem, neither of which should
// be retried the way a transient 502 can be.
type AppError struct {
	Err     error
	Status  int
	Message string
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Config reports a missing-configuration failure. These fail fast and are
// never retried.
func Config(detail string) *AppError {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Message: ConfigErrorMessage + ": " + detail,
	}
}

// IsNotFound reports whether err classifies as a missing resource.
func IsNotFound(err error) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// IsAuth reports whether err classifies as a credentials/authorization
// problem rather than a transient fault.
func IsAuth(err error) bool {
	var ae *AppError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
