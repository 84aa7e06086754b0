package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("already exists")
	ErrNotConfigured       = errors.New("platform not configured")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrInvalidState        = errors.New("invalid oauth state")
	ErrDecryption          = errors.New("failed to decrypt value")
)

// ExchangeError is returned when a platform rejects a token exchange or refresh.
// Body holds the raw platform response for diagnostics.
type ExchangeError struct {
	Platform   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s token exchange failed with status %d: %s", e.Platform, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s token exchange failed: %v", e.Platform, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// UpstreamError is a failed platform call outside of the token exchange.
type UpstreamError struct {
	Platform   string
	Operation  string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Platform, e.Operation, e.StatusCode, e.Body)
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
