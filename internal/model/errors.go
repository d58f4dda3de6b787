package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials is returned for unknown usernames and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountDisabled is returned when the account status is not active.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrUnauthorized covers missing, invalid, expired and revoked credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidToken is returned by the token codec when a token fails any check.
	ErrInvalidToken = errors.New("invalid token")
	// ErrStorageDisabled is returned when object storage is not configured.
	ErrStorageDisabled = errors.New("object storage is not configured")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
