package service

import (
	"errors"
	"fmt"
)

// Errors returned by the services. Handlers map them to HTTP statuses.
var (
	ErrLinkNotFound         = errors.New("short link not found")
	ErrVerificationFailed   = errors.New("incorrect password")
	ErrSlugTaken            = errors.New("custom slug is already in use")
	ErrInvalidCredentials   = errors.New("wrong email or password")
	ErrAccountNotRegistered = errors.New("account is not registered")
	ErrEmailInUse           = errors.New("email is already registered")
	ErrUserNotFound         = errors.New("user not found")
	ErrForbidden            = errors.New("forbidden")
	ErrNotCredentialAccount = errors.New("account does not sign in with a password")
	ErrOAuthDisabled        = errors.New("google sign-in is not configured")
	ErrOAuthFailed          = errors.New("google sign-in failed")
	ErrSelfAction           = errors.New("cannot perform this action on your own account")
	ErrInvalidSession       = errors.New("invalid or expired session")
)

// ValidationError reports a rejected form field
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
