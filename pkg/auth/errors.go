package auth

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied is returned when an operation requires the admin role.
var ErrPermissionDenied = errors.New("permission denied")

type AuthErrorCode string

const (
	CodeProviderDenied  AuthErrorCode = "provider_denied"
	CodeStateMismatch   AuthErrorCode = "state_mismatch"
	CodeMissingVerifier AuthErrorCode = "missing_verifier"
	CodeExchangeFailed  AuthErrorCode = "exchange_failed"
)

// AuthError describes a failed sign-in attempt. None of these are fatal;
// the session stays signed out and the user may retry.
type AuthError struct {
	Code        AuthErrorCode
	Description string
	Status      int    // HTTP status of a failed token exchange
	Body        string // response body of a failed token exchange
}

func (e *AuthError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("auth: %s (%d): %s", e.Code, e.Status, e.Body)
	case e.Description != "":
		return fmt.Sprintf("auth: %s: %s", e.Code, e.Description)
	default:
		return fmt.Sprintf("auth: %s", e.Code)
	}
}
