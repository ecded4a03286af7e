package errors

import "errors"

// Error taxonomy shared by the session and authorization packages
var (
	// Authentication errors
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNetwork              = errors.New("network error")
	ErrNoSession            = errors.New("no session")

	// Session lifecycle errors
	ErrSessionExpired       = errors.New("session expired")
	ErrMalformedSessionData = errors.New("malformed session data")
	ErrSessionChanged       = errors.New("session changed during renewal")

	// State machine errors
	ErrInvalidTransition = errors.New("invalid session state transition")
)
