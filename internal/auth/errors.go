package auth

import "errors"

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrTokenInvalid        = errors.New("authentication token invalid")
	ErrTokenExpired        = errors.New("authentication token expired")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account locked")

	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("not found")
	// ErrTokenNotPending is returned by AuthTokenStore.UpdateAuthToken when the
	// stored token already reached a terminal status.
	ErrTokenNotPending = errors.New("authentication token is no longer pending")
)

const (
	msgTokenConsumed = "Authentication token is invalid or already consumed."
	msgTokenExpired  = "Authentication token expired."
	msgNotVerified   = "Authentication token has not completed verification."
	msgInvalidCode   = "Two-factor code is invalid."
	msgLoginAborted  = "Authentication could not be completed."
)

// RejectedError is returned when an operation on an AuthToken is refused. Message
// is the text recorded on the token; Kind is one of the sentinel errors above.
type RejectedError struct {
	Kind    error
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

func (e *RejectedError) Unwrap() error {
	return e.Kind
}
