package auth

import "time"

// Token lifetimes and the lockout threshold are fixed policy. Stores never pick
// an expiry themselves; the service stamps ExpiresAt when it creates a record.
const (
	LoginTokenTTL         = 5 * time.Minute
	ResetPasswordTokenTTL = 3 * time.Minute
	APITokenTTL           = 24 * time.Hour

	LockoutThreshold = 5

	LoginAttemptsClaim = "login_attempts_count"
)

func TTLFor(action Action) time.Duration {
	switch action {
	case ActionResetPassword:
		return ResetPasswordTokenTTL
	default:
		return LoginTokenTTL
	}
}
