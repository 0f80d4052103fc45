package auth

import (
	"context"
	"time"
)

type AuthTokenStore interface {
	CreateAuthToken(ctx context.Context, token AuthToken) (AuthToken, error)
	GetAuthToken(ctx context.Context, id string) (AuthToken, error)
	// UpdateAuthToken writes status, user id, description and the two-factor
	// flag. It only applies while the stored token is pending and returns
	// ErrTokenNotPending otherwise. A stored user id is never replaced.
	UpdateAuthToken(ctx context.Context, token AuthToken) error
	// MarkAuthTokenExchanged sets the exchange marker once. It reports false when
	// the token was already exchanged.
	MarkAuthTokenExchanged(ctx context.Context, id string, at time.Time) (bool, error)
	ListAuthTokens(ctx context.Context, filter TokenFilter, skip, take int) ([]AuthToken, error)
	CountAuthTokens(ctx context.Context, filter TokenFilter) (int64, error)
	DeleteAuthTokens(ctx context.Context, ids []string) (int64, error)
	DeleteAllAuthTokens(ctx context.Context) (int64, error)
}

type APITokenStore interface {
	CreateAPIToken(ctx context.Context, token APIToken) (APIToken, error)
	GetAPITokenByValue(ctx context.Context, value string) (APIToken, error)
	DeleteAPITokenByValue(ctx context.Context, value string) (bool, error)
	DeleteAllAPITokens(ctx context.Context) (int64, error)
}

type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	ActivateUser(ctx context.Context, id string) error
	DeactivateUser(ctx context.Context, id string) error
}

type ProviderRegistry interface {
	FindProvider(ctx context.Context, provider Provider) (ProviderRecord, error)
}

// ClaimStore holds integer claims per user. IncrementClaim must be atomic and
// return the post-increment value.
type ClaimStore interface {
	IncrementClaim(ctx context.Context, userID, key string) (int64, error)
	GetClaim(ctx context.Context, userID, key string) (int64, error)
	SetClaim(ctx context.Context, userID, key string, value int64) error
}

type PasswordComparator interface {
	Compare(plain, hashed string) bool
}

type CodeVerifier interface {
	Verify(code, secret string) bool
}
