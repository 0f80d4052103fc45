package auth

import (
	"context"
	"fmt"
)

// AttemptTracker counts failed password checks per user. It keeps no state of its
// own; concurrent failures rely on the claim store's atomic increment.
type AttemptTracker struct {
	claims ClaimStore
	users  UserDirectory
}

func NewAttemptTracker(claims ClaimStore, users UserDirectory) *AttemptTracker {
	return &AttemptTracker{claims: claims, users: users}
}

func (t *AttemptTracker) Increment(ctx context.Context, userID string) (int64, error) {
	count, err := t.claims.IncrementClaim(ctx, userID, LoginAttemptsClaim)
	if err != nil {
		return 0, fmt.Errorf("increment login attempts: %w", err)
	}
	return count, nil
}

func (t *AttemptTracker) Reset(ctx context.Context, userID string) error {
	if err := t.claims.SetClaim(ctx, userID, LoginAttemptsClaim, 0); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	if err := t.users.ActivateUser(ctx, userID); err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	return nil
}

func (t *AttemptTracker) Count(ctx context.Context, userID string) (int64, error) {
	count, err := t.claims.GetClaim(ctx, userID, LoginAttemptsClaim)
	if err != nil {
		return 0, fmt.Errorf("read login attempts: %w", err)
	}
	return count, nil
}

func (t *AttemptTracker) Locked(count int64) bool {
	return count >= LockoutThreshold
}
