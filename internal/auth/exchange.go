package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Exchange converts a successful AuthToken into an API token. Each AuthToken can
// be exchanged once.
func (s *Service) Exchange(ctx context.Context, tokenID string) (APIToken, error) {
	token, err := s.CheckToken(ctx, tokenID)
	if err != nil {
		return APIToken{}, err
	}

	now := s.now()
	if !now.Before(token.ExpiresAt) {
		return APIToken{}, s.failWith(ctx, token, ErrTokenExpired, msgTokenExpired)
	}
	if token.UserID == "" || token.Status != StatusSuccess {
		return APIToken{}, s.failWith(ctx, token, ErrTokenInvalid, msgNotVerified)
	}

	marked, err := s.tokens.MarkAuthTokenExchanged(ctx, token.ID, now)
	if err != nil {
		return APIToken{}, fmt.Errorf("mark authentication token exchanged: %w", err)
	}
	if !marked {
		s.logger.FromContext(ctx).Debug("auth_token_exchange_replayed", map[string]any{"token_id": token.ID})
		return APIToken{}, &RejectedError{Kind: ErrTokenInvalid, Message: msgTokenConsumed}
	}

	value, err := newAPITokenValue()
	if err != nil {
		return APIToken{}, fmt.Errorf("generate api token: %w", err)
	}

	apiToken, err := s.apiTokens.CreateAPIToken(ctx, APIToken{
		UserID:    token.UserID,
		Value:     value,
		ExpiresAt: now.Add(APITokenTTL),
		CreatedAt: now,
	})
	if err != nil {
		return APIToken{}, fmt.Errorf("create api token: %w", err)
	}

	s.logger.FromContext(ctx).Info("auth_token_exchanged", map[string]any{
		"token_id":     token.ID,
		"api_token_id": apiToken.ID,
		"user_id":      apiToken.UserID,
	})

	return apiToken, nil
}

// Authenticate resolves an API token value to its owner. Expired tokens and
// inactive owners are refused.
func (s *Service) Authenticate(ctx context.Context, value string) (Principal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Principal{}, ErrTokenInvalid
	}

	token, err := s.apiTokens.GetAPITokenByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrTokenInvalid
		}
		return Principal{}, fmt.Errorf("load api token: %w", err)
	}
	if !s.now().Before(token.ExpiresAt) {
		return Principal{}, ErrTokenExpired
	}

	user, err := s.users.GetUserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrTokenInvalid
		}
		return Principal{}, fmt.Errorf("load api token owner: %w", err)
	}
	if !user.Active {
		return Principal{}, ErrTokenInvalid
	}

	return Principal{UserID: user.ID, TokenID: token.ID}, nil
}

func (s *Service) Revoke(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ErrTokenInvalid
	}

	deleted, err := s.apiTokens.DeleteAPITokenByValue(ctx, value)
	if err != nil {
		return fmt.Errorf("revoke api token: %w", err)
	}
	if !deleted {
		return ErrTokenInvalid
	}
	return nil
}

// newAPITokenValue concatenates four random UUIDs without separators.
func newAPITokenValue() (string, error) {
	var b strings.Builder
	for range 4 {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		b.WriteString(strings.ReplaceAll(id.String(), "-", ""))
	}
	return b.String(), nil
}
