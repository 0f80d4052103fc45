package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"security-service/internal/observability"
)

type Dependencies struct {
	AuthTokens AuthTokenStore
	APITokens  APITokenStore
	Users      UserDirectory
	Providers  ProviderRegistry
	Claims     ClaimStore
	Passwords  PasswordComparator
	Codes      CodeVerifier
	Logger     *observability.Logger
}

// Service owns the AuthToken lifecycle: pending -> success | failed. Every
// transition starts from CheckToken, and every refusal goes through failWith so
// the failed status is stored before the error reaches the caller.
type Service struct {
	tokens    AuthTokenStore
	apiTokens APITokenStore
	users     UserDirectory
	providers ProviderRegistry
	attempts  *AttemptTracker
	passwords PasswordComparator
	codes     CodeVerifier
	logger    *observability.Logger
	now       func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	codes := deps.Codes
	if codes == nil {
		codes = TOTPVerifier{}
	}

	return &Service{
		tokens:    deps.AuthTokens,
		apiTokens: deps.APITokens,
		users:     deps.Users,
		providers: deps.Providers,
		attempts:  NewAttemptTracker(deps.Claims, deps.Users),
		passwords: deps.Passwords,
		codes:     codes,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithClock(now func() time.Time) {
	if now != nil {
		s.now = func() time.Time { return now().UTC() }
	}
}

// Initiate opens a pending login for provider and returns the step the caller
// must perform next.
func (s *Service) Initiate(ctx context.Context, provider Provider) (Initiation, error) {
	record, err := s.providers.FindProvider(ctx, provider)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Initiation{}, fmt.Errorf("find provider: %w", err)
	}
	if err != nil || !record.Active {
		return Initiation{}, &RejectedError{
			Kind:    ErrProviderUnavailable,
			Message: fmt.Sprintf("Provider %s not found or is not active.", provider),
		}
	}

	// Reject unsupported providers before a token exists.
	if _, err := NextStepFor(record.Provider, "", ActionAuth); err != nil {
		return Initiation{}, err
	}

	now := s.now()
	token, err := s.tokens.CreateAuthToken(ctx, AuthToken{
		Action:    ActionLogin,
		Provider:  record.Provider,
		Status:    StatusPending,
		ExpiresAt: now.Add(TTLFor(ActionLogin)),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Initiation{}, fmt.Errorf("create authentication token: %w", err)
	}

	next, err := NextStepFor(token.Provider, token.ID, ActionAuth)
	if err != nil {
		return Initiation{}, err
	}

	s.logger.FromContext(ctx).Info("auth_token_initiated", map[string]any{
		"token_id": token.ID,
		"provider": string(token.Provider),
	})

	return Initiation{
		ID:        token.ID,
		Status:    token.Status,
		ExpiresAt: token.ExpiresAt,
		Next:      next,
	}, nil
}

// CheckToken loads a token that is still usable. A missing or failed token is
// refused with ErrTokenInvalid.
func (s *Service) CheckToken(ctx context.Context, tokenID string) (AuthToken, error) {
	token, err := s.tokens.GetAuthToken(ctx, strings.TrimSpace(tokenID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthToken{}, &RejectedError{Kind: ErrTokenInvalid, Message: msgTokenConsumed}
		}
		return AuthToken{}, fmt.Errorf("load authentication token: %w", err)
	}

	if token.Status == StatusFailed {
		return AuthToken{}, s.failWith(ctx, token, ErrTokenInvalid, msgTokenConsumed)
	}

	return token, nil
}

// CompleteLocalLogin verifies email and password against a pending token.
func (s *Service) CompleteLocalLogin(ctx context.Context, tokenID string, credentials Credentials) (AuthToken, error) {
	token, err := s.CheckToken(ctx, tokenID)
	if err != nil {
		return AuthToken{}, err
	}
	if token.Status != StatusPending || token.UserID != "" || token.Provider != ProviderLocal {
		return AuthToken{}, s.failWith(ctx, token, ErrTokenInvalid, msgTokenConsumed)
	}
	if s.now().After(token.ExpiresAt) {
		return AuthToken{}, s.failWith(ctx, token, ErrTokenExpired, msgTokenExpired)
	}

	email := strings.ToLower(strings.TrimSpace(credentials.Email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthToken{}, s.failWith(ctx, token, ErrInvalidCredentials,
				fmt.Sprintf("User with email address %s not found.", email))
		}
		return AuthToken{}, s.abort(ctx, token, fmt.Errorf("find user: %w", err))
	}
	if !user.Active {
		return AuthToken{}, s.failWith(ctx, token, ErrInvalidCredentials,
			fmt.Sprintf("User with email address %s is not active.", email))
	}
	if !user.HasPassword() {
		return AuthToken{}, s.failWith(ctx, token, ErrInvalidCredentials,
			fmt.Sprintf("User with email address %s does not have a password.", email))
	}

	if !s.passwords.Compare(credentials.Password, user.PasswordHash) {
		count, err := s.attempts.Increment(ctx, user.ID)
		if err != nil {
			return AuthToken{}, s.abort(ctx, token, err)
		}
		if s.attempts.Locked(count) {
			if err := s.users.DeactivateUser(ctx, user.ID); err != nil {
				return AuthToken{}, s.abort(ctx, token, fmt.Errorf("deactivate user: %w", err))
			}
			s.logger.FromContext(ctx).Warn("user_locked", map[string]any{
				"user_id":  user.ID,
				"attempts": count,
			})
			return AuthToken{}, s.failWith(ctx, token, ErrAccountLocked,
				fmt.Sprintf("User with email address %s has been locked. Please contact an administrator.", email))
		}
		return AuthToken{}, s.failWith(ctx, token, ErrInvalidCredentials,
			fmt.Sprintf("User with email address %s entered a wrong password.", email))
	}

	if err := s.attempts.Reset(ctx, user.ID); err != nil {
		return AuthToken{}, s.abort(ctx, token, err)
	}

	token.UserID = user.ID
	token.TwoFactorEnabled = user.TwoFactorEnabled
	token.Status = StatusSuccess
	if user.TwoFactorEnabled {
		token.Status = StatusPending
	}
	token.Description = ""

	if err := s.save(ctx, token); err != nil {
		return AuthToken{}, err
	}

	s.logger.FromContext(ctx).Info("auth_token_verified", map[string]any{
		"token_id":   token.ID,
		"user_id":    token.UserID,
		"status":     string(token.Status),
		"two_factor": token.TwoFactorEnabled,
	})

	return token, nil
}

// CompleteTwoFactor finishes a login whose password step left the token pending
// because the user has two-factor authentication enabled.
func (s *Service) CompleteTwoFactor(ctx context.Context, tokenID, code string) (AuthToken, error) {
	token, err := s.CheckToken(ctx, tokenID)
	if err != nil {
		return AuthToken{}, err
	}
	if token.Status != StatusPending || token.UserID == "" || !token.TwoFactorEnabled {
		return AuthToken{}, s.failWith(ctx, token, ErrTokenInvalid, msgNotVerified)
	}
	if s.now().After(token.ExpiresAt) {
		return AuthToken{}, s.failWith(ctx, token, ErrTokenExpired, msgTokenExpired)
	}

	user, err := s.users.GetUserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthToken{}, s.failWith(ctx, token, ErrInvalidCredentials, "User not found.")
		}
		return AuthToken{}, s.abort(ctx, token, fmt.Errorf("find user: %w", err))
	}
	if !user.Active {
		return AuthToken{}, s.failWith(ctx, token, ErrInvalidCredentials, "User is not active.")
	}
	if user.TwoFactorSecret == "" || !s.codes.Verify(strings.TrimSpace(code), user.TwoFactorSecret) {
		return AuthToken{}, s.failWith(ctx, token, ErrInvalidCredentials, msgInvalidCode)
	}

	token.Status = StatusSuccess
	token.Description = ""
	if err := s.save(ctx, token); err != nil {
		return AuthToken{}, err
	}

	return token, nil
}

func (s *Service) save(ctx context.Context, token AuthToken) error {
	token.UpdatedAt = s.now()
	if err := s.tokens.UpdateAuthToken(ctx, token); err != nil {
		if errors.Is(err, ErrTokenNotPending) {
			return &RejectedError{Kind: ErrTokenInvalid, Message: msgTokenConsumed}
		}
		return fmt.Errorf("update authentication token: %w", err)
	}
	return nil
}

// failWith stores the token as failed with message and returns the refusal. A
// token that already succeeded is left untouched.
func (s *Service) failWith(ctx context.Context, token AuthToken, kind error, message string) error {
	rejected := &RejectedError{Kind: kind, Message: message}
	if token.Status == StatusSuccess {
		return rejected
	}

	if err := s.markFailed(ctx, token, message); err != nil {
		return err
	}

	s.logger.FromContext(ctx).Info("auth_token_failed", map[string]any{
		"token_id": token.ID,
		"reason":   kind.Error(),
	})

	return rejected
}

// abort fails the token after a collaborator error and hands cause back
// unchanged, so callers still report an internal error rather than a refusal.
func (s *Service) abort(ctx context.Context, token AuthToken, cause error) error {
	if token.Status == StatusSuccess {
		return cause
	}

	if err := s.markFailed(ctx, token, msgLoginAborted); err != nil {
		return errors.Join(cause, err)
	}

	s.logger.FromContext(ctx).Error("auth_token_aborted", map[string]any{
		"token_id": token.ID,
		"error":    cause.Error(),
	})

	return cause
}

func (s *Service) markFailed(ctx context.Context, token AuthToken, message string) error {
	token.Status = StatusFailed
	token.Description = message
	token.UpdatedAt = s.now()
	if err := s.tokens.UpdateAuthToken(ctx, token); err != nil && !errors.Is(err, ErrTokenNotPending) {
		return fmt.Errorf("fail authentication token %s: %w", token.ID, err)
	}
	return nil
}
