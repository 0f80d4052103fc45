package auth

import (
	"context"
	"fmt"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

func (s *Service) List(ctx context.Context, filter TokenFilter, skip, take int) (TokenPage, error) {
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = defaultPageSize
	}
	if take > maxPageSize {
		take = maxPageSize
	}

	data, err := s.tokens.ListAuthTokens(ctx, filter, skip, take)
	if err != nil {
		return TokenPage{}, fmt.Errorf("list authentication tokens: %w", err)
	}
	count, err := s.tokens.CountAuthTokens(ctx, filter)
	if err != nil {
		return TokenPage{}, fmt.Errorf("count authentication tokens: %w", err)
	}

	return TokenPage{Data: data, Count: count}, nil
}

func (s *Service) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := s.tokens.DeleteAuthTokens(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	return deleted, nil
}

// Purge removes every authentication and API token.
func (s *Service) Purge(ctx context.Context) (PurgeResult, error) {
	tokens, err := s.tokens.DeleteAllAuthTokens(ctx)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("failed to delete documents: %w", err)
	}
	apiTokens, err := s.apiTokens.DeleteAllAPITokens(ctx)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("failed to delete documents: %w", err)
	}

	s.logger.FromContext(ctx).Warn("auth_data_purged", map[string]any{
		"deleted_auth_tokens": tokens,
		"deleted_api_tokens":  apiTokens,
	})

	return PurgeResult{DeletedAuthTokens: tokens, DeletedAPITokens: apiTokens}, nil
}
