package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository is the Postgres implementation of AuthTokenStore and APITokenStore.
type Repository struct {
	db *sql.DB
}

type CleanupResult struct {
	DeletedAuthTokens int64 `json:"deleted_auth_tokens"`
	DeletedAPITokens  int64 `json:"deleted_api_tokens"`
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const authTokenColumns = `id, action, provider, status, user_id, description, two_factor_enabled, expires_at, exchanged_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthToken(row rowScanner) (AuthToken, error) {
	var token AuthToken
	var userID, description sql.NullString
	var exchangedAt sql.NullTime
	err := row.Scan(
		&token.ID, &token.Action, &token.Provider, &token.Status, &userID, &description,
		&token.TwoFactorEnabled, &token.ExpiresAt, &exchangedAt, &token.CreatedAt, &token.UpdatedAt,
	)
	if err != nil {
		return AuthToken{}, err
	}
	token.UserID = userID.String
	token.Description = description.String
	if exchangedAt.Valid {
		value := exchangedAt.Time.UTC()
		token.ExchangedAt = &value
	}
	token.ExpiresAt = token.ExpiresAt.UTC()
	token.CreatedAt = token.CreatedAt.UTC()
	token.UpdatedAt = token.UpdatedAt.UTC()
	return token, nil
}

func (r *Repository) CreateAuthToken(ctx context.Context, token AuthToken) (AuthToken, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return AuthToken{}, fmt.Errorf("generate uuid v7: %w", err)
	}
	token.ID = id.String()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (id, action, provider, status, user_id, description, two_factor_enabled, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, token.ID, string(token.Action), string(token.Provider), string(token.Status), nullString(token.UserID),
		nullString(token.Description), token.TwoFactorEnabled, token.ExpiresAt.UTC(), token.CreatedAt.UTC(), token.UpdatedAt.UTC())
	if err != nil {
		return AuthToken{}, fmt.Errorf("insert auth token: %w", err)
	}

	return token, nil
}

func (r *Repository) GetAuthToken(ctx context.Context, id string) (AuthToken, error) {
	if _, err := uuid.Parse(id); err != nil {
		return AuthToken{}, ErrNotFound
	}

	token, err := scanAuthToken(r.db.QueryRowContext(ctx, `
		SELECT `+authTokenColumns+`
		FROM auth_tokens
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AuthToken{}, ErrNotFound
		}
		return AuthToken{}, fmt.Errorf("query auth token: %w", err)
	}

	return token, nil
}

func (r *Repository) UpdateAuthToken(ctx context.Context, token AuthToken) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE auth_tokens
		SET status = $2,
			user_id = COALESCE(user_id, $3),
			description = $4,
			two_factor_enabled = $5,
			updated_at = $6
		WHERE id = $1 AND status = 'pending'
	`, token.ID, string(token.Status), nullString(token.UserID), nullString(token.Description),
		token.TwoFactorEnabled, token.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("update auth token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("auth token rows affected: %w", err)
	}
	if affected == 0 {
		return ErrTokenNotPending
	}

	return nil
}

func (r *Repository) MarkAuthTokenExchanged(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE auth_tokens
		SET exchanged_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'success' AND exchanged_at IS NULL
	`, id, at.UTC())
	if err != nil {
		return false, fmt.Errorf("mark auth token exchanged: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("auth token rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *Repository) ListAuthTokens(ctx context.Context, filter TokenFilter, skip, take int) ([]AuthToken, error) {
	where, args := filterClause(filter)
	args = append(args, take, skip)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+authTokenColumns+`
		FROM auth_tokens`+where+`
		ORDER BY created_at DESC
		LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("query auth tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]AuthToken, 0)
	for rows.Next() {
		token, err := scanAuthToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auth token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auth tokens: %w", err)
	}

	return tokens, nil
}

func (r *Repository) CountAuthTokens(ctx context.Context, filter TokenFilter) (int64, error) {
	where, args := filterClause(filter)

	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auth_tokens`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count auth tokens: %w", err)
	}
	return count, nil
}

func filterClause(filter TokenFilter) (string, []any) {
	var conditions []string
	var args []any
	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, strings.ReplaceAll(condition, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.Action != "" {
		add("action = ?", string(filter.Action))
	}
	if filter.Provider != "" {
		add("provider = ?", string(filter.Provider))
	}
	if filter.Status != "" {
		add("status = ?", string(filter.Status))
	}
	if filter.Description != "" {
		add("POSITION(LOWER(?) IN LOWER(COALESCE(description, ''))) > 0", filter.Description)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *Repository) DeleteAuthTokens(ctx context.Context, ids []string) (int64, error) {
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		args = append(args, id)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}
	if len(args) == 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete auth tokens: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) DeleteAllAuthTokens(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_tokens`)
	if err != nil {
		return 0, fmt.Errorf("delete all auth tokens: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) CreateAPIToken(ctx context.Context, token APIToken) (APIToken, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return APIToken{}, fmt.Errorf("generate api token id: %w", err)
	}
	token.ID = id.String()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO api_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.ID, token.UserID, hashToken(token.Value), token.ExpiresAt.UTC(), token.CreatedAt.UTC())
	if err != nil {
		return APIToken{}, fmt.Errorf("insert api token: %w", err)
	}

	return token, nil
}

func (r *Repository) GetAPITokenByValue(ctx context.Context, value string) (APIToken, error) {
	var token APIToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, expires_at, created_at
		FROM api_tokens
		WHERE token_hash = $1
	`, hashToken(value)).Scan(&token.ID, &token.UserID, &token.ExpiresAt, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return APIToken{}, ErrNotFound
		}
		return APIToken{}, fmt.Errorf("query api token: %w", err)
	}
	token.ExpiresAt = token.ExpiresAt.UTC()
	token.CreatedAt = token.CreatedAt.UTC()

	return token, nil
}

func (r *Repository) DeleteAPITokenByValue(ctx context.Context, value string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE token_hash = $1`, hashToken(value))
	if err != nil {
		return false, fmt.Errorf("delete api token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("api token rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) DeleteAllAPITokens(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_tokens`)
	if err != nil {
		return 0, fmt.Errorf("delete all api tokens: %w", err)
	}
	return res.RowsAffected()
}

// CleanupExpired deletes auth tokens that expired before the retention cutoff and
// API tokens that are past their expiry, at most batchSize rows of each.
func (r *Repository) CleanupExpired(ctx context.Context, retention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}

	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM auth_tokens
			WHERE expires_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM auth_tokens t
		USING stale
		WHERE t.id = stale.id
	`, now.Add(-retention), batchSize)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete stale auth tokens: %w", err)
	}
	deletedAuthTokens, err := res.RowsAffected()
	if err != nil {
		return CleanupResult{}, fmt.Errorf("stale auth tokens rows affected: %w", err)
	}

	res, err = r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM api_tokens
			WHERE expires_at < $1
			ORDER BY expires_at ASC
			LIMIT $2
		)
		DELETE FROM api_tokens t
		USING stale
		WHERE t.id = stale.id
	`, now, batchSize)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete expired api tokens: %w", err)
	}
	deletedAPITokens, err := res.RowsAffected()
	if err != nil {
		return CleanupResult{}, fmt.Errorf("expired api tokens rows affected: %w", err)
	}

	return CleanupResult{
		DeletedAuthTokens: deletedAuthTokens,
		DeletedAPITokens:  deletedAPITokens,
	}, nil
}

func hashToken(value string) string {
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:])
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
