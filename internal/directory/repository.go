package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"security-service/internal/auth"
)

// Repository is the Postgres user directory. It also serves the provider
// registry and the per-user claim counters.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, active, two_factor_enabled, two_factor_secret`

func scanUser(row *sql.Row) (auth.User, error) {
	var user auth.User
	var passwordHash, twoFactorSecret sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &passwordHash, &user.Active, &user.TwoFactorEnabled, &twoFactorSecret); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.User{}, auth.ErrNotFound
		}
		return auth.User{}, fmt.Errorf("query user: %w", err)
	}
	user.PasswordHash = passwordHash.String
	user.TwoFactorSecret = twoFactorSecret.String
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email))
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (auth.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return auth.User{}, auth.ErrNotFound
	}

	return scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

func (r *Repository) ActivateUser(ctx context.Context, id string) error {
	return r.setActive(ctx, id, true)
}

func (r *Repository) DeactivateUser(ctx context.Context, id string) error {
	return r.setActive(ctx, id, false)
}

func (r *Repository) setActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET active = $2, updated_at = $3
		WHERE id = $1
	`, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user active: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user rows affected: %w", err)
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (r *Repository) FindProvider(ctx context.Context, provider auth.Provider) (auth.ProviderRecord, error) {
	var record auth.ProviderRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT provider, active
		FROM providers
		WHERE provider = $1
	`, string(provider)).Scan(&record.Provider, &record.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ProviderRecord{}, auth.ErrNotFound
		}
		return auth.ProviderRecord{}, fmt.Errorf("query provider: %w", err)
	}
	return record, nil
}

// IncrementClaim adds one to the claim in a single statement, so concurrent
// callers each observe a distinct value.
func (r *Repository) IncrementClaim(ctx context.Context, userID, key string) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO user_claims (user_id, key, value, updated_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id, key) DO UPDATE
		SET value = user_claims.value + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING value
	`, userID, key, time.Now().UTC()).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment claim %s: %w", key, err)
	}
	return value, nil
}

func (r *Repository) GetClaim(ctx context.Context, userID, key string) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx, `
		SELECT value
		FROM user_claims
		WHERE user_id = $1 AND key = $2
	`, userID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query claim %s: %w", key, err)
	}
	return value, nil
}

func (r *Repository) SetClaim(ctx context.Context, userID, key string, value int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_claims (user_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, key) DO UPDATE
		SET value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`, userID, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set claim %s: %w", key, err)
	}
	return nil
}
