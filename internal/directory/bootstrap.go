package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"security-service/internal/auth"
)

// BootstrapFromEnv makes sure the configured administrator can sign in with the
// local provider. Both values empty is a no-op.
func (r *Repository) BootstrapFromEnv(ctx context.Context, adminEmail, adminPassword string) error {
	adminEmail = strings.TrimSpace(strings.ToLower(adminEmail))
	adminPassword = strings.TrimSpace(adminPassword)

	if adminEmail == "" && adminPassword == "" {
		return nil
	}
	if adminEmail == "" || adminPassword == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	return r.UpsertAdmin(ctx, adminEmail, adminPassword)
}

// UpsertAdmin creates or refreshes an active user with a bcrypt password and
// activates the local provider in the same transaction.
func (r *Repository) UpsertAdmin(ctx context.Context, email, plainPassword string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	hash, err := HashPassword(plainPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
			active = TRUE,
			updated_at = EXCLUDED.updated_at
	`, id.String(), email, hash, now); err != nil {
		return fmt.Errorf("upsert admin user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO providers (provider, active, created_at, updated_at)
		VALUES ($1, TRUE, $2, $2)
		ON CONFLICT (provider) DO UPDATE
		SET active = TRUE,
			updated_at = EXCLUDED.updated_at
	`, string(auth.ProviderLocal), now); err != nil {
		return fmt.Errorf("activate local provider: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
