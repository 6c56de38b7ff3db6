package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tmanjupriya-lang/inventory-management/pkg/database"
)

// RefreshTokenRepository implements repository.RefreshTokenRepository.
// The user_id primary key keeps exactly one row per user.
type RefreshTokenRepository struct {
	pool database.DBTX
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(pool database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

// Upsert stores tokenHash as the user's only refresh token.
func (r *RefreshTokenRepository) Upsert(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, userID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("upsert refresh token: %w", err)
	}
	return nil
}

// Rotate swaps the stored hash in a single conditional update. Two requests
// racing with the same old token cannot both succeed.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, userID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET token_hash = $3, expires_at = $4, updated_at = NOW()
		WHERE user_id = $1 AND token_hash = $2 AND expires_at > NOW()`

	tag, err := r.pool.Exec(ctx, query, userID, oldHash, newHash, expiresAt)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteByUser removes the user's refresh token, if any.
func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
