package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/accountd/internal/models"
	"github.com/iudanet/accountd/internal/server/storage"
)

// SaveSessionToken stores a new session token
func (s *Storage) SaveSessionToken(ctx context.Context, token *models.SessionToken) error {
	query := `
		INSERT INTO session_tokens (token, user_id, last_used_at)
		VALUES (?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		token.Token,
		token.UserID,
		token.LastUsedAt.UnixMilli(),
	)

	if err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}

	return nil
}

// GetSessionToken retrieves session token by exact value.
// JOIN к users гарантирует, что токен удаленного пользователя
// неотличим от несуществующего.
func (s *Storage) GetSessionToken(ctx context.Context, token string) (*models.SessionToken, error) {
	query := `
		SELECT t.token, t.user_id, t.last_used_at
		FROM session_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token = ?
	`

	sessionToken := &models.SessionToken{}
	var lastUsedAt int64

	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&sessionToken.Token,
		&sessionToken.UserID,
		&lastUsedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get session token: %w", err)
	}

	sessionToken.LastUsedAt = time.UnixMilli(lastUsedAt)

	return sessionToken, nil
}

// UpdateSessionTokenLastUsed bumps last_used_at for a token
func (s *Storage) UpdateSessionTokenLastUsed(ctx context.Context, token string, lastUsed time.Time) error {
	query := `UPDATE session_tokens SET last_used_at = ? WHERE token = ?`

	result, err := s.db.ExecContext(ctx, query, lastUsed.UnixMilli(), token)
	if err != nil {
		return fmt.Errorf("failed to update session token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}

// DeleteSessionToken deletes session token by value
func (s *Storage) DeleteSessionToken(ctx context.Context, token string) error {
	query := `DELETE FROM session_tokens WHERE token = ?`

	result, err := s.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}

// DeleteUserSessionTokens deletes all session tokens for a user
func (s *Storage) DeleteUserSessionTokens(ctx context.Context, userID int64) (int, error) {
	query := `DELETE FROM session_tokens WHERE user_id = ?`

	result, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user session tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// DeleteSessionTokensLastUsedBefore removes all tokens staler than cutoff
func (s *Storage) DeleteSessionTokensLastUsedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM session_tokens WHERE last_used_at < ?`

	result, err := s.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale session tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}
