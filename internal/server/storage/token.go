package storage

import (
	"context"
	"time"

	"github.com/iudanet/accountd/internal/models"
)

// TokenStorage defines interface for session token persistence
type TokenStorage interface {
	// SaveSessionToken stores a new session token
	SaveSessionToken(ctx context.Context, token *models.SessionToken) error

	// GetSessionToken retrieves session token by exact value.
	// The lookup joins the owning user row, so a token whose owner
	// has been deleted behaves as if it does not exist.
	// Returns ErrTokenNotFound if token doesn't exist
	GetSessionToken(ctx context.Context, token string) (*models.SessionToken, error)

	// UpdateSessionTokenLastUsed bumps last_used_at for a token
	// Returns ErrTokenNotFound if token doesn't exist
	UpdateSessionTokenLastUsed(ctx context.Context, token string, lastUsed time.Time) error

	// DeleteSessionToken deletes session token by value
	// Returns ErrTokenNotFound if token doesn't exist
	DeleteSessionToken(ctx context.Context, token string) error

	// DeleteUserSessionTokens deletes all session tokens for a user
	// Returns number of deleted tokens
	DeleteUserSessionTokens(ctx context.Context, userID int64) (int, error)

	// DeleteSessionTokensLastUsedBefore removes all tokens whose
	// last_used_at is older than cutoff, across all users.
	// Returns number of deleted tokens
	DeleteSessionTokensLastUsedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
