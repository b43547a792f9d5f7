package storage

import (
	"context"

	"github.com/iudanet/accountd/internal/models"
)

// UserStorage defines interface for user account persistence
type UserStorage interface {
	// CreateUser creates a new user and assigns user.ID
	// Returns ErrUserAlreadyExists if email is already taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)

	// GetUserByEmail retrieves user by email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByActivationToken retrieves user by pending activation token
	// Returns ErrUserNotFound if no user holds this token
	GetUserByActivationToken(ctx context.Context, token string) (*models.User, error)

	// GetUserByResetToken retrieves user by outstanding password reset token
	// Returns ErrUserNotFound if no user holds this token
	GetUserByResetToken(ctx context.Context, token string) (*models.User, error)

	// UpdateUser updates all mutable user fields
	// Returns ErrUserNotFound if user doesn't exist
	UpdateUser(ctx context.Context, user *models.User) error

	// DeleteUser deletes user by ID; session tokens cascade at schema level
	// Returns ErrUserNotFound if user doesn't exist
	DeleteUser(ctx context.Context, userID int64) error

	// ListUsers returns a page of users ordered by ID plus the total count
	ListUsers(ctx context.Context, offset, limit int) ([]*models.User, int, error)
}
