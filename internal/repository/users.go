package repository

import (
	"context"

	"github.com/bioshelf/bioshelf/internal/models"
)

// UserRepository defines database operations for accounts and API
// tokens. The transfer subsystem only consumes the resolved owner
// identity; these operations back that narrow interface.
type UserRepository interface {
	// Create inserts a new user and populates its ID. Returns
	// ErrDuplicateKey when the username is taken.
	Create(ctx context.Context, user *models.User) error

	// GetByUsername retrieves a user by username; nil, nil when absent.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetByID retrieves a user by id; nil, nil when absent.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// CreateToken stores the SHA-256 hash of an issued API token.
	CreateToken(ctx context.Context, userID int64, tokenHash string) error

	// GetUserByTokenHash resolves a token hash to its owning user;
	// nil, nil when the token is unknown.
	GetUserByTokenHash(ctx context.Context, tokenHash string) (*models.User, error)
}
