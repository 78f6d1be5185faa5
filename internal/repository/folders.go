package repository

import (
	"context"

	"github.com/bioshelf/bioshelf/internal/models"
)

// FolderRepository defines database operations for the folder tree.
// The hierarchy is stored with parent references; cycle prevention is
// the caller's responsibility via an ancestor walk over GetByID.
type FolderRepository interface {
	// Create inserts a new folder and populates its ID. Returns
	// ErrDuplicateKey when a sibling with the same name exists.
	Create(ctx context.Context, folder *models.Folder) error

	// GetByID retrieves a folder scoped to its owner; nil, nil when
	// absent or owned by someone else.
	GetByID(ctx context.Context, id, userID int64) (*models.Folder, error)

	// ListByUser returns all folders for one owner, ordered by name.
	ListByUser(ctx context.Context, userID int64) ([]models.Folder, error)

	// Update renames and/or reparents a folder. Returns ErrNotFound if
	// no row matched, ErrDuplicateKey on a sibling name collision.
	Update(ctx context.Context, folder *models.Folder) error

	// Delete removes a folder and, through foreign keys, its subtree.
	// Returns ErrNotFound if no row matched the id/owner pair.
	Delete(ctx context.Context, id, userID int64) error
}
