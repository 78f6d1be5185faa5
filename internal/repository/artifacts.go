package repository

import (
	"context"

	"github.com/bioshelf/bioshelf/internal/models"
)

// ArtifactFilter narrows catalog queries. Zero values mean "no filter".
type ArtifactFilter struct {
	Query        string // matched against the materialized search vector
	FileFormat   string
	DocumentType string
	FolderID     *int64
}

// ArtifactRepository defines database operations for the catalog of
// permanently stored files.
type ArtifactRepository interface {
	// Create inserts a new artifact record and populates its ID.
	Create(ctx context.Context, artifact *models.Artifact) error

	// GetByID retrieves an artifact scoped to its owner. Ownership
	// mismatch and absence are indistinguishable: nil, nil.
	GetByID(ctx context.Context, id, userID int64) (*models.Artifact, error)

	// List returns artifacts for one owner matching the filter, newest
	// first.
	List(ctx context.Context, userID int64, filter ArtifactFilter) ([]models.Artifact, error)

	// Update persists descriptive metadata changes. The stored bytes
	// and identity columns are untouched. Returns ErrNotFound if no
	// row matched the id/owner pair.
	Update(ctx context.Context, artifact *models.Artifact) error

	// Delete removes an artifact record. Returns ErrNotFound if no row
	// matched the id/owner pair.
	Delete(ctx context.Context, id, userID int64) error

	// Facets returns per-format and per-document-type counts for one
	// owner's catalog.
	Facets(ctx context.Context, userID int64) (*FacetCounts, error)

	// GetUserStats returns file count and total bytes for one owner.
	GetUserStats(ctx context.Context, userID int64) (count int64, bytes int64, err error)

	// GetTotals returns catalog-wide file count and byte totals, used
	// by the health endpoint.
	GetTotals(ctx context.Context) (count int64, bytes int64, err error)
}
