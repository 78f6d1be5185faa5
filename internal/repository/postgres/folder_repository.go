package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
)

// FolderRepository implements repository.FolderRepository for PostgreSQL.
type FolderRepository struct {
	pool *Pool
}

// NewFolderRepository creates a PostgreSQL-backed folder repository.
func NewFolderRepository(pool *Pool) *FolderRepository {
	return &FolderRepository{pool: pool}
}

// siblingExists reports whether another folder with the same name shares the
// given parent. The table's UNIQUE constraint cannot catch root-level
// duplicates because NULL parents compare distinct.
func (r *FolderRepository) siblingExists(ctx context.Context, userID int64, name string, parentID *int64, excludeID int64) (bool, error) {
	query := `
		SELECT COUNT(*) FROM folders
		WHERE user_id = $1 AND name = $2 AND parent_id IS NOT DISTINCT FROM $3 AND id != $4
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, userID, name, parentID, excludeID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check sibling folders: %w", err)
	}
	return count > 0, nil
}

func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	exists, err := r.siblingExists(ctx, folder.UserID, folder.Name, folder.ParentID, 0)
	if err != nil {
		return err
	}
	if exists {
		return repository.ErrDuplicateKey
	}

	query := `
		INSERT INTO folders (user_id, name, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	now := time.Now().UTC()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = now
	}
	if folder.UpdatedAt.IsZero() {
		folder.UpdatedAt = now
	}

	err = r.pool.QueryRow(ctx, query,
		folder.UserID, folder.Name, folder.ParentID, folder.CreatedAt, folder.UpdatedAt,
	).Scan(&folder.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return nil
}

func (r *FolderRepository) GetByID(ctx context.Context, id, userID int64) (*models.Folder, error) {
	query := `
		SELECT id, user_id, name, parent_id, created_at, updated_at
		FROM folders WHERE id = $1 AND user_id = $2
	`

	folder := &models.Folder{}
	err := r.pool.QueryRow(ctx, query, id, userID).Scan(
		&folder.ID, &folder.UserID, &folder.Name, &folder.ParentID,
		&folder.CreatedAt, &folder.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return folder, nil
}

func (r *FolderRepository) ListByUser(ctx context.Context, userID int64) ([]models.Folder, error) {
	query := `
		SELECT id, user_id, name, parent_id, created_at, updated_at
		FROM folders WHERE user_id = $1 ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var folder models.Folder
		if err := rows.Scan(
			&folder.ID, &folder.UserID, &folder.Name, &folder.ParentID,
			&folder.CreatedAt, &folder.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}

	return folders, nil
}

func (r *FolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	exists, err := r.siblingExists(ctx, folder.UserID, folder.Name, folder.ParentID, folder.ID)
	if err != nil {
		return err
	}
	if exists {
		return repository.ErrDuplicateKey
	}

	query := `
		UPDATE folders SET name = $1, parent_id = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5
	`

	tag, err := r.pool.Exec(ctx, query,
		folder.Name, folder.ParentID, time.Now(), folder.ID, folder.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to update folder: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *FolderRepository) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM folders WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
