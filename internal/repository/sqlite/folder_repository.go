package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
)

// FolderRepository implements repository.FolderRepository for SQLite.
type FolderRepository struct {
	db *sql.DB
}

// NewFolderRepository creates a SQLite-backed folder repository.
func NewFolderRepository(db *sql.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// siblingExists reports whether another folder with the same name
// shares the parent. The table's UNIQUE constraint cannot catch
// root-level duplicates because NULL parents compare distinct.
func (r *FolderRepository) siblingExists(ctx context.Context, userID int64, name string, parentID *int64, excludeID int64) (bool, error) {
	query := `
		SELECT COUNT(*) FROM folders
		WHERE user_id = ? AND name = ? AND parent_id IS ? AND id != ?
	`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, userID, name, parentID, excludeID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check sibling names: %w", err)
	}
	return count > 0, nil
}

func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	dup, err := r.siblingExists(ctx, folder.UserID, folder.Name, folder.ParentID, 0)
	if err != nil {
		return err
	}
	if dup {
		return repository.ErrDuplicateKey
	}

	query := `
		INSERT INTO folders (user_id, name, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = now
	}
	if folder.UpdatedAt.IsZero() {
		folder.UpdatedAt = now
	}

	result, err := r.db.ExecContext(ctx, query,
		folder.UserID, folder.Name, folder.ParentID, folder.CreatedAt, folder.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get folder id: %w", err)
	}
	folder.ID = id

	return nil
}

func (r *FolderRepository) GetByID(ctx context.Context, id, userID int64) (*models.Folder, error) {
	query := `
		SELECT id, user_id, name, parent_id, created_at, updated_at
		FROM folders WHERE id = ? AND user_id = ?
	`

	folder := &models.Folder{}
	var parentID sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&folder.ID, &folder.UserID, &folder.Name, &parentID,
		&folder.CreatedAt, &folder.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	if parentID.Valid {
		folder.ParentID = &parentID.Int64
	}

	return folder, nil
}

func (r *FolderRepository) ListByUser(ctx context.Context, userID int64) ([]models.Folder, error) {
	query := `
		SELECT id, user_id, name, parent_id, created_at, updated_at
		FROM folders WHERE user_id = ? ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var folder models.Folder
		var parentID sql.NullInt64

		if err := rows.Scan(
			&folder.ID, &folder.UserID, &folder.Name, &parentID,
			&folder.CreatedAt, &folder.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}

		if parentID.Valid {
			folder.ParentID = &parentID.Int64
		}

		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}

	return folders, nil
}

func (r *FolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	dup, err := r.siblingExists(ctx, folder.UserID, folder.Name, folder.ParentID, folder.ID)
	if err != nil {
		return err
	}
	if dup {
		return repository.ErrDuplicateKey
	}

	query := `
		UPDATE folders SET name = ?, parent_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		folder.Name, folder.ParentID, time.Now(), folder.ID, folder.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to update folder: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *FolderRepository) Delete(ctx context.Context, id, userID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM folders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
