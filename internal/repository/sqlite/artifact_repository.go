package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
)

// ArtifactRepository implements repository.ArtifactRepository for SQLite.
type ArtifactRepository struct {
	db *sql.DB
}

// NewArtifactRepository creates a SQLite-backed artifact repository.
func NewArtifactRepository(db *sql.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

const artifactColumns = `
	id, user_id, original_filename, stored_filename, file_size, mime_type,
	upload_method, parent_folder_id, uploaded_at, title, project, organism,
	file_format, document_type, tags, description, checksum,
	extracted_metadata, search_vector
`

func (r *ArtifactRepository) Create(ctx context.Context, artifact *models.Artifact) error {
	query := `
		INSERT INTO artifacts (
			user_id, original_filename, stored_filename, file_size, mime_type,
			upload_method, parent_folder_id, uploaded_at, title, project, organism,
			file_format, document_type, tags, description, checksum,
			extracted_metadata, search_vector
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if artifact.UploadedAt.IsZero() {
		artifact.UploadedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		artifact.UserID,
		artifact.OriginalFilename,
		artifact.StoredFilename,
		artifact.FileSize,
		artifact.MimeType,
		artifact.UploadMethod,
		artifact.ParentFolderID,
		artifact.UploadedAt,
		artifact.Title,
		artifact.Project,
		artifact.Organism,
		artifact.FileFormat,
		artifact.DocumentType,
		artifact.Tags,
		artifact.Description,
		artifact.Checksum,
		artifact.ExtractedMetadata,
		artifact.SearchVector,
	)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get artifact id: %w", err)
	}
	artifact.ID = id

	return nil
}

func (r *ArtifactRepository) GetByID(ctx context.Context, id, userID int64) (*models.Artifact, error) {
	query := `SELECT` + artifactColumns + `FROM artifacts WHERE id = ? AND user_id = ?`

	artifact, err := scanArtifact(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	return artifact, nil
}

func (r *ArtifactRepository) List(ctx context.Context, userID int64, filter repository.ArtifactFilter) ([]models.Artifact, error) {
	query := `SELECT` + artifactColumns + `FROM artifacts WHERE user_id = ?`
	args := []any{userID}

	if filter.Query != "" {
		// search_vector is materialized lowercase, so matching a
		// lowercased query gives case-insensitive search.
		query += ` AND search_vector LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLikePattern(strings.ToLower(filter.Query))+"%")
	}
	if filter.FileFormat != "" {
		query += ` AND file_format = ?`
		args = append(args, filter.FileFormat)
	}
	if filter.DocumentType != "" {
		query += ` AND document_type = ?`
		args = append(args, filter.DocumentType)
	}
	if filter.FolderID != nil {
		query += ` AND parent_folder_id = ?`
		args = append(args, *filter.FolderID)
	}

	query += ` ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []models.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, *artifact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}

	return artifacts, nil
}

func (r *ArtifactRepository) Update(ctx context.Context, artifact *models.Artifact) error {
	query := `
		UPDATE artifacts
		SET title = ?, project = ?, organism = ?, document_type = ?,
		    tags = ?, description = ?, parent_folder_id = ?, search_vector = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		artifact.Title,
		artifact.Project,
		artifact.Organism,
		artifact.DocumentType,
		artifact.Tags,
		artifact.Description,
		artifact.ParentFolderID,
		artifact.SearchVector,
		artifact.ID,
		artifact.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update artifact: %w", err)
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

func (r *ArtifactRepository) Delete(ctx context.Context, id, userID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM artifacts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
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

func (r *ArtifactRepository) Facets(ctx context.Context, userID int64) (*repository.FacetCounts, error) {
	facets := &repository.FacetCounts{
		Formats:       make(map[string]int64),
		DocumentTypes: make(map[string]int64),
	}

	if err := r.countBy(ctx, userID, "file_format", facets.Formats); err != nil {
		return nil, err
	}
	if err := r.countBy(ctx, userID, "document_type", facets.DocumentTypes); err != nil {
		return nil, err
	}

	return facets, nil
}

// countBy aggregates artifact counts grouped by the given column. The
// column name is always one of the fixed identifiers above, never user
// input.
func (r *ArtifactRepository) countBy(ctx context.Context, userID int64, column string, into map[string]int64) error {
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM artifacts WHERE user_id = ? GROUP BY %s`, column, column)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var value string
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return fmt.Errorf("failed to scan facet row: %w", err)
		}
		into[value] = count
	}

	return rows.Err()
}

func (r *ArtifactRepository) GetUserStats(ctx context.Context, userID int64) (int64, int64, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM artifacts WHERE user_id = ?`

	var count, bytes int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("failed to get user stats: %w", err)
	}

	return count, bytes, nil
}

func (r *ArtifactRepository) GetTotals(ctx context.Context) (int64, int64, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM artifacts`

	var count, bytes int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("failed to get catalog totals: %w", err)
	}

	return count, bytes, nil
}

func scanArtifact(row rowScanner) (*models.Artifact, error) {
	artifact := &models.Artifact{}
	var parentFolderID sql.NullInt64

	err := row.Scan(
		&artifact.ID,
		&artifact.UserID,
		&artifact.OriginalFilename,
		&artifact.StoredFilename,
		&artifact.FileSize,
		&artifact.MimeType,
		&artifact.UploadMethod,
		&parentFolderID,
		&artifact.UploadedAt,
		&artifact.Title,
		&artifact.Project,
		&artifact.Organism,
		&artifact.FileFormat,
		&artifact.DocumentType,
		&artifact.Tags,
		&artifact.Description,
		&artifact.Checksum,
		&artifact.ExtractedMetadata,
		&artifact.SearchVector,
	)
	if err != nil {
		return nil, err
	}

	if parentFolderID.Valid {
		artifact.ParentFolderID = &parentFolderID.Int64
	}

	return artifact, nil
}
