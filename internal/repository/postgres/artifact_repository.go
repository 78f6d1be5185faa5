package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
)

// ArtifactRepository implements repository.ArtifactRepository for PostgreSQL.
type ArtifactRepository struct {
	pool *Pool
}

// NewArtifactRepository creates a PostgreSQL-backed artifact repository.
func NewArtifactRepository(pool *Pool) *ArtifactRepository {
	return &ArtifactRepository{pool: pool}
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`

	if artifact.UploadedAt.IsZero() {
		artifact.UploadedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, query,
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
	).Scan(&artifact.ID)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}

	return nil
}

func (r *ArtifactRepository) GetByID(ctx context.Context, id, userID int64) (*models.Artifact, error) {
	query := `SELECT` + artifactColumns + `FROM artifacts WHERE id = $1 AND user_id = $2`

	artifact, err := scanArtifact(r.pool.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	return artifact, nil
}

func (r *ArtifactRepository) List(ctx context.Context, userID int64, filter repository.ArtifactFilter) ([]models.Artifact, error) {
	query := `SELECT` + artifactColumns + `FROM artifacts WHERE user_id = $1`
	args := []any{userID}

	if filter.Query != "" {
		// search_vector is materialized lowercase, so matching a
		// lowercased query gives case-insensitive search.
		args = append(args, "%"+escapeLikePattern(strings.ToLower(filter.Query))+"%")
		query += fmt.Sprintf(` AND search_vector LIKE $%d ESCAPE '\'`, len(args))
	}
	if filter.FileFormat != "" {
		args = append(args, filter.FileFormat)
		query += fmt.Sprintf(` AND file_format = $%d`, len(args))
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		query += fmt.Sprintf(` AND document_type = $%d`, len(args))
	}
	if filter.FolderID != nil {
		args = append(args, *filter.FolderID)
		query += fmt.Sprintf(` AND parent_folder_id = $%d`, len(args))
	}

	query += ` ORDER BY uploaded_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
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
		SET title = $1, project = $2, organism = $3, document_type = $4,
		    tags = $5, description = $6, parent_folder_id = $7, search_vector = $8
		WHERE id = $9 AND user_id = $10
	`

	tag, err := r.pool.Exec(ctx, query,
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

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *ArtifactRepository) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM artifacts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	if tag.RowsAffected() == 0 {
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

func (r *ArtifactRepository) countBy(ctx context.Context, userID int64, column string, into map[string]int64) error {
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM artifacts WHERE user_id = $1 GROUP BY %s`, column, column)

	rows, err := r.pool.Query(ctx, query, userID)
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
	query := `SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM artifacts WHERE user_id = $1`

	var count, bytes int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("failed to get user stats: %w", err)
	}

	return count, bytes, nil
}

func (r *ArtifactRepository) GetTotals(ctx context.Context) (int64, int64, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM artifacts`

	var count, bytes int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("failed to get catalog totals: %w", err)
	}

	return count, bytes, nil
}

func scanArtifact(row pgx.Row) (*models.Artifact, error) {
	artifact := &models.Artifact{}

	err := row.Scan(
		&artifact.ID,
		&artifact.UserID,
		&artifact.OriginalFilename,
		&artifact.StoredFilename,
		&artifact.FileSize,
		&artifact.MimeType,
		&artifact.UploadMethod,
		&artifact.ParentFolderID,
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

	return artifact, nil
}
