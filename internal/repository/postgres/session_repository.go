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

// SessionRepository implements repository.SessionRepository for PostgreSQL.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a PostgreSQL-backed session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `
	id, session_id, user_id, original_filename, total_size, chunk_size,
	uploaded_size, temp_path, status, parent_folder_id, created_at, last_activity
`

func (r *SessionRepository) Create(ctx context.Context, session *models.UploadSession) error {
	query := `
		INSERT INTO upload_sessions (
			session_id, user_id, original_filename, total_size, chunk_size,
			uploaded_size, temp_path, status, parent_folder_id, created_at, last_activity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = now
	}

	err := r.pool.QueryRow(ctx, query,
		session.SessionID,
		session.UserID,
		session.OriginalFilename,
		session.TotalSize,
		session.ChunkSize,
		session.UploadedSize,
		session.TempPath,
		session.Status,
		session.ParentFolderID,
		session.CreatedAt,
		session.LastActivity,
	).Scan(&session.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create upload session: %w", err)
	}

	return nil
}

func (r *SessionRepository) GetBySessionID(ctx context.Context, sessionID string, userID int64) (*models.UploadSession, error) {
	query := `SELECT` + sessionColumns + `FROM upload_sessions WHERE session_id = $1 AND user_id = $2`

	session, err := scanSession(r.pool.QueryRow(ctx, query, sessionID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload session: %w", err)
	}

	return session, nil
}

func (r *SessionRepository) AdvanceUploadedSize(ctx context.Context, sessionID string, endExclusive int64) (int64, error) {
	query := `
		UPDATE upload_sessions
		SET uploaded_size = GREATEST(uploaded_size, $1), last_activity = $2
		WHERE session_id = $3 AND status = 'active'
		RETURNING uploaded_size
	`

	var uploaded int64
	err := r.pool.QueryRow(ctx, query, endExclusive, time.Now(), sessionID).Scan(&uploaded)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repository.ErrNotActive
	}
	if err != nil {
		return 0, fmt.Errorf("failed to advance uploaded size: %w", err)
	}

	return uploaded, nil
}

func (r *SessionRepository) MarkCompleted(ctx context.Context, sessionID string) (bool, error) {
	return r.transition(ctx, sessionID, models.SessionCompleted)
}

func (r *SessionRepository) MarkCanceled(ctx context.Context, sessionID string) (bool, error) {
	return r.transition(ctx, sessionID, models.SessionCanceled)
}

func (r *SessionRepository) ReopenCompleted(ctx context.Context, sessionID string) (bool, error) {
	query := `
		UPDATE upload_sessions
		SET status = 'active', last_activity = $1
		WHERE session_id = $2 AND status = 'completed'
	`

	tag, err := r.pool.Exec(ctx, query, time.Now(), sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to reopen session: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *SessionRepository) transition(ctx context.Context, sessionID, status string) (bool, error) {
	query := `
		UPDATE upload_sessions
		SET status = $1, last_activity = $2
		WHERE session_id = $3 AND status = 'active'
	`

	tag, err := r.pool.Exec(ctx, query, status, time.Now(), sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to transition session to %s: %w", status, err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *SessionRepository) UpdateActivity(ctx context.Context, sessionID string) error {
	query := `UPDATE upload_sessions SET last_activity = $1 WHERE session_id = $2`

	if _, err := r.pool.Exec(ctx, query, time.Now(), sessionID); err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}

	return nil
}

func (r *SessionRepository) GetAbandoned(ctx context.Context, expiryHours int) ([]models.UploadSession, error) {
	query := `
		SELECT` + sessionColumns + `
		FROM upload_sessions
		WHERE status = 'active'
		AND last_activity < NOW() - ($1 * INTERVAL '1 hour')
		ORDER BY last_activity ASC
	`

	rows, err := r.pool.Query(ctx, query, expiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to get abandoned sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.UploadSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

func (r *SessionRepository) GetUserSessionStats(ctx context.Context, userID int64) (int64, int64, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(uploaded_size), 0)
		FROM upload_sessions
		WHERE user_id = $1 AND status = 'active'
	`

	var count, bytes int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("failed to get session stats: %w", err)
	}

	return count, bytes, nil
}

func scanSession(row pgx.Row) (*models.UploadSession, error) {
	session := &models.UploadSession{}

	err := row.Scan(
		&session.ID,
		&session.SessionID,
		&session.UserID,
		&session.OriginalFilename,
		&session.TotalSize,
		&session.ChunkSize,
		&session.UploadedSize,
		&session.TempPath,
		&session.Status,
		&session.ParentFolderID,
		&session.CreatedAt,
		&session.LastActivity,
	)
	if err != nil {
		return nil, err
	}

	return session, nil
}
