package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
)

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a SQLite-backed session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = now
	}

	result, err := r.db.ExecContext(ctx, query,
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
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create upload session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get session id: %w", err)
	}
	session.ID = id

	return nil
}

func (r *SessionRepository) GetBySessionID(ctx context.Context, sessionID string, userID int64) (*models.UploadSession, error) {
	// Ownership is part of the lookup key: a session owned by another
	// user is indistinguishable from a missing one.
	query := `SELECT` + sessionColumns + `FROM upload_sessions WHERE session_id = ? AND user_id = ?`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, sessionID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload session: %w", err)
	}

	return session, nil
}

func (r *SessionRepository) AdvanceUploadedSize(ctx context.Context, sessionID string, endExclusive int64) (int64, error) {
	// MAX keeps the high-water mark monotonic when chunks arrive out of
	// order; the status guard makes a post-cancel write fail instead of
	// resurrecting the session.
	query := `
		UPDATE upload_sessions
		SET uploaded_size = MAX(uploaded_size, ?), last_activity = ?
		WHERE session_id = ? AND status = 'active'
	`

	result, err := r.db.ExecContext(ctx, query, endExclusive, time.Now().UTC(), sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to advance uploaded size: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return 0, repository.ErrNotActive
	}

	var uploaded int64
	err = r.db.QueryRowContext(ctx,
		`SELECT uploaded_size FROM upload_sessions WHERE session_id = ?`, sessionID,
	).Scan(&uploaded)
	if err != nil {
		return 0, fmt.Errorf("failed to read uploaded size: %w", err)
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
		SET status = 'active', last_activity = ?
		WHERE session_id = ? AND status = 'completed'
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to reopen session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// transition atomically moves a session out of the active state. The
// rows-affected check doubles as the lock: two racing callers cannot
// both observe a successful transition.
func (r *SessionRepository) transition(ctx context.Context, sessionID, status string) (bool, error) {
	query := `
		UPDATE upload_sessions
		SET status = ?, last_activity = ?
		WHERE session_id = ? AND status = 'active'
	`

	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to transition session to %s: %w", status, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

func (r *SessionRepository) UpdateActivity(ctx context.Context, sessionID string) error {
	query := `UPDATE upload_sessions SET last_activity = ? WHERE session_id = ?`

	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), sessionID); err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}

	return nil
}

func (r *SessionRepository) GetAbandoned(ctx context.Context, expiryHours int) ([]models.UploadSession, error) {
	// The cutoff is computed in Go and bound as a time.Time: the driver
	// stores timestamps in its own text format, which SQLite's datetime()
	// cannot parse, so arithmetic on the SQL side would match nothing.
	cutoff := time.Now().UTC().Add(-time.Duration(expiryHours) * time.Hour)

	query := `
		SELECT` + sessionColumns + `
		FROM upload_sessions
		WHERE status = 'active' AND last_activity < ?
		ORDER BY last_activity ASC
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
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
		WHERE user_id = ? AND status = 'active'
	`

	var count, bytes int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("failed to get session stats: %w", err)
	}

	return count, bytes, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.UploadSession, error) {
	session := &models.UploadSession{}
	var parentFolderID sql.NullInt64

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
		&parentFolderID,
		&session.CreatedAt,
		&session.LastActivity,
	)
	if err != nil {
		return nil, err
	}

	if parentFolderID.Valid {
		session.ParentFolderID = &parentFolderID.Int64
	}

	return session, nil
}
