package repository

import (
	"context"

	"github.com/bioshelf/bioshelf/internal/models"
)

// SessionRepository defines database operations for resumable upload
// sessions. All methods accept a context for cancellation and timeout
// support.
type SessionRepository interface {
	// Create inserts a new session record.
	Create(ctx context.Context, session *models.UploadSession) error

	// GetBySessionID retrieves a session scoped to its owner. A session
	// that exists but belongs to a different user is reported exactly
	// like a missing one: nil, nil. Callers must not be able to probe
	// for other users' sessions.
	GetBySessionID(ctx context.Context, sessionID string, userID int64) (*models.UploadSession, error)

	// AdvanceUploadedSize raises the session high-water mark to
	// max(current, endExclusive) and refreshes last_activity, guarded
	// on status = active. Returns the updated high-water mark, or
	// ErrNotActive if the session has left the active state.
	AdvanceUploadedSize(ctx context.Context, sessionID string, endExclusive int64) (int64, error)

	// MarkCompleted atomically transitions active -> completed.
	// Returns false if the session was not active (already terminal or
	// raced with cancellation).
	MarkCompleted(ctx context.Context, sessionID string) (bool, error)

	// MarkCanceled atomically transitions active -> canceled.
	// Returns false if the session was not active.
	MarkCanceled(ctx context.Context, sessionID string) (bool, error)

	// ReopenCompleted atomically transitions completed -> active,
	// undoing a completion whose catalog record could not be written so
	// the client can retry. Returns false if the session is not in the
	// completed state.
	ReopenCompleted(ctx context.Context, sessionID string) (bool, error)

	// UpdateActivity refreshes the last_activity timestamp.
	UpdateActivity(ctx context.Context, sessionID string) error

	// GetAbandoned returns active sessions with no activity for the
	// given number of hours, oldest first. The janitor retires these
	// through the same cancellation path clients use.
	GetAbandoned(ctx context.Context, expiryHours int) ([]models.UploadSession, error)

	// GetUserSessionStats returns the count of active sessions and the
	// sum of their received bytes for one owner.
	GetUserSessionStats(ctx context.Context, userID int64) (count int64, bytes int64, err error)
}
