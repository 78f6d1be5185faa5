package utils

import (
	"context"
	"log/slog"
	"time"

	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/transfer"
)

// StartCleanupWorker starts a background goroutine that periodically
// retires abandoned upload sessions. Sessions whose last activity is
// older than expiryHours are canceled through the same transition the
// cancel endpoint uses and their temp files removed.
func StartCleanupWorker(ctx context.Context, sessions repository.SessionRepository, expiryHours, intervalMinutes int) {
	ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
	defer ticker.Stop()

	slog.Info("cleanup worker started",
		"interval_minutes", intervalMinutes,
		"session_expiry_hours", expiryHours,
	)

	// Run cleanup immediately on start
	runCleanup(ctx, sessions, expiryHours)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker shutting down")
			return
		case <-ticker.C:
			runCleanup(ctx, sessions, expiryHours)
		}
	}
}

// runCleanup performs one reaping pass.
func runCleanup(ctx context.Context, sessions repository.SessionRepository, expiryHours int) {
	start := time.Now()

	abandoned, err := sessions.GetAbandoned(ctx, expiryHours)
	if err != nil {
		slog.Error("cleanup failed to list abandoned sessions", "error", err)
		return
	}

	reaped := 0
	for _, s := range abandoned {
		canceled, err := sessions.MarkCanceled(ctx, s.SessionID)
		if err != nil {
			slog.Error("cleanup failed to cancel session",
				"session_id", s.SessionID, "error", err)
			continue
		}
		if !canceled {
			// Completed or canceled since we listed it
			continue
		}

		if err := transfer.RemoveTempFile(s.TempPath); err != nil {
			slog.Warn("cleanup failed to remove temp file",
				"session_id", s.SessionID, "path", s.TempPath, "error", err)
		}
		reaped++
	}

	duration := time.Since(start)
	if reaped > 0 {
		slog.Info("cleanup completed", "reaped_sessions", reaped, "duration", duration)
	} else {
		slog.Debug("cleanup completed", "reaped_sessions", reaped, "duration", duration)
	}
}
