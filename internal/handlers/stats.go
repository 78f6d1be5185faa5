package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bioshelf/bioshelf/internal/middleware"
	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
)

// UserStatsHandler handles GET /api/stats - summarize the caller's
// catalog usage and in-flight upload sessions.
func UserStatsHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		fileCount, fileBytes, err := repos.Artifacts.GetUserStats(r.Context(), user.ID)
		if err != nil {
			slog.Error("failed to get user file stats", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sessionCount, sessionBytes, err := repos.Sessions.GetUserSessionStats(r.Context(), user.ID)
		if err != nil {
			slog.Error("failed to get user session stats", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, models.UserStatsResponse{
			TotalFiles:     fileCount,
			TotalBytes:     fileBytes,
			ActiveSessions: sessionCount,
			SessionBytes:   sessionBytes,
		})
	}
}
