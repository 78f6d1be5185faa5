package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/storage"
)

var startTime = time.Now()

// HealthHandler handles GET /health - liveness plus catalog totals.
// Unauthenticated so load balancers can probe it.
func HealthHandler(repos *repository.Repositories, store storage.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		resp := models.HealthResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
		}

		count, _, err := repos.Artifacts.GetTotals(r.Context())
		if err != nil {
			slog.Error("health check: failed to get catalog totals", "error", err)
			resp.Status = "degraded"
		} else {
			resp.TotalFiles = count
		}

		used, err := store.GetUsedSpace(r.Context())
		if err != nil {
			slog.Error("health check: failed to get storage usage", "error", err)
			resp.Status = "degraded"
		} else {
			resp.StorageUsedBytes = used
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		sendJSON(w, status, resp)
	}
}
