package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bioshelf/bioshelf/internal/metrics"
	"github.com/bioshelf/bioshelf/internal/middleware"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/storage"
	"github.com/bioshelf/bioshelf/internal/transfer"
	"github.com/bioshelf/bioshelf/internal/utils"
)

// DownloadHandler handles GET /api/files/{id}/download - stream an
// artifact's bytes, honoring HTTP Range requests. Any Range header the
// server cannot satisfy is clamped to the full file and served as a
// 206 rather than rejected.
func DownloadHandler(repos *repository.Repositories, store storage.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		artifactID, err := artifactIDFromPath(r)
		if err != nil {
			sendError(w, "Invalid file ID", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		artifact, err := repos.Artifacts.GetByID(r.Context(), artifactID, user.ID)
		if err != nil {
			slog.Error("failed to look up artifact", "error", err, "artifact_id", artifactID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if artifact == nil {
			sendError(w, "File not found", "FILE_NOT_FOUND", http.StatusNotFound)
			return
		}

		// A catalog record whose bytes are gone is a different failure
		// from a missing record: the database and storage disagree.
		exists, err := store.Exists(r.Context(), artifact.StoredFilename)
		if err != nil {
			slog.Error("failed to check stored content", "error", err, "artifact_id", artifactID)
			sendTransferError(w, transfer.ErrRetryableIO)
			return
		}
		if !exists {
			slog.Error("stored content missing for catalog record",
				"artifact_id", artifactID,
				"stored_filename", artifact.StoredFilename,
			)
			sendTransferError(w, transfer.ErrStorageInconsistency)
			return
		}

		size, err := store.GetSize(r.Context(), artifact.StoredFilename)
		if err != nil {
			slog.Error("failed to stat stored content", "error", err, "artifact_id", artifactID)
			sendTransferError(w, transfer.ErrRetryableIO)
			return
		}

		w.Header().Set("Content-Type", artifact.MimeType)
		w.Header().Set("Content-Disposition", utils.ContentDisposition(artifact.OriginalFilename))
		w.Header().Set("Accept-Ranges", "bytes")

		// An empty artifact has no byte to satisfy any range with, so a
		// Range header is ignored and the response is a plain empty 200.
		if size == 0 {
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusOK)
			metrics.DownloadsTotal.WithLabelValues("full", "success").Inc()
			metrics.DownloadBytesServed.Observe(0)
			return
		}

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodHead {
				return
			}

			written, err := store.StreamRange(r.Context(), artifact.StoredFilename, 0, size-1, w)
			if err != nil {
				// Headers are gone; all we can do is log and count it.
				metrics.DownloadsTotal.WithLabelValues("full", "failure").Inc()
				slog.Error("download stream failed", "error", err, "artifact_id", artifactID)
				return
			}
			metrics.DownloadsTotal.WithLabelValues("full", "success").Inc()
			metrics.DownloadBytesServed.Observe(float64(written))
			return
		}

		br := utils.ResolveRange(rangeHeader, size)
		w.Header().Set("Content-Length", strconv.FormatInt(br.ContentLength(), 10))
		w.Header().Set("Content-Range", br.ContentRangeHeader(size))
		w.WriteHeader(http.StatusPartialContent)
		if r.Method == http.MethodHead {
			return
		}

		written, err := store.StreamRange(r.Context(), artifact.StoredFilename, br.Start, br.End, w)
		if err != nil {
			metrics.DownloadsTotal.WithLabelValues("partial", "failure").Inc()
			slog.Error("range download stream failed",
				"error", err,
				"artifact_id", artifactID,
				"start", br.Start,
				"end", br.End,
			)
			return
		}
		metrics.DownloadsTotal.WithLabelValues("partial", "success").Inc()
		metrics.DownloadBytesServed.Observe(float64(written))
	}
}

// artifactIDFromPath extracts the numeric artifact ID from
// /api/files/{id}/download or /api/files/{id}.
func artifactIDFromPath(r *http.Request) (int64, error) {
	rest := pathSuffix(r, "/api/files/")
	rest = strings.TrimSuffix(rest, "/download")
	rest = strings.TrimSuffix(rest, "/")
	return strconv.ParseInt(rest, 10, 64)
}
