package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/bioshelf/bioshelf/internal/config"
	"github.com/bioshelf/bioshelf/internal/metadata"
	"github.com/bioshelf/bioshelf/internal/metrics"
	"github.com/bioshelf/bioshelf/internal/middleware"
	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/storage"
	"github.com/bioshelf/bioshelf/internal/transfer"
	"github.com/bioshelf/bioshelf/internal/utils"
)

// newSessionID returns an opaque hex session identifier.
func newSessionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// UploadInitHandler handles POST /api/upload/init - create a resumable
// upload session and its empty temp file.
func UploadInitHandler(repos *repository.Repositories, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		var req models.SessionInitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
			return
		}

		if strings.TrimSpace(req.Filename) == "" {
			sendError(w, "Filename is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		req.Filename = utils.SanitizeFilename(req.Filename)

		if req.TotalSize <= 0 {
			sendError(w, "Total size must be positive", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if req.TotalSize > cfg.MaxFileSize {
			sendError(w,
				fmt.Sprintf("File size exceeds maximum of %d bytes", cfg.MaxFileSize),
				"FILE_TOO_LARGE",
				http.StatusRequestEntityTooLarge,
			)
			return
		}

		chunkSize := req.ChunkSize
		if chunkSize <= 0 {
			chunkSize = cfg.DefaultChunkSize
		}

		if req.ParentFolderID != nil {
			folder, err := repos.Folders.GetByID(r.Context(), *req.ParentFolderID, user.ID)
			if err != nil {
				slog.Error("failed to look up parent folder", "error", err, "folder_id", *req.ParentFolderID)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			if folder == nil {
				sendError(w, "Parent folder not found", "FOLDER_NOT_FOUND", http.StatusNotFound)
				return
			}
		}

		if cfg.StorageBackend == config.BackendFilesystem {
			hasSpace, reason, err := utils.CheckDiskSpace(cfg.DataDir, req.TotalSize)
			if err != nil {
				slog.Error("failed to check disk space", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			if !hasSpace {
				sendError(w, reason, "INSUFFICIENT_STORAGE", http.StatusInsufficientStorage)
				return
			}
		}

		sessionID := newSessionID()
		tempPath, err := transfer.CreateTempFile(cfg.DataDir, user.ID, sessionID)
		if err != nil {
			slog.Error("failed to create session temp file", "error", err, "session_id", sessionID)
			sendTransferError(w, transfer.ErrRetryableIO)
			return
		}

		session := &models.UploadSession{
			SessionID:        sessionID,
			UserID:           user.ID,
			OriginalFilename: req.Filename,
			TotalSize:        req.TotalSize,
			ChunkSize:        chunkSize,
			TempPath:         tempPath,
			Status:           models.SessionActive,
			ParentFolderID:   req.ParentFolderID,
		}
		if err := repos.Sessions.Create(r.Context(), session); err != nil {
			transfer.RemoveTempFile(tempPath)
			slog.Error("failed to create upload session", "error", err, "session_id", sessionID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		metrics.SessionsInitiatedTotal.Inc()
		slog.Info("upload session initiated",
			"session_id", sessionID,
			"user_id", user.ID,
			"filename", req.Filename,
			"total_size", req.TotalSize,
			"client_ip", getClientIP(r),
		)

		sendJSON(w, http.StatusCreated, models.SessionInitResponse{
			SessionID: sessionID,
			ChunkSize: chunkSize,
		})
	}
}

// ChunkHandler handles PUT/POST /api/upload/chunk/{session_id} - write
// one positioned chunk into the session's temp file. Chunks may arrive
// in any order and may be retried; progress is a high-water mark.
func ChunkHandler(repos *repository.Repositories, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut && r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		sessionID := pathSuffix(r, "/api/upload/chunk/")
		if sessionID == "" {
			sendError(w, "Session ID is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		cr, err := utils.ParseContentRange(r.Header.Get("Content-Range"))
		if err != nil {
			metrics.ChunksTotal.WithLabelValues("failure").Inc()
			sendError(w, err.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		session, err := repos.Sessions.GetBySessionID(r.Context(), sessionID, user.ID)
		if err != nil {
			slog.Error("failed to look up session", "error", err, "session_id", sessionID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if session == nil {
			sendTransferError(w, transfer.ErrNotFound)
			return
		}
		if session.Status != models.SessionActive {
			sendTransferError(w, transfer.ErrInvalidState)
			return
		}

		if cr.Total != session.TotalSize {
			metrics.ChunksTotal.WithLabelValues("failure").Inc()
			sendTransferError(w, transfer.ErrConflict)
			return
		}

		if r.ContentLength >= 0 && r.ContentLength != cr.Length() {
			metrics.ChunksTotal.WithLabelValues("failure").Inc()
			sendError(w,
				fmt.Sprintf("Content-Length %d does not match range length %d", r.ContentLength, cr.Length()),
				"VALIDATION_ERROR",
				http.StatusBadRequest,
			)
			return
		}

		if err := transfer.WriteChunkAt(session.TempPath, cr.Start, r.Body, cr.Length()); err != nil {
			metrics.ChunksTotal.WithLabelValues("failure").Inc()
			slog.Warn("chunk write failed",
				"error", err,
				"session_id", sessionID,
				"start", cr.Start,
				"end", cr.End,
			)
			sendTransferError(w, err)
			return
		}

		uploaded, err := repos.Sessions.AdvanceUploadedSize(r.Context(), sessionID, cr.End+1)
		if err != nil {
			metrics.ChunksTotal.WithLabelValues("failure").Inc()
			if errors.Is(err, repository.ErrNotActive) {
				// Canceled between the write and the progress update.
				// The bytes are gone with the temp file; nothing to undo.
				sendTransferError(w, transfer.ErrInvalidState)
				return
			}
			slog.Error("failed to advance session progress", "error", err, "session_id", sessionID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		metrics.ChunksTotal.WithLabelValues("success").Inc()
		metrics.ChunkSizeBytes.Observe(float64(cr.Length()))

		sendJSON(w, http.StatusOK, models.ChunkResponse{
			SessionID:    sessionID,
			UploadedSize: uploaded,
		})
	}
}

// CompleteHandler handles POST /api/upload/complete/{session_id} -
// promote a fully received session into a catalog artifact. On I/O
// failure the session stays active so the client can retry completion.
func CompleteHandler(repos *repository.Repositories, cfg *config.Config, store storage.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		sessionID := pathSuffix(r, "/api/upload/complete/")
		if sessionID == "" {
			sendError(w, "Session ID is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		session, err := repos.Sessions.GetBySessionID(r.Context(), sessionID, user.ID)
		if err != nil {
			slog.Error("failed to look up session", "error", err, "session_id", sessionID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if session == nil {
			sendTransferError(w, transfer.ErrNotFound)
			return
		}
		if session.Status != models.SessionActive {
			sendTransferError(w, transfer.ErrInvalidState)
			return
		}
		if session.UploadedSize != session.TotalSize {
			sendError(w,
				fmt.Sprintf("Upload incomplete: %d of %d bytes received", session.UploadedSize, session.TotalSize),
				"UPLOAD_INCOMPLETE",
				http.StatusBadRequest,
			)
			return
		}

		mimeType := "application/octet-stream"
		if mtype, err := mimetype.DetectFile(session.TempPath); err == nil {
			mimeType = mtype.String()
		}

		reader, size, err := transfer.OpenTempFile(session.TempPath)
		if err != nil {
			slog.Error("failed to open session temp file", "error", err, "session_id", sessionID)
			sendTransferError(w, err)
			return
		}
		defer reader.Close()

		if size != session.TotalSize {
			// The file on disk disagrees with the recorded progress.
			// Keep the session active; the client can re-send chunks.
			slog.Error("temp file size mismatch",
				"session_id", sessionID,
				"file_size", size,
				"total_size", session.TotalSize,
			)
			sendTransferError(w, transfer.ErrRetryableIO)
			return
		}

		storedName := newSessionID() + filepath.Ext(session.OriginalFilename)
		_, checksum, err := store.Store(r.Context(), storedName, reader, session.TotalSize)
		if err != nil {
			slog.Error("failed to store artifact", "error", err, "session_id", sessionID)
			sendTransferError(w, transfer.ErrRetryableIO)
			return
		}

		promoted, err := repos.Sessions.MarkCompleted(r.Context(), sessionID)
		if err != nil {
			slog.Error("failed to mark session completed", "error", err, "session_id", sessionID)
			store.Delete(r.Context(), storedName)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if !promoted {
			// Lost the race against cancellation. The stored blob has no
			// catalog record, so remove it.
			store.Delete(r.Context(), storedName)
			sendTransferError(w, transfer.ErrInvalidState)
			return
		}

		artifact := &models.Artifact{
			UserID:           user.ID,
			OriginalFilename: session.OriginalFilename,
			StoredFilename:   storedName,
			FileSize:         session.TotalSize,
			MimeType:         mimeType,
			UploadMethod:     "chunked",
			ParentFolderID:   session.ParentFolderID,
			FileFormat:       utils.DetectFileFormat(session.OriginalFilename),
			DocumentType:     models.DocumentDataset,
			Checksum:         checksum,
		}
		applyExtractedMetadata(artifact, session.TempPath)
		artifact.RefreshSearchVector()

		if err := repos.Artifacts.Create(r.Context(), artifact); err != nil {
			slog.Error("failed to create artifact record", "error", err, "session_id", sessionID)
			// Unwind the promotion so the client can retry: drop the
			// orphaned blob and move the session back to active. The temp
			// file is still on disk at this point.
			store.Delete(r.Context(), storedName)
			if reopened, rerr := repos.Sessions.ReopenCompleted(r.Context(), sessionID); rerr != nil || !reopened {
				slog.Error("failed to reopen session after catalog failure",
					"error", rerr, "session_id", sessionID, "reopened", reopened)
			}
			sendTransferError(w, transfer.ErrRetryableIO)
			return
		}
		transfer.RemoveTempFile(session.TempPath)

		metrics.SessionsCompletedTotal.Inc()
		metrics.ArtifactSizeBytes.Observe(float64(session.TotalSize))
		slog.Info("upload session completed",
			"session_id", sessionID,
			"user_id", user.ID,
			"artifact_id", artifact.ID,
			"size", session.TotalSize,
			"format", artifact.FileFormat,
		)

		w.Header().Set("Location",
			buildFileURL(r, cfg, fmt.Sprintf("/api/files/%d/download", artifact.ID)))
		sendJSON(w, http.StatusCreated, artifact.Projection())
	}
}

// applyExtractedMetadata runs the format extractor over the finished
// temp file and folds the results into the artifact. Extraction failure
// never blocks a completion.
func applyExtractedMetadata(artifact *models.Artifact, tempPath string) {
	if !metadata.Supported(artifact.FileFormat) {
		return
	}
	reader, _, err := transfer.OpenTempFile(tempPath)
	if err != nil {
		return
	}
	defer reader.Close()

	extracted := metadata.Extract(reader, artifact.FileFormat)
	if len(extracted) == 0 {
		return
	}
	if organism, ok := extracted["detected_organism"].(string); ok && artifact.Organism == "" {
		artifact.Organism = organism
	}
	if raw, err := json.Marshal(extracted); err == nil {
		artifact.ExtractedMetadata = string(raw)
	}
}

// CancelHandler handles POST /api/upload/cancel/{session_id} - abandon
// a session and discard its partial bytes. Canceling an already
// canceled session is a no-op success.
func CancelHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		sessionID := pathSuffix(r, "/api/upload/cancel/")
		if sessionID == "" {
			sendError(w, "Session ID is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		session, err := repos.Sessions.GetBySessionID(r.Context(), sessionID, user.ID)
		if err != nil {
			slog.Error("failed to look up session", "error", err, "session_id", sessionID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if session == nil {
			sendTransferError(w, transfer.ErrNotFound)
			return
		}

		switch session.Status {
		case models.SessionCanceled:
			sendJSON(w, http.StatusOK, map[string]string{
				"session_id": sessionID,
				"status":     models.SessionCanceled,
			})
			return
		case models.SessionCompleted:
			sendTransferError(w, transfer.ErrInvalidState)
			return
		}

		canceled, err := repos.Sessions.MarkCanceled(r.Context(), sessionID)
		if err != nil {
			slog.Error("failed to mark session canceled", "error", err, "session_id", sessionID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if !canceled {
			// Raced with another transition. Re-read to tell an
			// idempotent repeat cancel apart from a completion.
			session, err = repos.Sessions.GetBySessionID(r.Context(), sessionID, user.ID)
			if err == nil && session != nil && session.Status == models.SessionCanceled {
				sendJSON(w, http.StatusOK, map[string]string{
					"session_id": sessionID,
					"status":     models.SessionCanceled,
				})
				return
			}
			sendTransferError(w, transfer.ErrInvalidState)
			return
		}

		if err := transfer.RemoveTempFile(session.TempPath); err != nil {
			slog.Warn("failed to remove temp file", "error", err, "session_id", sessionID)
		}

		metrics.SessionsCanceledTotal.WithLabelValues("client").Inc()
		slog.Info("upload session canceled", "session_id", sessionID, "user_id", user.ID)

		sendJSON(w, http.StatusOK, map[string]string{
			"session_id": sessionID,
			"status":     models.SessionCanceled,
		})
	}
}

// StatusHandler handles GET /api/upload/status/{session_id} - report
// session progress so a client can resume after an interruption.
func StatusHandler(repos *repository.Repositories) http.HandlerFunc {
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

		sessionID := pathSuffix(r, "/api/upload/status/")
		if sessionID == "" {
			sendError(w, "Session ID is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		session, err := repos.Sessions.GetBySessionID(r.Context(), sessionID, user.ID)
		if err != nil {
			slog.Error("failed to look up session", "error", err, "session_id", sessionID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if session == nil {
			sendTransferError(w, transfer.ErrNotFound)
			return
		}

		sendJSON(w, http.StatusOK, models.SessionStatusResponse{
			SessionID:    session.SessionID,
			Filename:     session.OriginalFilename,
			TotalSize:    session.TotalSize,
			UploadedSize: session.UploadedSize,
			Status:       session.Status,
			CreatedAt:    session.CreatedAt,
		})
	}
}
