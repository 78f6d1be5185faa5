package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bioshelf/bioshelf/internal/config"
	"github.com/bioshelf/bioshelf/internal/metadata"
	"github.com/bioshelf/bioshelf/internal/metrics"
	"github.com/bioshelf/bioshelf/internal/middleware"
	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/ncbi"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/storage"
	"github.com/bioshelf/bioshelf/internal/utils"
)

// importRequest is the JSON body for POST /api/import/ncbi.
type importRequest struct {
	URL            string `json:"url"`
	ParentFolderID *int64 `json:"parent_folder_id,omitempty"`
}

// ImportHandler handles POST /api/import/ncbi - fetch an external
// archive record and catalog it through the same storage path as a
// completed upload.
func ImportHandler(repos *repository.Repositories, cfg *config.Config, store storage.Backend, client *ncbi.Client) http.HandlerFunc {
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

		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			sendError(w, "URL is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
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

		// Stage to a local temp file first so the storage write knows
		// its size and the fetch cap is enforced before any blob exists.
		tempFile, err := os.CreateTemp(cfg.DataDir, "import-*.tmp")
		if err != nil {
			slog.Error("failed to create import temp file", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		tempPath := tempFile.Name()
		defer os.Remove(tempPath)

		result, err := client.Download(r.Context(), req.URL, tempFile)
		if closeErr := tempFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			metrics.ImportsTotal.WithLabelValues("failure").Inc()
			sendImportError(w, err)
			return
		}

		mimeType := "application/octet-stream"
		if mtype, detectErr := mimetype.DetectFile(tempPath); detectErr == nil {
			mimeType = mtype.String()
		}

		f, err := os.Open(tempPath)
		if err != nil {
			metrics.ImportsTotal.WithLabelValues("failure").Inc()
			slog.Error("failed to reopen import temp file", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		storedName := newSessionID() + filepath.Ext(result.Filename)
		_, checksum, err := store.Store(r.Context(), storedName, f, result.Size)
		if err != nil {
			metrics.ImportsTotal.WithLabelValues("failure").Inc()
			slog.Error("failed to store imported archive", "error", err, "accession", result.Accession)
			sendError(w, "Failed to store imported file", "RETRYABLE_IO_ERROR", http.StatusServiceUnavailable)
			return
		}

		fileFormat := result.FileFormat
		if fileFormat == "" {
			fileFormat = utils.DetectFileFormat(result.Filename)
		}
		documentType := result.DocumentType
		if documentType == "" {
			documentType = models.DocumentDataset
		}

		artifact := &models.Artifact{
			UserID:           user.ID,
			OriginalFilename: utils.SanitizeFilename(result.Filename),
			StoredFilename:   storedName,
			FileSize:         result.Size,
			MimeType:         mimeType,
			UploadMethod:     "ncbi_import",
			ParentFolderID:   req.ParentFolderID,
			FileFormat:       fileFormat,
			DocumentType:     documentType,
			Checksum:         checksum,
		}
		applyImportMetadata(artifact, result, tempPath)
		artifact.RefreshSearchVector()

		if err := repos.Artifacts.Create(r.Context(), artifact); err != nil {
			metrics.ImportsTotal.WithLabelValues("failure").Inc()
			slog.Error("failed to create artifact record", "error", err, "accession", result.Accession)
			store.Delete(r.Context(), storedName)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		metrics.ImportsTotal.WithLabelValues("success").Inc()
		metrics.ArtifactSizeBytes.Observe(float64(result.Size))
		slog.Info("archive record imported",
			"artifact_id", artifact.ID,
			"user_id", user.ID,
			"accession", result.Accession,
			"db", result.DB,
			"size", result.Size,
		)

		w.Header().Set("Location",
			buildFileURL(r, cfg, fmt.Sprintf("/api/files/%d/download", artifact.ID)))
		sendJSON(w, http.StatusCreated, artifact.Projection())
	}
}

// applyImportMetadata merges the archive summary with the format
// extractor's output. Summary fields win ties; both are best-effort.
func applyImportMetadata(artifact *models.Artifact, result *ncbi.Result, tempPath string) {
	merged := map[string]any{}

	if metadata.Supported(artifact.FileFormat) {
		if f, err := os.Open(tempPath); err == nil {
			for k, v := range metadata.Extract(f, artifact.FileFormat) {
				merged[k] = v
			}
			f.Close()
		}
	}
	for k, v := range result.Metadata {
		merged[k] = v
	}

	if title, ok := merged["title"].(string); ok && title != "" {
		artifact.Title = title
	}
	if organism, ok := merged["organism"].(string); ok && organism != "" {
		artifact.Organism = organism
	} else if organism, ok := merged["detected_organism"].(string); ok && artifact.Organism == "" {
		artifact.Organism = organism
	}

	if len(merged) > 0 {
		if raw, err := json.Marshal(merged); err == nil {
			artifact.ExtractedMetadata = string(raw)
		}
	}
}

// sendImportError maps archive client failures onto the error envelope.
func sendImportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ncbi.ErrUnsupported):
		sendError(w, fmt.Sprintf("Unsupported archive resource: %v", err), "UNSUPPORTED_RESOURCE", http.StatusBadRequest)
	case errors.Is(err, ncbi.ErrTooLarge):
		sendError(w, "Record exceeds the import size limit", "IMPORT_TOO_LARGE", http.StatusRequestEntityTooLarge)
	case errors.Is(err, ncbi.ErrFetch):
		sendError(w, "Failed to fetch record from the archive", "IMPORT_FETCH_FAILED", http.StatusBadGateway)
	default:
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
