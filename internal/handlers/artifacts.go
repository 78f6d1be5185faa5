package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bioshelf/bioshelf/internal/middleware"
	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/storage"
)

// ArtifactsHandler handles GET /api/files - list and search the
// caller's catalog. Filters come from query parameters: q (search),
// format, document_type, folder_id.
func ArtifactsHandler(repos *repository.Repositories) http.HandlerFunc {
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

		filter := repository.ArtifactFilter{
			Query:        strings.TrimSpace(r.URL.Query().Get("q")),
			FileFormat:   strings.TrimSpace(r.URL.Query().Get("format")),
			DocumentType: strings.TrimSpace(r.URL.Query().Get("document_type")),
		}
		if raw := r.URL.Query().Get("folder_id"); raw != "" {
			folderID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				sendError(w, "Invalid folder_id", "VALIDATION_ERROR", http.StatusBadRequest)
				return
			}
			filter.FolderID = &folderID
		}

		artifacts, err := repos.Artifacts.List(r.Context(), user.ID, filter)
		if err != nil {
			slog.Error("failed to list artifacts", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		results := make([]models.ArtifactResponse, 0, len(artifacts))
		for i := range artifacts {
			results = append(results, artifacts[i].Projection())
		}

		facets, err := repos.Artifacts.Facets(r.Context(), user.ID)
		if err != nil {
			slog.Error("failed to compute facets", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, map[string]any{
			"files":  results,
			"count":  len(results),
			"facets": facets,
		})
	}
}

// ArtifactHandler handles GET, PATCH, and DELETE on /api/files/{id}.
// PATCH edits descriptive metadata only; the stored bytes are
// immutable. DELETE removes the catalog record and its blob.
func ArtifactHandler(repos *repository.Repositories, store storage.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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

		switch r.Method {
		case http.MethodGet:
			sendJSON(w, http.StatusOK, artifact.Projection())
		case http.MethodPatch, http.MethodPut:
			updateArtifact(w, r, repos, artifact)
		case http.MethodDelete:
			deleteArtifact(w, r, repos, store, user, artifact)
		default:
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		}
	}
}

// artifactUpdateRequest carries the editable metadata fields. Pointer
// fields distinguish "leave unchanged" from "set to empty".
type artifactUpdateRequest struct {
	Title        *string `json:"title,omitempty"`
	Project      *string `json:"project,omitempty"`
	Organism     *string `json:"organism,omitempty"`
	DocumentType *string `json:"document_type,omitempty"`
	Tags         *string `json:"tags,omitempty"`
	Description  *string `json:"description,omitempty"`
	FolderID     *int64  `json:"parent_folder_id,omitempty"`
}

func updateArtifact(w http.ResponseWriter, r *http.Request, repos *repository.Repositories, artifact *models.Artifact) {
	var req artifactUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
		return
	}

	if req.Title != nil {
		artifact.Title = *req.Title
	}
	if req.Project != nil {
		artifact.Project = *req.Project
	}
	if req.Organism != nil {
		artifact.Organism = *req.Organism
	}
	if req.DocumentType != nil {
		artifact.DocumentType = *req.DocumentType
	}
	if req.Tags != nil {
		artifact.Tags = *req.Tags
	}
	if req.Description != nil {
		artifact.Description = *req.Description
	}
	if req.FolderID != nil {
		folder, err := repos.Folders.GetByID(r.Context(), *req.FolderID, artifact.UserID)
		if err != nil {
			slog.Error("failed to look up folder", "error", err, "folder_id", *req.FolderID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if folder == nil {
			sendError(w, "Folder not found", "FOLDER_NOT_FOUND", http.StatusNotFound)
			return
		}
		artifact.ParentFolderID = req.FolderID
	}

	artifact.RefreshSearchVector()
	if err := repos.Artifacts.Update(r.Context(), artifact); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sendError(w, "File not found", "FILE_NOT_FOUND", http.StatusNotFound)
			return
		}
		slog.Error("failed to update artifact", "error", err, "artifact_id", artifact.ID)
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, artifact.Projection())
}

func deleteArtifact(w http.ResponseWriter, r *http.Request, repos *repository.Repositories, store storage.Backend, user *models.User, artifact *models.Artifact) {
	if err := repos.Artifacts.Delete(r.Context(), artifact.ID, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sendError(w, "File not found", "FILE_NOT_FOUND", http.StatusNotFound)
			return
		}
		slog.Error("failed to delete artifact", "error", err, "artifact_id", artifact.ID)
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	// Blob removal after the record: an orphaned blob is recoverable,
	// a catalog record whose bytes are gone is not.
	if err := store.Delete(r.Context(), artifact.StoredFilename); err != nil {
		slog.Warn("failed to delete stored content",
			"error", err,
			"artifact_id", artifact.ID,
			"stored_filename", artifact.StoredFilename,
		)
	}

	slog.Info("artifact deleted", "artifact_id", artifact.ID, "user_id", user.ID)
	sendJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
