package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bioshelf/bioshelf/internal/middleware"
	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
)

// FoldersHandler handles POST (create) and GET (list) on /api/folders.
func FoldersHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		switch r.Method {
		case http.MethodPost:
			createFolder(w, r, repos, user)
		case http.MethodGet:
			listFolders(w, r, repos, user)
		default:
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		}
	}
}

// FolderHandler handles PUT (rename/move) and DELETE on /api/folders/{id}.
func FolderHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		folderID, err := strconv.ParseInt(pathSuffix(r, "/api/folders/"), 10, 64)
		if err != nil {
			sendError(w, "Invalid folder ID", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodPut, http.MethodPatch:
			updateFolder(w, r, repos, user, folderID)
		case http.MethodDelete:
			deleteFolder(w, r, repos, user, folderID)
		default:
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
		}
	}
}

func createFolder(w http.ResponseWriter, r *http.Request, repos *repository.Repositories, user *models.User) {
	var req models.FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		sendError(w, "Folder name is required", "VALIDATION_ERROR", http.StatusBadRequest)
		return
	}

	if req.ParentID != nil {
		parent, err := repos.Folders.GetByID(r.Context(), *req.ParentID, user.ID)
		if err != nil {
			slog.Error("failed to look up parent folder", "error", err, "folder_id", *req.ParentID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if parent == nil {
			sendError(w, "Parent folder not found", "FOLDER_NOT_FOUND", http.StatusNotFound)
			return
		}
	}

	folder := &models.Folder{
		UserID:   user.ID,
		Name:     req.Name,
		ParentID: req.ParentID,
	}
	if err := repos.Folders.Create(r.Context(), folder); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			sendError(w, "A folder with this name already exists here", "DUPLICATE_FOLDER", http.StatusConflict)
			return
		}
		slog.Error("failed to create folder", "error", err)
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	slog.Info("folder created", "folder_id", folder.ID, "user_id", user.ID, "name", folder.Name)
	sendJSON(w, http.StatusCreated, folder)
}

func listFolders(w http.ResponseWriter, r *http.Request, repos *repository.Repositories, user *models.User) {
	folders, err := repos.Folders.ListByUser(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to list folders", "error", err, "user_id", user.ID)
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	if folders == nil {
		folders = []models.Folder{}
	}
	sendJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

func updateFolder(w http.ResponseWriter, r *http.Request, repos *repository.Repositories, user *models.User, folderID int64) {
	var req models.FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
		return
	}

	folder, err := repos.Folders.GetByID(r.Context(), folderID, user.ID)
	if err != nil {
		slog.Error("failed to look up folder", "error", err, "folder_id", folderID)
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	if folder == nil {
		sendError(w, "Folder not found", "FOLDER_NOT_FOUND", http.StatusNotFound)
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		folder.Name = name
	}

	if req.ParentID != nil {
		if *req.ParentID == folderID {
			sendError(w, "A folder cannot be its own parent", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		parent, err := repos.Folders.GetByID(r.Context(), *req.ParentID, user.ID)
		if err != nil {
			slog.Error("failed to look up parent folder", "error", err, "folder_id", *req.ParentID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if parent == nil {
			sendError(w, "Parent folder not found", "FOLDER_NOT_FOUND", http.StatusNotFound)
			return
		}
		cyclic, err := wouldCreateCycle(r.Context(), repos, user.ID, folderID, *req.ParentID)
		if err != nil {
			slog.Error("failed to walk folder ancestry", "error", err, "folder_id", folderID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if cyclic {
			sendError(w, "Cannot move a folder into its own subtree", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		folder.ParentID = req.ParentID
	}

	if err := repos.Folders.Update(r.Context(), folder); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			sendError(w, "A folder with this name already exists here", "DUPLICATE_FOLDER", http.StatusConflict)
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			sendError(w, "Folder not found", "FOLDER_NOT_FOUND", http.StatusNotFound)
			return
		}
		slog.Error("failed to update folder", "error", err, "folder_id", folderID)
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, folder)
}

func deleteFolder(w http.ResponseWriter, r *http.Request, repos *repository.Repositories, user *models.User, folderID int64) {
	if err := repos.Folders.Delete(r.Context(), folderID, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sendError(w, "Folder not found", "FOLDER_NOT_FOUND", http.StatusNotFound)
			return
		}
		slog.Error("failed to delete folder", "error", err, "folder_id", folderID)
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	slog.Info("folder deleted", "folder_id", folderID, "user_id", user.ID)
	sendJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// wouldCreateCycle walks up from the proposed parent toward the root
// and reports whether the folder being moved appears among the
// ancestors. The visited set guards against pre-existing corruption.
func wouldCreateCycle(ctx context.Context, repos *repository.Repositories, userID, folderID, newParentID int64) (bool, error) {
	visited := map[int64]bool{}
	current := newParentID
	for {
		if current == folderID {
			return true, nil
		}
		if visited[current] {
			return true, nil
		}
		visited[current] = true

		folder, err := repos.Folders.GetByID(ctx, current, userID)
		if err != nil {
			return false, err
		}
		if folder == nil || folder.ParentID == nil {
			return false, nil
		}
		current = *folder.ParentID
	}
}
