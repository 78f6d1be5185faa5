package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/utils"
)

const minPasswordLength = 8

// RegisterHandler handles POST /api/auth/register - create an account
// and issue its first API token.
func RegisterHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		var req models.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" {
			sendError(w, "Username is required", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if len(req.Password) < minPasswordLength {
			sendError(w, "Password must be at least 8 characters", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("failed to hash password", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		user := &models.User{
			Username:     req.Username,
			PasswordHash: string(hash),
		}
		if err := repos.Users.Create(r.Context(), user); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				sendError(w, "Username is already taken", "DUPLICATE_USERNAME", http.StatusConflict)
				return
			}
			slog.Error("failed to create user", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		token, err := issueToken(r, repos, user)
		if err != nil {
			slog.Error("failed to issue API token", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("user registered", "user_id", user.ID, "username", user.Username, "client_ip", getClientIP(r))
		sendJSON(w, http.StatusCreated, models.AuthResponse{
			Token:    token,
			Username: user.Username,
		})
	}
}

// LoginHandler handles POST /api/auth/login - verify credentials and
// issue a fresh API token. Unknown username and wrong password produce
// the same response.
func LoginHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		var req models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
			return
		}

		user, err := repos.Users.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
		if err != nil {
			slog.Error("failed to look up user", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if user == nil {
			slog.Warn("login failed: unknown username", "username", req.Username, "client_ip", getClientIP(r))
			sendError(w, "Invalid username or password", "INVALID_CREDENTIALS", http.StatusUnauthorized)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			slog.Warn("login failed: wrong password", "user_id", user.ID, "client_ip", getClientIP(r))
			sendError(w, "Invalid username or password", "INVALID_CREDENTIALS", http.StatusUnauthorized)
			return
		}

		token, err := issueToken(r, repos, user)
		if err != nil {
			slog.Error("failed to issue API token", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("user logged in", "user_id", user.ID, "client_ip", getClientIP(r))
		sendJSON(w, http.StatusOK, models.AuthResponse{
			Token:    token,
			Username: user.Username,
		})
	}
}

// issueToken generates a new API token, stores its hash, and returns
// the plaintext. The plaintext is never persisted.
func issueToken(r *http.Request, repos *repository.Repositories, user *models.User) (string, error) {
	token, err := utils.GenerateAPIToken()
	if err != nil {
		return "", err
	}
	if err := repos.Users.CreateToken(r.Context(), user.ID, utils.HashAPIToken(token)); err != nil {
		return "", err
	}
	return token, nil
}
