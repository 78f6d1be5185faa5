// Package handlers implements the HTTP API surface.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bioshelf/bioshelf/internal/config"
	"github.com/bioshelf/bioshelf/internal/metrics"
	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/transfer"
)

// sendError sends a JSON error response
func sendError(w http.ResponseWriter, message, code string, status int) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := models.ErrorResponse{
		Error: message,
		Code:  code,
	}

	json.NewEncoder(w).Encode(errResp)
}

// sendJSON sends a JSON response with the given status code
func sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// sendTransferError maps the transfer error taxonomy onto the JSON
// envelope and HTTP status codes. Unrecognized errors become a generic
// internal error; the detailed cause stays in the server log.
func sendTransferError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transfer.ErrValidation):
		sendError(w, err.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
	case errors.Is(err, transfer.ErrNotFound):
		sendError(w, "Session not found", "SESSION_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, transfer.ErrInvalidState):
		sendError(w, "Session is no longer active", "SESSION_NOT_ACTIVE", http.StatusConflict)
	case errors.Is(err, transfer.ErrConflict):
		sendError(w, "Declared total size does not match session", "SIZE_CONFLICT", http.StatusConflict)
	case errors.Is(err, transfer.ErrIncompleteTransfer):
		sendError(w, "Upload is not complete", "UPLOAD_INCOMPLETE", http.StatusBadRequest)
	case errors.Is(err, transfer.ErrStorageInconsistency):
		sendError(w, "Stored content is unavailable", "STORAGE_INCONSISTENT", http.StatusInternalServerError)
	case errors.Is(err, transfer.ErrRetryableIO):
		sendError(w, "Temporary storage failure, retry later", "RETRYABLE_IO_ERROR", http.StatusServiceUnavailable)
	default:
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// buildFileURL constructs the full download URL for an artifact.
// Respects PUBLIC_URL config and reverse proxy headers.
func buildFileURL(r *http.Request, cfg *config.Config, path string) string {
	if cfg.PublicURL != "" {
		return strings.TrimSuffix(cfg.PublicURL, "/") + path
	}
	return getScheme(r) + "://" + getHost(r) + path
}

// getScheme returns the scheme (http/https) respecting reverse proxy headers
func getScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// getHost returns the host respecting reverse proxy headers
func getHost(r *http.Request) string {
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		return host
	}
	return r.Host
}

// pathSuffix extracts the final path element after the given prefix,
// e.g. pathSuffix(r, "/api/upload/chunk/") -> "{session_id}".
func pathSuffix(r *http.Request, prefix string) string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == r.URL.Path {
		return ""
	}
	return strings.Trim(rest, "/")
}
