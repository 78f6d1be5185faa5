package models

import (
	"strings"
	"time"
)

// Artifact represents a permanently stored file in the catalog.
// The byte content is immutable once created; only descriptive
// metadata may change afterwards.
type Artifact struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"-"`
	OriginalFilename string    `json:"original_filename"`
	StoredFilename   string    `json:"-"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	UploadMethod     string    `json:"upload_method"`
	ParentFolderID   *int64    `json:"parent_folder_id,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`

	// Descriptive metadata, populated by the uploader and the
	// format-specific extractors.
	Title             string `json:"title"`
	Project           string `json:"project"`
	Organism          string `json:"organism,omitempty"`
	FileFormat        string `json:"file_format"`
	DocumentType      string `json:"document_type"`
	Tags              string `json:"tags,omitempty"`
	Description       string `json:"description,omitempty"`
	Checksum          string `json:"checksum,omitempty"`
	ExtractedMetadata string `json:"extracted_metadata,omitempty"`
	SearchVector      string `json:"-"`
}

// Document type choices carried on artifacts.
const (
	DocumentPaper    = "Paper"
	DocumentProtocol = "Protocol"
	DocumentDataset  = "Dataset"
	DocumentCode     = "Code"
)

// ArtifactResponse is the catalog projection returned to clients after
// completion, import, or catalog queries.
type ArtifactResponse struct {
	ID               int64     `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	FileFormat       string    `json:"file_format"`
	DocumentType     string    `json:"document_type"`
	Title            string    `json:"title,omitempty"`
	Project          string    `json:"project,omitempty"`
	Organism         string    `json:"organism,omitempty"`
	Tags             string    `json:"tags,omitempty"`
	Checksum         string    `json:"checksum,omitempty"`
	ParentFolderID   *int64    `json:"parent_folder_id,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// Projection converts an Artifact into its client-facing catalog view.
func (a *Artifact) Projection() ArtifactResponse {
	return ArtifactResponse{
		ID:               a.ID,
		OriginalFilename: a.OriginalFilename,
		FileSize:         a.FileSize,
		MimeType:         a.MimeType,
		FileFormat:       a.FileFormat,
		DocumentType:     a.DocumentType,
		Title:            a.Title,
		Project:          a.Project,
		Organism:         a.Organism,
		Tags:             a.Tags,
		Checksum:         a.Checksum,
		ParentFolderID:   a.ParentFolderID,
		UploadedAt:       a.UploadedAt,
	}
}

// RefreshSearchVector rebuilds the materialized lowercase text the
// catalog search matches against. Call after any metadata change.
func (a *Artifact) RefreshSearchVector() {
	parts := []string{
		a.OriginalFilename,
		a.Title,
		a.Project,
		a.Organism,
		a.FileFormat,
		a.DocumentType,
		a.Tags,
		a.Description,
	}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, strings.ToLower(p))
		}
	}
	a.SearchVector = strings.Join(kept, " ")
}

// ErrorResponse is the JSON error envelope used by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// UserStatsResponse summarizes one owner's catalog usage.
type UserStatsResponse struct {
	TotalFiles     int64 `json:"total_files"`
	TotalBytes     int64 `json:"total_bytes"`
	ActiveSessions int64 `json:"active_sessions"`
	SessionBytes   int64 `json:"session_bytes"`
}

// HealthResponse is the JSON response for the health check endpoint.
type HealthResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	TotalFiles       int64  `json:"total_files"`
	StorageUsedBytes int64  `json:"storage_used_bytes"`
}
