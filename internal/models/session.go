package models

import "time"

// Upload session lifecycle states. Transitions are one-way:
// active -> completed or active -> canceled.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionCanceled  = "canceled"
)

// UploadSession represents a resumable chunked upload in progress.
// The record is persisted so that retried chunk uploads survive a
// server restart.
type UploadSession struct {
	ID               int64     `json:"-"`
	SessionID        string    `json:"session_id"`
	UserID           int64     `json:"-"`
	OriginalFilename string    `json:"original_filename"`
	TotalSize        int64     `json:"total_size"`
	ChunkSize        int64     `json:"chunk_size"`
	UploadedSize     int64     `json:"uploaded_size"`
	TempPath         string    `json:"-"`
	Status           string    `json:"status"`
	ParentFolderID   *int64    `json:"parent_folder_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivity     time.Time `json:"last_activity"`
}

// SessionInitRequest is the JSON body for POST /api/upload/init.
type SessionInitRequest struct {
	Filename       string `json:"filename"`
	TotalSize      int64  `json:"total_size"`
	ChunkSize      int64  `json:"chunk_size"`
	ParentFolderID *int64 `json:"parent_folder_id,omitempty"`
}

// SessionInitResponse is returned after a session is created.
type SessionInitResponse struct {
	SessionID string `json:"session_id"`
	ChunkSize int64  `json:"chunk_size"`
}

// ChunkResponse reports the session high-water mark after a chunk write
// so the client can verify progress.
type ChunkResponse struct {
	SessionID    string `json:"session_id"`
	UploadedSize int64  `json:"uploaded_size"`
}

// SessionStatusResponse is returned by GET /api/upload/status/{session_id}.
type SessionStatusResponse struct {
	SessionID    string    `json:"session_id"`
	Filename     string    `json:"filename"`
	TotalSize    int64     `json:"total_size"`
	UploadedSize int64     `json:"uploaded_size"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}
