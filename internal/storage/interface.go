// Package storage provides abstraction for artifact content storage.
// This enables support for different backends (local filesystem, S3)
// without changing the handler code. Partial uploads are not stored
// here; they live as positioned temp files owned by the transfer
// package until completion promotes them into a backend.
package storage

import (
	"context"
	"io"
)

// Backend defines the interface for artifact content operations.
type Backend interface {
	// Store writes data from the reader to storage under the given key.
	// Returns the storage path (may differ from key) and the SHA-256
	// hash of the stored content. The size parameter is used for
	// validation when positive.
	Store(ctx context.Context, key string, reader io.Reader, size int64) (path string, hash string, err error)

	// Retrieve returns a reader for the stored object. The caller is
	// responsible for closing the returned ReadCloser.
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object from storage.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, key string) (bool, error)

	// GetSize returns the size of a stored object in bytes.
	GetSize(ctx context.Context, key string) (int64, error)

	// StreamRange writes a byte range from a stored object to the
	// writer. start and end are inclusive byte offsets (0-indexed).
	// Returns the number of bytes written.
	StreamRange(ctx context.Context, key string, start, end int64, w io.Writer) (int64, error)

	// GetAvailableSpace returns the available storage space in bytes.
	// For local storage this is disk space; for S3 this returns a
	// configured limit.
	GetAvailableSpace(ctx context.Context) (int64, error)

	// GetUsedSpace returns the storage space currently used in bytes.
	GetUsedSpace(ctx context.Context) (int64, error)
}

// StorageError represents errors from storage operations with additional context.
type StorageError struct {
	Op      string // Operation that failed (e.g., "Store", "Retrieve", "Delete")
	Path    string // Path or key involved
	Err     error  // Underlying error
	Message string // Human-readable message
}

func (e *StorageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Path != "" {
		return e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the given details.
func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// NewStorageErrorWithMessage creates a new StorageError with a custom message.
func NewStorageErrorWithMessage(op, path string, err error, message string) *StorageError {
	return &StorageError{
		Op:      op,
		Path:    path,
		Err:     err,
		Message: message,
	}
}
