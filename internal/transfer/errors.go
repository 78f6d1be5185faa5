// Package transfer holds the shared pieces of the resumable transfer
// subsystem: its error taxonomy and the positioned temp-file layer that
// chunk writes land in before completion promotes them to storage.
package transfer

import "errors"

// Sentinel errors for transfer operations. Handlers translate these
// into the JSON error envelope; everything else surfaces as a generic
// internal error.
var (
	// ErrValidation indicates malformed input: bad sizes, bad ranges,
	// payload length not matching the declared range.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the session or artifact does not exist for
	// this owner. Absence and foreign ownership are indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates an operation against a session that has
	// already reached a terminal status.
	ErrInvalidState = errors.New("session not active")

	// ErrConflict indicates a declared total size that disagrees with
	// the session's recorded total.
	ErrConflict = errors.New("size conflict")

	// ErrIncompleteTransfer indicates completion was requested before
	// all bytes arrived.
	ErrIncompleteTransfer = errors.New("upload incomplete")

	// ErrStorageInconsistency indicates a catalog record whose bytes
	// are missing or unreadable in the storage backend.
	ErrStorageInconsistency = errors.New("storage inconsistent")

	// ErrRetryableIO indicates a transient I/O failure during
	// promotion; the session stays active and the client may retry.
	ErrRetryableIO = errors.New("retryable I/O failure")
)
