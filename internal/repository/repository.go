// Package repository defines interfaces for data access operations.
// It provides abstractions over the relational store so that SQLite and
// PostgreSQL backends can be swapped without changing application code.
package repository

import "errors"

// Common errors returned by repository operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateKey is returned when an insert violates a uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotActive is returned when a guarded update finds the session
	// no longer in the active state.
	ErrNotActive = errors.New("session not active")

	// ErrNilDatabase is returned when a nil database connection is provided.
	ErrNilDatabase = errors.New("nil database connection")
)

// FacetCounts holds catalog facet counts for search refinement.
type FacetCounts struct {
	Formats       map[string]int64 `json:"formats"`
	DocumentTypes map[string]int64 `json:"document_types"`
}
