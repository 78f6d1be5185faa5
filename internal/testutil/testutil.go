// Package testutil provides shared helpers for package tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/bioshelf/bioshelf/internal/config"
	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/repository/sqlite"
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically closed when the test completes.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// IMPORTANT: force a single connection for in-memory databases.
	// Each pool connection would otherwise get its own separate
	// :memory: database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := sqlite.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// SetupTestRepos creates sqlite-backed repositories over a fresh test
// database.
func SetupTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	repos, err := sqlite.NewRepositories(SetupTestDB(t))
	if err != nil {
		t.Fatalf("failed to create repositories: %v", err)
	}
	return repos
}

// SetupTestConfig creates a test configuration with temporary
// directories, cleaned up automatically after the test.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Port:                   "8080",
		DBPath:                 ":memory:",
		DataDir:                t.TempDir(),
		MaxFileSize:            100 * 1024 * 1024,
		DefaultChunkSize:       2 * 1024 * 1024,
		SessionExpiryHours:     24,
		CleanupIntervalMinutes: 60,
		StorageBackend:         config.BackendFilesystem,
		NCBIMaxImportBytes:     10 * 1024 * 1024,
	}
}

// CreateTestUser inserts a user and returns it.
func CreateTestUser(t *testing.T, repos *repository.Repositories, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		PasswordHash: "$2a$10$testhashnotausablebcryptvalue1234567890123456789012345",
		CreatedAt:    time.Now(),
	}
	if err := repos.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}
