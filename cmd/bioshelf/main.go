package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bioshelf/bioshelf/internal/config"
	"github.com/bioshelf/bioshelf/internal/handlers"
	"github.com/bioshelf/bioshelf/internal/middleware"
	"github.com/bioshelf/bioshelf/internal/ncbi"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/repository/postgres"
	"github.com/bioshelf/bioshelf/internal/repository/sqlite"
	"github.com/bioshelf/bioshelf/internal/storage"
	"github.com/bioshelf/bioshelf/internal/storage/filesystem"
	"github.com/bioshelf/bioshelf/internal/storage/s3"
	"github.com/bioshelf/bioshelf/internal/utils"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting bioshelf",
		"port", cfg.Port,
		"max_file_size", cfg.MaxFileSize,
		"storage_backend", cfg.StorageBackend,
		"database", databaseKind(cfg),
	)

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	repos, err := setupRepositories(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repos.Cleanup()

	slog.Info("database initialized", "type", repos.DatabaseType)

	// Initialize storage backend
	store, err := setupStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize storage backend", "error", err)
		os.Exit(1)
	}

	importClient := ncbi.NewClient(&http.Client{Timeout: 5 * time.Minute}, cfg.NCBIMaxImportBytes)

	// Setup HTTP router
	mux := http.NewServeMux()
	auth := middleware.TokenAuth(repos.Users)

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			auth(h).ServeHTTP(w, r)
		}
	}

	// Public routes
	mux.HandleFunc("/api/auth/register", handlers.RegisterHandler(repos))
	mux.HandleFunc("/api/auth/login", handlers.LoginHandler(repos))
	mux.HandleFunc("/health", handlers.HealthHandler(repos, store))
	mux.Handle("/metrics", promhttp.Handler())

	// Resumable upload routes
	mux.HandleFunc("/api/upload/init", authed(handlers.UploadInitHandler(repos, cfg)))
	mux.HandleFunc("/api/upload/chunk/", authed(handlers.ChunkHandler(repos, cfg)))
	mux.HandleFunc("/api/upload/complete/", authed(handlers.CompleteHandler(repos, cfg, store)))
	mux.HandleFunc("/api/upload/cancel/", authed(handlers.CancelHandler(repos)))
	mux.HandleFunc("/api/upload/status/", authed(handlers.StatusHandler(repos)))

	// Catalog routes. /api/files/{id}/download must win over the
	// generic /api/files/{id} handler.
	mux.HandleFunc("/api/files", authed(handlers.ArtifactsHandler(repos)))
	mux.HandleFunc("/api/files/", authed(fileRouter(repos, store)))

	// Folder routes
	mux.HandleFunc("/api/folders", authed(handlers.FoldersHandler(repos)))
	mux.HandleFunc("/api/folders/", authed(handlers.FolderHandler(repos)))

	// External archive import
	mux.HandleFunc("/api/import/ncbi", authed(handlers.ImportHandler(repos, cfg, store, importClient)))

	// Per-user stats
	mux.HandleFunc("/api/stats", authed(handlers.UserStatsHandler(repos)))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Minute, // large chunk bodies on slow links
		WriteTimeout: 30 * time.Minute, // multi-gigabyte downloads
		IdleTimeout:  60 * time.Second,
	}

	// Start the abandoned session janitor
	go utils.StartCleanupWorker(ctx, repos.Sessions, cfg.SessionExpiryHours, cfg.CleanupIntervalMinutes)

	// Start HTTP server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		// Stop the janitor
		cancel()

		// Give outstanding requests 10 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		slog.Info("server shutdown complete")
	}
}

// fileRouter dispatches /api/files/{id} and /api/files/{id}/download.
func fileRouter(repos *repository.Repositories, store storage.Backend) http.HandlerFunc {
	download := handlers.DownloadHandler(repos, store)
	artifact := handlers.ArtifactHandler(repos, store)
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/download") {
			download(w, r)
			return
		}
		artifact(w, r)
	}
}

// setupRepositories selects PostgreSQL when DATABASE_URL is set and
// falls back to embedded SQLite otherwise.
func setupRepositories(ctx context.Context, cfg *config.Config) (*repository.Repositories, error) {
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, 0)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.NewRepositories(pool)
	}

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return sqlite.NewRepositories(db)
}

// setupStorage selects the artifact storage backend.
func setupStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if cfg.StorageBackend == config.BackendS3 {
		return s3.NewS3Storage(ctx, s3.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			PathStyle:       cfg.S3Endpoint != "",
		})
	}
	return filesystem.NewFilesystemStorage(cfg.DataDir)
}

func databaseKind(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return repository.DatabaseTypePostgres
	}
	return repository.DatabaseTypeSQLite
}
