package config

import (
	"fmt"
	"os"
	"strconv"
)

// Storage backend selectors.
const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
)

// Config holds all application configuration.
type Config struct {
	Port                   string
	DBPath                 string // SQLite database path (default backend)
	DatabaseURL            string // Optional: PostgreSQL connection string; overrides SQLite
	DataDir                string // Base directory for artifacts and session temp files
	MaxFileSize            int64
	DefaultChunkSize       int64 // Advisory chunk size returned at session init
	SessionExpiryHours     int   // Abandoned sessions older than this are reaped
	CleanupIntervalMinutes int
	PublicURL              string // Optional: override auto-detected URL behind a reverse proxy

	StorageBackend string // "filesystem" or "s3"
	S3Bucket       string
	S3Region       string
	S3Endpoint     string // Optional: custom endpoint for S3-compatible stores
	S3AccessKey    string
	S3SecretKey    string

	NCBIMaxImportBytes int64 // Size cap for external archive imports
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		DBPath:                 getEnv("DB_PATH", "./bioshelf.db"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		DataDir:                getEnv("DATA_DIR", "./data"),
		MaxFileSize:            getEnvInt64("MAX_FILE_SIZE", 10*1024*1024*1024), // 10GB default
		DefaultChunkSize:       getEnvInt64("DEFAULT_CHUNK_SIZE", 2*1024*1024),  // 2MB default
		SessionExpiryHours:     getEnvInt("SESSION_EXPIRY_HOURS", 24),
		CleanupIntervalMinutes: getEnvInt("CLEANUP_INTERVAL_MINUTES", 60),
		PublicURL:              getEnv("PUBLIC_URL", ""),
		StorageBackend:         getEnv("STORAGE_BACKEND", BackendFilesystem),
		S3Bucket:               getEnv("S3_BUCKET", ""),
		S3Region:               getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:             getEnv("S3_ENDPOINT", ""),
		S3AccessKey:            getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:            getEnv("S3_SECRET_KEY", ""),
		NCBIMaxImportBytes:     getEnvInt64("NCBI_MAX_IMPORT_BYTES", 1024*1024*1024), // 1GB
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures configuration values are sensible.
func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.DBPath == "" && c.DatabaseURL == "" {
		return fmt.Errorf("one of DB_PATH or DATABASE_URL must be set")
	}

	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize)
	}

	if c.DefaultChunkSize <= 0 {
		return fmt.Errorf("DEFAULT_CHUNK_SIZE must be positive, got %d", c.DefaultChunkSize)
	}

	if c.SessionExpiryHours <= 0 {
		return fmt.Errorf("SESSION_EXPIRY_HOURS must be positive, got %d", c.SessionExpiryHours)
	}

	if c.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL_MINUTES must be positive, got %d", c.CleanupIntervalMinutes)
	}

	switch c.StorageBackend {
	case BackendFilesystem:
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q",
			BackendFilesystem, BackendS3, c.StorageBackend)
	}

	if c.NCBIMaxImportBytes <= 0 {
		return fmt.Errorf("NCBI_MAX_IMPORT_BYTES must be positive, got %d", c.NCBIMaxImportBytes)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves an int64 environment variable or returns a default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
