// Package filesystem implements the storage.Backend interface for
// local filesystem storage.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bioshelf/bioshelf/internal/storage"
)

// FilesystemStorage implements storage.Backend for local disk.
type FilesystemStorage struct {
	baseDir    string
	absBaseDir string // absolute path for traversal checks
}

// NewFilesystemStorage creates a FilesystemStorage rooted at baseDir,
// creating the directory if needed.
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, storage.NewStorageError("NewFilesystemStorage", baseDir, err)
	}

	return &FilesystemStorage{
		baseDir:    baseDir,
		absBaseDir: absBaseDir,
	}, nil
}

// validatePath validates that the key doesn't escape the base
// directory. Returns the safe full path or an error on traversal.
func (fs *FilesystemStorage) validatePath(key string) (string, error) {
	cleanKey := filepath.Clean(key)

	if filepath.IsAbs(cleanKey) {
		return "", fmt.Errorf("absolute paths not allowed: %s", key)
	}

	if strings.HasPrefix(cleanKey, "..") || strings.Contains(cleanKey, string(filepath.Separator)+"..") {
		return "", fmt.Errorf("path traversal not allowed: %s", key)
	}

	fullPath := filepath.Join(fs.baseDir, cleanKey)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, fs.absBaseDir+string(filepath.Separator)) && absPath != fs.absBaseDir {
		return "", fmt.Errorf("path escape attempt: %s", key)
	}

	return fullPath, nil
}

// Store writes data from the reader to disk under the given key.
// Uses atomic write pattern (temp file then rename) for safety.
func (fs *FilesystemStorage) Store(ctx context.Context, key string, reader io.Reader, size int64) (string, string, error) {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return "", "", storage.NewStorageErrorWithMessage("Store", key, err, "path validation failed")
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return "", "", storage.NewStorageError("Store", key, err)
	}

	tempPath := filePath + ".tmp"

	tempFile, err := os.Create(tempPath)
	if err != nil {
		return "", "", storage.NewStorageError("Store", key, err)
	}

	var succeeded bool
	defer func() {
		tempFile.Close()
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	hasher := sha256.New()
	written, err := io.Copy(tempFile, io.TeeReader(reader, hasher))
	if err != nil {
		return "", "", storage.NewStorageError("Store", key, err)
	}

	if size > 0 && written != size {
		return "", "", storage.NewStorageErrorWithMessage("Store", key, nil,
			fmt.Sprintf("size mismatch: expected %d bytes, wrote %d bytes", size, written))
	}

	hash := hex.EncodeToString(hasher.Sum(nil))

	if err := tempFile.Close(); err != nil {
		return "", "", storage.NewStorageError("Store", key, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		return "", "", storage.NewStorageError("Store", key, err)
	}

	succeeded = true
	slog.Debug("object stored", "key", key, "size", written)

	return key, hash, nil
}

// Retrieve returns a reader for the stored object.
func (fs *FilesystemStorage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return nil, storage.NewStorageErrorWithMessage("Retrieve", key, err, "path validation failed")
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.NewStorageErrorWithMessage("Retrieve", key, err, "object not found")
		}
		return nil, storage.NewStorageError("Retrieve", key, err)
	}

	return file, nil
}

// Delete removes an object from storage. A missing object is not an
// error.
func (fs *FilesystemStorage) Delete(ctx context.Context, key string) error {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return storage.NewStorageErrorWithMessage("Delete", key, err, "path validation failed")
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return storage.NewStorageError("Delete", key, err)
	}

	slog.Debug("object deleted", "key", key)
	return nil
}

// Exists checks if an object exists in storage.
func (fs *FilesystemStorage) Exists(ctx context.Context, key string) (bool, error) {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return false, storage.NewStorageErrorWithMessage("Exists", key, err, "path validation failed")
	}

	_, err = os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, storage.NewStorageError("Exists", key, err)
}

// GetSize returns the size of a stored object in bytes.
func (fs *FilesystemStorage) GetSize(ctx context.Context, key string) (int64, error) {
	filePath, err := fs.validatePath(key)
	if err != nil {
		return 0, storage.NewStorageErrorWithMessage("GetSize", key, err, "path validation failed")
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, storage.NewStorageErrorWithMessage("GetSize", key, err, "object not found")
		}
		return 0, storage.NewStorageError("GetSize", key, err)
	}

	return info.Size(), nil
}

// StreamRange writes a byte range from a stored object to the writer.
func (fs *FilesystemStorage) StreamRange(ctx context.Context, key string, start, end int64, w io.Writer) (int64, error) {
	if start < 0 || end < start {
		return 0, storage.NewStorageErrorWithMessage("StreamRange", key, nil,
			fmt.Sprintf("invalid range: start=%d, end=%d", start, end))
	}

	filePath, err := fs.validatePath(key)
	if err != nil {
		return 0, storage.NewStorageErrorWithMessage("StreamRange", key, err, "path validation failed")
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, storage.NewStorageErrorWithMessage("StreamRange", key, err, "object not found")
		}
		return 0, storage.NewStorageError("StreamRange", key, err)
	}
	defer file.Close()

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return 0, storage.NewStorageError("StreamRange", key, err)
	}

	// end is inclusive
	contentLength := end - start + 1

	written, err := io.Copy(w, io.LimitReader(file, contentLength))
	if err != nil {
		return written, storage.NewStorageError("StreamRange", key, err)
	}

	return written, nil
}

// GetAvailableSpace returns the available disk space in bytes.
func (fs *FilesystemStorage) GetAvailableSpace(ctx context.Context) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(fs.baseDir, &stat); err != nil {
		return 0, storage.NewStorageError("GetAvailableSpace", fs.baseDir, err)
	}

	// Space available to non-root users
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// GetUsedSpace returns the storage space currently used in bytes.
func (fs *FilesystemStorage) GetUsedSpace(ctx context.Context) (int64, error) {
	var totalSize int64

	err := filepath.Walk(fs.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Skip entries we can't access
			return nil
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, storage.NewStorageError("GetUsedSpace", fs.baseDir, err)
	}

	return totalSize, nil
}

// GetBaseDir returns the base directory.
func (fs *FilesystemStorage) GetBaseDir() string {
	return fs.baseDir
}
