package transfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// TempFilePath returns the partial-upload path for a session. Temp
// files are scoped per owner so concurrent sessions from different
// users can never collide.
func TempFilePath(dataDir string, userID int64, sessionID string) string {
	return filepath.Join(dataDir, "tmp", "uploads", strconv.FormatInt(userID, 10), sessionID+".part")
}

// CreateTempFile allocates an empty partial-upload file for a new
// session, creating the per-owner directory as needed. Returns the
// file's path.
func CreateTempFile(dataDir string, userID int64, sessionID string) (string, error) {
	path := TempFilePath(dataDir, userID, sessionID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload temp dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	return path, nil
}

// WriteChunkAt writes exactly length bytes from r into the temp file
// at byte offset start. The payload is staged in memory and validated
// against the declared range before the file is touched, so a short or
// overlong body fails with ErrValidation without dirtying previously
// written bytes. The file is opened without O_CREATE: if cancellation
// removed it between the status check and the write, the open fails
// with ErrInvalidState instead of silently resurrecting the file.
func WriteChunkAt(path string, start int64, r io.Reader, length int64) error {
	buf := make([]byte, length)
	read, err := io.ReadFull(r, buf)
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return fmt.Errorf("payload is %d bytes, range declares %d: %w", read, length, ErrValidation)
		}
		return fmt.Errorf("failed to read chunk payload: %w", err)
	}

	// Anything left in the body means the payload overruns the range.
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return fmt.Errorf("payload longer than declared range: %w", ErrValidation)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("temp file gone, %w", ErrInvalidState)
		}
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteAt(buf, start); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}

	return nil
}

// OpenTempFile opens a session's partial file for reading and returns
// its current size alongside the reader.
func OpenTempFile(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("temp file missing: %w", ErrRetryableIO)
		}
		return nil, 0, fmt.Errorf("failed to open temp file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat temp file: %w", err)
	}

	return f, info.Size(), nil
}

// RemoveTempFile deletes a session's partial file. A file that is
// already gone is not an error.
func RemoveTempFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp file: %w", err)
	}
	return nil
}
