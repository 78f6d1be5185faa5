package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/storage"
	"github.com/bioshelf/bioshelf/internal/storage/filesystem"
	"github.com/bioshelf/bioshelf/internal/testutil"
)

func storeArtifact(t *testing.T, repos *repository.Repositories, store storage.Backend, user *models.User, filename, content string) *models.Artifact {
	t.Helper()

	storedName := newSessionID() + ".dat"
	_, checksum, err := store.Store(context.Background(), storedName, strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("failed to store content: %v", err)
	}

	artifact := &models.Artifact{
		UserID:           user.ID,
		OriginalFilename: filename,
		StoredFilename:   storedName,
		FileSize:         int64(len(content)),
		MimeType:         "application/octet-stream",
		UploadMethod:     "chunked",
		FileFormat:       "txt",
		DocumentType:     models.DocumentDataset,
		Checksum:         checksum,
	}
	artifact.RefreshSearchVector()
	if err := repos.Artifacts.Create(context.Background(), artifact); err != nil {
		t.Fatalf("failed to create artifact: %v", err)
	}
	return artifact
}

func TestDownloadHandler_FullFile(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, repos, "alice")

	store, err := filesystem.NewFilesystemStorage(cfg.DataDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	content := strings.Repeat("x", 1000)
	artifact := storeArtifact(t, repos, store, user, "readme.txt", content)

	req := authedRequest(http.MethodGet, fmt.Sprintf("/api/files/%d/download", artifact.ID), nil, user)
	rec := httptest.NewRecorder()
	DownloadHandler(repos, store)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("download returned %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("Content-Length = %q, want 1000", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q, want bytes", got)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "readme.txt") {
		t.Errorf("Content-Disposition %q missing filename", cd)
	}
	if rec.Body.Len() != 1000 {
		t.Errorf("body length = %d, want 1000", rec.Body.Len())
	}
}

func TestDownloadHandler_RangeRequests(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, repos, "alice")

	store, err := filesystem.NewFilesystemStorage(cfg.DataDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString(fmt.Sprintf("%02d-chunk-%d\n", i%100, i%10)) // 11 bytes per line
	}
	content := sb.String()[:1000]
	artifact := storeArtifact(t, repos, store, user, "data.bin", content)

	tests := []struct {
		name          string
		rangeHeader   string
		wantStart     int64
		wantEnd       int64
		wantFullClamp bool
	}{
		{"middle slice", "bytes=200-299", 200, 299, false},
		{"open ended", "bytes=500-", 500, 999, false},
		{"missing start", "bytes=-500", 0, 500, false},
		{"end beyond size clamps to full", "bytes=900-1500", 0, 999, true},
		{"start beyond size clamps to full", "bytes=2000-3000", 0, 999, true},
		{"start after end clamps to full", "bytes=500-100", 0, 999, true},
		{"wrong unit clamps to full", "chars=0-99", 0, 999, true},
		{"garbage clamps to full", "bytes=abc-def", 0, 999, true},
		{"multi-range clamps to full", "bytes=0-99,200-299", 0, 999, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(http.MethodGet, fmt.Sprintf("/api/files/%d/download", artifact.ID), nil, user)
			req.Header.Set("Range", tt.rangeHeader)
			rec := httptest.NewRecorder()
			DownloadHandler(repos, store)(rec, req)

			// Any Range header yields 206, satisfiable or not
			if rec.Code != http.StatusPartialContent {
				t.Fatalf("status = %d, want 206", rec.Code)
			}

			wantLen := tt.wantEnd - tt.wantStart + 1
			wantContentRange := fmt.Sprintf("bytes %d-%d/1000", tt.wantStart, tt.wantEnd)
			if got := rec.Header().Get("Content-Range"); got != wantContentRange {
				t.Errorf("Content-Range = %q, want %q", got, wantContentRange)
			}
			if got := rec.Header().Get("Content-Length"); got != fmt.Sprint(wantLen) {
				t.Errorf("Content-Length = %q, want %d", got, wantLen)
			}
			if got := rec.Body.String(); got != content[tt.wantStart:tt.wantEnd+1] {
				t.Errorf("body mismatch for %s: got %d bytes", tt.rangeHeader, len(got))
			}
		})
	}
}

func TestDownloadHandler_EmptyFile(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, repos, "alice")

	store, err := filesystem.NewFilesystemStorage(cfg.DataDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	artifact := storeArtifact(t, repos, store, user, "empty.txt", "")

	// There is no byte 0 to clamp a range onto, so a Range request on
	// an empty file gets the same plain empty 200 as a full download.
	for _, rangeHeader := range []string{"", "bytes=0-0", "bytes=0-499"} {
		name := rangeHeader
		if name == "" {
			name = "no range"
		}
		t.Run(name, func(t *testing.T) {
			req := authedRequest(http.MethodGet, fmt.Sprintf("/api/files/%d/download", artifact.ID), nil, user)
			if rangeHeader != "" {
				req.Header.Set("Range", rangeHeader)
			}
			rec := httptest.NewRecorder()
			DownloadHandler(repos, store)(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := rec.Header().Get("Content-Length"); got != "0" {
				t.Errorf("Content-Length = %q, want 0", got)
			}
			if got := rec.Header().Get("Content-Range"); got != "" {
				t.Errorf("unexpected Content-Range %q", got)
			}
			if rec.Body.Len() != 0 {
				t.Errorf("body length = %d, want 0", rec.Body.Len())
			}
		})
	}
}

func TestDownloadHandler_NotFound(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, repos, "alice")

	store, err := filesystem.NewFilesystemStorage(cfg.DataDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	req := authedRequest(http.MethodGet, "/api/files/9999/download", nil, user)
	rec := httptest.NewRecorder()
	DownloadHandler(repos, store)(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing artifact returned %d, want 404", rec.Code)
	}
}

func TestDownloadHandler_StorageInconsistency(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, repos, "alice")

	store, err := filesystem.NewFilesystemStorage(cfg.DataDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	artifact := storeArtifact(t, repos, store, user, "gone.txt", "some bytes")

	// Remove the blob behind the catalog's back
	if err := store.Delete(context.Background(), artifact.StoredFilename); err != nil {
		t.Fatalf("failed to delete blob: %v", err)
	}

	req := authedRequest(http.MethodGet, fmt.Sprintf("/api/files/%d/download", artifact.ID), nil, user)
	rec := httptest.NewRecorder()
	DownloadHandler(repos, store)(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("inconsistent download returned %d, want 500", rec.Code)
	}
	var errResp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if errResp.Code != "STORAGE_INCONSISTENT" {
		t.Errorf("code = %q, want STORAGE_INCONSISTENT", errResp.Code)
	}
}

func TestDownloadHandler_OwnershipIsolation(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	cfg := testutil.SetupTestConfig(t)
	owner := testutil.CreateTestUser(t, repos, "alice")
	other := testutil.CreateTestUser(t, repos, "mallory")

	store, err := filesystem.NewFilesystemStorage(cfg.DataDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	artifact := storeArtifact(t, repos, store, owner, "secret.txt", "classified")

	req := authedRequest(http.MethodGet, fmt.Sprintf("/api/files/%d/download", artifact.ID), nil, other)
	rec := httptest.NewRecorder()
	DownloadHandler(repos, store)(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign download returned %d, want 404", rec.Code)
	}
}
