package filesystem

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"
)

func newTestStorage(t *testing.T) *FilesystemStorage {
	t.Helper()

	fs, err := NewFilesystemStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return fs
}

func TestStoreAndRetrieve(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()

	content := []byte("ACGTACGTACGT")
	key, checksum, err := fs.Store(ctx, "abc123.fasta", bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if key != "abc123.fasta" {
		t.Errorf("unexpected key: %s", key)
	}

	sum := sha256.Sum256(content)
	if checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("unexpected checksum: %s", checksum)
	}

	reader, err := fs.Retrieve(ctx, key)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	defer reader.Close()

	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestStoreSizeMismatch(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()

	_, _, err := fs.Store(ctx, "short.bin", strings.NewReader("abc"), 10)
	if err == nil {
		t.Fatal("expected size mismatch error")
	}

	// A failed store must not leave the object behind.
	exists, err := fs.Exists(ctx, "short.bin")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected object to be absent after failed store")
	}
}

func TestStreamRange(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()

	content := []byte("0123456789")
	if _, _, err := fs.Store(ctx, "digits.txt", bytes.NewReader(content), 10); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	tests := []struct {
		name       string
		start, end int64
		want       string
	}{
		{"full", 0, 9, "0123456789"},
		{"middle", 3, 5, "345"},
		{"single byte", 9, 9, "9"},
		{"prefix", 0, 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			written, err := fs.StreamRange(ctx, "digits.txt", tt.start, tt.end, &buf)
			if err != nil {
				t.Fatalf("StreamRange failed: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, buf.String())
			}
			if written != int64(len(tt.want)) {
				t.Errorf("expected %d bytes written, got %d", len(tt.want), written)
			}
		})
	}

	var buf bytes.Buffer
	if _, err := fs.StreamRange(ctx, "digits.txt", 5, 2, &buf); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := fs.StreamRange(ctx, "digits.txt", -1, 2, &buf); err == nil {
		t.Error("expected error for negative start")
	}
}

func TestDeleteAndExists(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()

	if _, _, err := fs.Store(ctx, "doomed.bin", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	exists, err := fs.Exists(ctx, "doomed.bin")
	if err != nil || !exists {
		t.Fatalf("expected object to exist, exists=%v err=%v", exists, err)
	}

	if err := fs.Delete(ctx, "doomed.bin"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err = fs.Exists(ctx, "doomed.bin")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected object to be gone")
	}

	// Deleting a missing object is not an error.
	if err := fs.Delete(ctx, "doomed.bin"); err != nil {
		t.Errorf("repeat delete failed: %v", err)
	}
}

func TestGetSize(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()

	if _, _, err := fs.Store(ctx, "sized.bin", strings.NewReader("hello"), 5); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	size, err := fs.GetSize(ctx, "sized.bin")
	if err != nil {
		t.Fatalf("GetSize failed: %v", err)
	}
	if size != 5 {
		t.Errorf("expected size 5, got %d", size)
	}

	if _, err := fs.GetSize(ctx, "missing.bin"); err == nil {
		t.Error("expected error for missing object")
	}
}

func TestPathTraversalRejected(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()

	keys := []string{
		"../escape.bin",
		"../../etc/passwd",
		"/etc/passwd",
		"nested/../../escape.bin",
	}

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			if _, _, err := fs.Store(ctx, key, strings.NewReader("x"), 1); err == nil {
				t.Errorf("expected Store to reject %q", key)
			}
			if _, err := fs.Retrieve(ctx, key); err == nil {
				t.Errorf("expected Retrieve to reject %q", key)
			}
			if err := fs.Delete(ctx, key); err == nil {
				t.Errorf("expected Delete to reject %q", key)
			}
		})
	}
}

func TestGetUsedSpace(t *testing.T) {
	fs := newTestStorage(t)
	ctx := context.Background()

	if _, _, err := fs.Store(ctx, "a.bin", strings.NewReader("12345"), 5); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if _, _, err := fs.Store(ctx, "b.bin", strings.NewReader("1234567890"), 10); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	used, err := fs.GetUsedSpace(ctx)
	if err != nil {
		t.Fatalf("GetUsedSpace failed: %v", err)
	}
	if used != 15 {
		t.Errorf("expected 15 bytes used, got %d", used)
	}

	avail, err := fs.GetAvailableSpace(ctx)
	if err != nil {
		t.Fatalf("GetAvailableSpace failed: %v", err)
	}
	if avail <= 0 {
		t.Errorf("expected positive available space, got %d", avail)
	}
}
