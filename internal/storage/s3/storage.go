// Package s3 implements the storage.Backend interface for AWS S3 and
// S3-compatible storage.
package s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bioshelf/bioshelf/internal/storage"
)

const (
	// maxS3ObjectSize is the maximum object size S3 can store (5 TiB)
	maxS3ObjectSize = 5 * 1024 * 1024 * 1024 * 1024

	// multipartUploadPartSize is the size for S3 multipart upload parts (5MB minimum)
	multipartUploadPartSize = 5 * 1024 * 1024
)

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Custom endpoint for MinIO or other S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool  // Use path-style addressing (required for MinIO)
	StorageQuota    int64 // Optional storage quota in bytes (0 = unlimited)
}

// S3Storage implements storage.Backend for AWS S3 and S3-compatible storage.
type S3Storage struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	quota    int64
}

// NewS3Storage creates a new S3Storage with the given configuration.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	var optFuncs []func(*config.LoadOptions) error

	if cfg.Region != "" {
		optFuncs = append(optFuncs, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFuncs = append(optFuncs, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartUploadPartSize
	})

	// Verify bucket access up front
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %q: %w", cfg.Bucket, err)
	}

	slog.Info("S3 storage initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.PathStyle,
	)

	return &S3Storage{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		quota:    cfg.StorageQuota,
	}, nil
}

// validateKey ensures the S3 key doesn't contain path traversal or
// dangerous characters.
func (s *S3Storage) validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key not allowed")
	}
	if strings.ContainsRune(key, '\x00') {
		return fmt.Errorf("null bytes not allowed in key")
	}
	if strings.Contains(key, "%") {
		return fmt.Errorf("encoded characters not allowed in key")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("path traversal not allowed: %s", key)
	}

	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "/" {
		return fmt.Errorf("invalid key: %s", key)
	}

	return nil
}

// hashingReader wraps a reader to compute the SHA-256 hash while reading.
type hashingReader struct {
	reader io.Reader
	hasher hash.Hash
}

func newHashingReader(r io.Reader) *hashingReader {
	h := sha256.New()
	return &hashingReader{
		reader: io.TeeReader(r, h),
		hasher: h,
	}
}

func (hr *hashingReader) Read(p []byte) (n int, err error) {
	return hr.reader.Read(p)
}

func (hr *hashingReader) Hash() string {
	return hex.EncodeToString(hr.hasher.Sum(nil))
}

// Store writes data from the reader to S3 under the given key. Uses a
// streaming multipart upload to avoid loading the object into memory.
func (s *S3Storage) Store(ctx context.Context, key string, reader io.Reader, size int64) (string, string, error) {
	if err := s.validateKey(key); err != nil {
		return "", "", storage.NewStorageErrorWithMessage("Store", key, err, "key validation failed")
	}

	hr := newHashingReader(reader)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   hr,
	})
	if err != nil {
		return "", "", storage.NewStorageError("Store", key, err)
	}

	hash := hr.Hash()

	slog.Debug("object stored in S3", "key", key, "size", size)

	return key, hash, nil
}

// Retrieve returns a reader for the stored object from S3.
func (s *S3Storage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.validateKey(key); err != nil {
		return nil, storage.NewStorageErrorWithMessage("Retrieve", key, err, "key validation failed")
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, storage.NewStorageErrorWithMessage("Retrieve", key, err, "object not found")
		}
		return nil, storage.NewStorageError("Retrieve", key, err)
	}

	return result.Body, nil
}

// Delete removes an object from S3.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if err := s.validateKey(key); err != nil {
		return storage.NewStorageErrorWithMessage("Delete", key, err, "key validation failed")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// S3 doesn't error on delete of non-existent objects
		return storage.NewStorageError("Delete", key, err)
	}

	slog.Debug("object deleted from S3", "key", key)
	return nil
}

// Exists checks if an object exists in S3.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.validateKey(key); err != nil {
		return false, storage.NewStorageErrorWithMessage("Exists", key, err, "key validation failed")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return false, nil
		}
		return false, storage.NewStorageError("Exists", key, err)
	}

	return true, nil
}

// GetSize returns the size of a stored object in bytes.
func (s *S3Storage) GetSize(ctx context.Context, key string) (int64, error) {
	if err := s.validateKey(key); err != nil {
		return 0, storage.NewStorageErrorWithMessage("GetSize", key, err, "key validation failed")
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return 0, storage.NewStorageErrorWithMessage("GetSize", key, err, "object not found")
		}
		return 0, storage.NewStorageError("GetSize", key, err)
	}

	if result.ContentLength != nil {
		return *result.ContentLength, nil
	}
	return 0, nil
}

// StreamRange writes a byte range from a stored object to the writer.
func (s *S3Storage) StreamRange(ctx context.Context, key string, start, end int64, w io.Writer) (int64, error) {
	if start < 0 || end < start {
		return 0, storage.NewStorageErrorWithMessage("StreamRange", key, nil,
			fmt.Sprintf("invalid range: start=%d, end=%d", start, end))
	}

	if err := s.validateKey(key); err != nil {
		return 0, storage.NewStorageErrorWithMessage("StreamRange", key, err, "key validation failed")
	}

	// S3 Range header is bytes=start-end (both inclusive)
	rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return 0, storage.NewStorageErrorWithMessage("StreamRange", key, err, "object not found")
		}
		return 0, storage.NewStorageError("StreamRange", key, err)
	}
	defer result.Body.Close()

	written, err := io.Copy(w, result.Body)
	if err != nil {
		return written, storage.NewStorageError("StreamRange", key, err)
	}

	return written, nil
}

// GetAvailableSpace returns the configured quota minus used space, or
// the maximum S3 object size when no quota is set.
func (s *S3Storage) GetAvailableSpace(ctx context.Context) (int64, error) {
	if s.quota <= 0 {
		return maxS3ObjectSize, nil
	}

	used, err := s.GetUsedSpace(ctx)
	if err != nil {
		return 0, err
	}

	available := s.quota - used
	if available < 0 {
		available = 0
	}

	return available, nil
}

// GetUsedSpace lists all objects in the bucket and sums their sizes.
func (s *S3Storage) GetUsedSpace(ctx context.Context) (int64, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})

	var totalSize int64
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, storage.NewStorageError("GetUsedSpace", s.bucket, err)
		}

		for _, obj := range page.Contents {
			if obj.Size != nil {
				totalSize += *obj.Size
			}
		}
	}

	return totalSize, nil
}

// HealthCheck verifies that the bucket is accessible. Includes a
// 5-second timeout to prevent blocking on network issues.
func (s *S3Storage) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(checkCtx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return storage.NewStorageErrorWithMessage("HealthCheck", s.bucket, err, "S3 bucket not accessible")
	}
	return nil
}
