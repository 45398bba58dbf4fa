// Package storage provides the S3-compatible blob store for document
// artifacts: original uploads, rasterized page images and thumbnails.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
)

// ErrBlobNotFound indicates the requested object does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// Config holds the connection settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOStore implements core.BlobStore against MinIO or any S3-compatible
// backend. It is safe for concurrent use.
type MinIOStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewMinIOStore creates the store and ensures the bucket exists, creating it
// when missing. The logger may be nil.
func NewMinIOStore(ctx context.Context, cfg Config, logger *slog.Logger) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if logger != nil {
		logger = logger.With("component", "storage.minio")
	}

	store := &MinIOStore{client: client, bucket: cfg.Bucket, logger: logger}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "created bucket", "bucket", s.bucket)
	}
	return nil
}

// Put uploads an object using streaming I/O. Size -1 lets the client chunk
// the stream.
func (s *MinIOStore) Put(ctx context.Context, params core.PutBlobParams) error {
	if params.Path == "" {
		return errors.New("blob path is required")
	}
	if params.Reader == nil {
		return errors.New("blob reader is required")
	}

	opts := minio.PutObjectOptions{ContentType: params.ContentType}
	if _, err := s.client.PutObject(ctx, s.bucket, params.Path, params.Reader, params.Size, opts); err != nil {
		return fmt.Errorf("put object %s: %w", params.Path, err)
	}
	return nil
}

// Get returns a streaming reader for the object. The caller must close it.
func (s *MinIOStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, errors.New("blob path is required")
	}

	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", path, err)
	}
	// GetObject is lazy; Stat forces the first round trip so a missing key
	// surfaces here instead of on the first Read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("get object %s: %w", path, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("stat object %s: %w", path, err)
	}
	return obj, nil
}

// Delete removes a single object. Deleting a missing object is not an error.
func (s *MinIOStore) Delete(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("blob path is required")
	}
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object %s: %w", path, err)
	}
	return nil
}

// DeletePrefix removes every object under the prefix. Used to drop all of a
// job's artifacts in one call.
func (s *MinIOStore) DeletePrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return errors.New("blob prefix is required")
	}

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var deleted int
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("list objects under %s: %w", prefix, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("delete object %s: %w", obj.Key, err)
		}
		deleted++
	}

	if s.logger != nil && deleted > 0 {
		s.logger.DebugContext(ctx, "deleted blob prefix", "prefix", prefix, "objects", deleted)
	}
	return nil
}

// PresignGet returns a time-limited download URL for the object.
func (s *MinIOStore) PresignGet(ctx context.Context, path string, expiry time.Duration) (string, error) {
	if path == "" {
		return "", errors.New("blob path is required")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", path, err)
	}
	return u.String(), nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
