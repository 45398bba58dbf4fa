package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NayerAli/v2-ocr-sub002/internal/core"
)

// setupTestStore connects to the MinIO instance named by TEST_MINIO_ENDPOINT.
// Tests are skipped when no endpoint is configured.
func setupTestStore(t *testing.T) *MinIOStore {
	t.Helper()

	endpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_MINIO_ENDPOINT not set; skipping object store integration test")
	}

	cfg := Config{
		Endpoint:  endpoint,
		AccessKey: envOr("TEST_MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey: envOr("TEST_MINIO_SECRET_KEY", "minioadmin"),
		Bucket:    envOr("TEST_MINIO_BUCKET", "ocr-test"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewMinIOStore(ctx, cfg, nil)
	require.NoError(t, err)
	return store
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestMinIOStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	store := setupTestStore(t)
	ctx := context.Background()
	ownerID := uuid.NewString()
	jobID := uuid.NewString()

	t.Run("put and get", func(t *testing.T) {
		path := OriginalPath(ownerID, jobID, "doc.pdf")
		content := []byte("%PDF-1.4 test content")

		err := store.Put(ctx, core.PutBlobParams{
			Path:        path,
			Reader:      bytes.NewReader(content),
			Size:        int64(len(content)),
			ContentType: "application/pdf",
		})
		require.NoError(t, err)

		rc, err := store.Get(ctx, path)
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("get missing object", func(t *testing.T) {
		_, err := store.Get(ctx, JobPrefix(ownerID, jobID)+"missing.bin")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBlobNotFound))
	})

	t.Run("presign get", func(t *testing.T) {
		url, err := store.PresignGet(ctx, OriginalPath(ownerID, jobID, "doc.pdf"), time.Minute)
		require.NoError(t, err)
		assert.Contains(t, url, jobID)
	})

	t.Run("delete prefix removes all job artifacts", func(t *testing.T) {
		for page := 1; page <= 3; page++ {
			err := store.Put(ctx, core.PutBlobParams{
				Path:        PagePath(ownerID, jobID, page),
				Reader:      bytes.NewReader([]byte(fmt.Sprintf("page-%d", page))),
				Size:        int64(len(fmt.Sprintf("page-%d", page))),
				ContentType: "image/jpeg",
			})
			require.NoError(t, err)
		}

		require.NoError(t, store.DeletePrefix(ctx, JobPrefix(ownerID, jobID)))

		for page := 1; page <= 3; page++ {
			_, err := store.Get(ctx, PagePath(ownerID, jobID, page))
			assert.True(t, errors.Is(err, ErrBlobNotFound), "page %d should be gone", page)
		}
		_, err := store.Get(ctx, OriginalPath(ownerID, jobID, "doc.pdf"))
		assert.True(t, errors.Is(err, ErrBlobNotFound))
	})

	t.Run("delete single object", func(t *testing.T) {
		path := ThumbnailPath(ownerID, jobID)
		err := store.Put(ctx, core.PutBlobParams{
			Path:        path,
			Reader:      bytes.NewReader([]byte("thumb")),
			Size:        5,
			ContentType: "image/jpeg",
		})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, path))

		_, err = store.Get(ctx, path)
		assert.True(t, errors.Is(err, ErrBlobNotFound))
	})

	t.Run("delete missing object is not an error", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, JobPrefix(ownerID, jobID)+"never-existed.jpg"))
	})
}

func TestMinIOStoreValidation(t *testing.T) {
	store := &MinIOStore{}
	ctx := context.Background()

	if err := store.Put(ctx, core.PutBlobParams{Reader: bytes.NewReader(nil)}); err == nil {
		t.Error("expected error for empty path")
	}
	if err := store.Put(ctx, core.PutBlobParams{Path: "a/b"}); err == nil {
		t.Error("expected error for nil reader")
	}
	if _, err := store.Get(ctx, ""); err == nil {
		t.Error("expected error for empty path")
	}
	if err := store.Delete(ctx, ""); err == nil {
		t.Error("expected error for empty path")
	}
	if err := store.DeletePrefix(ctx, ""); err == nil {
		t.Error("expected error for empty prefix")
	}
	if _, err := store.PresignGet(ctx, "", time.Minute); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestNewMinIOStoreValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing endpoint", cfg: Config{AccessKey: "a", SecretKey: "s", Bucket: "b"}},
		{name: "missing credentials", cfg: Config{Endpoint: "localhost:9000", Bucket: "b"}},
		{name: "missing bucket", cfg: Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMinIOStore(ctx, tt.cfg, nil); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}
