package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NayerAli/v2-ocr-sub002/config"
	"github.com/NayerAli/v2-ocr-sub002/internal/storage"
)

// ConnectStorage establishes a connection to the object store holding
// uploaded documents, rasterized page images, and thumbnails. The bucket is
// created when it does not exist yet.
func ConnectStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*storage.MinIOStore, error) {
	store, err := storage.NewMinIOStore(ctx, storage.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "object storage connected",
			"endpoint", cfg.Endpoint,
			"bucket", cfg.Bucket,
		)
	}

	return store, nil
}
