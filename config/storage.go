package config

import (
	"strings"
	"time"
)

// StorageConfig contains blob store (S3-compatible) configuration.
type StorageConfig struct {
	// Endpoint is the MinIO/S3 endpoint host:port.
	Endpoint string `env:"ENDPOINT" envDefault:"localhost:9000"`

	// AccessKey and SecretKey authenticate against the blob store.
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`

	// Bucket holds originals, page images, and thumbnails.
	Bucket string `env:"BUCKET" envDefault:"ocr-documents"`

	// UseSSL enables TLS for blob store connections.
	UseSSL bool `env:"USE_SSL" envDefault:"false"`

	// PresignTTL is the lifetime of presigned download links returned with
	// page results.
	PresignTTL time.Duration `env:"PRESIGN_TTL" envDefault:"15m"`
}

// Sanitize applies guardrails to storage configuration values.
func (s *StorageConfig) Sanitize() {
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	s.Bucket = strings.TrimSpace(s.Bucket)
	if s.PresignTTL < time.Minute {
		s.PresignTTL = time.Minute
	}
}
