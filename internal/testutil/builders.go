// Package testutil provides testing utilities and helpers for the OCR job queue.
package testutil

import (
	"github.com/google/uuid"

	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest values for testing.
type JobRequestBuilder struct {
	req model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults: a
// fresh job id and a 2 KiB PDF upload owned by "test-owner".
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: model.CreateJobRequest{
			ID:               uuid.NewString(),
			OwnerID:          "test-owner",
			OriginalFilename: "scan.pdf",
			FileType:         model.MIMEPDF,
			FileSize:         2048,
		},
	}
}

// WithID sets the job id.
func (b *JobRequestBuilder) WithID(id string) *JobRequestBuilder {
	b.req.ID = id
	return b
}

// WithOwner sets the owning user.
func (b *JobRequestBuilder) WithOwner(ownerID string) *JobRequestBuilder {
	b.req.OwnerID = ownerID
	return b
}

// WithOriginalFilename sets the name the document was uploaded under.
func (b *JobRequestBuilder) WithOriginalFilename(name string) *JobRequestBuilder {
	b.req.OriginalFilename = name
	return b
}

// WithFileType sets the MIME type. The derived stored filename follows it.
func (b *JobRequestBuilder) WithFileType(mime string) *JobRequestBuilder {
	b.req.FileType = mime
	return b
}

// WithFileSize sets the upload size in bytes.
func (b *JobRequestBuilder) WithFileSize(size int64) *JobRequestBuilder {
	b.req.FileSize = size
	return b
}

// WithFileHash sets the SHA256 content hash.
func (b *JobRequestBuilder) WithFileHash(hash string) *JobRequestBuilder {
	b.req.FileHash = hash
	return b
}

// WithFilename overrides the derived stored filename.
func (b *JobRequestBuilder) WithFilename(filename string) *JobRequestBuilder {
	b.req.Filename = filename
	return b
}

// WithStoragePath overrides the derived blob key.
func (b *JobRequestBuilder) WithStoragePath(path string) *JobRequestBuilder {
	b.req.StoragePath = path
	return b
}

// WithMaxRetries sets the lease-expiry retry budget.
func (b *JobRequestBuilder) WithMaxRetries(maxRetries int) *JobRequestBuilder {
	b.req.MaxRetries = maxRetries
	return b
}

// Build returns the constructed CreateJobRequest. The stored filename and
// storage path are derived from the id, owner and file type unless they were
// set explicitly.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	req := b.req
	if req.Filename == "" {
		req.Filename = req.ID + "." + model.FileExtension(req.FileType)
	}
	if req.StoragePath == "" {
		req.StoragePath = req.OwnerID + "/" + req.ID + "/" + req.Filename
	}
	return &req
}

// Common test job request presets

// PDFJobRequest creates a PDF job request with default values.
func PDFJobRequest(ownerID string) *model.CreateJobRequest {
	return NewJobRequest().WithOwner(ownerID).Build()
}

// ImageJobRequest creates a single-image job request.
func ImageJobRequest(ownerID string) *model.CreateJobRequest {
	return NewJobRequest().
		WithOwner(ownerID).
		WithOriginalFilename("scan.jpg").
		WithFileType(model.MIMEJPEG).
		Build()
}

// RetryableJobRequest creates a job request with a custom retry budget.
func RetryableJobRequest(ownerID string, maxRetries int) *model.CreateJobRequest {
	return NewJobRequest().
		WithOwner(ownerID).
		WithMaxRetries(maxRetries).
		Build()
}
