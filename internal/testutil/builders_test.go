package testutil

import (
	"testing"

	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRequestBuilderDefaults(t *testing.T) {
	req := NewJobRequest().Build()

	require.NoError(t, req.Validate())
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "test-owner", req.OwnerID)
	assert.Equal(t, "scan.pdf", req.OriginalFilename)
	assert.Equal(t, model.MIMEPDF, req.FileType)
	assert.Equal(t, int64(2048), req.FileSize)
	assert.Equal(t, req.ID+".pdf", req.Filename)
	assert.Equal(t, "test-owner/"+req.ID+"/"+req.Filename, req.StoragePath)
	assert.Zero(t, req.MaxRetries)
}

func TestJobRequestBuilderDerivesFromOverrides(t *testing.T) {
	req := NewJobRequest().
		WithID("job-1").
		WithOwner("user-9").
		WithFileType(model.MIMEJPEG).
		Build()

	assert.Equal(t, "job-1.jpg", req.Filename)
	assert.Equal(t, "user-9/job-1/job-1.jpg", req.StoragePath)
}

func TestJobRequestBuilderExplicitPathsWin(t *testing.T) {
	req := NewJobRequest().
		WithFilename("custom.pdf").
		WithStoragePath("elsewhere/custom.pdf").
		Build()

	assert.Equal(t, "custom.pdf", req.Filename)
	assert.Equal(t, "elsewhere/custom.pdf", req.StoragePath)
}

func TestJobRequestBuilderIsReusable(t *testing.T) {
	b := NewJobRequest().WithOwner("user-1")

	first := b.Build()
	second := b.WithOwner("user-2").Build()

	assert.Equal(t, "user-1", first.OwnerID)
	assert.Equal(t, "user-2", second.OwnerID)
	assert.Equal(t, first.ID, second.ID)
}

func TestJobRequestPresets(t *testing.T) {
	pdf := PDFJobRequest("user-1")
	require.NoError(t, pdf.Validate())
	assert.Equal(t, model.MIMEPDF, pdf.FileType)

	img := ImageJobRequest("user-2")
	require.NoError(t, img.Validate())
	assert.Equal(t, model.MIMEJPEG, img.FileType)
	assert.Equal(t, "scan.jpg", img.OriginalFilename)
	assert.Equal(t, img.ID+".jpg", img.Filename)

	retryable := RetryableJobRequest("user-3", 5)
	require.NoError(t, retryable.Validate())
	assert.Equal(t, 5, retryable.MaxRetries)
}
