//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_Valid(t *testing.T) {
	for _, status := range []JobStatus{
		JobStatusQueued,
		JobStatusProcessing,
		JobStatusCompleted,
		JobStatusFailed,
		JobStatusCancelled,
	} {
		assert.True(t, status.Valid(), "expected %q to be valid", status)
	}

	assert.False(t, JobStatus("").Valid())
	assert.False(t, JobStatus("archived").Valid())
	assert.False(t, JobStatus("Queued").Valid())
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
}

func TestJobStatus_Retryable(t *testing.T) {
	assert.False(t, JobStatusQueued.Retryable())
	assert.False(t, JobStatusProcessing.Retryable())
	assert.False(t, JobStatusCompleted.Retryable())
	assert.True(t, JobStatusFailed.Retryable())
	assert.True(t, JobStatusCancelled.Retryable())
}

func TestJobStatus_Cancellable(t *testing.T) {
	assert.True(t, JobStatusQueued.Cancellable())
	assert.True(t, JobStatusProcessing.Cancellable())
	assert.False(t, JobStatusCompleted.Cancellable())
	assert.False(t, JobStatusFailed.Cancellable())
	assert.False(t, JobStatusCancelled.Cancellable())
}

func TestJobStatus_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    JobStatus
		wantErr bool
	}{
		{name: "queued", input: "queued", want: JobStatusQueued},
		{name: "processing", input: "processing", want: JobStatusProcessing},
		{name: "mixed case", input: "Completed", want: JobStatusCompleted},
		{name: "surrounding whitespace", input: "  failed  ", want: JobStatusFailed},
		{name: "upper case", input: "CANCELLED", want: JobStatusCancelled},
		{name: "unknown status", input: "archived", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status JobStatus
			err := status.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid JobStatus")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func validCreateJobRequest() CreateJobRequest {
	return CreateJobRequest{
		ID:               "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
		OwnerID:          "user-1",
		Filename:         "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d.pdf",
		OriginalFilename: "invoice.pdf",
		FileType:         MIMEPDF,
		FileSize:         2048,
		FileHash:         strings.Repeat("0123456789abcdef", 4),
		StoragePath:      "user-1/9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d/9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d.pdf",
		MaxRetries:       2,
	}
}

func TestCreateJobRequest_Normalize(t *testing.T) {
	req := CreateJobRequest{
		ID:               "  job-1  ",
		OwnerID:          " user-1 ",
		Filename:         " job-1.pdf ",
		OriginalFilename: " Invoice.PDF ",
		FileType:         " Application/PDF; charset=binary ",
		FileHash:         " ABCDEF0123456789 ",
		StoragePath:      " user-1/job-1/job-1.pdf ",
	}

	req.Normalize()

	assert.Equal(t, "job-1", req.ID)
	assert.Equal(t, "user-1", req.OwnerID)
	assert.Equal(t, "job-1.pdf", req.Filename)
	// The original filename keeps its case; only whitespace is trimmed.
	assert.Equal(t, "Invoice.PDF", req.OriginalFilename)
	assert.Equal(t, MIMEPDF, req.FileType)
	assert.Equal(t, "abcdef0123456789", req.FileHash)
	assert.Equal(t, "user-1/job-1/job-1.pdf", req.StoragePath)
}

func TestCreateJobRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateJobRequest)
		wantErr string
	}{
		{
			name:   "valid request",
			mutate: func(*CreateJobRequest) {},
		},
		{
			name:   "valid without hash",
			mutate: func(r *CreateJobRequest) { r.FileHash = "" },
		},
		{
			name:    "missing id",
			mutate:  func(r *CreateJobRequest) { r.ID = "" },
			wantErr: "id is required",
		},
		{
			name:    "missing owner",
			mutate:  func(r *CreateJobRequest) { r.OwnerID = "" },
			wantErr: "owner_id is required",
		},
		{
			name:    "missing filename",
			mutate:  func(r *CreateJobRequest) { r.Filename = "" },
			wantErr: "filename is required",
		},
		{
			name:    "missing original filename",
			mutate:  func(r *CreateJobRequest) { r.OriginalFilename = "" },
			wantErr: "original_filename is required",
		},
		{
			name:    "unsupported file type",
			mutate:  func(r *CreateJobRequest) { r.FileType = "text/plain" },
			wantErr: "unsupported file type",
		},
		{
			name:    "zero file size",
			mutate:  func(r *CreateJobRequest) { r.FileSize = 0 },
			wantErr: "file_size must be > 0",
		},
		{
			name:    "negative file size",
			mutate:  func(r *CreateJobRequest) { r.FileSize = -1 },
			wantErr: "file_size must be > 0",
		},
		{
			name:    "missing storage path",
			mutate:  func(r *CreateJobRequest) { r.StoragePath = "" },
			wantErr: "storage_path is required",
		},
		{
			name:    "malformed hash",
			mutate:  func(r *CreateJobRequest) { r.FileHash = "abc123" },
			wantErr: "file_hash must be a 64-character SHA256 hash",
		},
		{
			name:    "negative max retries",
			mutate:  func(r *CreateJobRequest) { r.MaxRetries = -1 },
			wantErr: "max retries must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateJobRequest()
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateFileHash(t *testing.T) {
	tests := []struct {
		name    string
		hash    string
		wantErr string
	}{
		{
			name: "valid sha256 hex",
			hash: strings.Repeat("0123456789abcdef", 4),
		},
		{
			name:    "too short",
			hash:    "abc123",
			wantErr: "64-character",
		},
		{
			name:    "too long",
			hash:    strings.Repeat("a", 65),
			wantErr: "64-character",
		},
		{
			name:    "uppercase rejected",
			hash:    strings.Repeat("A", 64),
			wantErr: "hexadecimal",
		},
		{
			name:    "non-hex characters",
			hash:    strings.Repeat("g", 64),
			wantErr: "hexadecimal",
		},
		{
			name:    "empty",
			hash:    "",
			wantErr: "64-character",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileHash(tt.hash)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
