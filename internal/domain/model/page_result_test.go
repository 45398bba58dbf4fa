//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPageResult() PageResult {
	return PageResult{
		ID:               "result-1",
		JobID:            "job-1",
		OwnerID:          "user-1",
		PageNumber:       1,
		TotalPages:       3,
		Text:             "recognized text",
		Confidence:       0.93,
		Language:         "en",
		ProcessingTimeMs: 420,
		StoragePath:      "user-1/job-1/pages/page-0001.jpg",
		Provider:         "tesseract",
	}
}

func TestPageResult_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PageResult)
		wantErr string
	}{
		{
			name:   "valid result",
			mutate: func(*PageResult) {},
		},
		{
			name:   "confidence lower bound",
			mutate: func(r *PageResult) { r.Confidence = 0 },
		},
		{
			name:   "confidence upper bound",
			mutate: func(r *PageResult) { r.Confidence = 1 },
		},
		{
			name:    "missing job id",
			mutate:  func(r *PageResult) { r.JobID = "" },
			wantErr: "job_id is required",
		},
		{
			name:    "missing owner id",
			mutate:  func(r *PageResult) { r.OwnerID = "" },
			wantErr: "owner_id is required",
		},
		{
			name:    "zero page number",
			mutate:  func(r *PageResult) { r.PageNumber = 0 },
			wantErr: "page_number must be >= 1",
		},
		{
			name:    "total pages below page number",
			mutate:  func(r *PageResult) { r.PageNumber = 5; r.TotalPages = 3 },
			wantErr: "total_pages must be >= page_number",
		},
		{
			name:    "negative confidence",
			mutate:  func(r *PageResult) { r.Confidence = -0.1 },
			wantErr: "confidence must be between 0 and 1",
		},
		{
			name:    "confidence above one",
			mutate:  func(r *PageResult) { r.Confidence = 1.5 },
			wantErr: "confidence must be between 0 and 1",
		},
		{
			name:    "missing provider",
			mutate:  func(r *PageResult) { r.Provider = "" },
			wantErr: "provider is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validPageResult()
			tt.mutate(&result)

			err := result.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func pageSequence(pages ...int) []PageResult {
	results := make([]PageResult, 0, len(pages))
	for _, page := range pages {
		result := validPageResult()
		result.PageNumber = page
		results = append(results, result)
	}
	return results
}

func TestValidatePageSequence(t *testing.T) {
	tests := []struct {
		name       string
		results    []PageResult
		totalPages int
		wantErr    string
	}{
		{
			name:       "single page",
			results:    pageSequence(1),
			totalPages: 1,
		},
		{
			name:       "contiguous pages",
			results:    pageSequence(1, 2, 3),
			totalPages: 3,
		},
		{
			name:       "zero total pages",
			results:    nil,
			totalPages: 0,
			wantErr:    "total pages must be >= 1",
		},
		{
			name:       "missing results",
			results:    pageSequence(1, 2),
			totalPages: 3,
			wantErr:    "expected 3 page results, got 2",
		},
		{
			name:       "duplicate page",
			results:    pageSequence(1, 1, 3),
			totalPages: 3,
			wantErr:    "out of sequence",
		},
		{
			name:       "gap in sequence",
			results:    pageSequence(1, 3),
			totalPages: 2,
			wantErr:    "out of sequence",
		},
		{
			name:       "unordered pages",
			results:    pageSequence(2, 1, 3),
			totalPages: 3,
			wantErr:    "out of sequence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePageSequence(tt.results, tt.totalPages)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
