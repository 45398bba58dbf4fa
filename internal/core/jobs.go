// Package core provides the business logic and service layer for the ocrd processing queue.
package core

import (
	"github.com/NayerAli/v2-ocr-sub002/internal/domain/model"
)

// JobStatus represents the lifecycle state of a job (re-exported from the model package).
// This is re-exported here for use by adapters to avoid direct coupling to the model package.
type JobStatus = model.JobStatus

// CreateJobRequest represents a request to create a new job (re-exported from the model package).
// This is re-exported here for use by adapters to avoid direct coupling to the model package.
type CreateJobRequest = model.CreateJobRequest
