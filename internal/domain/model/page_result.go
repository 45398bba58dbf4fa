//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"fmt"
	"time"
)

// PageResult represents the recognized text for one page of a processed
// document. Page results are immutable once written; a job's results are
// persisted all-or-nothing in a single batch and never partially overwritten.
type PageResult struct {
	ID               string    `json:"id"                 db:"id"`
	JobID            string    `json:"job_id"             db:"job_id"`
	OwnerID          string    `json:"owner_id"           db:"owner_id"`
	PageNumber       int       `json:"page_number"        db:"page_number"`
	TotalPages       int       `json:"total_pages"        db:"total_pages"`
	Text             string    `json:"text"               db:"text"`
	Confidence       float64   `json:"confidence"         db:"confidence"`
	Language         string    `json:"language"           db:"language"`
	ProcessingTimeMs int64     `json:"processing_time_ms" db:"processing_time_ms"`
	StoragePath      string    `json:"storage_path"       db:"storage_path"`
	Provider         string    `json:"provider"           db:"provider"`
	CreatedAt        time.Time `json:"created_at"         db:"created_at"`
}

// Validate validates a single page result before persistence.
func (r *PageResult) Validate() error {
	if r.JobID == "" {
		return errors.New("job_id is required")
	}
	if r.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	if r.PageNumber < 1 {
		return errors.New("page_number must be >= 1")
	}
	if r.TotalPages < r.PageNumber {
		return errors.New("total_pages must be >= page_number")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return errors.New("confidence must be between 0 and 1")
	}
	if r.Provider == "" {
		return errors.New("provider is required")
	}
	return nil
}

// ValidatePageSequence verifies that results cover exactly the pages
// {1..totalPages}, in order, with no gaps or duplicates. A completed job must
// satisfy this before its results are written.
func ValidatePageSequence(results []PageResult, totalPages int) error {
	if totalPages < 1 {
		return errors.New("total pages must be >= 1")
	}
	if len(results) != totalPages {
		return fmt.Errorf("expected %d page results, got %d", totalPages, len(results))
	}
	for i := range results {
		if results[i].PageNumber != i+1 {
			return fmt.Errorf("page results out of sequence: expected page %d at position %d, got %d",
				i+1, i, results[i].PageNumber)
		}
	}
	return nil
}
