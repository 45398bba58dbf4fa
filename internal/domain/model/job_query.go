//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

// JobListOptions groups parameters for listing an owner's jobs with optional filters.
type JobListOptions struct {
	OwnerID   string     // Required: jobs are never listed across owners
	Status    *JobStatus // Optional filter by status (queued, processing, completed, failed, cancelled)
	SortOrder string     // Sort order by created_at: "asc", "desc" (default: "desc")
	Limit     int        // Pagination limit
	Offset    int        // Pagination offset
}

// JobPage represents one page of an owner's job listing.
type JobPage struct {
	Jobs  []Job `json:"jobs"`
	Total int   `json:"total"`
}
