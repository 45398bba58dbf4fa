package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Page result repository sentinels.
	ErrPageResultsNotConfigured = errors.New("page results repository not configured")
	ErrNoPageResults            = errors.New("no page results to insert")
	ErrOwnerIDRequired          = errors.New("owner_id is required")
	ErrJobIDRequired            = errors.New("job_id is required")
)
