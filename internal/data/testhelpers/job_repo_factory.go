// Package testhelpers builds repositories with injected test clocks. It lives
// outside package data so external test packages can use it without import
// cycles.
package testhelpers

import (
	"database/sql"

	"github.com/NayerAli/v2-ocr-sub002/internal/data"
)

// NewJobRepoWithTimeProvider returns a JobRepo whose row timestamps come from
// tp instead of the system clock.
func NewJobRepoWithTimeProvider(db *sql.DB, cfg data.RepoConfig, tp data.TimeProvider) *data.JobRepo {
	cfg.TimeProvider = tp
	return data.NewJobRepo(db, cfg)
}
