// Package notify defines the job failure notification contract shared by the
// Slack and PagerDuty sinks.
package notify

import (
	"context"
	"time"
)

// SeverityCritical is the only severity the pipeline currently emits; sinks
// treat anything else they receive as critical too.
const SeverityCritical = "critical"

// JobFailurePayload is the sink-agnostic description of one failed job.
type JobFailurePayload struct {
	JobID      string
	OwnerID    string
	Filename   string
	Provider   string
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink delivers a failure notification to one destination.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc adapts a plain function to Sink; a nil func is a no-op.
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
