// Package metrics emits the job lifecycle metric series over a statsd sink.
package metrics

import (
	"time"

	obserrors "github.com/NayerAli/v2-ocr-sub002/internal/observability/errors"
	"github.com/NayerAli/v2-ocr-sub002/internal/observability/statsd"
)

// Values for the result tag.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// JobMetric describes one job lifecycle event. FileType is the tag dimension
// (pdf/jpeg/png); Transition names the state change that happened.
type JobMetric struct {
	FileType   string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle sends job.transition (counter) and, when a duration is
// known, job.duration (timing). A nil sink drops everything.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"file_type":  in.FileType,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Result == ResultError && in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags shallow-copies a tag map so emitters can hand the same tags to
// several series without sharing the map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
