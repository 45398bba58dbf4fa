// Package failurenotifier fans one job failure event out to every configured
// notification sink.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/NayerAli/v2-ocr-sub002/internal/observability/notify"
)

// SinkRegistration names a sink so delivery errors are attributable in logs.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service delivers failure payloads to all registered sinks concurrently.
// Delivery errors are logged per sink and never propagate to the caller.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

// NewService builds the notifier, dropping nil sinks and naming the unnamed.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	var sinks []SinkRegistration
	for _, reg := range opts.Sinks {
		if reg.Sink == nil {
			continue
		}
		if reg.Name == "" {
			reg.Name = "sink"
		}
		sinks = append(sinks, reg)
	}

	return &Service{logger: logger, sinks: sinks}
}

// NotifyJobFailure sends the payload to every sink and waits for all
// deliveries to settle. An unset severity defaults to critical.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, reg := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reg.Sink.SendJobFailure(ctx, payload); err != nil {
				s.logger.Error("failure notifier delivery error",
					"sink", reg.Name,
					"job_id", payload.JobID,
					"provider", payload.Provider,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether any sink is registered.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
