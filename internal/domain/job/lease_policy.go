package job

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidDefaultLease rejects a non-positive default lease at construction.
var ErrInvalidDefaultLease = errors.New("default lease duration must be positive")

// LeaseSource records which rule produced a resolved lease.
type LeaseSource string

const (
	// LeaseSourceExplicit indicates the caller supplied a positive duration.
	LeaseSourceExplicit LeaseSource = "explicit"
	// LeaseSourceDefault indicates the default duration was used.
	LeaseSourceDefault LeaseSource = "default"
	// LeaseSourceClamped indicates the requested duration was clamped to the minimum supported value.
	LeaseSourceClamped LeaseSource = "clamped"
)

// LeasePolicy normalises lease durations for claims and heartbeats. The
// repository layer takes leases as whole seconds, so every resolution
// truncates to seconds and never yields less than one.
type LeasePolicy struct {
	defaultLease time.Duration
}

// NewLeasePolicy builds a policy around the given default. The default is
// what Resolve hands out for zero-duration requests.
func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	return &LeasePolicy{defaultLease: defaultLease}, nil
}

// Default exposes the configured fallback lease.
func (p *LeasePolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultLease
}

// LeaseDecision is the resolved lease in repository units, plus enough
// provenance for callers to log clamping.
type LeaseDecision struct {
	Seconds   int
	Source    LeaseSource
	Requested time.Duration
}

// UsedDefault is true when the caller passed zero and got the fallback.
func (d LeaseDecision) UsedDefault() bool {
	return d.Source == LeaseSourceDefault
}

// Clamped is true when the request was raised to the one-second floor.
func (d LeaseDecision) Clamped() bool {
	return d.Source == LeaseSourceClamped
}

// Resolve turns a requested duration into whole seconds.
// Zero means "use the default"; negative and sub-second requests clamp to
// one second so a lease can never be instantly expired.
func (p *LeasePolicy) Resolve(request time.Duration) LeaseDecision {
	if p == nil {
		return LeaseDecision{Source: LeaseSourceDefault, Requested: request}
	}
	if request < 0 {
		return LeaseDecision{Seconds: 1, Source: LeaseSourceClamped, Requested: request}
	}
	if request == 0 {
		seconds, _ := toWholeSeconds(p.defaultLease)
		return LeaseDecision{Seconds: seconds, Source: LeaseSourceDefault, Requested: request}
	}

	seconds, clamped := toWholeSeconds(request)
	source := LeaseSourceExplicit
	if clamped {
		source = LeaseSourceClamped
	}
	return LeaseDecision{Seconds: seconds, Source: source, Requested: request}
}

func toWholeSeconds(d time.Duration) (int, bool) {
	seconds := int64(d / time.Second)
	if seconds < 1 {
		return 1, true
	}
	if seconds > int64(math.MaxInt) {
		return math.MaxInt, true
	}
	return int(seconds), false
}
