// Package keepawake manages host-local keep-awake session lifecycle.
//
// This package provides the supervisor state machine and OS adapter boundary
// for process-scoped sleep assertions. It intentionally does not expose any
// protocol handlers or observer-facing message contracts in this unit.
package keepawake

import (
	"context"
	"time"

	"github.com/wakesentry/host/internal/interval"
)

// CompleteFunc is invoked exactly once when a scheduled session ends.
// cancelled is true for explicit Cancel, false for natural completion
// (the assertion process exited on its own).
type CompleteFunc func(cancelled bool)

// AssertRequest carries the semantic intents for spawning an assertion
// process. The platform asserter translates them to concrete arguments.
type AssertRequest struct {
	// HostPID binds the assertion process lifetime to the host process.
	// The asserter must arrange for the assertion to exit when this PID
	// disappears, so a host crash cannot leave sleep blocked forever.
	HostPID int
	// TimeoutSeconds is the assertion self-timeout. Zero means no
	// self-timeout: the assertion relies entirely on the host lifetime.
	TimeoutSeconds int
}

// Handle represents a spawned assertion process.
type Handle interface {
	// Done is closed when the assertion process exits.
	Done() <-chan struct{}
	// Err returns the terminal process exit error after Done closes.
	Err() error
	// Release requests assertion process shutdown.
	Release(ctx context.Context) error
}

// Asserter spawns OS-specific process-scoped sleep assertions.
type Asserter interface {
	Assert(ctx context.Context, req AssertRequest) (Handle, error)
}

// Options configures supervisor behavior.
type Options struct {
	// Now returns current time; defaults to time.Now.
	Now func() time.Time
	// HostPID overrides the watchdog PID; defaults to os.Getpid().
	HostPID int
	// DefaultInterval is the interval the supervisor resets to on idle.
	// Defaults to Indefinite.
	DefaultInterval interval.Interval
	// ReleaseTimeout bounds how long process teardown may take before
	// escalating to SIGKILL. Defaults to 3 seconds.
	ReleaseTimeout time.Duration
}

// Status is a snapshot of the supervisor's current session.
type Status struct {
	// Active reports whether an assertion process is held.
	Active bool
	// Interval is the currently scheduled interval, or the configured
	// default when idle.
	Interval interval.Interval
	// Deadline is when the session is expected to end. Zero when idle or
	// when the interval is Indefinite.
	Deadline time.Time
	// LastError stores the most recent lifecycle failure.
	LastError string
	// UpdatedAt is the timestamp of the latest transition.
	UpdatedAt time.Time
	// Revision increments monotonically on state transitions.
	Revision int64
}

// Remaining returns the time left until the deadline, measured from now.
// It returns 0 and false when there is no deadline (idle or indefinite).
func (s Status) Remaining(now time.Time) (time.Duration, bool) {
	if s.Deadline.IsZero() {
		return 0, false
	}
	d := s.Deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// PowerSnapshot is a point-in-time reading of host power state.
// Nil pointer fields indicate unknown/unavailable readings.
type PowerSnapshot struct {
	OnBattery      *bool
	BatteryPercent *int
	ExternalPower  *bool
}

// PowerProvider returns the current power state of the host.
type PowerProvider interface {
	Snapshot() PowerSnapshot
}
