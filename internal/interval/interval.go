// Package interval defines the closed catalog of allowed keep-awake durations.
//
// The catalog is a fixed ordered set; arbitrary durations are rejected rather
// than rounded. Indefinite (zero seconds) is the sentinel for "no deadline" -
// an assertion held for the life of the host process.
package interval

import (
	"fmt"
	"time"

	hostErrors "github.com/wakesentry/host/internal/errors"
)

// Interval is an allowed keep-awake duration, stored as whole seconds.
// Zero is reserved for Indefinite.
type Interval int

// The catalog, in ascending order. Only these values are valid.
const (
	Indefinite     Interval = 0
	FiveMinutes    Interval = 300
	TenMinutes     Interval = 600
	FifteenMinutes Interval = 900
	ThirtyMinutes  Interval = 1800
	OneHour        Interval = 3600
	TwoHours       Interval = 7200
	FiveHours      Interval = 18000
)

// catalog lists every valid interval in ascending order.
var catalog = []Interval{
	Indefinite,
	FiveMinutes,
	TenMinutes,
	FifteenMinutes,
	ThirtyMinutes,
	OneHour,
	TwoHours,
	FiveHours,
}

// Catalog returns all valid intervals in ascending order.
// The returned slice is a copy; callers may mutate it freely.
func Catalog() []Interval {
	out := make([]Interval, len(catalog))
	copy(out, catalog)
	return out
}

// FromSeconds returns the catalog member matching n exactly.
// Any other value (negative, or positive but out of set) returns an
// interval.invalid error; callers are expected to fall back to a configured
// default rather than surfacing the failure.
func FromSeconds(n int) (Interval, error) {
	for _, iv := range catalog {
		if int(iv) == n {
			return iv, nil
		}
	}
	return Indefinite, hostErrors.InvalidInterval(n)
}

// Seconds returns the interval's duration in whole seconds.
// Indefinite maps to 0.
func (i Interval) Seconds() int {
	return int(i)
}

// Duration returns the interval as a time.Duration. Indefinite maps to 0.
func (i Interval) Duration() time.Duration {
	return time.Duration(i) * time.Second
}

// Valid reports whether i is a catalog member.
func (i Interval) Valid() bool {
	for _, iv := range catalog {
		if iv == i {
			return true
		}
	}
	return false
}

// String returns the human-readable label used by UI layers.
func (i Interval) String() string {
	switch i {
	case Indefinite:
		return "indefinitely"
	case FiveMinutes:
		return "5 minutes"
	case TenMinutes:
		return "10 minutes"
	case FifteenMinutes:
		return "15 minutes"
	case ThirtyMinutes:
		return "30 minutes"
	case OneHour:
		return "1 hour"
	case TwoHours:
		return "2 hours"
	case FiveHours:
		return "5 hours"
	default:
		return fmt.Sprintf("invalid interval (%d seconds)", int(i))
	}
}
