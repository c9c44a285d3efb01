// Package gps supplies drone position fixes to the acquisition loop through
// a single Provider capability with interchangeable implementations selected
// at configuration time.
package gps

import (
	"context"
	"time"
)

// DefaultMinSatellites is the satellite count below which a fix is not
// considered valid.
const DefaultMinSatellites = 4

// Fix is a single GPS position reading. Altitude may be absent entirely,
// not merely zero.
type Fix struct {
	Latitude      float64
	Longitude     float64
	Altitude      *float64 // meters, nil when the receiver reported none
	NumSatellites int
	Timestamp     time.Time
}

// Valid reports whether the fix carries a usable position.
func (f *Fix) Valid(minSatellites int) bool {
	return f != nil && f.Latitude != 0 && f.Longitude != 0 && f.NumSatellites >= minSatellites
}

// Provider supplies position fixes. Implementations must make TryReadFix
// non-blocking so the acquisition loop never stalls waiting on GPS hardware.
type Provider interface {
	// TryReadFix returns the latest known fix, which may be stale if no new
	// one arrived since the previous call, or nil if no fix was ever
	// acquired.
	TryReadFix() *Fix

	// WaitForFix blocks until a valid fix is available, the timeout expires
	// or ctx is cancelled. Returns nil on expiry.
	WaitForFix(ctx context.Context, timeout time.Duration) *Fix

	Close() error
}
