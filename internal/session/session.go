// Package session owns the lifecycle of one continuous-acquisition run:
// measurement accumulation, the timed acquisition loop and the export
// handoff at finalization.
package session

import (
	"context"
	"time"
)

// SessionIDFormat is the timestamp layout used for session identifiers.
const SessionIDFormat = "20060102_150405"

// Measurement is the flattened unit actually persisted: one position fix,
// one power sample, the band it came from, a wall-clock timestamp and the
// owning session. Location fields are nil when no GPS fix was available.
type Measurement struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Band      string    `json:"band"`
	Frequency float64   `json:"frequency"` // Hz
	Power     float64   `json:"power"`     // dBm, or scanner.SentinelPower
	SessionID string    `json:"sessionID"`
}

// HasLocation reports whether the measurement carries a position.
func (m *Measurement) HasLocation() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// Session is the exclusive owner of the data accumulated during one run.
// It is created when the loop starts, appended to only by the loop body and
// handed to the exporters at finalization. The measurement sequence grows
// monotonically and is never mutated in place.
type Session struct {
	id        string
	startTime time.Time

	scanCount    int
	measurements []Measurement
}

// New creates a session identified by its start timestamp.
func New() *Session {
	now := time.Now()
	return &Session{
		id:        now.Format(SessionIDFormat),
		startTime: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// StartTime returns when the session began.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// ScanCount returns the number of completed acquisition cycles.
func (s *Session) ScanCount() int {
	return s.scanCount
}

// Len returns the number of accumulated measurements.
func (s *Session) Len() int {
	return len(s.measurements)
}

// Measurements returns the accumulated sequence in append order.
func (s *Session) Measurements() []Measurement {
	return s.measurements
}

// Append adds measurements to the session.
func (s *Session) Append(ms ...Measurement) {
	s.measurements = append(s.measurements, ms...)
}

// Exporter writes a finished session to an artifact and returns its path.
// Exporters are invoked only during finalization; the controller does not
// inspect their output, only whether they failed.
type Exporter interface {
	Name() string
	Export(ctx context.Context, s *Session) (string, error)
}
