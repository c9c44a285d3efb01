package storage

import (
	"database/sql"
	"time"
)

// SessionData is a stored scanning session.
type SessionData struct {
	ID         int64
	SessionKey string
	StartTime  time.Time
	DeviceType string
	Config     sql.NullString
}

// MeasurementData is a single stored frequency measurement. The location
// columns are nullable: a measurement recorded without a GPS fix carries
// NULLs, not zeroes.
type MeasurementData struct {
	ID        int64
	SessionID int64
	Timestamp time.Time
	Band      string
	Frequency float64
	Power     float64
	Latitude  sql.NullFloat64
	Longitude sql.NullFloat64
	Altitude  sql.NullFloat64
}
