package export

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cellsignal/mapper/internal/session"
	"github.com/cellsignal/mapper/internal/storage"
)

const insertChunkSize = 500

// SQLite persists the session into a per-session database file using the
// storage package.
type SQLite struct {
	Dir string

	// DeviceType is recorded on the session row, e.g. "RTL-SDR".
	DeviceType string

	// Config is stored alongside the session for later reference. It may be
	// a string, []byte, or any JSON-serializable value.
	Config any
}

func (e *SQLite) Name() string { return "sqlite" }

func (e *SQLite) Export(ctx context.Context, s *session.Session) (path string, err error) {
	path, err = outputPath(e.Dir, "signal_data", s.ID(), "sqlite")
	if err != nil {
		return "", err
	}

	store := storage.New(path)
	defer closeStoreWithError(store, &err)

	sessionID, err := store.CreateSession(ctx, s.ID(), e.DeviceType, s.StartTime(), e.Config)
	if err != nil {
		return "", fmt.Errorf("creating session record: %w", err)
	}

	rows := make([]storage.MeasurementData, 0, s.Len())
	for _, m := range s.Measurements() {
		rows = append(rows, storage.MeasurementData{
			SessionID: sessionID,
			Timestamp: m.Timestamp,
			Band:      m.Band,
			Frequency: m.Frequency,
			Power:     m.Power,
			Latitude:  nullFloat(m.Latitude),
			Longitude: nullFloat(m.Longitude),
			Altitude:  nullFloat(m.Altitude),
		})
	}

	for start := 0; start < len(rows); start += insertChunkSize {
		end := min(start+insertChunkSize, len(rows))
		if err = store.BatchInsertMeasurements(ctx, rows[start:end]); err != nil {
			return "", fmt.Errorf("inserting measurements: %w", err)
		}
	}

	return path, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func closeStoreWithError(store *storage.Store, err *error) {
	if cErr := store.Close(); cErr != nil && *err == nil {
		*err = fmt.Errorf("closing database: %w", cErr)
	}
}
