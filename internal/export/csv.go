package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/cellsignal/mapper/internal/session"
)

// CSV writes the flat measurement table. Column set matches the historical
// dataset format, frequencies in MHz.
type CSV struct {
	Dir string
}

func (c *CSV) Name() string { return "csv" }

func (c *CSV) Export(_ context.Context, s *session.Session) (path string, err error) {
	path, err = outputPath(c.Dir, "signal_data", s.ID(), "csv")
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating CSV file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing CSV file: %w", cErr)
		}
	}()

	w := csv.NewWriter(f)
	if err = w.Write([]string{
		"timestamp",
		"latitude",
		"longitude",
		"altitude",
		"band",
		"frequency_mhz",
		"signal_dbm",
		"session_id",
	}); err != nil {
		return "", fmt.Errorf("writing CSV header: %w", err)
	}

	for _, m := range s.Measurements() {
		if err = w.Write([]string{
			m.Timestamp.Format(time.RFC3339),
			formatOptional(m.Latitude),
			formatOptional(m.Longitude),
			formatOptional(m.Altitude),
			m.Band,
			fmt.Sprintf("%f", m.Frequency/1e6),
			fmt.Sprintf("%f", m.Power),
			m.SessionID,
		}); err != nil {
			return "", fmt.Errorf("writing CSV line: %w", err)
		}
	}

	w.Flush()
	if err = w.Error(); err != nil {
		return "", fmt.Errorf("flushing CSV: %w", err)
	}

	return path, nil
}
