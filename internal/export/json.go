package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cellsignal/mapper/internal/session"
)

// JSON writes the session envelope: id, count and the full measurement
// sequence.
type JSON struct {
	Dir string
}

type jsonEnvelope struct {
	SessionID       string                `json:"session_id"`
	NumMeasurements int                   `json:"num_measurements"`
	Measurements    []session.Measurement `json:"measurements"`
}

func (j *JSON) Name() string { return "json" }

func (j *JSON) Export(_ context.Context, s *session.Session) (path string, err error) {
	path, err = outputPath(j.Dir, "signal_data", s.ID(), "json")
	if err != nil {
		return "", err
	}

	measurements := s.Measurements()
	if measurements == nil {
		measurements = []session.Measurement{}
	}

	envelope := jsonEnvelope{
		SessionID:       s.ID(),
		NumMeasurements: len(measurements),
		Measurements:    measurements,
	}

	data, err := json.MarshalIndent(&envelope, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling session: %w", err)
	}

	if err = os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing JSON file: %w", err)
	}

	return path, nil
}
