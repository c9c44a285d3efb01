// Package export writes a finished acquisition session to the supported
// artifact formats: CSV, JSON, KML and SQLite.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cellsignal/mapper/internal/session"
)

// Compile-time checks that every writer satisfies the controller's
// exporter contract.
var (
	_ session.Exporter = (*CSV)(nil)
	_ session.Exporter = (*JSON)(nil)
	_ session.Exporter = (*KML)(nil)
	_ session.Exporter = (*SQLite)(nil)
)

func outputPath(dir, kind, sessionID, ext string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", kind, sessionID, ext)), nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%f", *v)
}
