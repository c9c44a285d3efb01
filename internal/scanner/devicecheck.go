package scanner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const (
	// testRuntime probes for an attached RTL-SDR dongle.
	testRuntime = "rtl_test"

	deviceProbeTimeout = 3 * time.Second
)

// ConfirmDevice checks that an RTL-SDR device is actually attached by
// running `rtl_test -t`. A probe that times out counts as present: the tool
// keeps streaming once it has claimed a working device. A missing rtl_test
// binary also counts as present, leaving the first real scan to surface the
// problem.
func (s *Scanner) ConfirmDevice(ctx context.Context) bool {
	binPath, err := findRuntime(testRuntime)
	if err != nil {
		s.logger.Warn("device probe tool not found, skipping device check",
			slog.String("tool", testRuntime))
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, deviceProbeTimeout)
	defer cancel()

	// rtl_test reports found devices on stderr
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, binPath, "-t")
	cmd.Stdout = &out
	cmd.Stderr = &out

	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Debug("device probe timed out, device is busy and present")
		return true
	}

	combined := out.String()
	if strings.Contains(combined, "Found") && strings.Contains(combined, "device") {
		s.logger.Info("scanning device detected")
		return true
	}

	s.logger.Error("no scanning device found",
		slog.String("output", strings.TrimSpace(combined)),
		slog.Any("error", err))
	return false
}
