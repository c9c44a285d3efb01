package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// Runtime is the external spectrum scanning tool.
	// See `man rtl_power`:
	// https://manpages.debian.org/bookworm/rtl-sdr/rtl_power.1.en.html
	Runtime = "rtl_power"

	// MinIntegrationTime is the floor for the -i argument in seconds.
	// rtl_power takes whole seconds; a fractional value truncated to an
	// integer silently becomes 0, which the tool rejects.
	MinIntegrationTime = 1.0

	// scanTimeoutMargin bounds the worst-case hang of the external tool
	// on top of the integration time.
	scanTimeoutMargin = 10 * time.Second

	defaultBinWidth = 1000 // Hz
)

// sweepRequest holds the parameters of a single rtl_power invocation.
type sweepRequest struct {
	FrequencyStart  int64   // Hz
	FrequencyEnd    int64   // Hz
	BinWidth        int64   // Hz
	IntegrationTime float64 // seconds, pre-clamp
	DeviceIndex     int
	Gain            int
}

// clampedIntegration returns the integration time actually used for both
// the command line and the subprocess timeout. The two call sites must
// never disagree.
func (r *sweepRequest) clampedIntegration() float64 {
	return max(r.IntegrationTime, MinIntegrationTime)
}

// timeout returns the subprocess deadline for this request.
func (r *sweepRequest) timeout() time.Duration {
	return time.Duration(r.clampedIntegration()*float64(time.Second)) + scanTimeoutMargin
}

func (r *sweepRequest) validate() error {
	if r.FrequencyStart <= 0 {
		return fmt.Errorf("frequency start must be positive: %d", r.FrequencyStart)
	}
	if r.FrequencyEnd <= r.FrequencyStart {
		return fmt.Errorf("frequency end must be greater than start: %d <= %d", r.FrequencyEnd, r.FrequencyStart)
	}
	if r.BinWidth <= 0 {
		return fmt.Errorf("bin width must be positive: %d", r.BinWidth)
	}
	return nil
}

// args returns the rtl_power command line arguments for a single-shot scan
// writing to outPath.
func (r *sweepRequest) args(outPath string) []string {
	args := []string{
		"-f", fmt.Sprintf("%d:%d:%d", r.FrequencyStart, r.FrequencyEnd, r.BinWidth),
		"-i", strconv.Itoa(int(r.clampedIntegration())),
		"-1", // single scan, exit afterwards
		"-d", strconv.Itoa(r.DeviceIndex),
	}

	if r.Gain > 0 {
		args = append(args, "-g", strconv.Itoa(r.Gain))
	}

	return append(args, outPath)
}

func (r *sweepRequest) String() string {
	return fmt.Sprintf("%s %s", Runtime, strings.Join(r.args("<output>"), " "))
}

// findRuntime locates an external tool on PATH.
func findRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return "", err
	}
	return binPath, nil
}

// runSweep executes one rtl_power invocation into a uniquely named temporary
// file, parses it and removes the file on every exit path so long sessions
// never accumulate scan output.
func (s *Scanner) runSweep(ctx context.Context, req *sweepRequest) (freqs, powers []float64, err error) {
	if err = req.validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid sweep request: %w", err)
	}

	tmp, err := os.CreateTemp("", "rtl_power_*.csv")
	if err != nil {
		return nil, nil, fmt.Errorf("creating scan output file: %w", err)
	}

	outPath := tmp.Name()
	if err = tmp.Close(); err != nil {
		_ = os.Remove(outPath)
		return nil, nil, fmt.Errorf("closing scan output file: %w", err)
	}
	defer func() {
		_ = os.Remove(outPath)
	}()

	timeout := req.timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.binPath, req.args(outPath)...)
	cmd.Stderr = &stderr

	s.logger.Debug("running sweep", slog.String("cmd", cmd.String()))

	if err = cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("%s timed out after %s", Runtime, timeout)
		}
		if diag := strings.TrimSpace(stderr.String()); diag != "" {
			return nil, nil, fmt.Errorf("%s failed: %w: %s", Runtime, err, diag)
		}
		return nil, nil, fmt.Errorf("%s failed: %w", Runtime, err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading scan output: %w", err)
	}

	return parseSweep(data)
}
