package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cellsignal/mapper/internal/gps"
	"github.com/cellsignal/mapper/internal/scanner"
)

const (
	defaultFixWaitTimeout   = 60 * time.Second
	defaultMaxCycleFailures = 3
)

// State is the controller's position in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateAcquiring
	StateFinalizing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateAcquiring:
		return "acquiring"
	case StateFinalizing:
		return "finalizing"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// BandScanner runs one pass over the configured bands.
type BandScanner interface {
	ConfirmDevice(ctx context.Context) bool
	ScanBands(ctx context.Context, bands []scanner.Band) map[string]scanner.BandResult
}

// Config holds the acquisition loop settings.
type Config struct {
	// Interval is the inter-cycle sleep.
	Interval time.Duration

	// Duration is the wall-clock session budget; zero runs until cancelled.
	Duration time.Duration

	// FixWaitTimeout bounds the startup wait for the first GPS fix.
	FixWaitTimeout time.Duration
}

// WithExporters registers the export collaborators invoked at finalization.
func WithExporters(exporters ...Exporter) func(c *Controller) {
	return func(c *Controller) {
		c.exporters = append(c.exporters, exporters...)
	}
}

// WithMaxCycleFailures sets how many consecutive failed cycles force
// finalization.
func WithMaxCycleFailures(n int) func(c *Controller) {
	return func(c *Controller) {
		c.maxCycleFailures = n
	}
}

// WithLogger sets the logger for the controller.
func WithLogger(logger *slog.Logger) func(c *Controller) {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller drives repeated band scans on a timer, merges each pass with
// the latest GPS fix and accumulates the results into a Session. It owns
// the device and GPS handles for the session's lifetime; the measurement
// sequence has no concurrent writers.
type Controller struct {
	scanner   BandScanner
	gps       gps.Provider // nil when GPS is disabled
	bands     []scanner.Band
	config    Config
	logger    *slog.Logger
	session   *Session
	state     atomic.Int32
	exporters []Exporter

	maxCycleFailures int
}

// NewController creates an acquisition loop controller. The GPS provider
// may be nil, in which case every measurement is recorded without location.
func NewController(sc BandScanner, provider gps.Provider, bands []scanner.Band, config Config, options ...func(c *Controller)) *Controller {
	if config.FixWaitTimeout <= 0 {
		config.FixWaitTimeout = defaultFixWaitTimeout
	}

	c := Controller{
		scanner:          sc,
		gps:              provider,
		bands:            bands,
		config:           config,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxCycleFailures: defaultMaxCycleFailures,
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Session returns the active or finished session, nil before the first run.
func (c *Controller) Session() *Session {
	return c.session
}

func (c *Controller) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		c.logger.Debug("state transition",
			slog.String("from", old.String()),
			slog.String("to", s.String()))
	}
}

// Run executes the continuous acquisition loop until the session budget
// elapses or ctx is cancelled, then finalizes. Cancellation is cooperative:
// it is honored at the top of each cycle and during the inter-cycle sleep,
// never mid-scan, so a measurement batch is always appended whole.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.initialize(ctx); err != nil {
		return err
	}
	defer c.release()

	c.setState(StateAcquiring)

	var sessionEnd time.Time
	if c.config.Duration > 0 {
		sessionEnd = c.session.StartTime().Add(c.config.Duration)
	}

	consecutiveFailures := 0
	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			c.logger.Info("acquisition cancelled, finalizing")
			break
		}
		if !sessionEnd.IsZero() && !time.Now().Before(sessionEnd) {
			c.logger.Info("session duration reached, finalizing",
				slog.Duration("duration", c.config.Duration))
			break
		}

		if c.runCycle(ctx, cycle, sessionEnd) {
			consecutiveFailures = 0
		} else {
			consecutiveFailures++
			c.logger.Error("cycle produced no valid measurements",
				slog.Int("cycle", cycle),
				slog.Int("consecutiveFailures", consecutiveFailures))

			if consecutiveFailures >= c.maxCycleFailures {
				c.logger.Error("too many consecutive cycle failures, finalizing",
					slog.Int("limit", c.maxCycleFailures))
				break
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(c.config.Interval):
		}
	}

	// Finalization runs to completion even when ctx is already cancelled.
	return c.finalize(context.WithoutCancel(ctx))
}

// RunOnce performs a single scan at the current location: initialize, one
// cycle, finalize. It shares the continuous loop's code path end to end.
func (c *Controller) RunOnce(ctx context.Context) error {
	if err := c.initialize(ctx); err != nil {
		return err
	}
	defer c.release()

	c.setState(StateAcquiring)
	c.runCycle(ctx, 1, time.Time{})

	return c.finalize(context.WithoutCancel(ctx))
}

// initialize acquires the device and GPS handles: Idle -> Initializing.
// A missing scanning device is fatal and the session never starts. An
// expired GPS wait is not: the run proceeds in degraded mode recording
// absent-location measurements, with a single warning.
func (c *Controller) initialize(ctx context.Context) error {
	c.setState(StateInitializing)

	if !c.scanner.ConfirmDevice(ctx) {
		c.setState(StateTerminated)
		return errors.New("scanning device not detected, aborting session")
	}

	c.session = New()
	c.logger.Info("session started", slog.String("sessionID", c.session.ID()))

	if c.gps != nil {
		c.logger.Info("waiting for GPS fix",
			slog.Duration("timeout", c.config.FixWaitTimeout))

		if fix := c.gps.WaitForFix(ctx, c.config.FixWaitTimeout); fix == nil {
			c.logger.Warn("no GPS fix within startup window, proceeding without location data")
		} else {
			c.logger.Info("GPS fix acquired",
				slog.Float64("latitude", fix.Latitude),
				slog.Float64("longitude", fix.Longitude),
				slog.Int("numSatellites", fix.NumSatellites))
		}
	}

	return nil
}

// runCycle performs one acquisition cycle and reports whether it produced
// at least one valid band result. Within a cycle the GPS read always
// precedes the scan, and measurements are appended in band-declaration
// order, frequency order within a band.
func (c *Controller) runCycle(ctx context.Context, cycle int, sessionEnd time.Time) bool {
	var fix *gps.Fix
	if c.gps != nil {
		fix = c.gps.TryReadFix() // stale reuse is fine, never blocks
	}

	// The scan is shielded from cancellation: once a cycle is in flight it
	// runs to completion and contributes its whole batch. The per-invocation
	// subprocess timeout still bounds a hang.
	results := c.scanner.ScanBands(context.WithoutCancel(ctx), c.bands)

	timestamp := time.Now()
	added, failed := 0, 0
	for _, band := range c.bands {
		result, ok := results[band.Name]
		if !ok {
			continue // disabled
		}
		if result.Failed() {
			failed++
			continue
		}

		for _, sample := range result.Samples {
			m := Measurement{
				Timestamp: timestamp,
				Band:      band.Name,
				Frequency: sample.Frequency,
				Power:     sample.Power,
				SessionID: c.session.ID(),
			}
			if fix != nil {
				latitude, longitude := fix.Latitude, fix.Longitude
				m.Latitude = &latitude
				m.Longitude = &longitude
				m.Altitude = fix.Altitude
			}
			c.session.Append(m)
			added++
		}
	}
	c.session.scanCount++

	attrs := []any{
		slog.Int("cycle", cycle),
		slog.Int("added", added),
		slog.String("total", humanize.Comma(int64(c.session.Len()))),
		slog.Duration("elapsed", time.Since(c.session.StartTime()).Round(time.Second)),
		slog.Bool("hasFix", fix != nil),
	}
	if !sessionEnd.IsZero() {
		attrs = append(attrs, slog.Duration("remaining", time.Until(sessionEnd).Round(time.Second)))
	}
	c.logger.Info("cycle complete", attrs...)

	return len(results) == 0 || failed < len(results)
}

// finalize hands the measurement sequence to the exporters: Acquiring ->
// Finalizing -> Terminated. Every exporter runs even if an earlier one
// failed; their errors are joined.
func (c *Controller) finalize(ctx context.Context) error {
	c.setState(StateFinalizing)
	defer c.setState(StateTerminated)

	c.logger.Info("finalizing session",
		slog.String("sessionID", c.session.ID()),
		slog.Int("cycles", c.session.ScanCount()),
		slog.String("measurements", humanize.Comma(int64(c.session.Len()))))

	var errs []error
	for _, exporter := range c.exporters {
		path, err := exporter.Export(ctx, c.session)
		if err != nil {
			c.logger.Error("export failed",
				slog.String("exporter", exporter.Name()),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s export: %w", exporter.Name(), err))
			continue
		}

		c.logger.Info("export complete",
			slog.String("exporter", exporter.Name()),
			slog.String("path", path))
	}

	return errors.Join(errs...)
}

// release drops the GPS handle. It runs on every exit path, including
// export failures: handle release is never skipped.
func (c *Controller) release() {
	if c.gps == nil {
		return
	}
	if err := c.gps.Close(); err != nil {
		c.logger.Warn("closing GPS provider", slog.String("error", err.Error()))
	}
}
