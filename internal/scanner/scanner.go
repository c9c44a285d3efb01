// Package scanner drives the external rtl_power tool across configured
// frequency bands and turns its tabular output into per-band power series
// and summary statistics.
package scanner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// SentinelPower marks a reading that could not be parsed or carried no
// signal. It is stored in the measurement stream exactly like a genuine
// reading, so aggregate statistics over raw data include it; consumers
// wanting unbiased aggregates must filter on this constant themselves.
const SentinelPower = -999.0

// Band is a contiguous frequency range of interest, e.g. one LTE downlink
// range. Bands are created from configuration and are read-only during
// scanning.
type Band struct {
	Name           string
	Enabled        bool
	FrequencyStart int64 // Hz
	FrequencyEnd   int64 // Hz
	BinWidth       int64 // Hz, 0 uses the scanner default

	// Optional per-band overrides; zero values fall back to scanner settings
	IntegrationTime float64 // seconds
	Gain            int     // tenths of dB as rtl_power expects
}

// PowerSample is a single frequency/power reading.
type PowerSample struct {
	Frequency float64 // Hz
	Power     float64 // dBm, or SentinelPower
}

// BandResult is the outcome of scanning one band. Samples is never nil and
// its length always equals NumSamples, so downstream consumers never branch
// on presence. A failed scan has NumSamples == 0, sentinel statistics and an
// empty Samples slice.
type BandResult struct {
	AveragePower  float64 // dBm
	MaxPower      float64 // dBm
	PeakFrequency float64 // Hz at which MaxPower occurs
	NumSamples    int
	Samples       []PowerSample // frequency order
}

// Failed reports whether this result represents a failed band scan.
func (r BandResult) Failed() bool {
	return r.NumSamples == 0
}

func failedBandResult() BandResult {
	return BandResult{
		AveragePower: SentinelPower,
		MaxPower:     SentinelPower,
		Samples:      []PowerSample{},
	}
}

// Config holds device-level rtl_power settings shared by all bands.
type Config struct {
	DeviceIndex     int
	Gain            int
	IntegrationTime float64 // seconds, pre-clamp
	BinWidth        int64   // Hz, default bin width for bands without one
}

// sweepFunc runs a single rtl_power invocation and returns the parsed
// frequency axis and power series. Factored out so tests can substitute
// the subprocess.
type sweepFunc func(ctx context.Context, req *sweepRequest) (freqs, powers []float64, err error)

// WithLogger sets the logger for the scanner.
func WithLogger(logger *slog.Logger) func(s *Scanner) {
	return func(s *Scanner) {
		s.logger = logger.With(slog.String("runtime", Runtime))
	}
}

// Scanner invokes rtl_power per band and assembles BandResult values.
type Scanner struct {
	binPath string
	config  Config
	logger  *slog.Logger
	sweep   sweepFunc
}

// New creates a Scanner. It fails if the rtl_power tool cannot be located,
// which is fatal for the whole run: a session must never start without the
// scanning tool present.
func New(config Config, options ...func(s *Scanner)) (*Scanner, error) {
	binPath, err := findRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("locating %s: %w", Runtime, err)
	}

	if config.IntegrationTime <= 0 {
		config.IntegrationTime = MinIntegrationTime
	}
	if config.BinWidth <= 0 {
		config.BinWidth = defaultBinWidth
	}

	s := Scanner{
		binPath: binPath,
		config:  config,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s.sweep = s.runSweep

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// ScanBands scans every enabled band in the given order and returns a map
// from band name to result. Disabled bands are absent from the map; a band
// whose invocation or parse failed is present with the uniform sentinel
// shape. A single band's failure never aborts the remaining bands.
func (s *Scanner) ScanBands(ctx context.Context, bands []Band) map[string]BandResult {
	results := make(map[string]BandResult, len(bands))

	for _, band := range bands {
		if !band.Enabled {
			s.logger.Debug("skipping disabled band", slog.String("band", band.Name))
			continue
		}

		started := time.Now()
		req := s.sweepRequest(band)

		freqs, powers, err := s.sweep(ctx, req)
		if err != nil {
			s.logger.Warn("band scan failed",
				slog.String("band", band.Name),
				slog.String("error", err.Error()))
			results[band.Name] = failedBandResult()
			continue
		}

		result := summarize(freqs, powers)
		results[band.Name] = result

		s.logger.Info("band scan complete",
			slog.String("band", band.Name),
			slog.Float64("avgPower", result.AveragePower),
			slog.Float64("maxPower", result.MaxPower),
			slog.Float64("peakFrequency", result.PeakFrequency),
			slog.Int("numSamples", result.NumSamples),
			slog.Duration("took", time.Since(started)))
	}

	return results
}

func (s *Scanner) sweepRequest(band Band) *sweepRequest {
	req := sweepRequest{
		FrequencyStart:  band.FrequencyStart,
		FrequencyEnd:    band.FrequencyEnd,
		BinWidth:        band.BinWidth,
		IntegrationTime: band.IntegrationTime,
		DeviceIndex:     s.config.DeviceIndex,
		Gain:            s.config.Gain,
	}
	if req.BinWidth <= 0 {
		req.BinWidth = s.config.BinWidth
	}
	if req.IntegrationTime <= 0 {
		req.IntegrationTime = s.config.IntegrationTime
	}
	if band.Gain != 0 {
		req.Gain = band.Gain
	}
	return &req
}

// summarize computes per-band statistics over a parsed sweep. Ties for the
// maximum power resolve to the first occurrence in frequency order.
func summarize(freqs, powers []float64) BandResult {
	if len(powers) == 0 {
		return failedBandResult()
	}

	samples := make([]PowerSample, len(powers))
	var sum float64
	maxIdx := 0
	for i, p := range powers {
		samples[i] = PowerSample{Frequency: freqs[i], Power: p}
		sum += p
		if p > powers[maxIdx] {
			maxIdx = i
		}
	}

	return BandResult{
		AveragePower:  sum / float64(len(powers)),
		MaxPower:      powers[maxIdx],
		PeakFrequency: freqs[maxIdx],
		NumSamples:    len(samples),
		Samples:       samples,
	}
}
