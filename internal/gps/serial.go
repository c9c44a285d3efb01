package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
)

const fixPollInterval = 500 * time.Millisecond

// SerialConfig holds the settings for a serial NMEA receiver.
type SerialConfig struct {
	Port          string
	BaudRate      int
	MinSatellites int
}

// WithSerialLogger sets the logger for the serial provider.
func WithSerialLogger(logger *slog.Logger) func(p *SerialProvider) {
	return func(p *SerialProvider) {
		p.logger = logger.With(slog.String("gps", p.portName))
	}
}

// SerialProvider reads NMEA sentences from a serial GPS receiver in a
// background goroutine and retains the last valid fix for non-blocking
// reads.
type SerialProvider struct {
	portName      string
	port          serial.Port
	minSatellites int
	logger        *slog.Logger

	mu   sync.Mutex
	last *Fix

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewSerial opens the receiver port and starts decoding position sentences.
func NewSerial(config SerialConfig, options ...func(p *SerialProvider)) (*SerialProvider, error) {
	mode := &serial.Mode{BaudRate: config.BaudRate}
	port, err := serial.Open(config.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening GPS port %s: %w", config.Port, err)
	}

	minSatellites := config.MinSatellites
	if minSatellites <= 0 {
		minSatellites = DefaultMinSatellites
	}

	p := SerialProvider{
		portName:      config.Port,
		port:          port,
		minSatellites: minSatellites,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		done:          make(chan struct{}),
	}

	for _, option := range options {
		option(&p)
	}

	p.wg.Add(1)
	go p.readLoop()

	return &p, nil
}

// TryReadFix returns the last valid fix without blocking.
func (p *SerialProvider) TryReadFix() *Fix {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last == nil {
		return nil
	}
	fix := *p.last
	return &fix
}

// WaitForFix polls for a valid fix until the timeout expires or ctx is
// cancelled.
func (p *SerialProvider) WaitForFix(ctx context.Context, timeout time.Duration) *Fix {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(fixPollInterval)
	defer ticker.Stop()

	for {
		if fix := p.TryReadFix(); fix.Valid(p.minSatellites) {
			return fix
		}

		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-ticker.C:
		}
	}
}

// Close stops the reader goroutine and releases the port.
func (p *SerialProvider) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.port.Close() // unblocks the pending read
		p.wg.Wait()
	})
	return err
}

func (p *SerialProvider) readLoop() {
	defer p.wg.Done()

	scanner := bufio.NewScanner(p.port)
	for scanner.Scan() {
		select {
		case <-p.done:
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			continue // malformed sentences are routine on serial links
		}

		gga, ok := sentence.(nmea.GGA)
		if !ok {
			continue
		}

		fix := Fix{
			Latitude:      gga.Latitude,
			Longitude:     gga.Longitude,
			NumSatellites: int(gga.NumSatellites),
			Timestamp:     time.Now(),
		}
		if gga.Altitude != 0 {
			altitude := gga.Altitude
			fix.Altitude = &altitude
		}

		if !fix.Valid(p.minSatellites) {
			p.logger.Debug("fix below satellite threshold",
				slog.Int("numSatellites", fix.NumSatellites),
				slog.Int("required", p.minSatellites))
			continue
		}

		p.mu.Lock()
		p.last = &fix
		p.mu.Unlock()

		p.logger.Debug("fix updated",
			slog.Float64("latitude", fix.Latitude),
			slog.Float64("longitude", fix.Longitude),
			slog.Int("numSatellites", fix.NumSatellites))
	}
	if err := scanner.Err(); err != nil {
		select {
		case <-p.done: // port closed during shutdown
		default:
			p.logger.Warn("GPS read failed", slog.String("error", err.Error()))
		}
	}
}
