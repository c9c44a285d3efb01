package gps

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
)

// MavlinkConfig holds the settings for a flight-controller telemetry link.
type MavlinkConfig struct {
	Port          string
	BaudRate      int
	MinSatellites int
}

// WithMavlinkLogger sets the logger for the MAVLink provider.
func WithMavlinkLogger(logger *slog.Logger) func(p *MavlinkProvider) {
	return func(p *MavlinkProvider) {
		p.logger = logger.With(slog.String("gps", p.portName))
	}
}

// MavlinkProvider reads position telemetry from a Pixhawk-style flight
// controller over MAVLink, so the drone's own GPS serves the scan without a
// second receiver. GPS_RAW_INT frames are decoded in a background goroutine
// and the last usable fix is retained for non-blocking reads.
type MavlinkProvider struct {
	portName      string
	node          *gomavlib.Node
	minSatellites int
	logger        *slog.Logger

	mu   sync.Mutex
	last *Fix

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewMavlink connects to the flight controller and starts decoding position
// frames.
func NewMavlink(config MavlinkConfig, options ...func(p *MavlinkProvider)) (*MavlinkProvider, error) {
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints: []gomavlib.EndpointConf{
			gomavlib.EndpointSerial{Device: config.Port, Baud: config.BaudRate},
		},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: 255,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to flight controller on %s: %w", config.Port, err)
	}

	minSatellites := config.MinSatellites
	if minSatellites <= 0 {
		minSatellites = DefaultMinSatellites
	}

	p := MavlinkProvider{
		portName:      config.Port,
		node:          node,
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

// TryReadFix returns the last usable fix without blocking.
func (p *MavlinkProvider) TryReadFix() *Fix {
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
func (p *MavlinkProvider) WaitForFix(ctx context.Context, timeout time.Duration) *Fix {
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

// Close stops the reader goroutine and drops the telemetry link.
func (p *MavlinkProvider) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.node.Close() // terminates the event channel
		p.wg.Wait()
	})
	return nil
}

func (p *MavlinkProvider) readLoop() {
	defer p.wg.Done()

	for event := range p.node.Events() {
		select {
		case <-p.done:
			return
		default:
		}

		frame, ok := event.(*gomavlib.EventFrame)
		if !ok {
			continue
		}

		msg, ok := frame.Message().(*common.MessageGpsRawInt)
		if !ok {
			continue
		}
		p.update(msg)
	}
}

// update converts a GPS_RAW_INT frame: lat/lon arrive in 1e-7 degrees,
// altitude in millimeters. Frames without at least a 2D fix are ignored.
func (p *MavlinkProvider) update(msg *common.MessageGpsRawInt) {
	if msg.FixType < common.GPS_FIX_TYPE_2D_FIX {
		p.logger.Debug("no satellite lock yet",
			slog.Int("fixType", int(msg.FixType)),
			slog.Int("numSatellites", int(msg.SatellitesVisible)))
		return
	}

	fix := Fix{
		Latitude:      float64(msg.Lat) / 1e7,
		Longitude:     float64(msg.Lon) / 1e7,
		NumSatellites: int(msg.SatellitesVisible),
		Timestamp:     time.Now(),
	}
	if msg.Alt > 0 {
		altitude := float64(msg.Alt) / 1000.0
		fix.Altitude = &altitude
	}

	if fix.Latitude == 0 && fix.Longitude == 0 {
		return
	}

	p.mu.Lock()
	p.last = &fix
	p.mu.Unlock()

	p.logger.Debug("fix updated",
		slog.Float64("latitude", fix.Latitude),
		slog.Float64("longitude", fix.Longitude),
		slog.Int("numSatellites", fix.NumSatellites))
}
