package gps

import (
	"context"
	"sync"
	"time"
)

// Mock grid-walk defaults, roughly 11 m spacing around New Delhi.
const (
	mockStartLatitude  = 28.6139
	mockStartLongitude = 77.2090
	mockAltitude       = 10.0
	mockGridStep       = 0.0001
	mockGridWidth      = 10
	mockNumSatellites  = 8
)

// MockProvider simulates GPS movement in a grid pattern for runs without
// hardware. Every read advances the position deterministically.
type MockProvider struct {
	mu        sync.Mutex
	latitude  float64
	longitude float64
	counter   int
}

// NewMock creates a mock provider walking a grid from the default start
// position.
func NewMock() *MockProvider {
	return &MockProvider{
		latitude:  mockStartLatitude,
		longitude: mockStartLongitude,
	}
}

// TryReadFix returns the next simulated position.
func (p *MockProvider) TryReadFix() *Fix {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counter++
	offset := mockGridStep * float64(p.counter%mockGridWidth)

	altitude := mockAltitude
	return &Fix{
		Latitude:      p.latitude + offset,
		Longitude:     p.longitude + offset,
		Altitude:      &altitude,
		NumSatellites: mockNumSatellites,
		Timestamp:     time.Now(),
	}
}

// WaitForFix returns a simulated fix immediately.
func (p *MockProvider) WaitForFix(_ context.Context, _ time.Duration) *Fix {
	return p.TryReadFix()
}

func (p *MockProvider) Close() error {
	return nil
}
