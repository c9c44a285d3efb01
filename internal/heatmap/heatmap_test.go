package heatmap

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cellsignal/mapper/internal/scanner"
	"github.com/cellsignal/mapper/internal/session"
)

func ptr(v float64) *float64 { return &v }

func measurement(lat, lon, power float64) session.Measurement {
	return session.Measurement{
		Timestamp: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Latitude:  ptr(lat),
		Longitude: ptr(lon),
		Band:      "LTE-B5-DL",
		Frequency: 869_000_000,
		Power:     power,
	}
}

func TestGrid_Binning(t *testing.T) {
	measurements := []session.Measurement{
		measurement(28.6139, 77.2090, -60),
		measurement(28.6139, 77.2090, -70), // same cell, averaged
		measurement(28.6141, 77.2092, -80), // different cell
	}

	g := newGrid(measurements, 0.0001)
	if g.empty() {
		t.Fatal("grid unexpectedly empty")
	}

	first := g.average(0, 0)
	if first == nil || *first != -65 {
		t.Errorf("first cell: expected -65, got %v", first)
	}

	last := g.average(g.cols-1, g.rows-1)
	if last == nil || *last != -80 {
		t.Errorf("last cell: expected -80, got %v", last)
	}

	if g.minPower != -80 || g.maxPower != -60 {
		t.Errorf("power bounds: got [%v, %v]", g.minPower, g.maxPower)
	}
}

func TestGrid_SentinelIsNoData(t *testing.T) {
	measurements := []session.Measurement{
		measurement(28.6139, 77.2090, scanner.SentinelPower),
		measurement(28.6141, 77.2092, -60),
	}

	g := newGrid(measurements, 0.0001)

	// The sentinel cell was visited but holds no readings
	if avg := g.average(0, 0); avg != nil {
		t.Errorf("sentinel cell: expected nil, got %v", *avg)
	}
	if g.minPower != -60 || g.maxPower != -60 {
		t.Errorf("sentinel leaked into power bounds: [%v, %v]", g.minPower, g.maxPower)
	}
}

func TestGrid_NoLocatedMeasurements(t *testing.T) {
	measurements := []session.Measurement{
		{Band: "LTE-B5-DL", Frequency: 869_000_000, Power: -60},
	}

	if g := newGrid(measurements, 0.0001); !g.empty() {
		t.Error("expected empty grid for unlocated measurements")
	}
}

func TestCellColor(t *testing.T) {
	if got := cellColor(nil, -90, -50); got != noDataColor {
		t.Errorf("nil power: expected no-data color, got %v", got)
	}

	weak := cellColor(ptr(-90), -90, -50)
	strong := cellColor(ptr(-50), -90, -50)

	wr, _, wb, _ := weak.RGBA()
	sr, _, sb, _ := strong.RGBA()
	if wb <= wr {
		t.Errorf("weakest signal should be blue, got r=%d b=%d", wr, wb)
	}
	if sr <= sb {
		t.Errorf("strongest signal should be red, got r=%d b=%d", sr, sb)
	}
}

func TestCellColor_FlatBounds(t *testing.T) {
	// All readings identical; color must still be defined
	if got := cellColor(ptr(-60), -60, -60); got == noDataColor {
		t.Error("flat bounds produced no-data color")
	}
}

func TestRenderer_Export(t *testing.T) {
	s := session.New()
	s.Append(
		measurement(28.6139, 77.2090, -60),
		measurement(28.6141, 77.2092, -80),
		session.Measurement{Band: "GSM-900", Frequency: 935_000_000, Power: -70}, // no fix
	)

	renderer := &Renderer{Dir: t.TempDir()}
	dir, err := renderer.Export(context.Background(), s)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "LTE-B5-DL.png"))
	if err != nil {
		t.Fatalf("opening rendered map: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding PNG: %v", err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		t.Error("empty image")
	}

	// The band with no located measurements gets no map
	if _, err = os.Stat(filepath.Join(dir, "GSM-900.png")); !os.IsNotExist(err) {
		t.Error("expected no map for unlocated band")
	}
}
