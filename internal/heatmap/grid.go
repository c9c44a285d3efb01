package heatmap

import (
	"math"

	"github.com/cellsignal/mapper/internal/scanner"
	"github.com/cellsignal/mapper/internal/session"
)

// grid bins located measurements into square cells of cellSize degrees.
// Sentinel powers are counted as visited-but-no-data so the coverage map
// distinguishes "never flown over" from "scanned, nothing measurable".
type grid struct {
	minLat, minLon float64
	maxLat, maxLon float64
	cellSize       float64

	cols, rows int

	sum   []float64
	count []int

	// Observed power bounds over real (non-sentinel) readings
	minPower, maxPower float64
	hasPower           bool
}

func newGrid(measurements []session.Measurement, cellSize float64) *grid {
	g := &grid{
		cellSize: cellSize,
		minLat:   math.Inf(1),
		minLon:   math.Inf(1),
		maxLat:   math.Inf(-1),
		maxLon:   math.Inf(-1),
	}

	located := measurements[:0:0]
	for _, m := range measurements {
		if !m.HasLocation() {
			continue
		}
		located = append(located, m)
		g.minLat = math.Min(g.minLat, *m.Latitude)
		g.maxLat = math.Max(g.maxLat, *m.Latitude)
		g.minLon = math.Min(g.minLon, *m.Longitude)
		g.maxLon = math.Max(g.maxLon, *m.Longitude)
	}

	if len(located) == 0 {
		return g
	}

	g.cols = int(math.Floor((g.maxLon-g.minLon)/cellSize)) + 1
	g.rows = int(math.Floor((g.maxLat-g.minLat)/cellSize)) + 1
	g.sum = make([]float64, g.cols*g.rows)
	g.count = make([]int, g.cols*g.rows)

	for _, m := range located {
		g.add(&m)
	}
	return g
}

func (g *grid) add(m *session.Measurement) {
	if m.Power == scanner.SentinelPower {
		return
	}

	col := int((*m.Longitude - g.minLon) / g.cellSize)
	row := int((*m.Latitude - g.minLat) / g.cellSize)
	idx := row*g.cols + col

	g.sum[idx] += m.Power
	g.count[idx]++

	if !g.hasPower {
		g.minPower, g.maxPower = m.Power, m.Power
		g.hasPower = true
	} else {
		g.minPower = math.Min(g.minPower, m.Power)
		g.maxPower = math.Max(g.maxPower, m.Power)
	}
}

// empty reports whether the grid holds no located measurements at all.
func (g *grid) empty() bool {
	return g.cols == 0
}

// average returns the mean power of a cell, or nil when the cell holds no
// real readings.
func (g *grid) average(col, row int) *float64 {
	idx := row*g.cols + col
	if g.count[idx] == 0 {
		return nil
	}
	avg := g.sum[idx] / float64(g.count[idx])
	return &avg
}
