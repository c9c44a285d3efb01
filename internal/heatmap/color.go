package heatmap

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	hueStart = 236.0
	hueEnd   = 0.0
)

var noDataColor = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}

// cellColor maps a mean power onto a blue (weak) to red (strong) HSV
// gradient. A nil power means the cell was never measured.
func cellColor(power *float64, minPower, maxPower float64) color.Color {
	if power == nil {
		return noDataColor
	}

	span := maxPower - minPower
	if span == 0 {
		return colorful.Hsv(hueEnd, 1, 0.90)
	}

	hPerUnit := (hueStart - hueEnd) / span
	hue := hueStart - (*power-minPower)*hPerUnit
	hue = math.Min(math.Max(hue, hueEnd), hueStart)

	return colorful.Hsv(hue, 1, 0.90)
}
