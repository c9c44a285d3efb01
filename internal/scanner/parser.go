package scanner

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// metaFieldCount is the number of leading metadata fields on an rtl_power
// output line: date, time, Hz low, Hz high, Hz step, sample count. The
// remaining fields are per-bin amplitude values.
const metaFieldCount = 6

// parseSweep reads the first data line of a single-shot rtl_power scan and
// returns the reconstructed frequency axis and power series.
//
// Each amplitude token is converted independently: a token that is not a
// finite number (malformed text, nan, inf, empty field) degrades to
// SentinelPower rather than failing the line. The sample count is derived
// from the surviving tokens, not from the header's stated count, since the
// two may disagree after sentinel substitution. The frequency axis is an
// evenly spaced sequence from Hz low to Hz high inclusive.
//
// parseSweep is a pure function of its input: the same raw output always
// yields identical results.
func parseSweep(data []byte) (freqs, powers []float64, err error) {
	line := firstDataLine(data)
	if line == "" {
		return nil, nil, fmt.Errorf("%s produced no output", Runtime)
	}

	fields := strings.Split(line, ",")
	if len(fields) <= metaFieldCount {
		return nil, nil, fmt.Errorf("invalid %s output: %d fields, want more than %d", Runtime, len(fields), metaFieldCount)
	}

	hzLow, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid low frequency: %w", err)
	}

	hzHigh, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid high frequency: %w", err)
	}

	powers = make([]float64, 0, len(fields)-metaFieldCount)
	for _, field := range fields[metaFieldCount:] {
		powers = append(powers, parseAmplitude(field))
	}

	return frequencyAxis(hzLow, hzHigh, len(powers)), powers, nil
}

// parseAmplitude converts one amplitude token. Anything that is not a finite
// number becomes SentinelPower: never NaN, never infinite, never an error.
func parseAmplitude(field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= 1e10 {
		return SentinelPower
	}
	return v
}

// frequencyAxis generates n evenly spaced frequencies from low to high
// inclusive.
func frequencyAxis(low, high float64, n int) []float64 {
	freqs := make([]float64, n)
	if n == 1 {
		freqs[0] = low
		return freqs
	}

	step := (high - low) / float64(n-1)
	for i := range freqs {
		freqs[i] = low + float64(i)*step
	}
	freqs[n-1] = high // exact endpoint regardless of rounding
	return freqs
}

func firstDataLine(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
