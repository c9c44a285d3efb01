// Package heatmap renders per-band geographic coverage maps from a finished
// acquisition session: located measurements are binned into a lat/lon grid,
// each cell colored by its mean signal strength.
package heatmap

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/cellsignal/mapper/internal/session"
)

const (
	// DefaultCellSize is the grid cell edge in degrees, roughly 11 m of
	// latitude.
	DefaultCellSize = 0.0001

	defaultMaxImageWidth = 1024
	minCellPixels        = 4

	infoBarHeight = 40
)

// Renderer writes one PNG per band into a session-named directory.
type Renderer struct {
	Dir string

	// CellSize is the grid cell edge in degrees; zero uses DefaultCellSize.
	CellSize float64

	// MaxImageWidth caps the rendered width in pixels; zero uses a default.
	MaxImageWidth int

	// FontPath points at a TTF used for the info bar. When empty the maps
	// are rendered without annotations.
	FontPath string
}

func (r *Renderer) Name() string { return "heatmap" }

// Export renders a coverage map per band and returns the directory holding
// them. Bands whose measurements never had a GPS fix are skipped.
func (r *Renderer) Export(ctx context.Context, s *session.Session) (string, error) {
	dir := filepath.Join(r.Dir, fmt.Sprintf("coverage_%s", s.ID()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	cellSize := r.CellSize
	if cellSize == 0 {
		cellSize = DefaultCellSize
	}

	byBand := make(map[string][]session.Measurement)
	var order []string
	for _, m := range s.Measurements() {
		if _, ok := byBand[m.Band]; !ok {
			order = append(order, m.Band)
		}
		byBand[m.Band] = append(byBand[m.Band], m)
	}

	for _, band := range order {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		g := newGrid(byBand[band], cellSize)
		if g.empty() {
			continue
		}

		img, err := r.render(g, band, len(byBand[band]))
		if err != nil {
			return "", fmt.Errorf("rendering band %s: %w", band, err)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s.png", band))
		if err = writePNG(path, img); err != nil {
			return "", fmt.Errorf("writing band %s: %w", band, err)
		}
	}

	return dir, nil
}

func (r *Renderer) render(g *grid, band string, numMeasurements int) (*image.RGBA, error) {
	maxWidth := r.MaxImageWidth
	if maxWidth == 0 {
		maxWidth = defaultMaxImageWidth
	}

	cellPixels := maxWidth / g.cols
	if cellPixels < minCellPixels {
		cellPixels = minCellPixels
	}

	width := g.cols * cellPixels
	height := g.rows * cellPixels
	img := image.NewRGBA(image.Rect(0, 0, width, height+infoBarHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for row := 0; row < g.rows; row++ {
		// North at the top: row 0 is the southernmost cell
		y := (g.rows - 1 - row) * cellPixels
		for col := 0; col < g.cols; col++ {
			c := cellColor(g.average(col, row), g.minPower, g.maxPower)
			cell := image.Rect(col*cellPixels, y, (col+1)*cellPixels, y+cellPixels)
			draw.Draw(img, cell, image.NewUniform(c), image.Point{}, draw.Src)
		}
	}

	if r.FontPath != "" {
		if err := annotate(img, r.FontPath, infoText(g, band, numMeasurements), height); err != nil {
			return nil, err
		}
	}

	return img, nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing file: %w", cErr)
		}
	}()

	if err = png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return
}
