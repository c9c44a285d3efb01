package heatmap

import (
	"fmt"
	"image"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
)

const (
	dpi      = 120.0
	fontSize = 11.0
)

func infoText(g *grid, band string, numMeasurements int) string {
	return fmt.Sprintf("%s; %s measurements; %.1f to %.1f dBm",
		band, humanize.Comma(int64(numMeasurements)), g.minPower, g.maxPower)
}

// annotate draws the info bar text below the grid area. The font is loaded
// per call; coverage maps are rendered once per session so caching is not
// worth the bookkeeping.
func annotate(img *image.RGBA, fontPath, text string, gridHeight int) error {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return fmt.Errorf("reading font: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	pt := freetype.Pt(10, gridHeight+infoBarHeight/2+int(fontSize)/2)
	if _, err = ctx.DrawString(text, pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}
