// Package viz draws the run diagnostics and corner plots as PNG files.
package viz

import (
	"image/color"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	chainColor = color.RGBA{R: 20, G: 80, B: 200, A: 160}
	flowColor  = color.RGBA{R: 200, G: 30, B: 30, A: 200}
	lossColor  = color.RGBA{R: 40, G: 120, B: 40, A: 255}
)

// saveGrid lays out a grid of plots and writes it as a PNG. Plots marked
// in skip still take part in the alignment but are not drawn.
func saveGrid(plots [][]*plot.Plot, skip func(row, col int) bool, width, height vg.Length, path string) error {
	img := vgimg.New(width, height)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      len(plots[0]),
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}

	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i := range plots[j] {
			if skip != nil && skip(j, i) {
				continue
			}
			plots[j][i].Draw(canvases[j][i])
		}
	}

	w, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Could not create %s", path)
	}
	defer w.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return errors.Wrapf(err, "Could not write %s", path)
	}
	return w.Close()
}
