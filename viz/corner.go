package viz

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	cornerBins    = 30
	cornerScatter = 3000 // points per scatter panel after thinning
)

// Corner writes a corner plot: marginal histograms on the diagonal and
// pairwise scatter plots below it.
func Corner(samples [][]float64, labels []string, title string, path string) error {
	return corner(samples, labels, title, chainColor, path)
}

// CornerFlow is Corner drawn in the flow sample color
func CornerFlow(samples [][]float64, labels []string, title string, path string) error {
	return corner(samples, labels, title, flowColor, path)
}

func corner(samples [][]float64, labels []string, title string, col color.Color, path string) error {
	if len(samples) < 1 {
		return errors.New("No samples to plot")
	}
	dim := len(samples[0])
	if dim < 1 {
		return errors.New("Samples have no dimensions")
	}
	if len(labels) != dim {
		return errors.Errorf("Got %d labels for %d dimensions", len(labels), dim)
	}
	for i, x := range samples {
		if len(x) != dim {
			return errors.Errorf("Sample %d has dim %d, expected %d", i, len(x), dim)
		}
	}

	cols := make([]plotter.Values, dim)
	for d := range cols {
		cols[d] = make(plotter.Values, len(samples))
		for i, x := range samples {
			cols[d][i] = x[d]
		}
	}

	stride := 1
	if len(samples) > cornerScatter {
		stride = (len(samples) + cornerScatter - 1) / cornerScatter
	}

	plots := make([][]*plot.Plot, dim)
	for row := 0; row < dim; row++ {
		plots[row] = make([]*plot.Plot, dim)
		for c := 0; c < dim; c++ {
			p := plot.New()
			plots[row][c] = p

			switch {
			case c > row:
				p.HideAxes()
				continue

			case c == row:
				h, err := plotter.NewHist(cols[c], cornerBins)
				if err != nil {
					return errors.Wrapf(err, "Could not histogram %s", labels[c])
				}
				h.FillColor = col
				h.LineStyle.Width = vg.Length(0)
				p.Add(h)
				p.Y.Tick.Marker = plot.TickerFunc(func(min, max float64) []plot.Tick { return nil })

			default:
				xys := make(plotter.XYs, 0, len(samples)/stride+1)
				for i := 0; i < len(samples); i += stride {
					xys = append(xys, plotter.XY{X: cols[c][i], Y: cols[row][i]})
				}
				sc, err := plotter.NewScatter(xys)
				if err != nil {
					return errors.Wrapf(err, "Could not scatter %s against %s", labels[row], labels[c])
				}
				sc.GlyphStyle.Color = col
				sc.GlyphStyle.Radius = vg.Points(0.8)
				p.Add(sc)
				p.Y.Label.Text = labelIf(c == 0, labels[row])
			}

			p.X.Label.Text = labelIf(row == dim-1, labels[c])
		}
	}
	plots[0][0].Title.Text = title

	size := vg.Length(dim) * 3 * vg.Inch
	return saveGrid(plots, func(row, c int) bool { return c > row }, size, size, path)
}

func labelIf(show bool, label string) string {
	if show {
		return label
	}
	return ""
}
