package viz

import (
	"fmt"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/CraigKelly/moonflow/sampler"
)

const (
	maxPaths      = 2    // chains drawn in the trajectory panel
	maxLinePoints = 2000 // points per line after thinning
)

func stride(n int) int {
	if n > maxLinePoints {
		return (n + maxLinePoints - 1) / maxLinePoints
	}
	return 1
}

// thinned returns (i, ys[i]) for at most maxLinePoints evenly spaced i
func thinned(ys []float64) plotter.XYs {
	s := stride(len(ys))
	xys := make(plotter.XYs, 0, len(ys)/s+1)
	for i := 0; i < len(ys); i += s {
		xys = append(xys, plotter.XY{X: float64(i), Y: ys[i]})
	}
	return xys
}

// chainPath is the (x1, x2) trajectory of a chain, thinned. One dimensional
// chains are drawn against the step instead.
func chainPath(chain [][]float64) plotter.XYs {
	s := stride(len(chain))
	xys := make(plotter.XYs, 0, len(chain)/s+1)
	for i := 0; i < len(chain); i += s {
		x := chain[i]
		switch {
		case len(x) >= 2:
			xys = append(xys, plotter.XY{X: x[0], Y: x[1]})
		case len(x) == 1:
			xys = append(xys, plotter.XY{X: float64(i), Y: x[0]})
		}
	}
	return xys
}

func linePlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

func addLine(p *plot.Plot, ys []float64, col color.Color) error {
	if len(ys) < 1 {
		return nil
	}
	line, err := plotter.NewLine(thinned(ys))
	if err != nil {
		return err
	}
	line.Color = col
	line.Width = vg.Points(0.8)
	p.Add(line)
	return nil
}

var pathColors = []color.Color{chainColor, flowColor}

// addPaths draws the first maxPaths chains as lines in position space
func addPaths(p *plot.Plot, chains [][][]float64) error {
	for i := 0; i < len(chains) && i < maxPaths; i++ {
		xys := chainPath(chains[i])
		if len(xys) < 1 {
			return errors.Errorf("Chain %d has no positions", i)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "Chain %d", i)
		}
		line.Color = pathColors[i]
		line.Width = vg.Points(0.6)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("chain %d", i), line)
	}
	return nil
}

// Diagnostics writes a 2x2 panel: the paths of chains 0 and 1, the flow
// loss, and the mean local and global acceptance per iteration.
func Diagnostics(st *sampler.State, path string) error {
	if st == nil || len(st.Chains) < 1 {
		return errors.New("No sampler state to plot")
	}

	xlabel, ylabel := "x1", "x2"
	if len(st.Chains[0]) > 0 && len(st.Chains[0][0]) == 1 {
		xlabel, ylabel = "step", "x1"
	}
	title := fmt.Sprintf("%d chains", maxPaths)
	if len(st.Chains) == 1 {
		title = "1 chain"
	}
	paths := linePlot(title, xlabel, ylabel)
	if err := addPaths(paths, st.Chains); err != nil {
		return errors.Wrap(err, "Could not plot chain paths")
	}

	loss := linePlot("Flow loss", "epoch", "NLL")
	if err := addLine(loss, st.LossVals, lossColor); err != nil {
		return errors.Wrap(err, "Could not plot loss")
	}

	local := linePlot("Local acceptance", "iteration", "rate")
	if err := addLine(local, sampler.MeanAcceptance(st.LocalAccs), chainColor); err != nil {
		return errors.Wrap(err, "Could not plot local acceptance")
	}

	global := linePlot("Global acceptance", "iteration", "rate")
	if err := addLine(global, sampler.MeanAcceptance(st.GlobalAccs), flowColor); err != nil {
		return errors.Wrap(err, "Could not plot global acceptance")
	}

	plots := [][]*plot.Plot{
		{paths, loss},
		{local, global},
	}
	return saveGrid(plots, nil, 10*vg.Inch, 8*vg.Inch, path)
}
