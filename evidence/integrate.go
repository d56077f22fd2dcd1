package evidence

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/CraigKelly/moonflow/model"
)

// Default bounds and resolution of the grid integration check
const (
	GridMin    = -3.0
	GridMax    = 3.0
	GridPoints = 100
)

// GridEvidence integrates exp(f) over an n x n grid on [min,max]^2. Only
// 2D targets are supported.
func GridEvidence(target model.Target, min, max float64, n int) (float64, error) {
	if target == nil {
		return 0, errors.New("No target density supplied")
	}
	if target.Dim() != 2 {
		return 0, errors.Errorf("Grid integration needs a 2D target, got dim %d", target.Dim())
	}
	if n < 2 {
		return 0, errors.Errorf("Grid needs at least 2 points per side, got %d", n)
	}
	if !(max > min) {
		return 0, errors.Errorf("Invalid grid bounds [%f, %f]", min, max)
	}

	axis := floats.Span(make([]float64, n), min, max)
	step := (max - min) / float64(n-1)

	sum := 0.0
	x := make([]float64, 2)
	for _, x0 := range axis {
		x[0] = x0
		for _, x1 := range axis {
			x[1] = x1
			sum += math.Exp(target.LogProb(x))
		}
	}
	return sum * step * step, nil
}
