package evidence

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// HyperSphere is a uniform density on an ellipsoid centered on the
// training mean with axes scaled by the training standard deviations. Fit
// picks the radius that minimizes the relative variance of the estimator on
// the training samples.
type HyperSphere struct {
	NDim   int
	Center []float64
	Std    []float64
	Radius float64

	lnNorm float64
	fitted bool
}

// NewHyperSphere creates an unfitted model
func NewHyperSphere(ndim int) (*HyperSphere, error) {
	if ndim < 1 {
		return nil, errors.Errorf("Invalid dimension %d", ndim)
	}
	return &HyperSphere{NDim: ndim}, nil
}

// Fitted is true after a successful Fit
func (h *HyperSphere) Fitted() bool {
	return h.fitted
}

func (h *HyperSphere) dist2(x []float64) float64 {
	sq := 0.0
	for i, v := range x {
		d := (v - h.Center[i]) / h.Std[i]
		sq += d * d
	}
	return sq
}

func (h *HyperSphere) setRadius(r float64) {
	h.Radius = r
	h.lnNorm = lnBallVolume(h.NDim, r)
	for _, s := range h.Std {
		h.lnNorm += math.Log(s)
	}
}

// Fit sets the center and axes, then searches for the radius
func (h *HyperSphere) Fit(samples [][]float64, lnPost []float64) error {
	if len(samples) < 2 {
		return errors.Errorf("Need at least 2 training samples, got %d", len(samples))
	}
	if len(samples) != len(lnPost) {
		return errors.Errorf("Got %d samples but %d ln posterior values", len(samples), len(lnPost))
	}

	h.Center = make([]float64, h.NDim)
	h.Std = make([]float64, h.NDim)
	col := make([]float64, len(samples))
	for d := 0; d < h.NDim; d++ {
		for i, x := range samples {
			if len(x) != h.NDim {
				return errors.Errorf("Sample %d has dim %d, expected %d", i, len(x), h.NDim)
			}
			col[i] = x[d]
		}
		h.Center[d], h.Std[d] = stat.MeanStdDev(col, nil)
		if !(h.Std[d] > 0) {
			return errors.Errorf("Training samples have no spread in dim %d", d)
		}
	}

	dist2 := make([]float64, len(samples))
	for i, x := range samples {
		dist2[i] = h.dist2(x)
	}

	// Optimize over ln R so the radius stays positive
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return h.objective(math.Exp(x[0]), dist2, lnPost)
		},
	}
	result, err := optimize.Minimize(problem, []float64{0}, &optimize.Settings{MajorIterations: 200}, &optimize.NelderMead{})
	if result == nil {
		return errors.Wrap(err, "Radius search failed")
	}

	h.setRadius(math.Exp(result.X[0]))
	h.fitted = true
	return nil
}

// badObjective is returned when too few samples fall inside the radius
const badObjective = 1e100

// objective is the relative variance of exp(ln phi - ln p) over the
// training samples for radius r, computed relative to the largest term.
func (h *HyperSphere) objective(r float64, dist2, lnPost []float64) float64 {
	h.setRadius(r)
	r2 := r * r

	terms := make([]float64, 0, len(dist2))
	for i, d2 := range dist2 {
		if d2 < r2 {
			terms = append(terms, -h.lnNorm-lnPost[i])
		}
	}
	if len(terms) < 2 {
		return badObjective
	}

	shift := terms[0]
	for _, t := range terms {
		shift = math.Max(shift, t)
	}

	// Points outside contribute zeros to the mean
	n := float64(len(dist2))
	sum, sumSq := 0.0, 0.0
	for _, t := range terms {
		v := math.Exp(t - shift)
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	return variance / (mean * mean)
}

// Predict returns the ln density at x
func (h *HyperSphere) Predict(x []float64) float64 {
	if !h.fitted || len(x) != h.NDim {
		return math.Inf(-1)
	}
	if h.dist2(x) < h.Radius*h.Radius {
		return -h.lnNorm
	}
	return math.Inf(-1)
}
