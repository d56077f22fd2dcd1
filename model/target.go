package model

import (
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
)

// Target names understood by NewTarget
const (
	DUALMOON = "dualmoon"
	GAUSSIAN = "gaussian"
)

// Target is an unnormalized log-density on R^n with its gradient.
// Implementations must be safe for concurrent use: the sampler evaluates every
// chain in its own goroutine.
type Target interface {
	Dim() int
	LogProb(x []float64) float64
	// Grad writes the gradient of LogProb at x into dst (allocating if dst is
	// nil) and returns it.
	Grad(dst, x []float64) []float64
}

// NewTarget returns the named target density in dim dimensions
func NewTarget(name string, dim int, smearSecond bool) (Target, error) {
	switch strings.ToLower(name) {
	case DUALMOON:
		return NewDualMoon(dim, smearSecond)
	case GAUSSIAN:
		return NewGaussian(dim)
	}
	return nil, errors.Errorf("Unknown target density %q", name)
}

// NumericGrad approximates the gradient of the target by central differences.
// It exists to check analytic gradients.
func NumericGrad(t Target, dst, x []float64) []float64 {
	return fd.Gradient(dst, t.LogProb, x, &fd.Settings{
		Formula: fd.Central,
		Step:    1e-6,
	})
}

func gradDst(dst []float64, n int) []float64 {
	if dst == nil {
		return make([]float64, n)
	}
	if len(dst) != n {
		panic("model: gradient destination length mismatch")
	}
	return dst
}
