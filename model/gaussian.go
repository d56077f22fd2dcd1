package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Gaussian is an unnormalized standard normal: f(x) = -0.5*|x|^2. Its
// evidence is known exactly, which makes it a handy check for the estimators.
type Gaussian struct {
	N int
}

// NewGaussian creates the density in dim dimensions
func NewGaussian(dim int) (*Gaussian, error) {
	if dim < 1 {
		return nil, errors.Errorf("Invalid dimension %d", dim)
	}
	return &Gaussian{N: dim}, nil
}

// Dim is the dimensionality of the density
func (g *Gaussian) Dim() int {
	return g.N
}

// LogProb returns the unnormalized log density at x
func (g *Gaussian) LogProb(x []float64) float64 {
	return -0.5 * floats.Dot(x, x)
}

// Grad returns -x
func (g *Gaussian) Grad(dst, x []float64) []float64 {
	dst = gradDst(dst, len(x))
	for i, v := range x {
		dst[i] = -v
	}
	return dst
}

// LnEvidence is the log of the exact normalizing constant
func (g *Gaussian) LnEvidence() float64 {
	return 0.5 * float64(g.N) * math.Log(2*math.Pi)
}
