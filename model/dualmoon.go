package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Dual moon constants: a ring of radius moonRadius and width moonWidth, split
// into two lobes by Gaussians centered at -moonShift and +moonShift on the
// first axis.
const (
	moonRadius = 2.0
	moonWidth  = 0.1
	moonShift  = 3.0
	moonSmear1 = 0.8
	moonSmear2 = 0.6
)

// DualMoon is the two lobed ring density
//
//	f(x) = -( 0.5*((|x|-2)/0.1)^2 - logsumexp(-0.5*((x[0] + {-3,3})/0.8)^2) )
//
// With SmearSecond the second coordinate gets the same treatment with a width
// of 0.6, which splits the ring along both axes.
type DualMoon struct {
	N           int
	SmearSecond bool
}

// NewDualMoon creates the density in dim dimensions. In 1D the ring is the
// pair of points +-2; smearing the second coordinate needs at least 2 dims.
func NewDualMoon(dim int, smearSecond bool) (*DualMoon, error) {
	if dim < 1 {
		return nil, errors.Errorf("Dual moon needs at least 1 dim, got %d", dim)
	}
	if smearSecond && dim < 2 {
		return nil, errors.Errorf("Smearing the second coordinate needs at least 2 dims, got %d", dim)
	}
	return &DualMoon{N: dim, SmearSecond: smearSecond}, nil
}

// Dim is the dimensionality of the density
func (d *DualMoon) Dim() int {
	return d.N
}

// lobes returns the two lobe terms for coordinate v with the given width
func lobes(v, width float64) [2]float64 {
	a := (v - moonShift) / width
	b := (v + moonShift) / width
	return [2]float64{-0.5 * a * a, -0.5 * b * b}
}

// LogProb returns the unnormalized log density at x
func (d *DualMoon) LogProb(x []float64) float64 {
	r := (floats.Norm(x, 2) - moonRadius) / moonWidth
	term1 := 0.5 * r * r

	t2 := lobes(x[0], moonSmear1)
	lp := -(term1 - floats.LogSumExp(t2[:]))

	if d.SmearSecond {
		t3 := lobes(x[1], moonSmear2)
		lp += floats.LogSumExp(t3[:])
	}

	return lp
}

// lobeGrad is the derivative of logsumexp(lobes(v, width)) with respect to v
func lobeGrad(v, width float64) float64 {
	t := lobes(v, width)
	lse := floats.LogSumExp(t[:])
	w0 := math.Exp(t[0] - lse)
	w1 := math.Exp(t[1] - lse)
	w2 := width * width
	return -w0*(v-moonShift)/w2 - w1*(v+moonShift)/w2
}

// Grad is the analytic gradient of LogProb. At the origin the ring term has no
// defined direction and contributes zero.
func (d *DualMoon) Grad(dst, x []float64) []float64 {
	dst = gradDst(dst, len(x))

	norm := floats.Norm(x, 2)
	scale := 0.0
	if norm > 0 {
		scale = -(norm - moonRadius) / (moonWidth * moonWidth) / norm
	}
	for i, v := range x {
		dst[i] = scale * v
	}

	dst[0] += lobeGrad(x[0], moonSmear1)
	if d.SmearSecond {
		dst[1] += lobeGrad(x[1], moonSmear2)
	}

	return dst
}
