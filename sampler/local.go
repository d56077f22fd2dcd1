package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/moonflow/model"
	"github.com/CraigKelly/moonflow/rand"
)

// MALA is the Metropolis-adjusted Langevin kernel used for local steps:
//
//	x' = x + eps*grad(x) + sqrt(2*eps)*xi,  xi ~ N(0, I)
//
// followed by a Metropolis-Hastings correction for the asymmetric proposal.
type MALA struct {
	Target   model.Target
	StepSize float64
}

// NewMALA creates the kernel
func NewMALA(target model.Target, stepSize float64) (*MALA, error) {
	if target == nil {
		return nil, errors.New("No target density supplied")
	}
	if !(stepSize > 0) {
		return nil, errors.Errorf("Step size must be positive, got %f", stepSize)
	}
	return &MALA{Target: target, StepSize: stepSize}, nil
}

// logQ is the log proposal density of moving from x (with gradient gx) to y,
// up to a constant.
func (m *MALA) logQ(y, x, gx []float64) float64 {
	sq := 0.0
	for i := range y {
		d := y[i] - x[i] - m.StepSize*gx[i]
		sq += d * d
	}
	return -sq / (4 * m.StepSize)
}

// Step makes one MALA move from the walker state. The walker is updated in
// place when the proposal is accepted.
func (m *MALA) Step(gen *rand.Generator, w *walker) bool {
	noise := math.Sqrt(2 * m.StepSize)
	for i, v := range w.x {
		w.prop[i] = v + m.StepSize*w.grad[i] + noise*gen.NormFloat64()
	}

	propLP := m.Target.LogProb(w.prop)
	m.Target.Grad(w.propGrad, w.prop)

	logAlpha := propLP - w.lp + m.logQ(w.x, w.prop, w.propGrad) - m.logQ(w.prop, w.x, w.grad)
	if !(math.Log(gen.Float64()) < logAlpha) {
		return false
	}

	w.x, w.prop = w.prop, w.x
	w.grad, w.propGrad = w.propGrad, w.grad
	w.lp = propLP
	return true
}

// walker is the current state of one chain plus scratch space for proposals
type walker struct {
	x        []float64
	grad     []float64
	lp       float64
	prop     []float64
	propGrad []float64
}

func newWalker(target model.Target, x0 []float64) *walker {
	w := &walker{
		x:        append([]float64(nil), x0...),
		grad:     make([]float64, len(x0)),
		prop:     make([]float64, len(x0)),
		propGrad: make([]float64, len(x0)),
	}
	w.reset(target)
	return w
}

// reset recomputes the cached log density and gradient at x
func (w *walker) reset(target model.Target) {
	w.lp = target.LogProb(w.x)
	target.Grad(w.grad, w.x)
}
