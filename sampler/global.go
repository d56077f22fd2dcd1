package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/CraigKelly/moonflow/model"
	"github.com/CraigKelly/moonflow/rand"
)

// Proposal is a normalized density that can be sampled independently of the
// current state. The trained flow is the production implementation.
type Proposal interface {
	Sample(gen *rand.Generator, n int) ([][]float64, []float64, error)
	LogProb(x []float64) (float64, error)
}

// Independence is the global kernel: an independence Metropolis-Hastings
// step whose proposals come from a Proposal density.
type Independence struct {
	Target   model.Target
	Proposal Proposal
}

// NewIndependence creates the kernel
func NewIndependence(target model.Target, prop Proposal) (*Independence, error) {
	if target == nil {
		return nil, errors.New("No target density supplied")
	}
	if prop == nil {
		return nil, errors.New("No proposal density supplied")
	}
	return &Independence{Target: target, Proposal: prop}, nil
}

// Run makes n global moves from the walker and calls record after each one.
// All n proposals are drawn up front since they do not depend on the chain.
func (k *Independence) Run(gen *rand.Generator, w *walker, n int, record func(accepted bool)) error {
	props, propQ, err := k.Proposal.Sample(gen, n)
	if err != nil {
		return errors.Wrap(err, "Could not draw global proposals")
	}

	curQ, err := k.Proposal.LogProb(w.x)
	if err != nil {
		return errors.Wrap(err, "Could not evaluate proposal density at chain position")
	}

	moved := false
	for i, y := range props {
		propLP := k.Target.LogProb(y)

		logAlpha := propLP - w.lp + curQ - propQ[i]
		accepted := math.Log(gen.Float64()) < logAlpha
		if accepted {
			copy(w.x, y)
			w.lp = propLP
			curQ = propQ[i]
			moved = true
		}
		record(accepted)
	}

	// MALA needs a fresh gradient at the new position
	if moved {
		k.Target.Grad(w.grad, w.x)
	}

	return nil
}
