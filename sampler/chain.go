package sampler

import (
	"context"

	"github.com/pkg/errors"

	"github.com/CraigKelly/moonflow/model"
	"github.com/CraigKelly/moonflow/rand"
)

// ctxCheckEvery is how many steps a chain takes between cancellation checks
const ctxCheckEvery = 64

// Chain is one walker plus its full history. Every chain owns its generator
// and its history slices, so chains can advance concurrently without locks.
type Chain struct {
	ID            int
	Target        model.Target
	Gen           *rand.Generator
	Positions     [][]float64
	LogProbs      []float64
	LocalAccepts  []bool
	GlobalAccepts []bool

	w *walker
}

// NewChain returns a chain ready to go from the given start point.
// capacity is the expected number of recorded steps.
func NewChain(id int, target model.Target, gen *rand.Generator, initial []float64, capacity int) (*Chain, error) {
	if target == nil {
		return nil, errors.New("No target density supplied")
	}
	if gen == nil {
		return nil, errors.Errorf("Chain %d has no generator", id)
	}
	if len(initial) != target.Dim() {
		return nil, errors.Errorf("Chain %d start has dim %d, target has dim %d", id, len(initial), target.Dim())
	}
	if capacity < 0 {
		capacity = 0
	}

	return &Chain{
		ID:        id,
		Target:    target,
		Gen:       gen,
		Positions: make([][]float64, 0, capacity),
		LogProbs:  make([]float64, 0, capacity),
		w:         newWalker(target, initial),
	}, nil
}

// Position is a copy of the current chain position
func (c *Chain) Position() []float64 {
	return append([]float64(nil), c.w.x...)
}

// LogProb is the target log density at the current position
func (c *Chain) LogProb() float64 {
	return c.w.lp
}

// record appends the current state to the history
func (c *Chain) record() {
	c.Positions = append(c.Positions, c.Position())
	c.LogProbs = append(c.LogProbs, c.w.lp)
}

// LocalSteps advances the chain n MALA steps
func (c *Chain) LocalSteps(ctx context.Context, kernel *MALA, n int) error {
	for i := 0; i < n; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return errors.Wrapf(err, "Chain %d stopped after %d local steps", c.ID, i)
			}
		}

		accepted := kernel.Step(c.Gen, c.w)
		c.LocalAccepts = append(c.LocalAccepts, accepted)
		c.record()
	}
	return nil
}

// GlobalSteps advances the chain n independence steps
func (c *Chain) GlobalSteps(ctx context.Context, kernel *Independence, n int) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "Chain %d stopped before global steps", c.ID)
	}

	err := kernel.Run(c.Gen, c.w, n, func(accepted bool) {
		c.GlobalAccepts = append(c.GlobalAccepts, accepted)
		c.record()
	})
	if err != nil {
		return errors.Wrapf(err, "Chain %d global steps failed", c.ID)
	}
	return nil
}

// AcceptanceRate is the fraction of true values in the last n flags (all
// flags when n exceeds the count). Zero flags give a rate of zero.
func AcceptanceRate(flags []bool, n int) float64 {
	if n > len(flags) {
		n = len(flags)
	}
	if n < 1 {
		return 0
	}

	count := 0
	for _, a := range flags[len(flags)-n:] {
		if a {
			count++
		}
	}
	return float64(count) / float64(n)
}
