// Package evidence estimates the marginal likelihood (evidence) of a target
// density from MCMC samples with the learned harmonic mean estimator: a
// normalized model density is fit to one part of the samples and the
// reciprocal evidence is the mean of model/target ratios over the rest.
package evidence

import (
	"math"

	"github.com/pkg/errors"
)

// Chains holds the samples of several chains back to back. Chain i is
// Samples[Starts[i]:Starts[i+1]], so Starts always has one more entry than
// there are chains.
type Chains struct {
	NDim        int
	Samples     [][]float64
	LnPosterior []float64
	Starts      []int
}

// NewChains creates an empty container for ndim dimensional samples
func NewChains(ndim int) (*Chains, error) {
	if ndim < 1 {
		return nil, errors.Errorf("Invalid dimension %d", ndim)
	}
	return &Chains{
		NDim:   ndim,
		Starts: []int{0},
	}, nil
}

// AddChain appends one chain. The samples are not copied.
func (c *Chains) AddChain(samples [][]float64, lnPost []float64) error {
	if len(samples) < 1 {
		return errors.New("Can not add an empty chain")
	}
	if len(samples) != len(lnPost) {
		return errors.Errorf("Chain has %d samples but %d ln posterior values", len(samples), len(lnPost))
	}
	for i, x := range samples {
		if len(x) != c.NDim {
			return errors.Errorf("Sample %d has dim %d, expected %d", i, len(x), c.NDim)
		}
	}

	c.Samples = append(c.Samples, samples...)
	c.LnPosterior = append(c.LnPosterior, lnPost...)
	c.Starts = append(c.Starts, len(c.Samples))
	return nil
}

// AddChains3D appends chains given as [chain][step][dim] with matching
// [chain][step] ln posterior values.
func (c *Chains) AddChains3D(samples [][][]float64, lnPost [][]float64) error {
	if len(samples) != len(lnPost) {
		return errors.Errorf("Got %d sample chains but %d ln posterior chains", len(samples), len(lnPost))
	}
	for i := range samples {
		if err := c.AddChain(samples[i], lnPost[i]); err != nil {
			return errors.Wrapf(err, "Could not add chain %d", i)
		}
	}
	return nil
}

// NChains is the number of chains added
func (c *Chains) NChains() int {
	return len(c.Starts) - 1
}

// NSamples is the total number of samples over all chains
func (c *Chains) NSamples() int {
	return len(c.Samples)
}

// Chain returns the samples and ln posterior values of chain i
func (c *Chains) Chain(i int) ([][]float64, []float64) {
	lo, hi := c.Starts[i], c.Starts[i+1]
	return c.Samples[lo:hi], c.LnPosterior[lo:hi]
}

// Split partitions the chains into a training set with exactly
// round(p*N) samples and a test set with the rest. Chains are taken in
// order; the chain on the boundary gives its head to training and its tail
// becomes a test chain of its own.
func Split(c *Chains, p float64) (train *Chains, test *Chains, err error) {
	if !(p > 0 && p < 1) {
		return nil, nil, errors.Errorf("Training proportion must be in (0,1), got %f", p)
	}

	total := c.NSamples()
	nTrain := int(math.Round(p * float64(total)))
	if nTrain < 1 || nTrain >= total {
		return nil, nil, errors.Errorf("Proportion %f of %d samples leaves an empty partition", p, total)
	}

	train, _ = NewChains(c.NDim)
	test, _ = NewChains(c.NDim)

	remain := nTrain
	for i := 0; i < c.NChains(); i++ {
		samples, lnp := c.Chain(i)
		switch {
		case remain >= len(samples):
			err = train.AddChain(samples, lnp)
			remain -= len(samples)
		case remain > 0:
			if err = train.AddChain(samples[:remain], lnp[:remain]); err == nil {
				err = test.AddChain(samples[remain:], lnp[remain:])
			}
			remain = 0
		default:
			err = test.AddChain(samples, lnp)
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Could not split chain %d", i)
		}
	}

	return train, test, nil
}
