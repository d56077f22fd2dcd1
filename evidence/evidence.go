package evidence

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Evidence accumulates the reciprocal evidence estimate per chain. For chain
// j with samples x_i the estimate is
//
//	rho_j = (1/n_j) sum_i exp(ln phi(x_i) - ln p(x_i))
//
// where phi is the fitted model and p the unnormalized posterior. Chains are
// combined with weights n_j.
type Evidence struct {
	NChains int
	NDim    int
	Model   Model

	lnSums []float64 // log of the unnormalized sums per chain
	counts []int
}

// NewEvidence creates an estimator for nChains chains using a fitted model
func NewEvidence(nChains int, m Model) (*Evidence, error) {
	if nChains < 1 {
		return nil, errors.Errorf("Invalid chain count %d", nChains)
	}
	if m == nil {
		return nil, errors.New("No model supplied")
	}
	if !m.Fitted() {
		return nil, errors.New("Model must be fitted before estimating evidence")
	}

	e := &Evidence{
		NChains: nChains,
		Model:   m,
		lnSums:  make([]float64, nChains),
		counts:  make([]int, nChains),
	}
	for i := range e.lnSums {
		e.lnSums[i] = math.Inf(-1)
	}
	return e, nil
}

// AddChains adds samples to the running sums. The chain count must match
// and the samples of chain i are added to chain i.
func (e *Evidence) AddChains(c *Chains) error {
	if c.NChains() != e.NChains {
		return errors.Errorf("Got %d chains, estimator was created for %d", c.NChains(), e.NChains)
	}
	if e.NDim == 0 {
		e.NDim = c.NDim
	} else if c.NDim != e.NDim {
		return errors.Errorf("Got dim %d, earlier chains had dim %d", c.NDim, e.NDim)
	}

	terms := make([]float64, 0, 64)
	for j := 0; j < c.NChains(); j++ {
		samples, lnp := c.Chain(j)
		terms = terms[:0]
		for i, x := range samples {
			lnPhi := e.Model.Predict(x)
			if math.IsInf(lnPhi, -1) {
				continue
			}
			terms = append(terms, lnPhi-lnp[i])
		}
		if len(terms) > 0 {
			e.lnSums[j] = floats.LogSumExp(append(terms, e.lnSums[j]))
		}
		e.counts[j] += len(samples)
	}
	return nil
}

// ComputeLn returns the log of the evidence and of its standard deviation
func (e *Evidence) ComputeLn() (float64, float64, error) {
	lnRho := make([]float64, 0, e.NChains)
	weights := make([]float64, 0, e.NChains)
	for j, n := range e.counts {
		if n < 1 {
			continue
		}
		lnRho = append(lnRho, e.lnSums[j]-math.Log(float64(n)))
		weights = append(weights, float64(n))
	}
	if len(lnRho) < 2 {
		return 0, 0, errors.Errorf("Need samples in at least 2 chains, got %d", len(lnRho))
	}

	shift := floats.Max(lnRho)
	if math.IsInf(shift, -1) {
		return 0, 0, errors.New("The model has no support on any test sample")
	}

	sumW := floats.Sum(weights)
	sumW2 := floats.Dot(weights, weights)
	neff := sumW * sumW / sumW2

	rho := make([]float64, len(lnRho))
	for i, l := range lnRho {
		rho[i] = math.Exp(l - shift)
	}
	mean := floats.Dot(weights, rho) / sumW

	variance := 0.0
	for i, r := range rho {
		variance += weights[i] * (r - mean) * (r - mean)
	}
	variance = variance / sumW * neff / (neff - 1)
	varMean := variance / neff

	// evidence = 1/rho, std(evidence) = std(rho)/rho^2
	lnEvidence := -shift - math.Log(mean)
	lnStd := 0.5*math.Log(varMean) - 2*math.Log(mean) - shift
	return lnEvidence, lnStd, nil
}

// Compute returns the evidence and its standard deviation
func (e *Evidence) Compute() (float64, float64, error) {
	lnEvi, lnStd, err := e.ComputeLn()
	if err != nil {
		return 0, 0, err
	}
	return math.Exp(lnEvi), math.Exp(lnStd), nil
}
