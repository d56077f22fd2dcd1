package sampler

import (
	"github.com/pkg/errors"
)

// State is the sampler output. The arrays are indexed [chain][step] (and
// [dim] for Chains). They share memory with the sampler's chains and must be
// treated as read-only.
type State struct {
	Chains     [][][]float64
	LogProb    [][]float64
	LocalAccs  [][]bool
	GlobalAccs [][]bool
	LossVals   []float64
}

// Shape returns (chains, steps, dims) of the position array
func (st *State) Shape() (int, int, int) {
	if len(st.Chains) < 1 || len(st.Chains[0]) < 1 {
		return len(st.Chains), 0, 0
	}
	return len(st.Chains), len(st.Chains[0]), len(st.Chains[0][0])
}

// Tail returns the last n steps of every chain with their log densities
func (st *State) Tail(n int) ([][][]float64, [][]float64, error) {
	_, steps, _ := st.Shape()
	if n < 1 || n > steps {
		return nil, nil, errors.Errorf("Invalid tail length %d for %d steps", n, steps)
	}

	samples := make([][][]float64, len(st.Chains))
	lnp := make([][]float64, len(st.Chains))
	for i, ch := range st.Chains {
		samples[i] = ch[len(ch)-n:]
		lnp[i] = st.LogProb[i][len(st.LogProb[i])-n:]
	}
	return samples, lnp, nil
}

// Flatten returns every recorded position, chain by chain
func (st *State) Flatten() [][]float64 {
	var out [][]float64
	for _, ch := range st.Chains {
		out = append(out, ch...)
	}
	return out
}

// MeanAcceptance averages the acceptance flags over chains for every
// iteration. Chains with fewer flags than the longest do not contribute to
// the missing iterations.
func MeanAcceptance(accs [][]bool) []float64 {
	steps := 0
	for _, a := range accs {
		if len(a) > steps {
			steps = len(a)
		}
	}

	sums := make([]float64, steps)
	counts := make([]float64, steps)
	for _, a := range accs {
		for i, v := range a {
			if v {
				sums[i]++
			}
			counts[i]++
		}
	}

	for i := range sums {
		sums[i] /= counts[i]
	}
	return sums
}
