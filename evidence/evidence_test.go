package evidence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CraigKelly/moonflow/model"
	"github.com/CraigKelly/moonflow/rand"
)

// gaussianChains draws exact samples from a standard normal
func gaussianChains(t *testing.T, nChains, nSamples, dim int, seed int64) *Chains {
	gen, err := rand.NewGenerator(seed)
	if err != nil {
		t.Fatalf("Could not init PRNG %v", err)
	}
	defer gen.Close()

	target, err := model.NewGaussian(dim)
	if err != nil {
		t.Fatalf("Could not create target %v", err)
	}

	c, err := NewChains(dim)
	if err != nil {
		t.Fatalf("Could not create chains %v", err)
	}
	for j := 0; j < nChains; j++ {
		samples := make([][]float64, nSamples)
		lnp := make([]float64, nSamples)
		for i := range samples {
			samples[i] = gen.NormVec(make([]float64, dim))
			lnp[i] = target.LogProb(samples[i])
		}
		if err := c.AddChain(samples, lnp); err != nil {
			t.Fatalf("Could not add chain %v", err)
		}
	}
	return c
}

func estimate(t *testing.T, c *Chains, m Model) (float64, float64) {
	assert := assert.New(t)

	train, test, err := Split(c, 0.5)
	assert.NoError(err)
	assert.NoError(m.Fit(train.Samples, train.LnPosterior))
	assert.True(m.Fitted())

	ev, err := NewEvidence(test.NChains(), m)
	assert.NoError(err)
	assert.NoError(ev.AddChains(test))

	evi, std, err := ev.Compute()
	assert.NoError(err)

	lnEvi, lnStd, err := ev.ComputeLn()
	assert.NoError(err)
	assert.InDelta(math.Log(evi), lnEvi, 1e-9)
	assert.InDelta(math.Log(std), lnStd, 1e-9)
	return evi, std
}

func TestKDEGaussianEvidence(t *testing.T) {
	assert := assert.New(t)

	c := gaussianChains(t, 10, 2000, 2, 42)
	kde, err := NewKernelDensityEstimate(2, 0.05)
	assert.NoError(err)

	evi, std := estimate(t, c, kde)
	exact := 2 * math.Pi
	assert.InDelta(exact, evi, 0.2*exact, "evidence %f +/- %f", evi, std)
	assert.True(std > 0)
}

func TestHyperSphereGaussianEvidence(t *testing.T) {
	assert := assert.New(t)

	c := gaussianChains(t, 10, 2000, 2, 43)
	hs, err := NewHyperSphere(2)
	assert.NoError(err)

	evi, std := estimate(t, c, hs)
	exact := 2 * math.Pi
	assert.InDelta(exact, evi, 0.1*exact, "evidence %f +/- %f", evi, std)
	assert.True(hs.Radius > 0)
	assert.InDelta(0.0, hs.Center[0], 0.1)
	assert.InDelta(1.0, hs.Std[1], 0.1)
}

func TestKDEPredict(t *testing.T) {
	assert := assert.New(t)

	_, err := NewKernelDensityEstimate(0, 0.1)
	assert.Error(err)
	_, err = NewKernelDensityEstimate(2, 0)
	assert.Error(err)

	kde, err := NewKernelDensityEstimate(2, 0.5)
	assert.NoError(err)
	assert.False(kde.Fitted())
	assert.True(math.IsInf(kde.Predict([]float64{0, 0}), -1))

	assert.Error(kde.Fit(nil, nil))
	assert.Error(kde.Fit([][]float64{{1, 1}, {1, 2}}, []float64{0, 0}))

	// Unit box is [0,2]x[0,2]: radius 0.25 in scaled units is 0.5 in data
	train := [][]float64{{0, 0}, {2, 2}, {1, 1}, {1.2, 1}}
	assert.NoError(kde.Fit(train, make([]float64, len(train))))
	assert.True(kde.Fitted())

	lnV := math.Log(math.Pi*0.25*0.25) + 2*math.Log(2)
	assert.InDelta(math.Log(2)-math.Log(4)-lnV, kde.Predict([]float64{1.1, 1}), 1e-12)
	assert.InDelta(-math.Log(4)-lnV, kde.Predict([]float64{2.2, 2}), 1e-12)
	assert.True(math.IsInf(kde.Predict([]float64{0.5, 1.5}), -1))
	assert.True(math.IsInf(kde.Predict([]float64{1}), -1))
}

// The ball counts must match a brute force scan
func TestKDENeighborsBruteForce(t *testing.T) {
	assert := assert.New(t)

	c := gaussianChains(t, 1, 500, 3, 44)
	kde, err := NewKernelDensityEstimate(3, 0.2)
	assert.NoError(err)
	assert.NoError(kde.Fit(c.Samples, c.LnPosterior))

	probe := gaussianChains(t, 1, 50, 3, 45)
	for _, x := range probe.Samples {
		y := kde.scale(make([]float64, 3), x)
		brute := 0
		for _, s := range c.Samples {
			z := kde.scale(make([]float64, 3), s)
			d := 0.0
			for i := range z {
				d += (z[i] - y[i]) * (z[i] - y[i])
			}
			if math.Sqrt(d) <= 0.1 {
				brute++
			}
		}
		assert.Equal(brute, kde.neighbors(y))
	}
}

func TestHyperSpherePredict(t *testing.T) {
	assert := assert.New(t)

	_, err := NewHyperSphere(0)
	assert.Error(err)

	hs, err := NewHyperSphere(2)
	assert.NoError(err)
	assert.True(math.IsInf(hs.Predict([]float64{0, 0}), -1))
	assert.Error(hs.Fit([][]float64{{1, 1}}, []float64{0}))
	assert.Error(hs.Fit([][]float64{{1, 1}, {2, 2}}, []float64{0}))

	c := gaussianChains(t, 1, 1000, 2, 46)
	assert.NoError(hs.Fit(c.Samples, c.LnPosterior))

	// Uniform inside: exp(ln phi) times the ellipse area is one
	area := math.Pi * hs.Radius * hs.Radius * hs.Std[0] * hs.Std[1]
	assert.InDelta(1.0, math.Exp(hs.Predict(hs.Center))*area, 1e-9)
	assert.True(math.IsInf(hs.Predict([]float64{hs.Center[0] + 100, 0}), -1))
}

func TestEvidenceErrors(t *testing.T) {
	assert := assert.New(t)

	kde, err := NewKernelDensityEstimate(2, 0.05)
	assert.NoError(err)

	_, err = NewEvidence(2, kde)
	assert.Error(err) // not fitted
	_, err = NewEvidence(2, nil)
	assert.Error(err)

	c := gaussianChains(t, 3, 100, 2, 47)
	assert.NoError(kde.Fit(c.Samples, c.LnPosterior))
	_, err = NewEvidence(0, kde)
	assert.Error(err)

	ev, err := NewEvidence(2, kde)
	assert.NoError(err)
	assert.Error(ev.AddChains(c)) // chain count mismatch

	_, _, err = ev.Compute()
	assert.Error(err) // nothing added

	// No support anywhere
	far, err := NewChains(2)
	assert.NoError(err)
	assert.NoError(far.AddChain([][]float64{{100, 100}}, []float64{0}))
	assert.NoError(far.AddChain([][]float64{{-100, 100}}, []float64{0}))
	assert.NoError(ev.AddChains(far))
	_, _, err = ev.Compute()
	assert.Error(err)

	three, err := NewChains(3)
	assert.NoError(err)
	assert.NoError(three.AddChain([][]float64{{0, 0, 0}}, []float64{0}))
	assert.NoError(three.AddChain([][]float64{{0, 0, 0}}, []float64{0}))
	assert.Error(ev.AddChains(three))
}

// Adding the chains in two halves gives the same answer as adding them once
func TestEvidenceIncremental(t *testing.T) {
	assert := assert.New(t)

	c := gaussianChains(t, 4, 400, 2, 48)
	train, test, err := Split(c, 0.5)
	assert.NoError(err)

	kde, err := NewKernelDensityEstimate(2, 0.1)
	assert.NoError(err)
	assert.NoError(kde.Fit(train.Samples, train.LnPosterior))

	once, err := NewEvidence(test.NChains(), kde)
	assert.NoError(err)
	assert.NoError(once.AddChains(test))

	first, err := NewChains(2)
	assert.NoError(err)
	second, err := NewChains(2)
	assert.NoError(err)
	for j := 0; j < test.NChains(); j++ {
		s, l := test.Chain(j)
		half := len(s) / 2
		assert.NoError(first.AddChain(s[:half], l[:half]))
		assert.NoError(second.AddChain(s[half:], l[half:]))
	}

	twice, err := NewEvidence(test.NChains(), kde)
	assert.NoError(err)
	assert.NoError(twice.AddChains(first))
	assert.NoError(twice.AddChains(second))

	e1, s1, err := once.Compute()
	assert.NoError(err)
	e2, s2, err := twice.Compute()
	assert.NoError(err)
	assert.InDelta(e1, e2, 1e-9*e1)
	assert.InDelta(s1, s2, 1e-9*s1)
}
