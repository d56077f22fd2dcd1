package sampler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/moonflow/model"
)

func TestNewMALABad(t *testing.T) {
	assert := assert.New(t)

	m, err := NewMALA(nil, 0.1)
	assert.Nil(m)
	assert.Error(err)

	m, err = NewMALA(testGaussian(t, 2), 0)
	assert.Nil(m)
	assert.Error(err)
}

// MALA on a standard normal should recover its moments
func TestMALAGaussianMoments(t *testing.T) {
	assert := assert.New(t)

	target := testGaussian(t, 2)
	ch, err := NewChain(0, target, testGen(t, 42), []float64{1, -1}, 20000)
	assert.NoError(err)

	mala, err := NewMALA(target, 0.5)
	assert.NoError(err)
	assert.NoError(ch.LocalSteps(context.Background(), mala, 20000))

	rate := AcceptanceRate(ch.LocalAccepts, len(ch.LocalAccepts))
	assert.True(rate > 0.5 && rate < 1.0, "acceptance %f", rate)

	for d := 0; d < 2; d++ {
		col := make([]float64, 0, len(ch.Positions)-1000)
		for _, x := range ch.Positions[1000:] {
			col = append(col, x[d])
		}
		mean, variance := stat.MeanVariance(col, nil)
		assert.InDelta(0.0, mean, 0.1, "dim %d", d)
		assert.InDelta(1.0, variance, 0.15, "dim %d", d)
	}
}

// Small steps on the dual moon should almost always be accepted and the
// chain should stay near the ring.
func TestMALADualMoon(t *testing.T) {
	assert := assert.New(t)

	target, err := model.NewDualMoon(2, false)
	assert.NoError(err)

	ch, err := NewChain(0, target, testGen(t, 7), []float64{2, 0}, 2000)
	assert.NoError(err)

	mala, err := NewMALA(target, 0.001)
	assert.NoError(err)
	assert.NoError(ch.LocalSteps(context.Background(), mala, 2000))

	assert.True(AcceptanceRate(ch.LocalAccepts, 2000) > 0.5)
	for _, lp := range ch.LogProbs {
		assert.True(lp > -20, "log prob %f", lp)
	}
}
