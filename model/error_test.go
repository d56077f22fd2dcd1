package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testMarginals(counts ...[]float64) []*Marginal {
	margs := make([]*Marginal, len(counts))
	for i, c := range counts {
		margs[i] = &Marginal{ID: i, Name: CoordName(i), Lo: 0, Hi: 1, Counts: c}
	}
	return margs
}

// Easy - max and mean are the same so we can test normed or not
func TestErrorSuiteNormed(t *testing.T) {
	assert := assert.New(t)

	margs1 := testMarginals([]float64{250.0, 750.0}, []float64{25.1, 75.3})
	margs2 := testMarginals([]float64{42.0, 42.0}, []float64{3.1, 3.1})

	p1 := math.Pow(math.Sqrt(0.75)-math.Sqrt(0.50), 2)
	p2 := math.Pow(math.Sqrt(0.25)-math.Sqrt(0.50), 2)
	hellExp := math.Sqrt(p1+p2) / math.Sqrt2

	/* JS Divergence calc via python with from scipy.stats import entropy
	def jsd(p, q):
		_p = p / norm(p, ord=1)
		_q = q / norm(q, ord=1)
		_m = 0.5 * (_p + _q)
		return 0.5 * (entropy(_p, _m, base=2) + entropy(_q, _m, base=2))
	print(jsd([0.5, 0.5], [0.25, 0.75]))
	*/
	jsExp := 0.0487949406953985

	const eps = 1e-8

	suite, err := NewErrorSuite(margs1, margs2)
	assert.NoError(err)
	assert.InEpsilon(0.25, suite.MeanMeanAbsError, eps)
	assert.InEpsilon(0.25, suite.MaxMeanAbsError, eps)
	assert.InEpsilon(0.25, suite.MeanMaxAbsError, eps)
	assert.InEpsilon(0.25, suite.MaxMaxAbsError, eps)
	assert.InEpsilon(hellExp, suite.MeanHellinger, eps)
	assert.InEpsilon(hellExp, suite.MaxHellinger, eps)
	assert.InEpsilon(jsExp, suite.MeanJSDiverge, eps)
	assert.InEpsilon(jsExp, suite.MaxJSDiverge, eps)

	// Order of the arguments should not matter for the symmetric measures
	suite, err = NewErrorSuite(margs2, margs1)
	assert.NoError(err)
	assert.InEpsilon(hellExp, suite.MeanHellinger, eps)
	assert.InEpsilon(jsExp, suite.MeanJSDiverge, eps)
}

func TestErrorSuiteMeanMax(t *testing.T) {
	assert := assert.New(t)

	// First pair is identical, second pair differs
	margs1 := testMarginals([]float64{1, 1}, []float64{1, 0})
	margs2 := testMarginals([]float64{2, 2}, []float64{0, 1})

	suite, err := NewErrorSuite(margs1, margs2)
	assert.NoError(err)
	assert.InDelta(0.5, suite.MeanMaxAbsError, 1e-12)
	assert.InDelta(1.0, suite.MaxMaxAbsError, 1e-12)
	assert.InDelta(1.0, suite.MaxHellinger, 1e-12)
	assert.InDelta(1.0, suite.MaxJSDiverge, 1e-12)
	assert.InDelta(0.5, suite.MeanJSDiverge, 1e-12)
	assert.False(math.IsNaN(suite.MeanJSDiverge))
}

func TestErrorSuiteBad(t *testing.T) {
	assert := assert.New(t)

	var err error

	_, err = NewErrorSuite(testMarginals([]float64{1}), testMarginals())
	assert.Error(err)

	_, err = NewErrorSuite(testMarginals(), testMarginals())
	assert.Error(err)

	_, err = NewErrorSuite(testMarginals([]float64{1, 2}), testMarginals([]float64{1, 2, 3}))
	assert.Error(err)

	// Corrupt counts on either side are rejected before scoring
	_, err = NewErrorSuite(testMarginals([]float64{1, -2}), testMarginals([]float64{1, 2}))
	assert.Error(err)
	_, err = NewErrorSuite(testMarginals([]float64{1, 2}), testMarginals([]float64{math.NaN(), 2}))
	assert.Error(err)
	_, err = NewErrorSuite(testMarginals([]float64{}), testMarginals([]float64{}))
	assert.Error(err)
}
