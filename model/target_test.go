package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func gradClose(assert *assert.Assertions, t Target, x []float64) {
	ana := t.Grad(nil, x)
	num := NumericGrad(t, nil, x)
	for i := range ana {
		tol := 1e-4 * math.Max(1.0, math.Abs(num[i]))
		assert.InDelta(num[i], ana[i], tol, "coord %d at %v", i, x)
	}
}

func TestDualMoonReference(t *testing.T) {
	assert := assert.New(t)

	dm, err := NewDualMoon(2, false)
	assert.NoError(err)
	assert.Equal(2, dm.Dim())

	// |x| = 2 so the ring term vanishes and only the lobes are left:
	// logsumexp([-0.78125, -19.53125])
	exp := -0.78125 + math.Log1p(math.Exp(-18.75))
	assert.InDelta(exp, dm.LogProb([]float64{2, 0}), 1e-12)
	assert.InDelta(-0.78125, dm.LogProb([]float64{2, 0}), 1e-7)

	// Origin: 0.5*(2/0.1)^2 = 200 on the ring, both lobes at -0.5*(3/0.8)^2
	lobe := -0.5 * (3.0 / 0.8) * (3.0 / 0.8)
	assert.InDelta(-200+lobe+math.Log(2), dm.LogProb([]float64{0, 0}), 1e-9)
}

func TestDualMoonSymmetry(t *testing.T) {
	assert := assert.New(t)

	dm, err := NewDualMoon(2, false)
	assert.NoError(err)

	for _, x := range [][]float64{{0.3, 1.9}, {-1.5, 1.2}, {2.2, -0.4}, {0, 0.5}} {
		flipped := []float64{x[0], -x[1]}
		assert.Equal(dm.LogProb(x), dm.LogProb(flipped))

		// And across the second axis, since the shifts are symmetric
		mirrored := []float64{-x[0], x[1]}
		assert.InDelta(dm.LogProb(x), dm.LogProb(mirrored), 1e-12)
	}
}

func TestDualMoonLobes(t *testing.T) {
	assert := assert.New(t)

	dm, err := NewDualMoon(2, false)
	assert.NoError(err)

	origin := dm.LogProb([]float64{0, 0})
	for _, theta := range []float64{0, 0.3, -0.3, math.Pi, math.Pi - 0.3, math.Pi + 0.3} {
		onRing := []float64{2 * math.Cos(theta), 2 * math.Sin(theta)}
		assert.True(dm.LogProb(onRing) > origin, "theta=%f", theta)
	}

	// On the ring the lobes favor the first axis over the second
	assert.True(dm.LogProb([]float64{2, 0}) > dm.LogProb([]float64{0, 2}))
	assert.True(dm.LogProb([]float64{-2, 0}) > dm.LogProb([]float64{0, -2}))
}

func TestDualMoonSmearSecond(t *testing.T) {
	assert := assert.New(t)

	plain, err := NewDualMoon(2, false)
	assert.NoError(err)
	smear, err := NewDualMoon(2, true)
	assert.NoError(err)

	x := []float64{0.3, 1.9}
	a := (1.9 - 3.0) / 0.6
	b := (1.9 + 3.0) / 0.6
	term3 := math.Log(math.Exp(-0.5*a*a) + math.Exp(-0.5*b*b))
	assert.InDelta(plain.LogProb(x)+term3, smear.LogProb(x), 1e-10)
}

func TestDualMoonHigherDims(t *testing.T) {
	assert := assert.New(t)

	_, err := NewDualMoon(0, false)
	assert.Error(err)
	_, err = NewDualMoon(1, true)
	assert.Error(err)

	// 1D keeps the formula: |x| is the ring radius
	dm1, err := NewDualMoon(1, false)
	assert.NoError(err)
	assert.Equal(1, dm1.Dim())
	dm2, err := NewDualMoon(2, false)
	assert.NoError(err)
	assert.InDelta(dm2.LogProb([]float64{2, 0}), dm1.LogProb([]float64{2}), 1e-12)
	assert.InDelta(dm2.LogProb([]float64{-1.8, 0}), dm1.LogProb([]float64{-1.8}), 1e-12)
	gradClose(assert, dm1, []float64{1.9})
	gradClose(assert, dm1, []float64{-2.1})

	dm4, err := NewDualMoon(4, false)
	assert.NoError(err)

	assert.InDelta(dm2.LogProb([]float64{1.2, 1.1}), dm4.LogProb([]float64{1.2, 1.1, 0, 0}), 1e-12)
	gradClose(assert, dm4, []float64{0.5, 1.0, -0.7, 1.3})
}

func TestDualMoonGrad(t *testing.T) {
	assert := assert.New(t)

	plain, err := NewDualMoon(2, false)
	assert.NoError(err)
	smear, err := NewDualMoon(2, true)
	assert.NoError(err)

	points := [][]float64{
		{2, 0},
		{1.5, 0.7},
		{-1.9, 0.2},
		{0.1, -2.05},
		{0.4, 0.3},
	}
	for _, x := range points {
		gradClose(assert, plain, x)
		gradClose(assert, smear, x)
	}

	// Origin is defined and finite
	g := plain.Grad(nil, []float64{0, 0})
	assert.Equal(0.0, g[1])
	assert.False(math.IsNaN(g[0]))

	// Grad writes into dst
	dst := make([]float64, 2)
	out := plain.Grad(dst, []float64{1, 1})
	assert.Same(&dst[0], &out[0])
}

func TestGaussian(t *testing.T) {
	assert := assert.New(t)

	_, err := NewGaussian(0)
	assert.Error(err)

	g, err := NewGaussian(3)
	assert.NoError(err)
	assert.Equal(3, g.Dim())
	assert.InDelta(-7.0, g.LogProb([]float64{1, 2, 3}), 1e-12)
	assert.InDelta(1.5*math.Log(2*math.Pi), g.LnEvidence(), 1e-12)
	gradClose(assert, g, []float64{0.2, -1.0, 3.0})
}

func TestNewTarget(t *testing.T) {
	assert := assert.New(t)

	tg, err := NewTarget("DualMoon", 2, true)
	assert.NoError(err)
	assert.True(tg.(*DualMoon).SmearSecond)

	tg, err = NewTarget(GAUSSIAN, 5, false)
	assert.NoError(err)
	assert.Equal(5, tg.Dim())

	tg, err = NewTarget("banana", 2, false)
	assert.Nil(tg)
	assert.Error(err)
}

func BenchmarkDualMoonGrad(b *testing.B) {
	dm, err := NewDualMoon(2, false)
	if err != nil {
		b.Fatalf("Could not create density %v", err)
	}

	x := []float64{1.5, 0.7}
	dst := make([]float64, 2)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		dm.LogProb(x)
		dm.Grad(dst, x)
	}
}
