package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testState() *State {
	return &State{
		Chains: [][][]float64{
			{{0, 0}, {1, 1}, {2, 2}},
			{{5, 5}, {6, 6}, {7, 7}},
		},
		LogProb:    [][]float64{{0, -1, -2}, {-5, -6, -7}},
		LocalAccs:  [][]bool{{true, false}, {true, true}},
		GlobalAccs: [][]bool{{false}, {true}},
		LossVals:   []float64{3, 2},
	}
}

func TestStateShape(t *testing.T) {
	assert := assert.New(t)

	c, s, d := testState().Shape()
	assert.Equal(2, c)
	assert.Equal(3, s)
	assert.Equal(2, d)

	c, s, d = (&State{}).Shape()
	assert.Equal(0, c)
	assert.Equal(0, s)
	assert.Equal(0, d)
}

func TestStateTail(t *testing.T) {
	assert := assert.New(t)

	st := testState()
	samples, lnp, err := st.Tail(2)
	assert.NoError(err)
	assert.Equal([][][]float64{{{1, 1}, {2, 2}}, {{6, 6}, {7, 7}}}, samples)
	assert.Equal([][]float64{{-1, -2}, {-6, -7}}, lnp)

	_, _, err = st.Tail(0)
	assert.Error(err)
	_, _, err = st.Tail(4)
	assert.Error(err)
}

func TestStateFlatten(t *testing.T) {
	assert := assert.New(t)

	flat := testState().Flatten()
	assert.Len(flat, 6)
	assert.Equal([]float64{0, 0}, flat[0])
	assert.Equal([]float64{7, 7}, flat[5])
}

func TestMeanAcceptance(t *testing.T) {
	assert := assert.New(t)

	st := testState()
	assert.Equal([]float64{1.0, 0.5}, MeanAcceptance(st.LocalAccs))
	assert.Equal([]float64{0.5}, MeanAcceptance(st.GlobalAccs))
	assert.Equal([]float64{1.0, 0.0}, MeanAcceptance([][]bool{{true, false}, {true}}))
	assert.Len(MeanAcceptance(nil), 0)
}
