package evidence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CraigKelly/moonflow/model"
)

func TestGridEvidenceGaussian(t *testing.T) {
	assert := assert.New(t)

	target, err := model.NewGaussian(2)
	assert.NoError(err)

	z, err := GridEvidence(target, -6, 6, 400)
	assert.NoError(err)
	assert.InDelta(2*math.Pi, z, 1e-3)
	assert.InDelta(target.LnEvidence(), math.Log(z), 1e-3)
}

func TestGridEvidenceDualMoon(t *testing.T) {
	assert := assert.New(t)

	target, err := model.NewDualMoon(2, false)
	assert.NoError(err)

	coarse, err := GridEvidence(target, GridMin, GridMax, GridPoints)
	assert.NoError(err)
	fine, err := GridEvidence(target, GridMin, GridMax, 400)
	assert.NoError(err)

	assert.True(coarse > 0)
	assert.InDelta(fine, coarse, 0.05*fine)
}

func TestGridEvidenceBad(t *testing.T) {
	assert := assert.New(t)

	_, err := GridEvidence(nil, -3, 3, 100)
	assert.Error(err)

	three, err := model.NewDualMoon(3, false)
	assert.NoError(err)
	_, err = GridEvidence(three, -3, 3, 100)
	assert.Error(err)

	two, err := model.NewDualMoon(2, false)
	assert.NoError(err)
	_, err = GridEvidence(two, -3, 3, 1)
	assert.Error(err)
	_, err = GridEvidence(two, 3, -3, 100)
	assert.Error(err)
}

func BenchmarkGridEvidence(b *testing.B) {
	target, err := model.NewDualMoon(2, false)
	if err != nil {
		b.Fatalf("Could not create target %v", err)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := GridEvidence(target, GridMin, GridMax, GridPoints); err != nil {
			b.Fatalf("Integration failed %v", err)
		}
	}
}
