package viz

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CraigKelly/moonflow/sampler"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func assertPNG(t *testing.T, path string) {
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", path)
}

func ringSamples(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		theta := 2 * math.Pi * float64(i) / float64(n)
		out[i] = []float64{2 * math.Cos(theta), 2 * math.Sin(theta), float64(i % 7)}
	}
	return out
}

func TestDiagnostics(t *testing.T) {
	assert := assert.New(t)

	st := &sampler.State{
		Chains:     [][][]float64{{{0, 0}, {1, 1}, {2, 2}}, {{1, 0}, {0, 1}, {1, 1}}},
		LogProb:    [][]float64{{-3, -2, -1}, {-1, -1.5, -1}},
		LocalAccs:  [][]bool{{true, false}, {true, true}},
		GlobalAccs: [][]bool{{false}, {true}},
		LossVals:   []float64{3, 2.5, 2.2},
	}

	path := filepath.Join(t.TempDir(), "diag.png")
	assert.NoError(Diagnostics(st, path))
	assertPNG(t, path)

	// Local only runs have no loss or global flags
	st.LossVals = nil
	st.GlobalAccs = [][]bool{{}, {}}
	assert.NoError(Diagnostics(st, path))

	assert.Error(Diagnostics(nil, path))
	assert.Error(Diagnostics(&sampler.State{}, path))
	assert.Error(Diagnostics(st, filepath.Join(t.TempDir(), "missing", "diag.png")))
}

func TestDiagnosticsChainPaths(t *testing.T) {
	assert := assert.New(t)

	chain := [][]float64{{0, 1}, {2, 3}, {4, 5}}
	xys := chainPath(chain)
	assert.Len(xys, 3)
	assert.Equal(2.0, xys[1].X)
	assert.Equal(3.0, xys[1].Y)

	// 1D chains are drawn against the step
	xys = chainPath([][]float64{{7}, {8}})
	assert.Equal(1.0, xys[1].X)
	assert.Equal(8.0, xys[1].Y)

	long := make([][]float64, 5000)
	for i := range long {
		long[i] = []float64{float64(i), 0}
	}
	assert.True(len(chainPath(long)) <= maxLinePoints)

	// Positions must reach the plot: NaN in either drawn chain is an error
	nan := math.NaN()
	st := &sampler.State{
		Chains:     [][][]float64{{{0, 0}, {1, 1}}, {{nan, nan}, {nan, nan}}},
		LocalAccs:  [][]bool{{true}, {true}},
		GlobalAccs: [][]bool{{}, {}},
	}
	path := filepath.Join(t.TempDir(), "diag.png")
	assert.Error(Diagnostics(st, path))

	st.Chains[0][1][0] = nan
	st.Chains[1] = [][]float64{{0, 0}, {1, 1}}
	assert.Error(Diagnostics(st, path))

	// Only the first two chains are drawn
	st.Chains = [][][]float64{{{0, 0}, {1, 1}}, {{1, 0}, {0, 1}}, {{nan, nan}}}
	assert.NoError(Diagnostics(st, path))

	st.Chains = [][][]float64{{}}
	assert.Error(Diagnostics(st, path))

	st.Chains = [][][]float64{{{0}, {0.5}, {0.2}}}
	assert.NoError(Diagnostics(st, path))
	assertPNG(t, path)
}

func TestThinned(t *testing.T) {
	assert := assert.New(t)

	ys := make([]float64, 5000)
	xys := thinned(ys)
	assert.True(len(xys) <= maxLinePoints)
	assert.Equal(0.0, xys[0].X)
	assert.Equal(3.0, xys[1].X)

	assert.Len(thinned([]float64{1, 2}), 2)
}

func TestCorner(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	samples := ringSamples(5000)

	path := filepath.Join(dir, "corner.png")
	assert.NoError(Corner(samples, []string{"x1", "x2", "x3"}, "Chain samples", path))
	assertPNG(t, path)

	flowPath := filepath.Join(dir, "flow.png")
	assert.NoError(CornerFlow(samples[:100], []string{"x1", "x2", "x3"}, "Flow samples", flowPath))
	assertPNG(t, flowPath)

	assert.Error(Corner(nil, nil, "", path))
	assert.Error(Corner(samples, []string{"x1"}, "", path))
	assert.Error(Corner([][]float64{{1, 2}, {1}}, []string{"a", "b"}, "", path))
}
