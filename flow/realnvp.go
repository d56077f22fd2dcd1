// Package flow implements a RealNVP normalizing flow: a stack of affine
// coupling layers mapping data to a standard normal latent space. The sampler
// fits it to recent chain samples and uses it as a global proposal.
package flow

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/moonflow/rand"
)

var log2Pi = math.Log(2 * math.Pi)

// Config describes the flow architecture
type Config struct {
	NLayers int     // coupling layers, alternating masks
	NHidden int     // hidden units in each conditioner
	Scale   float64 // bound on the per-layer log-scale
}

// Check returns an error if the architecture is unusable
func (c Config) Check() error {
	if c.NLayers < 1 {
		return errors.Errorf("Flow needs at least one layer, got %d", c.NLayers)
	}
	if c.NHidden < 1 {
		return errors.Errorf("Flow needs at least one hidden unit, got %d", c.NHidden)
	}
	if !(c.Scale > 0) {
		return errors.Errorf("Flow log-scale bound must be positive, got %f", c.Scale)
	}
	return nil
}

// RealNVP is the flow model. The layers operate on standardized data
// (x-Mean)/Std; LogProb and Sample work in the original data space.
//
// Reads (LogProb, Sample) are safe for concurrent use. Train is not, and must
// not run concurrently with reads.
type RealNVP struct {
	Dim  int
	Mean []float64
	Std  []float64

	cfg    Config
	layers []*coupling
	opt    *adam
	fitted bool // standardization set; later Train calls keep it
}

// New creates an identity-initialized flow. The generator seeds the input
// weights of every conditioner.
func New(dim int, cfg Config, gen *rand.Generator) (*RealNVP, error) {
	if dim < 2 {
		return nil, errors.Errorf("Coupling flows need at least 2 dims, got %d", dim)
	}
	if err := cfg.Check(); err != nil {
		return nil, errors.Wrap(err, "Invalid flow config")
	}
	if gen == nil {
		return nil, errors.New("A generator is required to initialize the flow")
	}

	f := &RealNVP{
		Dim:    dim,
		Mean:   make([]float64, dim),
		Std:    make([]float64, dim),
		cfg:    cfg,
		layers: make([]*coupling, cfg.NLayers),
	}
	for i := range f.Std {
		f.Std[i] = 1.0
	}
	for k := range f.layers {
		f.layers[k] = newCoupling(dim, cfg.NHidden, k, cfg.Scale, gen)
	}

	return f, nil
}

// params returns views of all trainable parameters
func (f *RealNVP) params() [][]float64 {
	var p [][]float64
	for _, l := range f.layers {
		p = append(p, l.params()...)
	}
	return p
}

// zeroGrads allocates one gradient accumulator per layer
func (f *RealNVP) zeroGrads() []*coupling {
	hidden := f.cfg.NHidden
	g := make([]*coupling, len(f.layers))
	for k := range g {
		g[k] = zeroCoupling(f.Dim, hidden, f.cfg.Scale)
	}
	return g
}

// logNormal is the standard normal log density of every row of z
func logNormal(z *mat.Dense) []float64 {
	n, dim := z.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sq := 0.0
		for _, v := range z.RawRowView(i) {
			sq += v * v
		}
		out[i] = -0.5*sq - 0.5*float64(dim)*log2Pi
	}
	return out
}

// forward runs standardized data through all layers to the latent space
func (f *RealNVP) forward(y *mat.Dense) (*mat.Dense, []float64, []*layerCache) {
	n, _ := y.Dims()
	logdet := make([]float64, n)
	caches := make([]*layerCache, len(f.layers))

	v := y
	for k, l := range f.layers {
		v, caches[k] = l.forward(v, logdet)
	}
	return v, logdet, caches
}

// inverse runs latent points back to standardized data space. The returned
// log-determinant is log|det dy/dz|.
func (f *RealNVP) inverse(z *mat.Dense) (*mat.Dense, []float64) {
	n, _ := z.Dims()
	logdet := make([]float64, n)

	u := z
	for k := len(f.layers) - 1; k >= 0; k-- {
		u = f.layers[k].inverse(u, logdet)
	}
	return u, logdet
}

func (f *RealNVP) logStdSum() float64 {
	s := 0.0
	for _, sd := range f.Std {
		s += math.Log(sd)
	}
	return s
}

func (f *RealNVP) standardize(xs [][]float64) (*mat.Dense, error) {
	y := mat.NewDense(len(xs), f.Dim, nil)
	for i, x := range xs {
		if len(x) != f.Dim {
			return nil, errors.Errorf("Point %d has dim %d, flow has dim %d", i, len(x), f.Dim)
		}
		row := y.RawRowView(i)
		for j, v := range x {
			row[j] = (v - f.Mean[j]) / f.Std[j]
		}
	}
	return y, nil
}

// LogProbBatch returns the flow log density of every point
func (f *RealNVP) LogProbBatch(xs [][]float64) ([]float64, error) {
	if len(xs) < 1 {
		return []float64{}, nil
	}

	y, err := f.standardize(xs)
	if err != nil {
		return nil, err
	}

	z, logdet, _ := f.forward(y)
	lp := logNormal(z)
	shift := f.logStdSum()
	for i := range lp {
		lp[i] += logdet[i] - shift
	}
	return lp, nil
}

// LogProb returns the flow log density at x
func (f *RealNVP) LogProb(x []float64) (float64, error) {
	lp, err := f.LogProbBatch([][]float64{x})
	if err != nil {
		return 0, err
	}
	return lp[0], nil
}

// Forward maps points to the latent space and returns log|det dz/dx| for
// each one, standardization included.
func (f *RealNVP) Forward(xs [][]float64) ([][]float64, []float64, error) {
	if len(xs) < 1 {
		return [][]float64{}, []float64{}, nil
	}

	y, err := f.standardize(xs)
	if err != nil {
		return nil, nil, err
	}

	z, logdet, _ := f.forward(y)
	shift := f.logStdSum()
	for i := range logdet {
		logdet[i] -= shift
	}
	return rows(z), logdet, nil
}

// Inverse maps latent points back to data space and returns log|det dx/dz|
// for each one.
func (f *RealNVP) Inverse(zs [][]float64) ([][]float64, []float64, error) {
	if len(zs) < 1 {
		return [][]float64{}, []float64{}, nil
	}

	z := mat.NewDense(len(zs), f.Dim, nil)
	for i, v := range zs {
		if len(v) != f.Dim {
			return nil, nil, errors.Errorf("Point %d has dim %d, flow has dim %d", i, len(v), f.Dim)
		}
		copy(z.RawRowView(i), v)
	}

	y, logdet := f.inverse(z)
	shift := f.logStdSum()
	xs := rows(y)
	for i, x := range xs {
		for j := range x {
			x[j] = x[j]*f.Std[j] + f.Mean[j]
		}
		logdet[i] += shift
	}
	return xs, logdet, nil
}

// Sample draws n points from the flow and returns them with their log
// density.
func (f *RealNVP) Sample(gen *rand.Generator, n int) ([][]float64, []float64, error) {
	if n < 1 {
		return nil, nil, errors.Errorf("Invalid sample count %d", n)
	}
	if gen == nil {
		return nil, nil, errors.New("A generator is required to sample the flow")
	}

	z := mat.NewDense(n, f.Dim, nil)
	for i := 0; i < n; i++ {
		gen.NormVec(z.RawRowView(i))
	}
	lpz := logNormal(z)

	y, logdet := f.inverse(z)

	shift := f.logStdSum()
	xs := rows(y)
	lp := make([]float64, n)
	for i, x := range xs {
		for j := range x {
			x[j] = x[j]*f.Std[j] + f.Mean[j]
		}
		lp[i] = lpz[i] - logdet[i] - shift
	}

	return xs, lp, nil
}

func rows(m *mat.Dense) [][]float64 {
	n, dim := m.Dims()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dim)
		copy(out[i], m.RawRowView(i))
	}
	return out
}
