package flow

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/CraigKelly/moonflow/rand"
)

// TrainConfig controls one round of flow training
type TrainConfig struct {
	LearningRate float64
	Momentum     float64 // Adam beta1
	NEpochs      int
	BatchSize    int
	MaxSamples   int     // random subset of the data to train on; 0 uses all
	ClipNorm     float64 // global gradient norm bound; 0 disables
}

// Check returns an error for unusable training settings
func (c TrainConfig) Check() error {
	if !(c.LearningRate > 0) {
		return errors.Errorf("Learning rate must be positive, got %f", c.LearningRate)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return errors.Errorf("Momentum must be in [0,1), got %f", c.Momentum)
	}
	if c.NEpochs < 1 {
		return errors.Errorf("Epoch count must be positive, got %d", c.NEpochs)
	}
	if c.BatchSize < 1 {
		return errors.Errorf("Batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxSamples < 0 {
		return errors.Errorf("Max samples must not be negative, got %d", c.MaxSamples)
	}
	if c.ClipNorm < 0 {
		return errors.Errorf("Clip norm must not be negative, got %f", c.ClipNorm)
	}
	return nil
}

// Fit sets the standardization from the data: per-coordinate mean and
// standard deviation. Constant coordinates keep a unit scale.
func (f *RealNVP) Fit(data [][]float64) error {
	if len(data) < 2 {
		return errors.Errorf("Need at least 2 points to standardize, got %d", len(data))
	}

	col := make([]float64, len(data))
	for j := 0; j < f.Dim; j++ {
		for i, x := range data {
			if len(x) != f.Dim {
				return errors.Errorf("Point %d has dim %d, flow has dim %d", i, len(x), f.Dim)
			}
			col[i] = x[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if !(std > 1e-12) || math.IsInf(std, 0) {
			std = 1.0
		}
		f.Mean[j] = mean
		f.Std[j] = std
	}

	f.fitted = true
	return nil
}

// lossGrad returns the mean negative log-likelihood of the standardized batch
// and accumulates its gradient into grads.
func (f *RealNVP) lossGrad(y *mat.Dense, grads []*coupling) float64 {
	n, _ := y.Dims()
	z, logdet, caches := f.forward(y)
	lpz := logNormal(z)

	bn := float64(n)
	loss := 0.0
	for i := range lpz {
		loss -= lpz[i] + logdet[i]
	}
	loss /= bn

	// d(loss)/dz = z/n and d(loss)/d(logdet) = -1/n for every layer
	g := mat.NewDense(n, f.Dim, nil)
	g.Scale(1/bn, z)
	gl := make([]float64, n)
	for i := range gl {
		gl[i] = -1 / bn
	}

	for k := len(f.layers) - 1; k >= 0; k-- {
		g = f.layers[k].backward(caches[k], g, gl, grads[k])
	}

	return loss
}

// Loss is the mean negative log-likelihood of the data in standardized space.
func (f *RealNVP) Loss(data [][]float64) (float64, error) {
	if len(data) < 1 {
		return 0, errors.New("No data to compute a loss on")
	}

	y, err := f.standardize(data)
	if err != nil {
		return 0, err
	}

	z, logdet, _ := f.forward(y)
	lpz := logNormal(z)
	loss := 0.0
	for i := range lpz {
		loss -= lpz[i] + logdet[i]
	}
	return loss / float64(len(data)), nil
}

// Train runs NEpochs of Adam over shuffled mini-batches and returns the mean
// loss of each epoch. The standardization is fitted on the first call only:
// weights and optimizer state carry over between calls, so later rounds
// continue in the same standardized space.
func (f *RealNVP) Train(data [][]float64, cfg TrainConfig, gen *rand.Generator) ([]float64, error) {
	if err := cfg.Check(); err != nil {
		return nil, errors.Wrap(err, "Invalid training config")
	}
	if gen == nil {
		return nil, errors.New("A generator is required for training")
	}

	if cfg.MaxSamples > 0 && len(data) > cfg.MaxSamples {
		perm := gen.Perm(len(data))
		subset := make([][]float64, cfg.MaxSamples)
		for i := range subset {
			subset[i] = data[perm[i]]
		}
		data = subset
	}

	if !f.fitted {
		if err := f.Fit(data); err != nil {
			return nil, errors.Wrap(err, "Could not standardize training data")
		}
	}

	y, err := f.standardize(data)
	if err != nil {
		return nil, err
	}

	params := f.params()
	if f.opt == nil || f.opt.lr != cfg.LearningRate || f.opt.b1 != cfg.Momentum {
		f.opt = newAdam(cfg.LearningRate, cfg.Momentum, params)
	}

	n := len(data)
	batchSize := cfg.BatchSize
	if batchSize > n {
		batchSize = n
	}

	losses := make([]float64, 0, cfg.NEpochs)
	for epoch := 0; epoch < cfg.NEpochs; epoch++ {
		perm := gen.Perm(n)
		epochLoss := 0.0

		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}

			batch := mat.NewDense(end-start, f.Dim, nil)
			for i := start; i < end; i++ {
				copy(batch.RawRowView(i-start), y.RawRowView(perm[i]))
			}

			grads := f.zeroGrads()
			loss := f.lossGrad(batch, grads)
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return losses, errors.Errorf("Non-finite flow loss in epoch %d", epoch)
			}

			var flat [][]float64
			for _, g := range grads {
				flat = append(flat, g.params()...)
			}
			clipNorm(flat, cfg.ClipNorm)
			f.opt.step(params, flat)

			epochLoss += loss * float64(end-start)
		}

		losses = append(losses, epochLoss/float64(n))
	}

	return losses, nil
}
