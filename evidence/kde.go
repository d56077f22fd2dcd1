package evidence

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Model is a normalized density fit to training samples
type Model interface {
	Fit(samples [][]float64, lnPost []float64) error
	Predict(x []float64) float64 // ln density, -Inf outside the support
	Fitted() bool
}

// lnBallVolume is the log volume of a d-ball with the given radius
func lnBallVolume(d int, radius float64) float64 {
	half := float64(d) / 2
	lg, _ := math.Lgamma(half + 1)
	return half*math.Log(math.Pi) + float64(d)*math.Log(radius) - lg
}

// KernelDensityEstimate is a uniform ball kernel density. Samples are
// scaled to the unit box of the training data and Diameter is the kernel
// diameter in those units.
type KernelDensityEstimate struct {
	NDim     int
	Diameter float64

	lo     []float64
	rng    []float64
	cells  map[string][][]float64
	nTrain int
	lnNorm float64
	fitted bool
}

// NewKernelDensityEstimate creates an unfitted estimate
func NewKernelDensityEstimate(ndim int, diameter float64) (*KernelDensityEstimate, error) {
	if ndim < 1 {
		return nil, errors.Errorf("Invalid dimension %d", ndim)
	}
	if !(diameter > 0) {
		return nil, errors.Errorf("Kernel diameter must be positive, got %f", diameter)
	}
	return &KernelDensityEstimate{NDim: ndim, Diameter: diameter}, nil
}

// Fitted is true after a successful Fit
func (k *KernelDensityEstimate) Fitted() bool {
	return k.fitted
}

// scale maps x into unit box coordinates
func (k *KernelDensityEstimate) scale(dst, x []float64) []float64 {
	for i, v := range x {
		dst[i] = (v - k.lo[i]) / k.rng[i]
	}
	return dst
}

func (k *KernelDensityEstimate) cellOf(dst []int, y []float64) []int {
	for i, v := range y {
		dst[i] = int(math.Floor(v / k.Diameter))
	}
	return dst
}

func cellKey(cell []int) string {
	var sb strings.Builder
	for i, c := range cell {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(c))
	}
	return sb.String()
}

// Fit hashes the scaled training samples into cells of width Diameter. The
// ln posterior values are not needed by this model.
func (k *KernelDensityEstimate) Fit(samples [][]float64, lnPost []float64) error {
	if len(samples) < 1 {
		return errors.New("No training samples")
	}

	k.lo = make([]float64, k.NDim)
	k.rng = make([]float64, k.NDim)
	col := make([]float64, len(samples))
	for d := 0; d < k.NDim; d++ {
		for i, x := range samples {
			if len(x) != k.NDim {
				return errors.Errorf("Sample %d has dim %d, expected %d", i, len(x), k.NDim)
			}
			col[i] = x[d]
		}
		k.lo[d] = floats.Min(col)
		k.rng[d] = floats.Max(col) - k.lo[d]
		if !(k.rng[d] > 0) {
			return errors.Errorf("Training samples have no spread in dim %d", d)
		}
	}

	k.cells = make(map[string][][]float64)
	cell := make([]int, k.NDim)
	for _, x := range samples {
		y := k.scale(make([]float64, k.NDim), x)
		key := cellKey(k.cellOf(cell, y))
		k.cells[key] = append(k.cells[key], y)
	}

	k.nTrain = len(samples)
	k.lnNorm = math.Log(float64(k.nTrain)) + lnBallVolume(k.NDim, k.Diameter/2)
	for _, r := range k.rng {
		k.lnNorm += math.Log(r)
	}
	k.fitted = true
	return nil
}

// neighbors counts the training points within the kernel radius of y
func (k *KernelDensityEstimate) neighbors(y []float64) int {
	radius := k.Diameter / 2
	count := 0
	countIn := func(pts [][]float64) {
		for _, p := range pts {
			if floats.Distance(p, y, 2) <= radius {
				count++
			}
		}
	}

	// The radius is half a cell, so only adjacent cells can hold neighbors.
	// When there are fewer occupied cells than adjacent ones scan them all.
	adjacent := math.Pow(3, float64(k.NDim))
	if adjacent > float64(len(k.cells)) {
		for _, pts := range k.cells {
			countIn(pts)
		}
		return count
	}

	center := k.cellOf(make([]int, k.NDim), y)
	offset := make([]int, k.NDim)
	for i := range offset {
		offset[i] = -1
	}
	cell := make([]int, k.NDim)
	for {
		for i := range cell {
			cell[i] = center[i] + offset[i]
		}
		countIn(k.cells[cellKey(cell)])

		// Odometer over {-1,0,1}^d
		i := 0
		for ; i < len(offset); i++ {
			offset[i]++
			if offset[i] <= 1 {
				break
			}
			offset[i] = -1
		}
		if i == len(offset) {
			break
		}
	}
	return count
}

// Predict returns the ln density at x
func (k *KernelDensityEstimate) Predict(x []float64) float64 {
	if !k.fitted || len(x) != k.NDim {
		return math.Inf(-1)
	}
	count := k.neighbors(k.scale(make([]float64, k.NDim), x))
	if count < 1 {
		return math.Inf(-1)
	}
	return math.Log(float64(count)) - k.lnNorm
}
