package model

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// Marginal is a binned 1-D marginal distribution of one coordinate over a
// fixed range. Counts need not be normalized.
type Marginal struct {
	ID     int       // Coordinate index
	Name   string    // Coordinate name (x1, x2, ...)
	Lo     float64   // Lower edge of the first bin
	Hi     float64   // Upper edge of the last bin
	Counts []float64 // Bin weights: len is the bin count
}

// CoordName is the display name for a zero-based coordinate index
func CoordName(i int) string {
	return "x" + strconv.Itoa(i+1)
}

// NewMarginal creates an empty marginal with the given number of bins
func NewMarginal(id int, lo, hi float64, bins int) (*Marginal, error) {
	if id < 0 {
		return nil, errors.Errorf("Invalid coordinate index %d", id)
	}
	if bins < 1 {
		return nil, errors.Errorf("Invalid bin count %d for coordinate %d", bins, id)
	}
	if !(hi > lo) {
		return nil, errors.Errorf("Invalid range [%f, %f] for coordinate %d", lo, hi, id)
	}

	return &Marginal{
		ID:     id,
		Name:   CoordName(id),
		Lo:     lo,
		Hi:     hi,
		Counts: make([]float64, bins),
	}, nil
}

// Card is the number of bins
func (m *Marginal) Card() int {
	return len(m.Counts)
}

// Add counts the value. Values outside the range land in the edge bins.
func (m *Marginal) Add(v float64) {
	card := m.Card()
	idx := int(math.Floor((v - m.Lo) / (m.Hi - m.Lo) * float64(card)))
	if idx < 0 {
		idx = 0
	} else if idx >= card {
		idx = card - 1
	}
	m.Counts[idx] += 1.0
}

// Check returns an error if any problem is found
func (m *Marginal) Check() error {
	if m.Card() < 1 {
		return errors.Errorf("Marginal %s has no bins", m.Name)
	}
	for i, c := range m.Counts {
		if c < 0 || math.IsNaN(c) {
			return errors.Errorf("Marginal %s has invalid count %f in bin %d", m.Name, c, i)
		}
	}
	return nil
}

// Normalized returns the bin weights scaled to sum to 1. An empty marginal is
// treated as uniform.
func (m *Marginal) Normalized() []float64 {
	card := m.Card()
	out := make([]float64, card)

	var sum float64
	for _, c := range m.Counts {
		sum += c
	}

	const EPS = 1e-12
	if sum < EPS {
		for i := range out {
			out[i] = 1.0 / float64(card)
		}
		return out
	}

	for i, c := range m.Counts {
		out[i] = c / sum
	}
	return out
}

// SampleRange returns the per-coordinate min and max over all the sample sets
func SampleRange(sets ...[][]float64) (lo, hi []float64, err error) {
	for _, set := range sets {
		for _, x := range set {
			if lo == nil {
				lo = append([]float64(nil), x...)
				hi = append([]float64(nil), x...)
				continue
			}
			if len(x) != len(lo) {
				return nil, nil, errors.Errorf("Sample dim %d != %d", len(x), len(lo))
			}
			for i, v := range x {
				lo[i] = math.Min(lo[i], v)
				hi[i] = math.Max(hi[i], v)
			}
		}
	}

	if lo == nil {
		return nil, nil, errors.New("No samples to find a range for")
	}

	// Degenerate coordinates still need a non-empty range
	for i := range lo {
		if !(hi[i] > lo[i]) {
			lo[i] -= 0.5
			hi[i] += 0.5
		}
	}

	return lo, hi, nil
}

// NewMarginals bins every coordinate of the samples over [lo, hi]
func NewMarginals(samples [][]float64, lo, hi []float64, bins int) ([]*Marginal, error) {
	if len(lo) != len(hi) {
		return nil, errors.Errorf("Range dims differ: %d != %d", len(lo), len(hi))
	}

	margs := make([]*Marginal, len(lo))
	for i := range margs {
		m, err := NewMarginal(i, lo[i], hi[i], bins)
		if err != nil {
			return nil, err
		}
		margs[i] = m
	}

	for _, x := range samples {
		if len(x) != len(margs) {
			return nil, errors.Errorf("Sample dim %d != marginal count %d", len(x), len(margs))
		}
		for i, v := range x {
			margs[i].Add(v)
		}
	}

	return margs, nil
}
