package model

import (
	"math"

	"github.com/pkg/errors"
)

// ErrorSuite represents all the loss/error functions we use to compare two
// sets of marginals (for instance chain samples against flow samples). Errors
// beginning with Mean are the mean across all coordinates while Max is the
// maximum value over the coordinates. So MeanMaxAbsError is the MEAN of the
// Maximum Absolute Error for each of the marginals. Likewise,
// MaxMeanAbsError represents the maximum value of the mean difference between
// two marginals.
type ErrorSuite struct {
	MeanMeanAbsError float64
	MeanMaxAbsError  float64
	MeanHellinger    float64
	MeanJSDiverge    float64

	MaxMeanAbsError float64
	MaxMaxAbsError  float64
	MaxHellinger    float64
	MaxJSDiverge    float64
}

// NewErrorSuite returns an ErrorSuite with all calculated error functions
func NewErrorSuite(margs1 []*Marginal, margs2 []*Marginal) (*ErrorSuite, error) {
	if len(margs1) != len(margs2) {
		return nil, errors.Errorf("Marginal count mismatch %d != %d", len(margs1), len(margs2))
	}
	if len(margs1) < 1 {
		return nil, errors.Errorf("No marginals to score")
	}

	for i, m1 := range margs1 {
		m2 := margs2[i]
		if err := m1.Check(); err != nil {
			return nil, err
		}
		if err := m2.Check(); err != nil {
			return nil, err
		}
		if m1.Card() != m2.Card() {
			return nil, errors.Errorf("Marginal %s bin count mismatch %d != %d", m1.Name, m1.Card(), m2.Card())
		}
	}

	es := ErrorSuite{}

	var d float64
	for i, m1 := range margs1 {
		p1 := m1.Normalized()
		p2 := margs2[i].Normalized()

		d = MeanAbsDiff(p1, p2)
		es.MeanMeanAbsError += d
		es.MaxMeanAbsError = math.Max(d, es.MaxMeanAbsError)

		d = MaxAbsDiff(p1, p2)
		es.MeanMaxAbsError += d
		es.MaxMaxAbsError = math.Max(d, es.MaxMaxAbsError)

		d = HellingerDiff(p1, p2)
		es.MeanHellinger += d
		es.MaxHellinger = math.Max(d, es.MaxHellinger)

		d = JSDivergence(p1, p2)
		es.MeanJSDiverge += d
		es.MaxJSDiverge = math.Max(d, es.MaxJSDiverge)
	}

	fc := float64(len(margs1))
	es.MeanMeanAbsError /= fc
	es.MeanMaxAbsError /= fc
	es.MeanHellinger /= fc
	es.MeanJSDiverge /= fc

	return &es, nil
}

// The functions below expect normalized distributions of equal length.

// MaxAbsDiff returns the maximum difference found between the two prob dists
func MaxAbsDiff(p1 []float64, p2 []float64) float64 {
	maxErr := 0.0
	for c, a := range p1 {
		maxErr = math.Max(maxErr, math.Abs(a-p2[c]))
	}
	return maxErr
}

// MeanAbsDiff returns the mean of the differences found between the two prob dists
func MeanAbsDiff(p1 []float64, p2 []float64) float64 {
	if len(p1) < 1 {
		return 0
	}

	errSum := 0.0
	for c, a := range p1 {
		errSum += math.Abs(a - p2[c])
	}
	return errSum / float64(len(p1))
}

// HellingerDiff returns the Hellinger distance between the two prob dists
func HellingerDiff(p1 []float64, p2 []float64) float64 {
	// Hellinger distance is similar to the Euclidean L2:
	// sqrt(sum((sqrt(p) - sqrt(q))**2)) / sqrt(2)
	errSum := 0.0
	for c, a := range p1 {
		d := math.Sqrt(a) - math.Sqrt(p2[c])
		errSum += d * d
	}
	return math.Sqrt(errSum) / math.Sqrt2
}

// klDivergence returns the Kullback–Leibler divergence, which is
// non-symmetric! This is strictly a subroutine for JS Divergence.
// klDivergence(P, Q) <==> D_{KL}(P || Q). Empty bins of P contribute 0.
func klDivergence(v1 []float64, v2 []float64) float64 {
	diverge := 0.0
	for i, p1 := range v1 {
		if p1 <= 0 {
			continue
		}
		diverge += p1 * math.Log2(p1/v2[i])
	}
	return diverge
}

// JSDivergence returns the Jensen-Shannon divergence, which is a
// symmetric generalization of the KL divergence
func JSDivergence(p1 []float64, p2 []float64) float64 {
	mid := make([]float64, len(p1))
	for i, a := range p1 {
		mid[i] = (a + p2[i]) * 0.5
	}
	return 0.5 * (klDivergence(p1, mid) + klDivergence(p2, mid))
}
