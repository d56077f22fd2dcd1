package cmd

import (
	"log"
	"math"
	"strconv"

	"github.com/CraigKelly/moonflow/model"
)

// marginalBins is the histogram resolution for the chain vs flow report
const marginalBins = 50

// errorReport prints an error suite on a -log2 scale (bigger is better)
func errorReport(prefix string, score *model.ErrorSuite, target *log.Logger) {
	target.Printf(
		"%s NLog | MeanAE:%7.3f MaxAE:%7.3f Hel:%7.3f JSD:%7.3f\n",
		prefix,
		-math.Log2(score.MaxMeanAbsError),
		-math.Log2(score.MaxMaxAbsError),
		-math.Log2(score.MaxHellinger),
		-math.Log2(score.MaxJSDiverge),
	)
}

// compareMarginals bins both sample sets over their common range and scores
// the difference of every coordinate
func compareMarginals(chain, flow [][]float64) (*model.ErrorSuite, error) {
	lo, hi, err := model.SampleRange(chain, flow)
	if err != nil {
		return nil, err
	}

	m1, err := model.NewMarginals(chain, lo, hi, marginalBins)
	if err != nil {
		return nil, err
	}
	m2, err := model.NewMarginals(flow, lo, hi, marginalBins)
	if err != nil {
		return nil, err
	}

	return model.NewErrorSuite(m1, m2)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
