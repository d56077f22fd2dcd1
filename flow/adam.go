package flow

import "math"

// adam is the Adam optimizer over a fixed list of parameter slices. The
// moment estimates persist across Train calls.
type adam struct {
	lr  float64
	b1  float64
	b2  float64
	eps float64
	t   int
	m   [][]float64
	v   [][]float64
}

func newAdam(lr, b1 float64, params [][]float64) *adam {
	a := &adam{
		lr:  lr,
		b1:  b1,
		b2:  0.999,
		eps: 1e-8,
		m:   make([][]float64, len(params)),
		v:   make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p))
		a.v[i] = make([]float64, len(p))
	}
	return a
}

func (a *adam) step(params, grads [][]float64) {
	a.t++
	c1 := 1 - math.Pow(a.b1, float64(a.t))
	c2 := 1 - math.Pow(a.b2, float64(a.t))

	for i, p := range params {
		g, m, v := grads[i], a.m[i], a.v[i]
		for j := range p {
			m[j] = a.b1*m[j] + (1-a.b1)*g[j]
			v[j] = a.b2*v[j] + (1-a.b2)*g[j]*g[j]
			p[j] -= a.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.eps)
		}
	}
}

// clipNorm rescales grads so their global L2 norm is at most max. A max of
// zero or less disables clipping. The norm before clipping is returned.
func clipNorm(grads [][]float64, max float64) float64 {
	sq := 0.0
	for _, g := range grads {
		for _, v := range g {
			sq += v * v
		}
	}
	norm := math.Sqrt(sq)

	if max > 0 && norm > max {
		s := max / norm
		for _, g := range grads {
			for j := range g {
				g[j] *= s
			}
		}
	}
	return norm
}
