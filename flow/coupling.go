package flow

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/moonflow/rand"
)

// coupling is one affine coupling layer. Coordinates with mask 1 pass through
// unchanged and condition a small tanh MLP that produces a log-scale s and a
// shift t for the coordinates with mask 0:
//
//	v = m*u + (1-m)*(u*exp(s) + t),  s = scale*tanh(Ws*h/H + bs),  t = Wt*h/H + bt
//	h = tanh(W1*(m*u) + b1)
//
// The 1/H on the output layer bounds how far one Adam step moves s and t to
// about lr, whatever the hidden width.
type coupling struct {
	mask  []float64
	scale float64
	out   float64 // 1/H

	w1 *mat.Dense // hidden x dim
	b1 []float64
	ws *mat.Dense // dim x hidden
	bs []float64
	wt *mat.Dense // dim x hidden
	bt []float64
}

// layerCache keeps the intermediate values of a batched forward pass that
// backward needs.
type layerCache struct {
	u  *mat.Dense // input
	hm *mat.Dense // masked input
	hh *mat.Dense // hidden activations
	th *mat.Dense // tanh of the raw log-scale
	s  *mat.Dense // log-scale
}

func newCoupling(dim, hidden, parity int, scale float64, gen *rand.Generator) *coupling {
	c := zeroCoupling(dim, hidden, scale)
	for j := range c.mask {
		if (j+parity)%2 == 0 {
			c.mask[j] = 1
		}
	}

	// Input weights are random, output weights zero: the layer starts as the
	// identity but still receives gradient through the output weights.
	if gen != nil {
		std := 1.0 / math.Sqrt(float64(dim))
		w := c.w1.RawMatrix().Data
		for i := range w {
			w[i] = gen.NormFloat64() * std
		}
	}

	return c
}

// zeroCoupling allocates a layer with all parameters zero. It doubles as the
// gradient accumulator for a layer.
func zeroCoupling(dim, hidden int, scale float64) *coupling {
	return &coupling{
		mask:  make([]float64, dim),
		scale: scale,
		out:   1.0 / float64(hidden),
		w1:    mat.NewDense(hidden, dim, nil),
		b1:    make([]float64, hidden),
		ws:    mat.NewDense(dim, hidden, nil),
		bs:    make([]float64, dim),
		wt:    mat.NewDense(dim, hidden, nil),
		bt:    make([]float64, dim),
	}
}

// params returns views of every parameter, in a fixed order
func (c *coupling) params() [][]float64 {
	return [][]float64{
		c.w1.RawMatrix().Data,
		c.b1,
		c.ws.RawMatrix().Data,
		c.bs,
		c.wt.RawMatrix().Data,
		c.bt,
	}
}

func (c *coupling) masked(u *mat.Dense) *mat.Dense {
	hm := mat.DenseCopyOf(u)
	hm.Apply(func(i, j int, v float64) float64 {
		return v * c.mask[j]
	}, hm)
	return hm
}

// condition runs the MLP on the masked input
func (c *coupling) condition(hm *mat.Dense) (hh, th, s, t *mat.Dense) {
	n, dim := hm.Dims()
	hidden, _ := c.w1.Dims()

	hh = mat.NewDense(n, hidden, nil)
	hh.Mul(hm, c.w1.T())
	hh.Apply(func(i, j int, v float64) float64 {
		return math.Tanh(v + c.b1[j])
	}, hh)

	th = mat.NewDense(n, dim, nil)
	th.Mul(hh, c.ws.T())
	th.Apply(func(i, j int, v float64) float64 {
		return math.Tanh(c.out*v + c.bs[j])
	}, th)

	s = mat.NewDense(n, dim, nil)
	s.Scale(c.scale, th)

	t = mat.NewDense(n, dim, nil)
	t.Mul(hh, c.wt.T())
	t.Apply(func(i, j int, v float64) float64 {
		return c.out*v + c.bt[j]
	}, t)

	return hh, th, s, t
}

// forward maps u (data side) to v (latent side). logdet gets log|det dv/du|
// added per row.
func (c *coupling) forward(u *mat.Dense, logdet []float64) (*mat.Dense, *layerCache) {
	n, dim := u.Dims()
	hm := c.masked(u)
	hh, th, s, t := c.condition(hm)

	v := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		ur, sr, tr, vr := u.RawRowView(i), s.RawRowView(i), t.RawRowView(i), v.RawRowView(i)
		for j := 0; j < dim; j++ {
			if c.mask[j] == 1 {
				vr[j] = ur[j]
				continue
			}
			vr[j] = ur[j]*math.Exp(sr[j]) + tr[j]
			logdet[i] += sr[j]
		}
	}

	return v, &layerCache{u: u, hm: hm, hh: hh, th: th, s: s}
}

// inverse maps v back to u. logdet gets log|det du/dv| added per row.
func (c *coupling) inverse(v *mat.Dense, logdet []float64) *mat.Dense {
	n, dim := v.Dims()
	hm := c.masked(v) // the conditioning coordinates are unchanged by forward
	_, _, s, t := c.condition(hm)

	u := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		vr, sr, tr, ur := v.RawRowView(i), s.RawRowView(i), t.RawRowView(i), u.RawRowView(i)
		for j := 0; j < dim; j++ {
			if c.mask[j] == 1 {
				ur[j] = vr[j]
				continue
			}
			ur[j] = (vr[j] - tr[j]) * math.Exp(-sr[j])
			logdet[i] -= sr[j]
		}
	}

	return u
}

// backward takes the loss gradient with respect to the layer output (gv) and
// to each row's log-determinant (gl), accumulates parameter gradients into
// grad and returns the gradient with respect to the layer input.
func (c *coupling) backward(cache *layerCache, gv *mat.Dense, gl []float64, grad *coupling) *mat.Dense {
	n, dim := gv.Dims()
	hidden, _ := c.w1.Dims()

	gu := mat.NewDense(n, dim, nil)
	gsRaw := mat.NewDense(n, dim, nil)
	gt := mat.NewDense(n, dim, nil)

	for i := 0; i < n; i++ {
		gvr, ur, sr, thr := gv.RawRowView(i), cache.u.RawRowView(i), cache.s.RawRowView(i), cache.th.RawRowView(i)
		gur, gsr, gtr := gu.RawRowView(i), gsRaw.RawRowView(i), gt.RawRowView(i)
		for j := 0; j < dim; j++ {
			if c.mask[j] == 1 {
				gur[j] = gvr[j]
				continue
			}
			e := math.Exp(sr[j])
			gs := gvr[j]*ur[j]*e + gl[i]
			gsr[j] = gs * c.scale * (1 - thr[j]*thr[j])
			gtr[j] = gvr[j]
			gur[j] = gvr[j] * e
		}
	}

	// Output layer
	tmp := mat.NewDense(dim, hidden, nil)
	tmp.Mul(gsRaw.T(), cache.hh)
	tmp.Scale(c.out, tmp)
	grad.ws.Add(grad.ws, tmp)
	tmp.Mul(gt.T(), cache.hh)
	tmp.Scale(c.out, tmp)
	grad.wt.Add(grad.wt, tmp)
	addColSums(grad.bs, gsRaw)
	addColSums(grad.bt, gt)

	// Hidden layer
	ga := mat.NewDense(n, hidden, nil)
	ga.Mul(gsRaw, c.ws)
	gat := mat.NewDense(n, hidden, nil)
	gat.Mul(gt, c.wt)
	ga.Add(ga, gat)
	ga.Apply(func(i, j int, v float64) float64 {
		h := cache.hh.At(i, j)
		return c.out * v * (1 - h*h)
	}, ga)

	tmp1 := mat.NewDense(hidden, dim, nil)
	tmp1.Mul(ga.T(), cache.hm)
	grad.w1.Add(grad.w1, tmp1)
	addColSums(grad.b1, ga)

	// Back to the input through the masked coordinates
	ghm := mat.NewDense(n, dim, nil)
	ghm.Mul(ga, c.w1)
	for i := 0; i < n; i++ {
		gur, ghr := gu.RawRowView(i), ghm.RawRowView(i)
		for j := 0; j < dim; j++ {
			gur[j] += c.mask[j] * ghr[j]
		}
	}

	return gu
}

func addColSums(dst []float64, m *mat.Dense) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		for j, v := range m.RawRowView(i) {
			dst[j] += v
		}
	}
}
