package rand

import (
	"math"

	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
)

// A Generator uses a goroutine to populate batches of random numbers from a
// 64-bit Mersenne twister. It is safe for concurrent use, but the sampler gives
// every chain its own Generator so that runs are reproducible.
type Generator struct {
	ch   chan int64
	done chan struct{}
}

// NewGenerator starts a new background PRNG based on the given seed
func NewGenerator(seed int64) (*Generator, error) {
	r := mt19937.New()
	r.Seed(seed)
	return start(r), nil
}

// NewGeneratorSlice starts a new background PRNG seeded with the reference
// init_by_array procedure. At least one seed value is required.
func NewGeneratorSlice(seeds []uint64) (*Generator, error) {
	if len(seeds) < 1 {
		return nil, errors.New("At least one seed value is required")
	}

	r := mt19937.New()
	r.SeedFromSlice(seeds)
	return start(r), nil
}

func start(r *mt19937.MT19937) *Generator {
	g := &Generator{
		ch:   make(chan int64, 1024),
		done: make(chan struct{}),
	}

	go func() {
		for {
			select {
			case g.ch <- r.Int63():
			case <-g.done:
				return
			}
		}
	}()

	return g
}

// Close stops the background goroutine. The Generator must not be used after
// Close.
func (g *Generator) Close() {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}

// KeySet is a master generator plus one independent generator per chain.
type KeySet struct {
	Master *Generator
	Chains []*Generator
}

// NewKeySet derives n per-chain generators from a single seed. The master
// generator is seeded directly and the chain seeds are drawn from it.
func NewKeySet(n int, seed int64) (*KeySet, error) {
	if n < 1 {
		return nil, errors.Errorf("Invalid chain count %d for key set", n)
	}

	master, err := NewGenerator(seed)
	if err != nil {
		return nil, err
	}

	ks := &KeySet{
		Master: master,
		Chains: make([]*Generator, n),
	}

	for i := range ks.Chains {
		s := []uint64{uint64(seed), uint64(i), uint64(master.Int63())}
		ks.Chains[i], err = NewGeneratorSlice(s)
		if err != nil {
			ks.Close()
			return nil, errors.Wrapf(err, "Could not seed chain %d", i)
		}
	}

	return ks, nil
}

// Close stops every generator in the set
func (ks *KeySet) Close() {
	if ks.Master != nil {
		ks.Master.Close()
	}
	for _, g := range ks.Chains {
		if g != nil {
			g.Close()
		}
	}
}

// Int63 provides the same interface as Go's math/rand, but with pre-generation.
func (g *Generator) Int63() int64 {
	return <-g.ch
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Intn returns a non-negative int in [0,n)
func (g *Generator) Intn(n int) int {
	if n <= 0 {
		panic("invalid argument to Intn")
	}
	return int(g.Int63n(int64(n)))
}

// Float64 uses the commented, simpler implmentation since we don't have the
// same support requirements for users
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}

// NormFloat64 returns a standard normal deviate using the Marsaglia polar
// method. The second deviate of each pair is discarded so the Generator keeps
// no state between calls.
func (g *Generator) NormFloat64() float64 {
	for {
		u := 2*g.Float64() - 1
		v := 2*g.Float64() - 1
		s := u*u + v*v
		if s > 0 && s < 1 {
			return u * math.Sqrt(-2*math.Log(s)/s)
		}
	}
}

// NormVec fills dst with independent standard normal deviates
func (g *Generator) NormVec(dst []float64) []float64 {
	for i := range dst {
		dst[i] = g.NormFloat64()
	}
	return dst
}

// Perm returns a random permutation of [0,n)
func (g *Generator) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	g.Shuffle(n, func(i, j int) { p[i], p[j] = p[j], p[i] })
	return p
}

// Shuffle is a Fisher-Yates shuffle with the same contract as math/rand
func (g *Generator) Shuffle(n int, swap func(i, j int)) {
	if n < 0 {
		panic("invalid argument to Shuffle")
	}
	for i := n - 1; i > 0; i-- {
		j := g.Intn(i + 1)
		swap(i, j)
	}
}
