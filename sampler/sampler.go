// Package sampler drives the flow-enhanced MCMC: every loop runs MALA steps
// on all chains, retrains the normalizing flow on the fresh samples and then
// runs global steps that propose from the flow.
package sampler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/CraigKelly/moonflow/buffer"
	"github.com/CraigKelly/moonflow/flow"
	"github.com/CraigKelly/moonflow/model"
	"github.com/CraigKelly/moonflow/rand"
)

// LoopStats summarizes one outer loop
type LoopStats struct {
	Loop             int
	LocalAcceptance  float64   // mean over chains for this loop's local steps
	GlobalAcceptance float64   // mean over chains for this loop's global steps
	Losses           []float64 // flow loss per epoch for this loop
	Elapsed          time.Duration
}

// Observer gets called after every loop. It runs on the sampling goroutine,
// so it should return quickly.
type Observer interface {
	ObserveLoop(stats LoopStats)
}

// Sampler is the flow-enhanced MCMC driver
type Sampler struct {
	Config   Config
	Target   model.Target
	Flow     *flow.RealNVP
	Keys     *rand.KeySet
	Chains   []*Chain
	Window   *buffer.CircularVec
	LossVals []float64
	Observer Observer

	local   *MALA
	sampled bool
}

// New checks the config and sets up the generators and the flow
func New(cfg Config, target model.Target) (*Sampler, error) {
	if err := cfg.Check(); err != nil {
		return nil, errors.Wrap(err, "Invalid sampler config")
	}
	if target == nil {
		return nil, errors.New("No target density supplied")
	}
	if target.Dim() != cfg.NDim {
		return nil, errors.Errorf("Target has dim %d but config has dim %d", target.Dim(), cfg.NDim)
	}

	local, err := NewMALA(target, cfg.StepSize)
	if err != nil {
		return nil, err
	}

	keys, err := rand.NewKeySet(cfg.NChains, cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "Could not create generators")
	}

	s := &Sampler{
		Config: cfg,
		Target: target,
		Keys:   keys,
		local:  local,
	}

	if cfg.UseGlobal {
		s.Flow, err = flow.New(cfg.NDim, cfg.FlowConfig(), keys.Master)
		if err != nil {
			keys.Close()
			return nil, errors.Wrap(err, "Could not create flow")
		}

		s.Window, err = buffer.NewCircularVec(cfg.NChains*cfg.NLocalSteps, cfg.NDim)
		if err != nil {
			keys.Close()
			return nil, errors.Wrap(err, "Could not create training window")
		}
	}

	return s, nil
}

// Close releases the generators
func (s *Sampler) Close() {
	s.Keys.Close()
}

// InitialPositions draws standard normal start points for every chain
func InitialPositions(gen *rand.Generator, nChains, nDim int) [][]float64 {
	pos := make([][]float64, nChains)
	for i := range pos {
		pos[i] = gen.NormVec(make([]float64, nDim))
	}
	return pos
}

// Sample runs NLoop loops from the given start points. It may only be called
// once per Sampler.
func (s *Sampler) Sample(ctx context.Context, initial [][]float64) error {
	if s.sampled {
		return errors.New("Sample may only be called once")
	}
	s.sampled = true

	cfg := s.Config
	if len(initial) != cfg.NChains {
		return errors.Errorf("Got %d start points for %d chains", len(initial), cfg.NChains)
	}

	s.Chains = make([]*Chain, cfg.NChains)
	for i := range s.Chains {
		ch, err := NewChain(i, s.Target, s.Keys.Chains[i], initial[i], cfg.TotalSteps())
		if err != nil {
			return err
		}
		s.Chains[i] = ch
	}

	for loop := 0; loop < cfg.NLoop; loop++ {
		started := time.Now()
		stats := LoopStats{Loop: loop}

		if err := s.forEachChain(ctx, func(ctx context.Context, ch *Chain) error {
			return ch.LocalSteps(ctx, s.local, cfg.NLocalSteps)
		}); err != nil {
			return errors.Wrapf(err, "Local sampling failed in loop %d", loop)
		}
		stats.LocalAcceptance = s.meanRate(func(ch *Chain) []bool { return ch.LocalAccepts }, cfg.NLocalSteps)

		if cfg.UseGlobal {
			losses, err := s.train()
			if err != nil {
				return errors.Wrapf(err, "Flow training failed in loop %d", loop)
			}
			stats.Losses = losses

			global, err := NewIndependence(s.Target, s.Flow)
			if err != nil {
				return err
			}
			if err := s.forEachChain(ctx, func(ctx context.Context, ch *Chain) error {
				return ch.GlobalSteps(ctx, global, cfg.NGlobalSteps)
			}); err != nil {
				return errors.Wrapf(err, "Global sampling failed in loop %d", loop)
			}
			stats.GlobalAcceptance = s.meanRate(func(ch *Chain) []bool { return ch.GlobalAccepts }, cfg.NGlobalSteps)
		}

		stats.Elapsed = time.Since(started)
		if s.Observer != nil {
			s.Observer.ObserveLoop(stats)
		}
	}

	return nil
}

// forEachChain runs fn for every chain concurrently and returns the first
// error. The other chains see a cancelled context once one fails.
func (s *Sampler) forEachChain(ctx context.Context, fn func(context.Context, *Chain) error) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, ch := range s.Chains {
		ch := ch
		eg.Go(func() error {
			return fn(egCtx, ch)
		})
	}
	return eg.Wait()
}

func (s *Sampler) meanRate(flags func(*Chain) []bool, n int) float64 {
	sum := 0.0
	for _, ch := range s.Chains {
		sum += AcceptanceRate(flags(ch), n)
	}
	return sum / float64(len(s.Chains))
}

// train pushes the latest local samples into the window and refits the flow
func (s *Sampler) train() ([]float64, error) {
	n := s.Config.NLocalSteps
	for _, ch := range s.Chains {
		// The local steps of this loop are the last n recorded positions
		for _, x := range ch.Positions[len(ch.Positions)-n:] {
			if err := s.Window.Add(x); err != nil {
				return nil, err
			}
		}
	}

	losses, err := s.Flow.Train(s.Window.Rows(), s.Config.TrainConfig(), s.Keys.Master)
	if err != nil {
		return nil, err
	}
	s.LossVals = append(s.LossVals, losses...)
	return losses, nil
}

// State returns the chain history and diagnostics
func (s *Sampler) State() *State {
	st := &State{
		Chains:     make([][][]float64, len(s.Chains)),
		LogProb:    make([][]float64, len(s.Chains)),
		LocalAccs:  make([][]bool, len(s.Chains)),
		GlobalAccs: make([][]bool, len(s.Chains)),
		LossVals:   s.LossVals,
	}
	for i, ch := range s.Chains {
		st.Chains[i] = ch.Positions
		st.LogProb[i] = ch.LogProbs
		st.LocalAccs[i] = ch.LocalAccepts
		st.GlobalAccs[i] = ch.GlobalAccepts
	}
	return st
}

// SampleFlow draws n points from the trained flow
func (s *Sampler) SampleFlow(n int) ([][]float64, error) {
	if s.Flow == nil {
		return nil, errors.New("Sampler has no flow: global sampling is disabled")
	}
	xs, _, err := s.Flow.Sample(s.Keys.Master, n)
	if err != nil {
		return nil, errors.Wrap(err, "Could not sample the flow")
	}
	return xs, nil
}
