package sampler

import (
	"github.com/pkg/errors"

	"github.com/CraigKelly/moonflow/flow"
)

// Config is the fixed set of hyperparameters for a run. It is created once
// at startup and treated as read-only afterwards.
type Config struct {
	NDim         int     // dimensionality of the target
	NChains      int     // independent chains
	NLoop        int     // outer loops of local steps, training, global steps
	NLocalSteps  int     // MALA steps per chain per loop
	NGlobalSteps int     // flow proposal steps per chain per loop
	StepSize     float64 // MALA step size

	LearningRate    float64 // Adam learning rate for the flow
	Momentum        float64 // Adam beta1
	NEpochs         int     // training epochs per loop
	BatchSize       int     // training mini-batch size
	MaxTrainSamples int     // cap on the training window sample; 0 uses all
	ClipNorm        float64 // gradient norm bound; 0 disables

	NLayers     int     // coupling layers in the flow
	NHidden     int     // hidden units per conditioner
	Scale       float64 // log-scale bound per coupling layer
	FlowSamples int     // samples drawn from the trained flow for inspection

	Seed      int64
	UseGlobal bool // false runs plain MALA with no flow
}

// DefaultConfig is the dual moon demo setup
func DefaultConfig() Config {
	return Config{
		NDim:         2,
		NChains:      100,
		NLoop:        3,
		NLocalSteps:  1000,
		NGlobalSteps: 1000,
		StepSize:     0.01,

		LearningRate:    0.1,
		Momentum:        0.9,
		NEpochs:         5,
		BatchSize:       50,
		MaxTrainSamples: 0,
		ClipNorm:        5.0,

		NLayers:     10,
		NHidden:     64,
		Scale:       1.0,
		FlowSamples: 100,

		Seed:      42,
		UseGlobal: true,
	}
}

// FlowConfig is the flow architecture part of the config
func (c Config) FlowConfig() flow.Config {
	return flow.Config{
		NLayers: c.NLayers,
		NHidden: c.NHidden,
		Scale:   c.Scale,
	}
}

// TrainConfig is the flow training part of the config
func (c Config) TrainConfig() flow.TrainConfig {
	return flow.TrainConfig{
		LearningRate: c.LearningRate,
		Momentum:     c.Momentum,
		NEpochs:      c.NEpochs,
		BatchSize:    c.BatchSize,
		MaxSamples:   c.MaxTrainSamples,
		ClipNorm:     c.ClipNorm,
	}
}

// TotalSteps is the number of recorded positions per chain after Sample
func (c Config) TotalSteps() int {
	steps := c.NLocalSteps
	if c.UseGlobal {
		steps += c.NGlobalSteps
	}
	return c.NLoop * steps
}

// Check returns an error if the config can not drive a run
func (c Config) Check() error {
	if c.NDim < 1 {
		return errors.Errorf("Invalid dimension %d", c.NDim)
	}
	if c.NChains < 1 {
		return errors.Errorf("Invalid chain count %d", c.NChains)
	}
	if c.NLoop < 1 {
		return errors.Errorf("Invalid loop count %d", c.NLoop)
	}
	if c.NLocalSteps < 1 {
		return errors.Errorf("Invalid local step count %d", c.NLocalSteps)
	}
	if !(c.StepSize > 0) {
		return errors.Errorf("Step size must be positive, got %f", c.StepSize)
	}
	if c.FlowSamples < 0 {
		return errors.Errorf("Invalid flow sample count %d", c.FlowSamples)
	}

	if !c.UseGlobal {
		return nil
	}

	if c.NGlobalSteps < 1 {
		return errors.Errorf("Invalid global step count %d", c.NGlobalSteps)
	}
	if c.NDim < 2 {
		return errors.Errorf("Global flow steps need at least 2 dims, got %d", c.NDim)
	}
	if err := c.FlowConfig().Check(); err != nil {
		return err
	}
	if err := c.TrainConfig().Check(); err != nil {
		return err
	}

	return nil
}
