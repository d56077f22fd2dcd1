package cmd

import (
	"github.com/spf13/pflag"

	"github.com/CraigKelly/moonflow/sampler"
)

// addSamplerFlags registers the sampler hyperparameters with the defaults
// of the dual moon run
func addSamplerFlags(fs *pflag.FlagSet) {
	def := sampler.DefaultConfig()

	fs.Int("chains", def.NChains, "Number of chains")
	fs.Int("loops", def.NLoop, "Outer loops of local steps, training and global steps")
	fs.Int("local-steps", def.NLocalSteps, "MALA steps per chain per loop")
	fs.Int("global-steps", def.NGlobalSteps, "Flow proposal steps per chain per loop")
	fs.Float64("step-size", def.StepSize, "MALA step size")
	fs.Float64("learning-rate", def.LearningRate, "Flow learning rate")
	fs.Float64("momentum", def.Momentum, "Flow optimizer momentum (Adam beta1)")
	fs.Int("epochs", def.NEpochs, "Flow training epochs per loop")
	fs.Int("batch-size", def.BatchSize, "Flow training batch size")
	fs.Int("max-train", def.MaxTrainSamples, "Cap on samples used per training round (0 uses all)")
	fs.Float64("clip-norm", def.ClipNorm, "Gradient norm bound for flow training (0 disables)")
	fs.Int("layers", def.NLayers, "Coupling layers in the flow")
	fs.Int("hidden", def.NHidden, "Hidden units per coupling conditioner")
	fs.Float64("scale", def.Scale, "Bound on the log-scale of each coupling layer")
	fs.Int("flow-samples", def.FlowSamples, "Samples drawn from the trained flow for the report and plot")
	fs.Bool("local-only", !def.UseGlobal, "Disable the flow and run plain MALA")
}

// samplerConfig builds the sampler config from the merged settings
func samplerConfig() sampler.Config {
	return sampler.Config{
		NDim:         settings.GetInt("dim"),
		NChains:      settings.GetInt("chains"),
		NLoop:        settings.GetInt("loops"),
		NLocalSteps:  settings.GetInt("local-steps"),
		NGlobalSteps: settings.GetInt("global-steps"),
		StepSize:     settings.GetFloat64("step-size"),

		LearningRate:    settings.GetFloat64("learning-rate"),
		Momentum:        settings.GetFloat64("momentum"),
		NEpochs:         settings.GetInt("epochs"),
		BatchSize:       settings.GetInt("batch-size"),
		MaxTrainSamples: settings.GetInt("max-train"),
		ClipNorm:        settings.GetFloat64("clip-norm"),

		NLayers:     settings.GetInt("layers"),
		NHidden:     settings.GetInt("hidden"),
		Scale:       settings.GetFloat64("scale"),
		FlowSamples: settings.GetInt("flow-samples"),

		Seed:      settings.GetInt64("seed"),
		UseGlobal: !settings.GetBool("local-only"),
	}
}
