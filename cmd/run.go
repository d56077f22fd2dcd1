package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/moonflow/evidence"
	"github.com/CraigKelly/moonflow/model"
	"github.com/CraigKelly/moonflow/sampler"
	"github.com/CraigKelly/moonflow/viz"
)

// Evidence model names for --model
const (
	KDE    = "kde"
	SPHERE = "sphere"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sample the target, estimate its evidence and plot the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		sp, err := newStartupParams(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer sp.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		return RunPipeline(ctx, sp)
	},
}

func init() {
	fs := runCmd.Flags()
	addSamplerFlags(fs)
	fs.String("model", KDE, "Evidence model: kde or sphere")
	fs.Float64("diameter", 0.003, "Kernel diameter for the kde model (unit box scale)")
	fs.Float64("split", 0.2, "Proportion of the evidence samples used to fit the model")
	fs.String("out", ".", "Directory for the PNG plots; empty skips plotting")
	addGridFlags(fs)
	rootCmd.AddCommand(runCmd)
}

// loopLog reports every sampler loop to the output and trace loggers
type loopLog struct {
	sp *startupParams
}

type loopTrace struct {
	Loop             int       `json:"loop"`
	LocalAcceptance  float64   `json:"local_acceptance"`
	GlobalAcceptance float64   `json:"global_acceptance"`
	Losses           []float64 `json:"losses,omitempty"`
	Seconds          float64   `json:"seconds"`
}

func (l loopLog) ObserveLoop(stats sampler.LoopStats) {
	sp := l.sp
	if sp.verbose {
		for i, loss := range stats.Losses {
			sp.out.Printf("  Loop %d epoch %d loss %.5f\n", stats.Loop, i, loss)
		}
	}

	lossText := "n/a"
	if len(stats.Losses) > 0 {
		lossText = formatFloat(stats.Losses[len(stats.Losses)-1])
	}
	sp.out.Printf(
		"Loop %d | local acc %.3f | global acc %.3f | loss %s | %v\n",
		stats.Loop, stats.LocalAcceptance, stats.GlobalAcceptance, lossText, stats.Elapsed.Round(time.Millisecond),
	)

	sp.traceJSON(loopTrace{
		Loop:             stats.Loop,
		LocalAcceptance:  stats.LocalAcceptance,
		GlobalAcceptance: stats.GlobalAcceptance,
		Losses:           stats.Losses,
		Seconds:          stats.Elapsed.Seconds(),
	})
}

// observers fans loop stats out to several observers
type observers []sampler.Observer

func (obs observers) ObserveLoop(stats sampler.LoopStats) {
	for _, o := range obs {
		o.ObserveLoop(stats)
	}
}

type evidenceTrace struct {
	Model      string  `json:"model"`
	TrainCount int     `json:"train_samples"`
	TestCount  int     `json:"test_samples"`
	Evidence   float64 `json:"evidence"`
	Std        float64 `json:"std"`
	LnEvidence float64 `json:"ln_evidence"`
	LnStd      float64 `json:"ln_std"`
	Grid       float64 `json:"grid,omitempty"`
}

// newEvidenceModel returns the named unfitted evidence model
func newEvidenceModel(name string, ndim int, diameter float64) (evidence.Model, error) {
	switch strings.ToLower(name) {
	case KDE:
		return evidence.NewKernelDensityEstimate(ndim, diameter)
	case SPHERE:
		return evidence.NewHyperSphere(ndim)
	}
	return nil, errors.Errorf("Unknown evidence model %q", name)
}

// RunPipeline samples the target, reports on the flow, estimates the
// evidence and writes the plots
func RunPipeline(ctx context.Context, sp *startupParams) error {
	cfg := samplerConfig()

	target, err := model.NewTarget(settings.GetString("target"), cfg.NDim, settings.GetBool("smear-second"))
	if err != nil {
		return err
	}

	samp, err := sampler.New(cfg, target)
	if err != nil {
		return err
	}
	defer samp.Close()

	obs := observers{loopLog{sp: sp}}
	if sp.monitorAddr != "" {
		mon := newMonitor(cfg)
		if err := mon.Start(sp.monitorAddr); err != nil {
			return err
		}
		defer mon.Stop()
		obs = append(obs, mon)
	}
	samp.Observer = obs

	sp.out.Printf("Sampling %s (dim %d) with %d chains for %d loops\n", settings.GetString("target"), cfg.NDim, cfg.NChains, cfg.NLoop)
	initial := sampler.InitialPositions(samp.Keys.Master, cfg.NChains, cfg.NDim)
	started := time.Now()
	if err := samp.Sample(ctx, initial); err != nil {
		return err
	}
	sp.out.Printf("Sampling done in %v\n", time.Since(started).Round(time.Millisecond))

	st := samp.State()
	nChains, nSteps, nDim := st.Shape()
	sp.out.Printf("chains:      (%d, %d, %d)\n", nChains, nSteps, nDim)
	sp.out.Printf("log_prob:    (%d, %d)\n", len(st.LogProb), nSteps)
	sp.out.Printf("local_accs:  (%d, %d)\n", len(st.LocalAccs), len(st.LocalAccs[0]))
	sp.out.Printf("global_accs: (%d, %d)\n", len(st.GlobalAccs), len(st.GlobalAccs[0]))
	sp.out.Printf("loss_vals:   (%d,)\n", len(st.LossVals))

	// Evidence works on the final loop of every chain
	tailSamples, tailLnp, err := st.Tail(cfg.TotalSteps() / cfg.NLoop)
	if err != nil {
		return err
	}
	chains, err := evidence.NewChains(nDim)
	if err != nil {
		return err
	}
	if err := chains.AddChains3D(tailSamples, tailLnp); err != nil {
		return err
	}

	var flowSamples [][]float64
	if cfg.UseGlobal && cfg.FlowSamples > 0 {
		flowSamples, err = samp.SampleFlow(cfg.FlowSamples)
		if err != nil {
			return err
		}
		sp.out.Printf("flow samples: (%d, %d)\n", len(flowSamples), nDim)

		score, err := compareMarginals(chains.Samples, flowSamples)
		if err != nil {
			return errors.Wrap(err, "Could not compare chain and flow marginals")
		}
		errorReport("Chain vs Flow", score, sp.out)
	}

	rec, err := estimateEvidence(sp, chains)
	if err != nil {
		return err
	}

	if nDim == 2 {
		grid, err := evidence.GridEvidence(target, settings.GetFloat64("grid-min"), settings.GetFloat64("grid-max"), settings.GetInt("grid-n"))
		if err != nil {
			return err
		}
		rec.Grid = grid
		sp.out.Printf("evidence (grid):     %s\n", formatFloat(grid))
	}
	sp.traceJSON(rec)

	outDir := settings.GetString("out")
	if outDir == "" {
		return nil
	}
	return writePlots(sp, outDir, st, chains.Samples, flowSamples)
}

// estimateEvidence splits the chains, fits the evidence model and reports
// the estimate
func estimateEvidence(sp *startupParams, chains *evidence.Chains) (*evidenceTrace, error) {
	name := strings.ToLower(settings.GetString("model"))

	train, test, err := evidence.Split(chains, settings.GetFloat64("split"))
	if err != nil {
		return nil, err
	}
	sp.out.Printf("Evidence model %s: %d training and %d test samples\n", name, train.NSamples(), test.NSamples())

	m, err := newEvidenceModel(name, chains.NDim, settings.GetFloat64("diameter"))
	if err != nil {
		return nil, err
	}
	if err := m.Fit(train.Samples, train.LnPosterior); err != nil {
		return nil, errors.Wrap(err, "Could not fit the evidence model")
	}

	ev, err := evidence.NewEvidence(test.NChains(), m)
	if err != nil {
		return nil, err
	}
	if err := ev.AddChains(test); err != nil {
		return nil, err
	}

	evi, std, err := ev.Compute()
	if err != nil {
		return nil, err
	}
	lnEvi, lnStd, err := ev.ComputeLn()
	if err != nil {
		return nil, err
	}

	sp.out.Printf("evidence (harmonic): %s +/- %s\n", formatFloat(evi), formatFloat(std))
	sp.out.Printf("ln evidence:         %s (ln std %s)\n", formatFloat(lnEvi), formatFloat(lnStd))

	return &evidenceTrace{
		Model:      name,
		TrainCount: train.NSamples(),
		TestCount:  test.NSamples(),
		Evidence:   evi,
		Std:        std,
		LnEvidence: lnEvi,
		LnStd:      lnStd,
	}, nil
}

func writePlots(sp *startupParams, outDir string, st *sampler.State, chainSamples, flowSamples [][]float64) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return errors.Wrapf(err, "Could not create output directory %s", outDir)
	}

	labels := make([]string, len(chainSamples[0]))
	for i := range labels {
		labels[i] = model.CoordName(i)
	}

	diag := filepath.Join(outDir, "diagnostics.png")
	if err := viz.Diagnostics(st, diag); err != nil {
		return err
	}
	sp.out.Printf("Wrote %s\n", diag)

	corner := filepath.Join(outDir, "chains.png")
	if err := viz.Corner(chainSamples, labels, "Chain samples", corner); err != nil {
		return err
	}
	sp.out.Printf("Wrote %s\n", corner)

	if len(flowSamples) > 0 {
		flowCorner := filepath.Join(outDir, "flow.png")
		if err := viz.CornerFlow(flowSamples, labels, "Flow samples", flowCorner); err != nil {
			return err
		}
		sp.out.Printf("Wrote %s\n", flowCorner)
	}

	return nil
}
