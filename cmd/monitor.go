package cmd

import (
	"expvar"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CraigKelly/moonflow/sampler"
)

var (
	progress        = new(expvar.Map).Init()
	publishProgress sync.Once
)

// monitor serves run progress over HTTP: expvar at /debug/vars and
// Prometheus gauges at /metrics. It observes the sampler loops.
type monitor struct {
	stopped chan struct{}
	server  *http.Server
	started time.Time

	Chains      *expvar.Int
	MaxLoops    *expvar.Int
	LocalSteps  *expvar.Int
	GlobalSteps *expvar.Int
	RunTime     *expvar.Float
	Samples     *expvar.Int
	Loops       *expvar.Int

	LastLocalAcceptance  *expvar.Float
	LastGlobalAcceptance *expvar.Float
	LastLoss             *expvar.Float

	registry     *prometheus.Registry
	loopsGauge   prometheus.Gauge
	localGauge   prometheus.Gauge
	globalGauge  prometheus.Gauge
	lossGauge    prometheus.Gauge
	elapsedGauge prometheus.Gauge
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moonflow",
		Name:      name,
		Help:      help,
	})
}

// newMonitor sets up the variables for a run with the given config
func newMonitor(cfg sampler.Config) *monitor {
	m := &monitor{
		Chains:      new(expvar.Int),
		MaxLoops:    new(expvar.Int),
		LocalSteps:  new(expvar.Int),
		GlobalSteps: new(expvar.Int),
		RunTime:     new(expvar.Float),
		Samples:     new(expvar.Int),
		Loops:       new(expvar.Int),

		LastLocalAcceptance:  new(expvar.Float),
		LastGlobalAcceptance: new(expvar.Float),
		LastLoss:             new(expvar.Float),

		registry:     prometheus.NewRegistry(),
		loopsGauge:   newGauge("loops_completed", "Sampler loops completed"),
		localGauge:   newGauge("local_acceptance", "Mean MALA acceptance in the last loop"),
		globalGauge:  newGauge("global_acceptance", "Mean flow proposal acceptance in the last loop"),
		lossGauge:    newGauge("flow_loss", "Flow negative log likelihood after the last epoch"),
		elapsedGauge: newGauge("loop_seconds", "Wall time of the last loop"),
	}

	m.registry.MustRegister(m.loopsGauge, m.localGauge, m.globalGauge, m.lossGauge, m.elapsedGauge)

	m.Chains.Set(int64(cfg.NChains))
	m.MaxLoops.Set(int64(cfg.NLoop))
	m.LocalSteps.Set(int64(cfg.NLocalSteps))
	if cfg.UseGlobal {
		m.GlobalSteps.Set(int64(cfg.NGlobalSteps))
	}

	progress.Set("Chain-Count", m.Chains)
	progress.Set("Max-Loops", m.MaxLoops)
	progress.Set("Local-Steps", m.LocalSteps)
	progress.Set("Global-Steps", m.GlobalSteps)
	progress.Set("Run-Time", m.RunTime)
	progress.Set("Total-Samples", m.Samples)
	progress.Set("Loops", m.Loops)
	progress.Set("Last-Local-Acceptance", m.LastLocalAcceptance)
	progress.Set("Last-Global-Acceptance", m.LastGlobalAcceptance)
	progress.Set("Last-Loss", m.LastLoss)

	publishProgress.Do(func() {
		expvar.Publish("moonflow-progress", progress)
	})

	m.started = time.Now()
	return m
}

// handler routes the monitor endpoints
func (m *monitor) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	// Help the user and redirect to the expvar page
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})
	return mux
}

// ObserveLoop records the stats of a finished sampler loop
func (m *monitor) ObserveLoop(stats sampler.LoopStats) {
	steps := m.LocalSteps.Value() + m.GlobalSteps.Value()

	m.Loops.Set(int64(stats.Loop + 1))
	m.Samples.Add(m.Chains.Value() * steps)
	m.RunTime.Set(time.Since(m.started).Seconds())
	m.LastLocalAcceptance.Set(stats.LocalAcceptance)
	m.LastGlobalAcceptance.Set(stats.GlobalAcceptance)

	m.loopsGauge.Set(float64(stats.Loop + 1))
	m.localGauge.Set(stats.LocalAcceptance)
	m.globalGauge.Set(stats.GlobalAcceptance)
	m.elapsedGauge.Set(stats.Elapsed.Seconds())

	if len(stats.Losses) > 0 {
		last := stats.Losses[len(stats.Losses)-1]
		m.LastLoss.Set(last)
		m.lossGauge.Set(last)
	}
}

// Start begins serving on addr
func (m *monitor) Start(addr string) error {
	if m.server != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Addr:    addr,
		Handler: m.handler(),
	}

	// Actual server that will close the stopped channel on exit
	started := make(chan struct{})
	go func() {
		defer close(m.stopped)
		fmt.Fprintf(os.Stderr, "HTTP now available at %v (see /debug/vars and /metrics)\n", m.server.Addr)
		close(started)
		m.server.ListenAndServe()
	}()

	<-started
	return nil
}

// Stop shuts the server down, waiting a little for it to finish
func (m *monitor) Stop() {
	if m.server == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
