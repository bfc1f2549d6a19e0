// Package metrics exports Prometheus metrics for macro runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeeftor/rowpilot/internal/engine"
)

const namespace = "rowpilot"

var states = []engine.State{
	engine.StateIdle,
	engine.StateRunning,
	engine.StatePaused,
	engine.StateStopping,
	engine.StateError,
}

// Observer turns engine events into metrics on its own registry
type Observer struct {
	registry *prometheus.Registry

	// RowsTotal counts completed rows by outcome
	RowsTotal *prometheus.CounterVec
	// RowDuration tracks how long each row took
	RowDuration prometheus.Histogram
	// StepsTotal counts executed steps by kind and outcome
	StepsTotal *prometheus.CounterVec
	// StepDuration tracks step duration including retries
	StepDuration *prometheus.HistogramVec
	// StepRetries counts attempts beyond the first
	StepRetries *prometheus.CounterVec
	// RunsTotal counts finished runs by outcome
	RunsTotal *prometheus.CounterVec
	// State is 1 for the controller's current state
	State *prometheus.GaugeVec
}

var _ engine.Observer = (*Observer)(nil)

// New registers the run metrics on a fresh registry
func New() *Observer {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	o := &Observer{
		registry: reg,
		RowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "rows_total",
			Help:      "Total number of rows processed by outcome",
		}, []string{"outcome"}),
		RowDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "row_duration_seconds",
			Help:      "Duration of row executions in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),
		StepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "step",
			Name:      "executions_total",
			Help:      "Total number of step executions by kind and outcome",
		}, []string{"kind", "outcome"}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "step",
			Name:      "duration_seconds",
			Help:      "Duration of step executions in seconds, retries included",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		StepRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "step",
			Name:      "retries_total",
			Help:      "Total number of step attempts beyond the first",
		}, []string{"kind"}),
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of runs by outcome",
		}, []string{"outcome"}),
		State: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "state",
			Help:      "1 for the controller's current state, 0 otherwise",
		}, []string{"state"}),
	}
	o.setState(engine.StateIdle)
	return o
}

// Registry returns the registry the metrics live on
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the metrics in the Prometheus text format
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

func (o *Observer) OnEvent(e engine.Event) {
	switch e.Type {
	case engine.EventStateChanged:
		o.setState(e.State)
	case engine.EventStepCompleted:
		if e.Step == nil {
			return
		}
		o.StepsTotal.WithLabelValues(e.Step.Kind, outcome(e.Step.Success)).Inc()
		o.StepDuration.WithLabelValues(e.Step.Kind).Observe(e.Step.Duration.Seconds())
		if e.Step.Attempts > 1 {
			o.StepRetries.WithLabelValues(e.Step.Kind).Add(float64(e.Step.Attempts - 1))
		}
	case engine.EventRowCompleted:
		if e.Result == nil {
			return
		}
		label := outcome(e.Result.Success)
		if e.Result.Aborted {
			label = "aborted"
		}
		o.RowsTotal.WithLabelValues(label).Inc()
		o.RowDuration.Observe(e.Result.Duration.Seconds())
	case engine.EventRunFinished:
		o.RunsTotal.WithLabelValues("finished").Inc()
	case engine.EventRunError:
		o.RunsTotal.WithLabelValues("error").Inc()
	}
}

func (o *Observer) setState(current engine.State) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		o.State.WithLabelValues(s.String()).Set(v)
	}
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
