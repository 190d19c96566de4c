// Package telemetry provides Prometheus metrics and OpenTelemetry tracing for
// moderation runs. A nil *Provider is valid and records nothing.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "moderation-service"

// Metrics holds all moderation Prometheus metrics
type Metrics struct {
	// Pipeline metrics
	StepDuration *prometheus.HistogramVec
	StepFailures *prometheus.CounterVec

	// Run metrics
	RunDuration      prometheus.Histogram
	RunsFailed       prometheus.Counter
	Decisions        *prometheus.CounterVec
	StageTransitions *prometheus.CounterVec

	// Replacement outcomes (accepted, discarded, upload_failed)
	Replacements *prometheus.CounterVec
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	gatherer prometheus.Gatherer
}

// NewProvider registers all metrics on reg. Tests pass a fresh prometheus.NewRegistry().
func NewProvider(reg *prometheus.Registry) *Provider {
	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  initMetrics(promauto.With(reg)),
		gatherer: reg,
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint
func (p *Provider) Handler() http.Handler {
	if p == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func initMetrics(factory promauto.Factory) *Metrics {
	m := &Metrics{}

	m.StepDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moderation_step_duration_seconds",
		Help:    "Time spent in a single pipeline step",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"step"})

	m.StepFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_step_failures_total",
		Help: "Pipeline steps that failed and were contained",
	}, []string{"step", "kind"})

	m.RunDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderation_run_duration_seconds",
		Help:    "End-to-end duration of a moderation run",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	m.RunsFailed = factory.NewCounter(prometheus.CounterOpts{
		Name: "moderation_runs_failed_total",
		Help: "Moderation runs that ended in the error stage",
	})

	m.Decisions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_decisions_total",
		Help: "Final moderation statuses",
	}, []string{"status"})

	m.StageTransitions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_stage_transitions_total",
		Help: "Stage transitions written to the store",
	}, []string{"stage"})

	m.Replacements = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_image_replacements_total",
		Help: "Outcomes of AI image replacement attempts",
	}, []string{"outcome"})

	return m
}

// RecordStep records the duration of a step and whether it failed.
// kind is "error", "panic" or "" for success.
func (p *Provider) RecordStep(step, kind string, duration time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.StepDuration.WithLabelValues(step).Observe(duration.Seconds())
	if kind != "" {
		p.Metrics.StepFailures.WithLabelValues(step, kind).Inc()
	}
}

// RecordRun records a finished run
func (p *Provider) RecordRun(status string, failed bool, duration time.Duration) {
	if p == nil {
		return
	}
	p.Metrics.RunDuration.Observe(duration.Seconds())
	if failed {
		p.Metrics.RunsFailed.Inc()
		return
	}
	p.Metrics.Decisions.WithLabelValues(status).Inc()
}

// RecordStage counts a stage transition
func (p *Provider) RecordStage(stage string) {
	if p == nil {
		return
	}
	p.Metrics.StageTransitions.WithLabelValues(stage).Inc()
}

// RecordReplacement counts an image replacement outcome
func (p *Provider) RecordReplacement(outcome string) {
	if p == nil {
		return
	}
	p.Metrics.Replacements.WithLabelValues(outcome).Inc()
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p == nil {
		return otel.Tracer(serviceName).Start(ctx, name, trace.WithAttributes(attrs...))
	}
	return p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
