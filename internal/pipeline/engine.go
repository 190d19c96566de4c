// Package pipeline runs the moderation steps over a models.Record.
//
// Steps execute strictly in order. Each step receives the record produced by
// its predecessor and returns an updated copy. A step that returns an error or
// panics is contained: the engine keeps the record from before the step,
// appends a diagnostic and moves on, so a run always terminates with a record
// the decision policy can evaluate.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"moderation-service/internal/models"
	"moderation-service/internal/telemetry"
)

// DefaultStepTimeout bounds a single step when Config.StepTimeout is unset
const DefaultStepTimeout = 60 * time.Second

// StepFunc transforms a record. It must not mutate rec.
type StepFunc func(ctx context.Context, rec models.Record) (models.Record, error)

// Step is a named pipeline stage
type Step struct {
	Name string
	Run  StepFunc
}

// TraceFunc observes the record before and after every step
type TraceFunc func(step string, before, after models.Record)

// Config controls engine behaviour
type Config struct {
	StepTimeout        time.Duration `yaml:"step_timeout"`
	ReanalyzeGenerated bool          `yaml:"reanalyze_generated"`
	MaxImageBytes      int64         `yaml:"max_image_bytes"`
}

// Engine executes a fixed sequence of steps
type Engine struct {
	steps       []Step
	stepTimeout time.Duration
	logger      *zap.Logger
	telemetry   *telemetry.Provider

	// Trace, when set, is called after every step with the intermediate states
	Trace TraceFunc
}

// NewEngine creates an engine over steps. tel may be nil.
func NewEngine(steps []Step, cfg Config, logger *zap.Logger, tel *telemetry.Provider) *Engine {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}

	return &Engine{
		steps:       steps,
		stepTimeout: cfg.StepTimeout,
		logger:      logger,
		telemetry:   tel,
	}
}

// Steps returns the step names in execution order
func (e *Engine) Steps() []string {
	names := make([]string, len(e.steps))
	for i, s := range e.steps {
		names[i] = s.Name
	}
	return names
}

// Run executes every step and returns the final record. It never fails.
func (e *Engine) Run(ctx context.Context, rec models.Record) models.Record {
	for _, step := range e.steps {
		before := rec
		rec = e.runContained(ctx, step, rec)

		if e.Trace != nil {
			e.Trace(step.Name, before, rec)
		}
	}
	return rec
}

func (e *Engine) runContained(ctx context.Context, step Step, rec models.Record) models.Record {
	ctx, span := e.telemetry.StartSpan(ctx, "moderation.step."+step.Name,
		attribute.String("submission.id", rec.SubmissionID),
		attribute.String("submission.type", string(rec.Type)),
	)
	defer span.End()

	start := time.Now()
	out, kind, err := e.invoke(ctx, step, rec)
	e.telemetry.RecordStep(step.Name, kind, time.Since(start))

	if err == nil {
		return out
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	e.logger.Error("Pipeline step failed, keeping previous state",
		zap.String("submission_id", rec.SubmissionID),
		zap.String("step", step.Name),
		zap.String("kind", kind),
		zap.Error(err))

	return rec.WithDiagnostic(models.StepDiagnostic{Step: step.Name, Message: err.Error()})
}

// invoke runs a single step under its own timeout, converting panics into errors
func (e *Engine) invoke(ctx context.Context, step Step, rec models.Record) (out models.Record, kind string, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			out, kind, err = rec, "panic", fmt.Errorf("panic in step %s: %v", step.Name, r)
		}
	}()

	out, err = step.Run(ctx, rec)
	if err != nil {
		return rec, "error", err
	}
	return out, "", nil
}
