package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/easterhanu/practicalmachinelearning/pkg/telemetry"
)

// Stage is one named step of a run. Stages read and extend the shared State.
type Stage interface {
	Name() string
	Run(ctx context.Context, st *State) error
}

type stageFunc struct {
	name string
	fn   func(ctx context.Context, st *State) error
}

func (s stageFunc) Name() string                             { return s.name }
func (s stageFunc) Run(ctx context.Context, st *State) error { return s.fn(ctx, st) }

// NewStage wraps fn as a Stage.
func NewStage(name string, fn func(ctx context.Context, st *State) error) Stage {
	return stageFunc{name: name, fn: fn}
}

// Pipeline chains multiple stages.
type Pipeline struct {
	stages []Stage
}

func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Stages returns the stage names in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes the stages in order and stops at the first error. Each stage
// runs in its own span and its wall time is recorded in st.Metrics.
func (p *Pipeline) Run(ctx context.Context, st *State) error {
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		if err := p.runStage(ctx, stage, st); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, st *State) error {
	name := stage.Name()
	ctx, span := telemetry.Tracer().Start(ctx, "stage."+name)
	defer span.End()
	span.SetAttributes(attribute.String("run_id", st.RunID))

	logger := st.logger().With(slog.String("stage", name))
	logger.Debug("stage started")
	start := time.Now()

	err := stage.Run(ctx, st)
	elapsed := time.Since(start)
	if st.Metrics != nil {
		st.Metrics.ObserveStage(name, elapsed)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("stage failed", slog.Duration("duration", elapsed), slog.String("error", err.Error()))
		return fmt.Errorf("stage %s: %w", name, err)
	}
	logger.Info("stage finished", slog.Duration("duration", elapsed))
	return nil
}
