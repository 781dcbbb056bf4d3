package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/easterhanu/practicalmachinelearning/pkg/config"
	"github.com/easterhanu/practicalmachinelearning/pkg/telemetry"
)

var timeNow = time.Now

// Run executes the default stages once with cfg. The returned state is partial
// when err is non-nil. Metrics are written to the configured textfile whether
// or not the run succeeded.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*State, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	st := &State{
		Config:  cfg,
		RunID:   runID,
		Logger:  logger.With(slog.String("run_id", runID)),
		Metrics: telemetry.NewMetrics(runID),
	}

	st.Logger.Info("report run started",
		slog.String("train", cfg.Data.TrainPath),
		slog.String("test", cfg.Data.TestPath),
		slog.String("output", cfg.Output.Dir))
	start := time.Now()
	err := NewPipeline(DefaultStages()...).Run(ctx, st)

	if path := cfg.Telemetry.MetricsFile; path != "" {
		if werr := st.Metrics.WriteTextfile(path); werr != nil {
			st.Logger.Warn("metrics not written", slog.String("path", path), slog.String("error", werr.Error()))
		}
	}
	if err != nil {
		return st, err
	}
	st.Logger.Info("report run finished", slog.Duration("duration", time.Since(start)))
	return st, nil
}
