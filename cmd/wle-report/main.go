// Command wle-report builds the Weight Lifting Exercise classification report:
// it prunes the sensor data, selects features by random-forest
// cross-validation, fits the final forest and predicts the test cases.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/easterhanu/practicalmachinelearning/pkg/config"
	"github.com/easterhanu/practicalmachinelearning/pkg/logging"
	"github.com/easterhanu/practicalmachinelearning/pkg/pipeline"
	"github.com/easterhanu/practicalmachinelearning/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	trainPath := flag.String("train", "", "training CSV (overrides data.train_path)")
	testPath := flag.String("test", "", "testing CSV (overrides data.test_path)")
	outDir := flag.String("out", "", "output directory (overrides output.dir)")
	seed := flag.Int64("seed", 0, "random seed (overrides forest.seed)")
	trees := flag.Int("trees", 0, "trees in the final forest (overrides forest.trees)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Only flags given on the command line override the loaded configuration.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "train":
			cfg.Data.TrainPath = *trainPath
		case "test":
			cfg.Data.TestPath = *testPath
		case "out":
			cfg.Output.Dir = *outDir
		case "seed":
			cfg.Forest.Seed = *seed
		case "trees":
			cfg.Forest.Trees = *trees
		}
	})
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Report failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracing(cfg.Telemetry.Trace, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	st, err := pipeline.Run(ctx, cfg, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Formula: %s\n", st.Formula)
	fmt.Printf("OOB error: %.2f%%\n", 100*st.Forest.OOBError())
	if st.Holdout != nil {
		fmt.Printf("Holdout accuracy: %.2f%% on %d rows\n", 100*st.Holdout.Accuracy, st.Holdout.Rows)
	}
	fmt.Printf("Predictions: %s\n", strings.Join(st.Predictions, " "))
	for _, path := range st.Outputs {
		fmt.Printf("  wrote %s\n", path)
	}
	return nil
}
