package pipeline

import (
	"log/slog"

	"github.com/go-gota/gota/dataframe"

	"github.com/easterhanu/practicalmachinelearning/pkg/config"
	"github.com/easterhanu/practicalmachinelearning/pkg/dataprep"
	"github.com/easterhanu/practicalmachinelearning/pkg/model"
	"github.com/easterhanu/practicalmachinelearning/pkg/report"
	"github.com/easterhanu/practicalmachinelearning/pkg/selection"
	"github.com/easterhanu/practicalmachinelearning/pkg/telemetry"
)

// State is what the stages of one run share. Each stage fills in the fields
// the later ones read.
type State struct {
	Config  *config.Config
	RunID   string
	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	// load
	TrainRaw dataframe.DataFrame
	TestRaw  dataframe.DataFrame
	IDs      []string

	// prune
	Pruned  dataprep.PruneResult
	Schema  Schema
	XTrain  [][]float64
	XTest   [][]float64
	Imputed int

	// encode
	Y       []int
	Classes []string

	// crossvalidate, select
	CV       model.CVResult
	Ranking  []selection.Ranked
	Selected []string
	Formula  string

	// holdout, fit, predict
	Holdout     *report.Holdout
	Forest      *model.RandomForest
	Mtry        int
	Predictions []string

	// render
	Outputs []string
}

func (st *State) logger() *slog.Logger {
	if st.Logger == nil {
		return slog.Default()
	}
	return st.Logger
}
