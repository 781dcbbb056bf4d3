package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easterhanu/practicalmachinelearning/pkg/config"
	"github.com/easterhanu/practicalmachinelearning/pkg/dataprep"
	"github.com/easterhanu/practicalmachinelearning/pkg/formula"
	"github.com/easterhanu/practicalmachinelearning/pkg/telemetry"
)

var classes = []string{"A", "B", "C"}

// writeFixtures writes a small training and testing set shaped like the
// sensor data: bookkeeping columns, two informative sensors, two noise
// sensors and one mostly empty summary column. Test rows sit on the class
// centres, so their labels are known.
func writeFixtures(t *testing.T, dir string, dropTestColumn string) (train, test string, want []string) {
	t.Helper()
	rnd := rand.New(rand.NewSource(42))
	header := []string{"", "user_name", "raw_timestamp_part_1", "cvtd_timestamp", "new_window", "num_window",
		"roll_belt", "pitch_belt", "yaw_belt", "noise1", "kurtosis_roll_belt"}

	bookkeeping := func(i int) []string {
		return []string{
			fmt.Sprint(i + 1), []string{"carlitos", "pedro"}[i%2], fmt.Sprint(1323084231 + i),
			"05/12/2011 11:23", []string{"yes", "no"}[min(i%24, 1)], fmt.Sprint(11 + i/24),
		}
	}

	var trainRows [][]string
	trainRows = append(trainRows, append(slices.Clone(header), "classe"))
	for i := range 150 {
		c := i % 3
		kurtosis := ""
		switch {
		case i%24 == 0:
			kurtosis = fmt.Sprintf("%.3f", rnd.NormFloat64())
		case i%24 == 12:
			kurtosis = "#DIV/0!"
		}
		row := append(bookkeeping(i),
			fmt.Sprintf("%.4f", float64(c)*3+rnd.NormFloat64()*0.5),
			fmt.Sprintf("%.4f", -float64(c)*3+rnd.NormFloat64()*0.5),
			fmt.Sprintf("%.4f", rnd.NormFloat64()),
			fmt.Sprintf("%.4f", rnd.NormFloat64()),
			kurtosis,
			classes[c],
		)
		trainRows = append(trainRows, row)
	}

	var testRows [][]string
	testRows = append(testRows, append(slices.Clone(header), "problem_id"))
	for i := range 6 {
		c := i % 3
		row := append(bookkeeping(i),
			fmt.Sprintf("%.4f", float64(c)*3),
			fmt.Sprintf("%.4f", -float64(c)*3),
			fmt.Sprintf("%.4f", rnd.NormFloat64()),
			fmt.Sprintf("%.4f", rnd.NormFloat64()),
			"NA",
			fmt.Sprint(i+1),
		)
		testRows = append(testRows, row)
		want = append(want, classes[c])
	}
	if dropTestColumn != "" {
		col := slices.Index(testRows[0], dropTestColumn)
		require.GreaterOrEqual(t, col, 0)
		for i := range testRows {
			testRows[i] = slices.Delete(testRows[i], col, col+1)
		}
	}

	train = filepath.Join(dir, "pml-training.csv")
	test = filepath.Join(dir, "pml-testing.csv")
	writeCSV(t, train, trainRows)
	writeCSV(t, test, testRows)
	return train, test, want
}

func writeCSV(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
}

func testConfig(t *testing.T, dropTestColumn string) (*config.Config, []string) {
	t.Helper()
	dir := t.TempDir()
	train, test, want := writeFixtures(t, dir, dropTestColumn)

	cfg := config.Default()
	cfg.Data.TrainPath = train
	cfg.Data.TestPath = test
	cfg.Forest.Trees = 30
	cfg.Forest.Workers = 2
	cfg.CV.Folds = 3
	cfg.CV.Trees = 15
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Telemetry.MetricsFile = filepath.Join(dir, "wle.prom")
	require.NoError(t, cfg.Validate())
	return cfg, want
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunEndToEnd(t *testing.T) {
	cfg, want := testConfig(t, "")
	cfg.Validation.Holdout = 0.2

	st, err := Run(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	assert.NotEmpty(t, st.RunID)
	assert.Equal(t, []string{"roll_belt", "pitch_belt", "yaw_belt", "noise1"}, st.Pruned.Features)
	assert.Equal(t, []string{"kurtosis_roll_belt"}, st.Pruned.DroppedMissing)
	assert.Len(t, st.Pruned.DroppedBookkeeping, 6)
	assert.Equal(t, classes, st.Classes)

	assert.Equal(t, []int{4, 2, 1}, st.CV.NVar)
	require.NotEmpty(t, st.Selected)
	assert.Contains(t, []string{"roll_belt", "pitch_belt"}, st.Selected[0])
	f, err := formula.Parse(st.Formula)
	require.NoError(t, err)
	assert.Equal(t, "classe", f.Response)
	assert.Equal(t, st.Selected, f.Terms)

	require.NotNil(t, st.Holdout)
	assert.Equal(t, 30, st.Holdout.Rows)
	assert.Greater(t, st.Holdout.Accuracy, 0.9)
	assert.Greater(t, st.Holdout.TreeAccuracy, 0.8)
	assert.GreaterOrEqual(t, st.Holdout.TreePruned, 0)

	assert.Less(t, st.Forest.OOBError(), 0.1)
	assert.Equal(t, want, st.Predictions)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, st.IDs)

	out := cfg.Output.Dir
	for _, name := range []string{PredictionsFile, HTMLFile, WorkbookFile, ModelFile, filepath.Join(AnswersDir, "problem_id_6.txt")} {
		assert.FileExists(t, filepath.Join(out, name))
		assert.Contains(t, st.Outputs, filepath.Join(out, name))
	}
	assert.Len(t, st.Outputs, 10)

	answer, err := os.ReadFile(filepath.Join(out, AnswersDir, "problem_id_2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "B\n", string(answer))

	metrics, err := os.ReadFile(cfg.Telemetry.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `stage="render"`)
	assert.Contains(t, string(metrics), "wle_oob_error")
}

func TestRunFixedFeatureCount(t *testing.T) {
	cfg, want := testConfig(t, "")
	cfg.Selection.Features = 2
	cfg.Output.HTML, cfg.Output.Workbook, cfg.Output.Model, cfg.Output.AnswerFiles = false, false, false, false

	st, err := Run(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	assert.Len(t, st.Selected, 2)
	f, err := formula.Parse(st.Formula)
	require.NoError(t, err)
	assert.Equal(t, st.Selected, f.Terms)
	assert.Equal(t, want, st.Predictions)
	assert.Nil(t, st.Holdout)
	assert.Equal(t, []string{filepath.Join(cfg.Output.Dir, PredictionsFile)}, st.Outputs)
}

func TestRunImputesSparseColumns(t *testing.T) {
	cfg, _ := testConfig(t, "")
	cfg.Prune.MaxMissingRatio = 0.97
	cfg.Output.HTML, cfg.Output.Workbook, cfg.Output.Model, cfg.Output.AnswerFiles = false, false, false, false

	st, err := Run(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	assert.Contains(t, st.Pruned.Features, "kurtosis_roll_belt")
	assert.Empty(t, st.Pruned.DroppedMissing)
	// 143 training gaps plus 6 all-NA test rows
	assert.Equal(t, 149, st.Imputed)
	assert.Len(t, st.Predictions, len(st.IDs))
	assert.Len(t, st.Predictions, 6)
}

func TestRunErrors(t *testing.T) {
	t.Run("missing training file", func(t *testing.T) {
		cfg, _ := testConfig(t, "")
		cfg.Data.TrainPath = filepath.Join(t.TempDir(), "absent.csv")
		_, err := Run(context.Background(), cfg, quietLogger())
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Contains(t, err.Error(), "stage load")
	})

	t.Run("feature absent from testing set", func(t *testing.T) {
		cfg, _ := testConfig(t, "noise1")
		_, err := Run(context.Background(), cfg, quietLogger())
		assert.ErrorIs(t, err, dataprep.ErrSchemaMismatch)
	})

	t.Run("too many features requested", func(t *testing.T) {
		cfg, _ := testConfig(t, "")
		cfg.Selection.Features = 10
		_, err := Run(context.Background(), cfg, quietLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stage select")
	})

	t.Run("cancelled", func(t *testing.T) {
		cfg, _ := testConfig(t, "")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Run(ctx, cfg, quietLogger())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPipelineStopsAtFirstError(t *testing.T) {
	var ran []string
	stage := func(name string, err error) Stage {
		return NewStage(name, func(context.Context, *State) error {
			ran = append(ran, name)
			return err
		})
	}
	boom := errors.New("boom")
	p := NewPipeline(stage("one", nil), stage("two", boom), stage("three", nil))
	assert.Equal(t, []string{"one", "two", "three"}, p.Stages())

	st := &State{Logger: quietLogger(), Metrics: telemetry.NewMetrics("test")}
	err := p.Run(context.Background(), st)
	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "stage two: boom")
	assert.Equal(t, []string{"one", "two"}, ran)
}

func TestSchemaValidate(t *testing.T) {
	base := Schema{FeatureNames: []string{"a", "b"}, Types: []string{"float", "int"}}

	assert.NoError(t, base.Validate(Schema{FeatureNames: []string{"a", "b"}, Types: []string{"int", "float"}}))
	assert.ErrorIs(t, base.Validate(Schema{FeatureNames: []string{"a"}, Types: []string{"float"}}), dataprep.ErrSchemaMismatch)
	assert.ErrorIs(t, base.Validate(Schema{FeatureNames: []string{"b", "a"}, Types: []string{"float", "int"}}), dataprep.ErrSchemaMismatch)
	assert.ErrorIs(t, base.Validate(Schema{FeatureNames: []string{"a", "b"}, Types: []string{"float", "string"}}), dataprep.ErrSchemaMismatch)
}
