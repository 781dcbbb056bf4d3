package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"slices"

	"github.com/easterhanu/practicalmachinelearning/pkg/config"
	"github.com/easterhanu/practicalmachinelearning/pkg/data"
	"github.com/easterhanu/practicalmachinelearning/pkg/dataprep"
	"github.com/easterhanu/practicalmachinelearning/pkg/formula"
	"github.com/easterhanu/practicalmachinelearning/pkg/loader"
	"github.com/easterhanu/practicalmachinelearning/pkg/model"
	"github.com/easterhanu/practicalmachinelearning/pkg/report"
	"github.com/easterhanu/practicalmachinelearning/pkg/selection"
	"github.com/easterhanu/practicalmachinelearning/pkg/stats"
)

// Output file names inside the output directory.
const (
	HTMLFile        = "report.html"
	WorkbookFile    = "report.xlsx"
	PredictionsFile = "predictions.csv"
	AnswersDir      = "answers"
	ModelFile       = "model.gob"
)

// DefaultStages returns the report stages in run order.
func DefaultStages() []Stage {
	return []Stage{
		NewStage("load", loadStage),
		NewStage("prune", pruneStage),
		NewStage("encode", encodeStage),
		NewStage("crossvalidate", crossValidateStage),
		NewStage("select", selectStage),
		NewStage("holdout", holdoutStage),
		NewStage("fit", fitStage),
		NewStage("predict", predictStage),
		NewStage("render", renderStage),
	}
}

func loadStage(_ context.Context, st *State) error {
	cfg := st.Config.Data
	opts := data.LoadOptions{NAStrings: cfg.NAStrings}

	train, err := data.LoadCSV(cfg.TrainPath, opts)
	if err != nil {
		return err
	}
	if err := data.RequireColumns(train, cfg.LabelColumn); err != nil {
		return fmt.Errorf("training set: %w", err)
	}
	test, err := data.LoadCSV(cfg.TestPath, opts)
	if err != nil {
		return err
	}
	ids, err := data.Column(test, cfg.IDColumn)
	if err != nil {
		return fmt.Errorf("testing set: %w", err)
	}

	st.TrainRaw, st.TestRaw, st.IDs = train, test, ids
	if st.Metrics != nil {
		st.Metrics.SetRows("train", train.Nrow())
		st.Metrics.SetRows("test", test.Nrow())
	}
	st.logger().Info("data loaded",
		slog.Int("train_rows", train.Nrow()), slog.Int("train_cols", train.Ncol()),
		slog.Int("test_rows", test.Nrow()), slog.Int("test_cols", test.Ncol()))
	return nil
}

func pruneStage(_ context.Context, st *State) error {
	cfg := st.Config
	patterns, err := dataprep.CompilePatterns(cfg.Prune.DropPatterns)
	if err != nil {
		return err
	}
	res, err := dataprep.Prune(st.TrainRaw, st.TestRaw, dataprep.PruneOptions{
		MaxMissingRatio: cfg.Prune.MaxMissingRatio,
		DropPatterns:    patterns,
		LabelColumn:     cfg.Data.LabelColumn,
		IDColumn:        cfg.Data.IDColumn,
	})
	if err != nil {
		return err
	}

	st.Schema = SchemaOf(res.Train)
	if err := st.Schema.Validate(SchemaOf(res.Test)); err != nil {
		return err
	}

	XTrain, err := dataprep.Matrix(res.Train, res.Features)
	if err != nil {
		return err
	}
	XTest, err := dataprep.Matrix(res.Test, res.Features)
	if err != nil {
		return err
	}
	if cfg.Prune.MaxMissingRatio > 0 {
		medians := dataprep.ColumnMedians(XTrain)
		st.Imputed = dataprep.ImputeMedian(XTrain, medians) + dataprep.ImputeMedian(XTest, medians)
	}
	if err := dataprep.CheckComplete(XTrain, res.Features); err != nil {
		return fmt.Errorf("training set: %w", err)
	}
	if err := dataprep.CheckComplete(XTest, res.Features); err != nil {
		return fmt.Errorf("testing set: %w", err)
	}

	st.Pruned, st.XTrain, st.XTest = res, XTrain, XTest
	st.logger().Info("columns pruned",
		slog.Int("features", len(res.Features)),
		slog.Int("dropped_missing", len(res.DroppedMissing)),
		slog.Int("dropped_bookkeeping", len(res.DroppedBookkeeping)),
		slog.Int("imputed", st.Imputed))
	return nil
}

func encodeStage(_ context.Context, st *State) error {
	labels, err := data.Column(st.TrainRaw, st.Config.Data.LabelColumn)
	if err != nil {
		return err
	}
	st.Y, st.Classes = dataprep.LabelEncode(labels)
	if len(st.Classes) < 2 {
		return fmt.Errorf("label %q has %d level(s), need at least 2", st.Config.Data.LabelColumn, len(st.Classes))
	}
	st.logger().Info("labels encoded", slog.Any("classes", st.Classes))
	return nil
}

func crossValidateStage(ctx context.Context, st *State) error {
	cfg := st.Config
	cv, err := model.RFCV(ctx, st.XTrain, st.Y, model.CVOptions{
		Folds:          cfg.CV.Folds,
		Step:           cfg.CV.Step,
		Scale:          cfg.CV.Scale,
		Recursive:      cfg.CV.Recursive,
		Trees:          cfg.CV.Trees,
		MinSamplesLeaf: cfg.Forest.MinSamplesLeaf,
		Seed:           cfg.Forest.Seed,
		Workers:        cfg.Forest.Workers,
	})
	if err != nil {
		return err
	}
	st.CV = cv
	for k, n := range cv.NVar {
		if st.Metrics != nil {
			st.Metrics.SetCVError(n, cv.ErrorCV[k])
		}
		st.logger().Info("cross-validated error", slog.Int("n_var", n), slog.Float64("error_cv", cv.ErrorCV[k]))
	}
	return nil
}

// selectStage ranks every candidate feature with a forest on the full training
// set and keeps the top ones. The count comes from configuration or, when that
// is zero, from the cross-validation curve.
func selectStage(ctx context.Context, st *State) error {
	cfg := st.Config
	features := st.Pruned.Features

	ranker := model.NewRandomForest(append(forestOptions(cfg.Forest, len(st.Classes)),
		model.WithNEstimators(cfg.CV.Trees),
		model.WithForestMaxFeatures(0),
		model.WithImportance(true),
	)...)
	if err := ranker.Fit(ctx, st.XTrain, st.Y); err != nil {
		return fmt.Errorf("ranking forest: %w", err)
	}
	ranking, err := selection.Rank(features, ranker.MeanDecreaseAccuracy())
	if err != nil {
		return err
	}

	n := cfg.Selection.Features
	if n == 0 {
		if n, err = selection.ChooseCount(st.CV, cfg.Selection.Tolerance); err != nil {
			return err
		}
	}
	if n > len(features) {
		return fmt.Errorf("%d features requested, %d candidates after pruning", n, len(features))
	}
	selected, err := selection.Top(ranking, n)
	if err != nil {
		return err
	}

	st.Ranking, st.Selected = ranking, selected
	st.Formula = formula.Format(cfg.Data.LabelColumn, selected)
	if st.Metrics != nil {
		st.Metrics.SetSelectedFeatures(len(selected))
	}
	st.logger().Info("features selected", slog.Int("count", n), slog.String("formula", st.Formula))
	return nil
}

// formulaColumns resolves the formula against the candidate features and
// returns their column indices.
func formulaColumns(st *State) ([]int, error) {
	f, err := formula.Parse(st.Formula)
	if err != nil {
		return nil, err
	}
	if f.Response != st.Config.Data.LabelColumn {
		return nil, fmt.Errorf("%w: response %q, label column is %q", formula.ErrInvalidFormula, f.Response, st.Config.Data.LabelColumn)
	}
	names, err := f.Resolve(st.Pruned.Features)
	if err != nil {
		return nil, err
	}
	return dataprep.IndicesOf(st.Pruned.Features, names)
}

func holdoutStage(ctx context.Context, st *State) error {
	cfg := st.Config
	if cfg.Validation.Holdout == 0 {
		st.logger().Debug("holdout validation disabled")
		return nil
	}
	cols, err := formulaColumns(st)
	if err != nil {
		return err
	}
	X := dataprep.FeatureSelect(st.XTrain, cols)
	rng := rand.New(rand.NewSource(cfg.Forest.Seed))
	XTr, XVal, yTr, yVal := loader.TrainTestSplit(X, st.Y, cfg.Validation.Holdout, rng)
	if len(XVal) == 0 || len(XTr) == 0 {
		return fmt.Errorf("holdout ratio %g leaves an empty split", cfg.Validation.Holdout)
	}

	rf := model.NewRandomForest(forestOptions(cfg.Forest, len(st.Classes))...)
	if err := rf.Fit(ctx, XTr, yTr); err != nil {
		return err
	}
	pred, err := rf.Predict(XVal)
	if err != nil {
		return err
	}
	proba, err := rf.PredictProba(XVal)
	if err != nil {
		return err
	}
	treeAcc, treePruned, err := prunedTreeBaseline(cfg.Forest, XTr, yTr, XVal, yVal, rng)
	if err != nil {
		return fmt.Errorf("tree baseline: %w", err)
	}
	st.Holdout = &report.Holdout{
		Rows:         len(XVal),
		Accuracy:     model.Accuracy(yVal, pred),
		LogLoss:      model.LogLoss(yVal, proba),
		Confusion:    model.ConfusionMatrix(yVal, pred, len(st.Classes)),
		TreeAccuracy: treeAcc,
		TreePruned:   treePruned,
	}
	if st.Metrics != nil {
		st.Metrics.SetHoldoutAccuracy(st.Holdout.Accuracy)
	}
	st.logger().Info("holdout validated",
		slog.Int("rows", len(XVal)),
		slog.Float64("accuracy", st.Holdout.Accuracy),
		slog.Float64("log_loss", st.Holdout.LogLoss),
		slog.Float64("tree_accuracy", treeAcc),
		slog.Int("tree_pruned", treePruned))
	return nil
}

// pruneRatio is the share of the holdout training rows kept back to prune the
// baseline tree.
const pruneRatio = 0.25

// prunedTreeBaseline grows one tree on part of the training rows, prunes it by
// reduced error on the rest and scores it on the held-out rows.
func prunedTreeBaseline(cfg config.ForestConfig, XTr [][]float64, yTr []int, XVal [][]float64, yVal []int, rng *rand.Rand) (float64, int, error) {
	XGrow, XPrune, yGrow, yPrune := loader.TrainTestSplit(XTr, yTr, pruneRatio, rng)
	if len(XGrow) == 0 || len(XPrune) == 0 {
		return 0, 0, fmt.Errorf("%d training rows are too few to prune", len(XTr))
	}
	tree := model.NewDecisionTreeClassifier(
		model.WithMinSamplesLeaf(cfg.MinSamplesLeaf),
		model.WithMaxDepth(cfg.MaxDepth),
		model.WithRandomState(cfg.Seed),
	)
	if err := tree.Fit(XGrow, yGrow); err != nil {
		return 0, 0, err
	}
	pruned, err := tree.PruneReducedError(XPrune, yPrune)
	if err != nil {
		return 0, 0, err
	}
	return model.Accuracy(yVal, tree.Predict(XVal)), pruned, nil
}

func fitStage(ctx context.Context, st *State) error {
	cols, err := formulaColumns(st)
	if err != nil {
		return err
	}
	cfg := st.Config.Forest
	rf := model.NewRandomForest(forestOptions(cfg, len(st.Classes))...)
	if err := rf.Fit(ctx, dataprep.FeatureSelect(st.XTrain, cols), st.Y); err != nil {
		return err
	}
	st.Forest = rf
	st.Mtry = cfg.Mtry
	if st.Mtry <= 0 || st.Mtry > len(cols) {
		st.Mtry = min(model.DefaultMtry(len(cols)), len(cols))
	}
	if st.Metrics != nil {
		st.Metrics.SetOOBError(rf.OOBError())
	}
	st.logger().Info("final forest fitted",
		slog.Int("trees", cfg.Trees), slog.Int("mtry", st.Mtry), slog.Float64("oob_error", rf.OOBError()))
	return nil
}

func predictStage(_ context.Context, st *State) error {
	cols, err := formulaColumns(st)
	if err != nil {
		return err
	}
	codes, err := st.Forest.Predict(dataprep.FeatureSelect(st.XTest, cols))
	if err != nil {
		return err
	}
	if len(codes) != st.TestRaw.Nrow() || len(codes) != len(st.IDs) {
		return fmt.Errorf("%d predictions for %d test rows", len(codes), st.TestRaw.Nrow())
	}
	st.Predictions = dataprep.DecodeLevels(codes, st.Classes)
	st.logger().Info("test cases predicted", slog.Int("rows", len(codes)), slog.Any("predictions", st.Predictions))
	return nil
}

func renderStage(_ context.Context, st *State) error {
	out := st.Config.Output
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	rep := buildReport(st)

	var errs []error
	write := func(name string, fn func(path string) error) {
		path := filepath.Join(out.Dir, name)
		if err := fn(path); err != nil {
			errs = append(errs, err)
			return
		}
		st.Outputs = append(st.Outputs, path)
	}

	write(PredictionsFile, func(path string) error {
		return report.WritePredictionsCSV(path, st.IDs, st.Predictions)
	})
	if out.HTML {
		write(HTMLFile, func(path string) error {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := report.RenderHTML(f, rep, st.logger()); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		})
	}
	if out.Workbook {
		write(WorkbookFile, func(path string) error { return report.WriteWorkbook(path, rep) })
	}
	if out.Model {
		write(ModelFile, func(path string) error { return report.WriteModel(path, st.Forest) })
	}
	if out.AnswerFiles {
		paths, err := report.WriteAnswerFiles(filepath.Join(out.Dir, AnswersDir), st.IDs, st.Predictions)
		if err != nil {
			errs = append(errs, err)
		}
		st.Outputs = append(st.Outputs, paths...)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	st.logger().Info("report written", slog.String("dir", out.Dir), slog.Int("files", len(st.Outputs)))
	return nil
}

func buildReport(st *State) report.Report {
	cfg := st.Config
	cv := make([]report.CVRow, len(st.CV.NVar))
	for k, n := range st.CV.NVar {
		cv[k] = report.CVRow{NVar: n, Error: st.CV.ErrorCV[k]}
	}
	return report.Report{
		Title:     "Weight Lifting Exercise: predicting exercise quality",
		RunID:     st.RunID,
		Generated: timeNow(),
		Data: report.DataSummary{
			TrainPath:          cfg.Data.TrainPath,
			TestPath:           cfg.Data.TestPath,
			TrainRows:          st.TrainRaw.Nrow(),
			TestRows:           st.TestRaw.Nrow(),
			RawColumns:         st.TrainRaw.Ncol(),
			Features:           len(st.Pruned.Features),
			DroppedMissing:     st.Pruned.DroppedMissing,
			DroppedBookkeeping: st.Pruned.DroppedBookkeeping,
			Imputed:            st.Imputed,
		},
		Classes:     st.Classes,
		CV:          cv,
		Importance:  st.Ranking,
		Selected:    st.Selected,
		Summaries:   featureSummaries(st),
		Formula:     st.Formula,
		Trees:       cfg.Forest.Trees,
		Mtry:        st.Mtry,
		OOBError:    st.Forest.OOBError(),
		Confusion:   st.Forest.OOBConfusion(),
		ClassError:  model.ClassError(st.Forest.OOBConfusion()),
		Holdout:     st.Holdout,
		IDs:         st.IDs,
		Predictions: st.Predictions,
	}
}

// featureSummaries describes each selected feature over the training rows.
func featureSummaries(st *State) []report.FeatureSummary {
	out := make([]report.FeatureSummary, 0, len(st.Selected))
	for _, name := range st.Selected {
		j := slices.Index(st.Pruned.Features, name)
		if j < 0 {
			continue
		}
		col := make([]float64, len(st.XTrain))
		for i, row := range st.XTrain {
			col[i] = row[j]
		}
		out = append(out, report.FeatureSummary{Name: name, Summary: stats.Describe(col)})
	}
	return out
}

func forestOptions(cfg config.ForestConfig, nClasses int) []model.RandomForestOption {
	return []model.RandomForestOption{
		model.WithNEstimators(cfg.Trees),
		model.WithForestMaxFeatures(cfg.Mtry),
		model.WithForestMinSamplesLeaf(cfg.MinSamplesLeaf),
		model.WithForestMaxDepth(cfg.MaxDepth),
		model.WithForestRandomState(cfg.Seed),
		model.WithWorkers(cfg.Workers),
		model.WithClasses(nClasses),
	}
}
