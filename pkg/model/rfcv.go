package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/easterhanu/practicalmachinelearning/pkg/dataprep"
	"github.com/easterhanu/practicalmachinelearning/pkg/loader"
)

// CVOptions configures random-forest cross-validation for feature selection.
type CVOptions struct {
	Folds int
	// Step is the fraction of variables kept at each reduction on the "log"
	// scale, or the number removed at each reduction on the "step" scale.
	Step      float64
	Scale     string
	Recursive bool

	Trees          int
	MinSamplesLeaf int
	Seed           int64
	Workers        int

	// Mtry picks the features tried per split for p variables; nil uses DefaultMtry.
	Mtry func(p int) int
}

// CVResult is the cross-validated error for each candidate variable count.
type CVResult struct {
	NVar    []int
	ErrorCV []float64
	// Predicted holds, per entry of NVar, the held-out prediction of every row.
	Predicted [][]int
}

// NVarSequence returns the decreasing variable counts evaluated for p features.
// On the log scale the counts are p*step^i rounded half to even, deduplicated,
// and always end in 1.
func NVarSequence(p int, step float64, scale string) ([]int, error) {
	if p < 1 {
		return nil, ErrEmptyInput
	}
	switch scale {
	case "log", "":
		if step <= 0 || step >= 1 {
			return nil, fmt.Errorf("rfcv: log-scale step must be in (0, 1), got %g", step)
		}
		k := int(math.Floor(math.Log(float64(p)) / math.Log(1/step)))
		var out []int
		for i := 0; i < k; i++ {
			n := int(math.RoundToEven(float64(p) * math.Pow(step, float64(i))))
			if len(out) > 0 && out[len(out)-1] == n {
				continue
			}
			out = append(out, n)
		}
		if len(out) == 0 || out[len(out)-1] != 1 {
			out = append(out, 1)
		}
		return out, nil
	case "step":
		s := int(step)
		if s < 1 {
			return nil, fmt.Errorf("rfcv: step-scale step must be at least 1, got %g", step)
		}
		var out []int
		for n := p; n >= 1; n -= s {
			out = append(out, n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("rfcv: unknown scale %q", scale)
}

// RFCV estimates the cross-validated error of random forests trained on
// progressively fewer features. In each fold a forest on all features ranks
// them by permutation importance; smaller forests are then trained on the top
// ranked features only and predict the held-out rows.
func RFCV(ctx context.Context, X [][]float64, y []int, opts CVOptions) (CVResult, error) {
	nClasses, err := validateXY(X, y)
	if err != nil {
		return CVResult{}, fmt.Errorf("rfcv: %w", err)
	}
	if opts.Folds < 2 || opts.Folds > len(X) {
		return CVResult{}, fmt.Errorf("rfcv: need 2..%d folds, got %d", len(X), opts.Folds)
	}
	mtry := opts.Mtry
	if mtry == nil {
		mtry = DefaultMtry
	}

	p := len(X[0])
	nvar, err := NVarSequence(p, opts.Step, opts.Scale)
	if err != nil {
		return CVResult{}, err
	}

	n := len(X)
	predicted := make([][]int, len(nvar))
	for k := range predicted {
		predicted[k] = make([]int, n)
	}
	folds := loader.StratifiedFolds(y, opts.Folds, rand.New(rand.NewSource(opts.Seed)))

	g, gctx := errgroup.WithContext(ctx)
	for fold := 0; fold < opts.Folds; fold++ {
		g.Go(func() error {
			var trainRows, testRows []int
			for i, f := range folds {
				if f == fold {
					testRows = append(testRows, i)
				} else {
					trainRows = append(trainRows, i)
				}
			}
			return runFold(gctx, X, y, trainRows, testRows, nvar, nClasses, fold, mtry, opts, predicted)
		})
	}
	if err := g.Wait(); err != nil {
		return CVResult{}, fmt.Errorf("rfcv: %w", err)
	}

	errs := make([]float64, len(nvar))
	for k, pred := range predicted {
		wrong := 0
		for i := range y {
			if pred[i] != y[i] {
				wrong++
			}
		}
		errs[k] = float64(wrong) / float64(n)
	}
	return CVResult{NVar: nvar, ErrorCV: errs, Predicted: predicted}, nil
}

// runFold fills predicted[k][row] for the fold's held-out rows. Folds write
// disjoint rows, so no locking is needed.
func runFold(ctx context.Context, X [][]float64, y []int, trainRows, testRows, nvar []int, nClasses, fold int, mtry func(int) int, opts CVOptions, predicted [][]int) error {
	Xtr, ytr := rowsOf(X, y, trainRows)
	Xte, _ := rowsOf(X, y, testRows)

	forest := func(k, p int, importance bool) *RandomForest {
		return NewRandomForest(
			WithNEstimators(opts.Trees),
			WithForestMaxFeatures(mtry(p)),
			WithForestMinSamplesLeaf(max(opts.MinSamplesLeaf, 1)),
			WithForestRandomState(opts.Seed+int64(fold+1)*1_000_003+int64(k)*7_919),
			WithWorkers(opts.Workers),
			WithImportance(importance),
			WithClasses(nClasses),
		)
	}

	all := forest(0, len(X[0]), true)
	if err := all.Fit(ctx, Xtr, ytr); err != nil {
		return fmt.Errorf("fold %d: %w", fold, err)
	}
	pred, err := all.Predict(Xte)
	if err != nil {
		return err
	}
	scatter(predicted[0], testRows, pred)

	// impvar indexes into the current feature subset; cols maps it back to X.
	impvar := RankByImportance(all.MeanDecreaseAccuracy())
	cols := make([]int, len(X[0]))
	for j := range cols {
		cols[j] = j
	}
	for k := 1; k < len(nvar); k++ {
		keep := make([]int, nvar[k])
		for j := range keep {
			keep[j] = cols[impvar[j]]
		}
		sub := forest(k, nvar[k], opts.Recursive)
		if err := sub.Fit(ctx, dataprep.FeatureSelect(Xtr, keep), ytr); err != nil {
			return fmt.Errorf("fold %d, %d variables: %w", fold, nvar[k], err)
		}
		pred, err := sub.Predict(dataprep.FeatureSelect(Xte, keep))
		if err != nil {
			return err
		}
		scatter(predicted[k], testRows, pred)

		if opts.Recursive {
			cols = keep
			impvar = RankByImportance(sub.MeanDecreaseAccuracy())
		}
	}
	return nil
}

// RankByImportance returns feature indices ordered by decreasing importance;
// ties keep their original order.
func RankByImportance(importance []float64) []int {
	idx := make([]int, len(importance))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return importance[idx[a]] > importance[idx[b]] })
	return idx
}

func rowsOf(X [][]float64, y []int, rows []int) ([][]float64, []int) {
	Xs := make([][]float64, len(rows))
	ys := make([]int, len(rows))
	for i, r := range rows {
		Xs[i] = X[r]
		ys[i] = y[r]
	}
	return Xs, ys
}

func scatter(dst []int, rows []int, vals []int) {
	for i, r := range rows {
		dst[r] = vals[i]
	}
}
