package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// RandomForest for classification
type RandomForest struct {
	// Hyperparameters / options
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => floor(sqrt(p))
	Criterion       string
	Bootstrap       bool
	RandomState     int64
	Workers         int  // 0 => GOMAXPROCS
	Importance      bool // compute OOB permutation importance during Fit
	NClasses        int  // lower bound on the class count; raised to max(y)+1

	// Internal state
	Trees []*DecisionTreeClassifier

	nFeatures int
	oob       oobSummary
	gini      []float64
	mda       []float64
}

// oobSummary is the out-of-bag evaluation gathered during Fit.
type oobSummary struct {
	pred      []int // -1 for rows that were in every bootstrap
	errRate   float64
	confusion [][]int
}

var _ Classifier = (*RandomForest)(nil)

// RandomForestOption functional config for RandomForest
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithBootstrap(b bool) RandomForestOption  { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithForestMaxFeatures(k int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxFeatures = k }
}
func WithForestMaxDepth(d int) RandomForestOption { return func(rf *RandomForest) { rf.MaxDepth = d } }
func WithForestMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForest) { rf.MinSamplesLeaf = n }
}
func WithForestRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForest) { rf.RandomState = seed }
}
func WithWorkers(n int) RandomForestOption     { return func(rf *RandomForest) { rf.Workers = n } }
func WithImportance(on bool) RandomForestOption { return func(rf *RandomForest) { rf.Importance = on } }
func WithClasses(k int) RandomForestOption     { return func(rf *RandomForest) { rf.NClasses = k } }

// NewRandomForest initializes the forest with sensible defaults.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		Criterion:       "gini",
		Bootstrap:       true,
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// DefaultMtry is the classification default for features tried per split.
func DefaultMtry(p int) int {
	return max(1, int(math.Floor(math.Sqrt(float64(p)))))
}

// treeResult is what one goroutine hands back for one tree.
type treeResult struct {
	oobPred []int     // -1 where the row was in the bag
	mda     []float64 // accuracy drop per permuted feature, nil when disabled
}

// Fit trains the random forest. Tree i draws its bootstrap and feature subsets
// from a source seeded with RandomState+i, so a fit is reproducible for a given
// seed whatever the worker count.
func (rf *RandomForest) Fit(ctx context.Context, X [][]float64, y []int) error {
	nClasses, err := validateXY(X, y)
	if err != nil {
		return fmt.Errorf("randomforest: %w", err)
	}
	if rf.NEstimators < 1 {
		return fmt.Errorf("randomforest: need at least one tree, got %d", rf.NEstimators)
	}
	nClasses = max(nClasses, rf.NClasses)
	rf.NClasses = nClasses
	n, p := len(X), len(X[0])
	rf.nFeatures = p

	mtry := rf.MaxFeatures
	if mtry <= 0 {
		mtry = DefaultMtry(p)
	}
	mtry = min(mtry, p)

	rf.Trees = make([]*DecisionTreeClassifier, rf.NEstimators)
	results := make([]treeResult, rf.NEstimators)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rf.workers())
	for i := 0; i < rf.NEstimators; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seed := rf.RandomState + int64(i)
			treeRand := rand.New(rand.NewSource(seed))

			// Bootstrap sampling: an index slice, not a copy of the data.
			sample := make([]int, n)
			inBag := make([]bool, n)
			for j := range sample {
				if rf.Bootstrap {
					sample[j] = treeRand.Intn(n)
				} else {
					sample[j] = j
				}
				inBag[sample[j]] = true
			}

			tree := NewDecisionTreeClassifier(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMinSamplesLeaf(rf.MinSamplesLeaf),
				WithCriterion(rf.Criterion),
				WithMaxFeatures(mtry),
				WithRandomState(treeRand.Int63()),
			)
			tree.fitSample(X, y, sample, nClasses)
			rf.Trees[i] = tree

			res := treeResult{oobPred: make([]int, n)}
			var oobRows []int
			for j := range X {
				if inBag[j] {
					res.oobPred[j] = -1
					continue
				}
				res.oobPred[j] = tree.leaf(X[j]).Pred
				oobRows = append(oobRows, j)
			}
			if rf.Importance {
				res.mda = permutationDrop(tree, X, y, oobRows, res.oobPred, treeRand)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		rf.Trees = nil
		return fmt.Errorf("randomforest: %w", err)
	}

	rf.summarize(y, results)
	return nil
}

func (rf *RandomForest) workers() int {
	if rf.Workers > 0 {
		return rf.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// summarize folds the per-tree results into OOB error and importances.
func (rf *RandomForest) summarize(y []int, results []treeResult) {
	n := len(y)
	votes := make([][]int, n)
	for i := range votes {
		votes[i] = make([]int, rf.NClasses)
	}
	for _, r := range results {
		for i, c := range r.oobPred {
			if c >= 0 {
				votes[i][c]++
			}
		}
	}

	pred := make([]int, n)
	confusion := newConfusion(rf.NClasses)
	wrong, counted := 0, 0
	for i, v := range votes {
		total := 0
		for _, c := range v {
			total += c
		}
		if total == 0 {
			pred[i] = -1
			continue
		}
		pred[i] = argmax(v)
		confusion[y[i]][pred[i]]++
		counted++
		if pred[i] != y[i] {
			wrong++
		}
	}
	errRate := 0.0
	if counted > 0 {
		errRate = float64(wrong) / float64(counted)
	}
	rf.oob = oobSummary{pred: pred, errRate: errRate, confusion: confusion}

	rf.gini = make([]float64, rf.nFeatures)
	for _, t := range rf.Trees {
		for j, v := range t.importances {
			rf.gini[j] += v
		}
	}
	for j := range rf.gini {
		rf.gini[j] /= float64(len(rf.Trees))
	}

	rf.mda = nil
	if rf.Importance {
		rf.mda = make([]float64, rf.nFeatures)
		for _, r := range results {
			for j, v := range r.mda {
				rf.mda[j] += v
			}
		}
		for j := range rf.mda {
			rf.mda[j] /= float64(len(results))
		}
	}
}

// permutationDrop measures, for each feature, how much the tree's OOB accuracy
// falls when that feature's values are shuffled among the OOB rows.
func permutationDrop(tree *DecisionTreeClassifier, X [][]float64, y []int, oobRows []int, oobPred []int, rnd *rand.Rand) []float64 {
	p := len(X[0])
	drop := make([]float64, p)
	if len(oobRows) == 0 {
		return drop
	}
	base := 0
	for _, i := range oobRows {
		if oobPred[i] == y[i] {
			base++
		}
	}
	row := make([]float64, p)
	for j := 0; j < p; j++ {
		perm := rnd.Perm(len(oobRows))
		correct := 0
		for k, i := range oobRows {
			copy(row, X[i])
			row[j] = X[oobRows[perm[k]]][j]
			if tree.leaf(row).Pred == y[i] {
				correct++
			}
		}
		drop[j] = float64(base-correct) / float64(len(oobRows))
	}
	return drop
}

// Predict returns the majority vote of all trees; ties go to the lowest class code.
func (rf *RandomForest) Predict(X [][]float64) ([]int, error) {
	votes, err := rf.votes(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(X))
	for i, v := range votes {
		out[i] = argmax(v)
	}
	return out, nil
}

// PredictProba returns the fraction of trees voting for each class.
func (rf *RandomForest) PredictProba(X [][]float64) ([][]float64, error) {
	votes, err := rf.votes(X)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(X))
	for i, v := range votes {
		out[i] = make([]float64, len(v))
		for c, n := range v {
			out[i][c] = float64(n) / float64(len(rf.Trees))
		}
	}
	return out, nil
}

// votes fans the rows out over workers; each worker walks every tree for its rows.
func (rf *RandomForest) votes(X [][]float64) ([][]int, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotFitted
	}
	for i, row := range X {
		if len(row) != rf.nFeatures {
			return nil, fmt.Errorf("randomforest: row %d has %d features, want %d", i, len(row), rf.nFeatures)
		}
	}

	out := make([][]int, len(X))
	workers := rf.workers()
	chunk := (len(X) + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < len(X); start += chunk {
		end := min(start+chunk, len(X))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				v := make([]int, rf.NClasses)
				for _, t := range rf.Trees {
					v[t.leaf(X[i]).Pred]++
				}
				out[i] = v
			}
		}()
	}
	wg.Wait()
	return out, nil
}

// NumFeatures is the width of the rows the forest was trained on.
func (rf *RandomForest) NumFeatures() int { return rf.nFeatures }

// OOBError is the fraction of rows misclassified by the trees that did not see them.
func (rf *RandomForest) OOBError() float64 { return rf.oob.errRate }

// OOBPredictions returns the OOB vote per training row, -1 where no tree left it out.
func (rf *RandomForest) OOBPredictions() []int { return rf.oob.pred }

// OOBConfusion is the OOB confusion matrix; rows are true classes, columns predictions.
func (rf *RandomForest) OOBConfusion() [][]int { return rf.oob.confusion }

// MeanDecreaseGini returns the per-feature impurity decrease averaged over trees.
func (rf *RandomForest) MeanDecreaseGini() []float64 { return rf.gini }

// MeanDecreaseAccuracy returns the OOB permutation importance averaged over
// trees, or nil when the forest was fit without importance.
func (rf *RandomForest) MeanDecreaseAccuracy() []float64 { return rf.mda }
