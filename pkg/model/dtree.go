package model

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"
)

// ---------------------------
// Types & options
// ---------------------------

// DecisionTreeClassifier is a CART-style classifier over class codes 0..K-1.
type DecisionTreeClassifier struct {
	// Hyperparameters / options
	MaxDepth            int     // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples required in each leaf
	Criterion           string  // "gini" (default) or "entropy"
	MaxFeatures         int     // 0 => use all features, >0 => number of features to sample when looking for split
	MinImpurityDecrease float64 // minimal impurity decrease to accept a split
	RandomState         int64   // seed for randomness (feature subsampling)

	// internals
	root        *Node
	nClasses    int
	nFeatures   int
	importances []float64 // weighted impurity decrease per feature
}

// Node holds a node in the tree. Fields are exported for gob.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64 // x <= Threshold => Left
	Left      *Node
	Right     *Node

	N      int       // training samples that reached the node
	Probas []float64 // class distribution, set on leaves
	Pred   int       // majority class code, set on leaves
}

// Option functional config
type Option func(*DecisionTreeClassifier)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithCriterion(c string) Option { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMaxFeatures(k int) Option  { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeClassifier) { t.MinImpurityDecrease = v }
}
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns a classifier with sensible defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		MaxDepth:            0, // 0 => no explicit max (stopping by other criteria)
		MinSamplesSplit:     2,
		MinSamplesLeaf:      1,
		Criterion:           "gini",
		MaxFeatures:         0,
		MinImpurityDecrease: 0.0,
		RandomState:         time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---------------------------
// Public API: Fit / Predict / PredictProba / Prune
// ---------------------------

// Fit trains the tree on every row of X. y holds class codes in [0, K).
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int) error {
	nClasses, err := validateXY(X, y)
	if err != nil {
		return err
	}
	sample := make([]int, len(X))
	for i := range sample {
		sample[i] = i
	}
	t.fitSample(X, y, sample, nClasses)
	return nil
}

// fitSample grows the tree on the rows listed in sample, which may repeat rows
// (bootstrap draws). Inputs are assumed validated.
func (t *DecisionTreeClassifier) fitSample(X [][]float64, y []int, sample []int, nClasses int) {
	t.nClasses = nClasses
	t.nFeatures = len(X[0])
	t.importances = make([]float64, t.nFeatures)

	b := &builder{
		tree:     t,
		X:        X,
		y:        y,
		nClasses: nClasses,
		nRoot:    float64(len(sample)),
		rnd:      rand.New(rand.NewSource(t.RandomState)),
		feats:    make([]int, t.nFeatures),
		pairs:    make([]pair, 0, len(sample)),
	}
	t.root = b.build(sample, 0)
}

// Predict returns the predicted class code for each row of X.
func (t *DecisionTreeClassifier) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i := range X {
		out[i] = t.leaf(X[i]).Pred
	}
	return out
}

// PredictProba returns the per-class probability vectors for rows in X.
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = t.leaf(X[i]).Probas
	}
	return out
}

// FeatureImportances returns the node-size weighted impurity decrease credited
// to each feature.
func (t *DecisionTreeClassifier) FeatureImportances() []float64 {
	out := make([]float64, len(t.importances))
	copy(out, t.importances)
	return out
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *DecisionTreeClassifier) Depth() int { return depth(t.root) }

// PruneReducedError performs reduced-error post-pruning using validation data (Xval,yval).
// It will attempt to prune internal nodes if pruning does not reduce accuracy on validation set.
// Returns number of pruned nodes.
func (t *DecisionTreeClassifier) PruneReducedError(Xval [][]float64, yval []int) (int, error) {
	if t.root == nil {
		return 0, ErrNotFitted
	}
	if len(Xval) == 0 || len(yval) != len(Xval) {
		return 0, errors.New("dtree: invalid validation set")
	}
	// Compute baseline accuracy
	baseline := Accuracy(yval, t.Predict(Xval))
	pruned := t.pruneNodeReducedError(t.root, Xval, yval, baseline)
	return pruned, nil
}

// ---------------------------
// Internal builders & helpers
// ---------------------------

// pair is a feature value with the class code of its row.
type pair struct {
	v float64
	c int
}

// builder carries the per-fit scratch state so the recursion does not allocate
// it per node.
type builder struct {
	tree     *DecisionTreeClassifier
	X        [][]float64
	y        []int
	nClasses int
	nRoot    float64
	rnd      *rand.Rand
	feats    []int
	pairs    []pair
}

// split is the best threshold found for a node.
type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *builder) build(idx []int, depth int) *Node {
	t := b.tree
	node := &Node{N: len(idx)}

	counts := make([]float64, b.nClasses)
	for _, i := range idx {
		counts[b.y[i]]++
	}

	// make leaf if pure, too few samples, or depth reached
	if isPure(counts) ||
		len(idx) < t.MinSamplesSplit ||
		len(idx) < 2*max(t.MinSamplesLeaf, 1) ||
		(t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return makeLeaf(node, counts)
	}

	best := b.bestSplit(idx)
	if best.feature < 0 || best.gain <= t.MinImpurityDecrease {
		return makeLeaf(node, counts)
	}

	left, right := b.partition(idx, best)
	if len(left) == 0 || len(right) == 0 {
		return makeLeaf(node, counts)
	}

	t.importances[best.feature] += float64(len(idx)) / b.nRoot * best.gain

	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	return node
}

// candidates returns the features to try at a node: all of them, or a fresh
// random subset of MaxFeatures.
func (b *builder) candidates() []int {
	p := len(b.feats)
	for j := range b.feats {
		b.feats[j] = j
	}
	k := b.tree.MaxFeatures
	if k <= 0 || k >= p {
		return b.feats
	}
	for i := 0; i < k; i++ {
		j := i + b.rnd.Intn(p-i)
		b.feats[i], b.feats[j] = b.feats[j], b.feats[i]
	}
	return b.feats[:k]
}

// bestSplit scans every candidate feature. Each feature is sorted once and the
// class counts are swept from right to left, so a node costs O(k n log n).
func (b *builder) bestSplit(idx []int) split {
	t := b.tree
	impurity := giniFromCounts
	if t.Criterion == "entropy" {
		impurity = entropyFromCounts
	}
	minLeaf := max(t.MinSamplesLeaf, 1)

	best := split{feature: -1}
	leftCounts := make([]float64, b.nClasses)
	rightCounts := make([]float64, b.nClasses)

	for _, f := range b.candidates() {
		pairs := b.pairs[:0]
		for _, i := range idx {
			if v := b.X[i][f]; !math.IsNaN(v) {
				pairs = append(pairs, pair{v, b.y[i]})
			}
		}
		n := len(pairs)
		if n < 2*minLeaf {
			continue
		}
		sort.Slice(pairs, func(a, c int) bool { return pairs[a].v < pairs[c].v })

		// parent impurity over the rows that carry a value for f
		clear(leftCounts)
		clear(rightCounts)
		for _, pr := range pairs {
			rightCounts[pr.c]++
		}
		parent := impurity(rightCounts)

		for s := 1; s < n; s++ {
			leftCounts[pairs[s-1].c]++
			rightCounts[pairs[s-1].c]--
			if pairs[s].v == pairs[s-1].v {
				continue
			}
			if s < minLeaf || n-s < minLeaf {
				continue
			}
			wl := float64(s) / float64(n)
			gain := parent - wl*impurity(leftCounts) - (1-wl)*impurity(rightCounts)
			if gain > best.gain {
				best = split{
					feature:   f,
					threshold: (pairs[s-1].v + pairs[s].v) / 2.0,
					gain:      gain,
				}
			}
		}
		b.pairs = pairs
	}
	return best
}

// partition routes rows by the split; rows missing the feature follow the larger side.
func (b *builder) partition(idx []int, s split) (left, right []int) {
	var nans []int
	for _, i := range idx {
		v := b.X[i][s.feature]
		switch {
		case math.IsNaN(v):
			nans = append(nans, i)
		case v <= s.threshold:
			left = append(left, i)
		default:
			right = append(right, i)
		}
	}
	if len(left) >= len(right) {
		left = append(left, nans...)
	} else {
		right = append(right, nans...)
	}
	return left, right
}

func makeLeaf(node *Node, counts []float64) *Node {
	node.Leaf = true
	node.Probas = countsToProbas(counts)
	node.Pred = argmax(counts)
	return node
}

// ---------------------------
// Prediction helper
// ---------------------------

func (t *DecisionTreeClassifier) leaf(x []float64) *Node {
	node := t.root
	if node == nil {
		return &Node{Leaf: true}
	}
	for !node.Leaf {
		val := x[node.Feature]
		if math.IsNaN(val) {
			// missing: choose branch with more samples
			if node.Left.N >= node.Right.N {
				node = node.Left
			} else {
				node = node.Right
			}
			continue
		}
		if val <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// ---------------------------
// Utilities: impurity & misc
// ---------------------------

func giniFromCounts(counts []float64) float64 {
	n := 0.0
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}
	res := 1.0
	for _, c := range counts {
		p := c / n
		res -= p * p
	}
	return res
}

func entropyFromCounts(counts []float64) float64 {
	n := 0.0
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := c / n
		res -= p * math.Log2(p)
	}
	return res
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func countsToProbas(counts []float64) []float64 {
	n := 0.0
	for _, c := range counts {
		n += c
	}
	p := make([]float64, len(counts))
	if n == 0 {
		return p
	}
	for i := range counts {
		p[i] = counts[i] / n
	}
	return p
}

// argmax returns the first index holding the maximum, so ties go to the lowest class.
func argmax[T int | float64](arr []T) int {
	best := 0
	for i := 1; i < len(arr); i++ {
		if arr[i] > arr[best] {
			best = i
		}
	}
	return best
}

func depth(n *Node) int {
	if n == nil || n.Leaf {
		return 0
	}
	return 1 + max(depth(n.Left), depth(n.Right))
}

// ---------------------------
// Reduced-error pruning implementation
// ---------------------------

// pruneNodeReducedError traverses post-order and collapses internal nodes whose
// removal does not lower validation accuracy.
func (t *DecisionTreeClassifier) pruneNodeReducedError(node *Node, Xval [][]float64, yval []int, baselineAcc float64) int {
	if node == nil || node.Leaf {
		return 0
	}
	pruned := 0
	pruned += t.pruneNodeReducedError(node.Left, Xval, yval, baselineAcc)
	pruned += t.pruneNodeReducedError(node.Right, Xval, yval, baselineAcc)

	if node.Left.Leaf && node.Right.Leaf {
		origLeft, origRight := node.Left, node.Right

		nLeft := float64(node.Left.N)
		nRight := float64(node.Right.N)
		combined := make([]float64, len(node.Left.Probas))
		for i := range combined {
			combined[i] = (node.Left.Probas[i]*nLeft + node.Right.Probas[i]*nRight) / (nLeft + nRight)
		}
		node.Leaf = true
		node.Left = nil
		node.Right = nil
		node.Probas = combined
		node.Pred = argmax(combined)
		if Accuracy(yval, t.Predict(Xval)) >= baselineAcc {
			pruned++
			return pruned
		}
		// revert
		node.Left = origLeft
		node.Right = origRight
		node.Leaf = false
		node.Probas = nil
		node.Pred = 0
	}
	return pruned
}
