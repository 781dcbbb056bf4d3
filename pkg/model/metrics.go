package model

import "math"

// Accuracy is the fraction of positions where yPred matches yTrue.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

func newConfusion(nClasses int) [][]int {
	m := make([][]int, nClasses)
	for i := range m {
		m[i] = make([]int, nClasses)
	}
	return m
}

// ConfusionMatrix counts (true, predicted) pairs; rows are true classes.
// Pairs with a code outside [0, nClasses) are skipped.
func ConfusionMatrix(yTrue, yPred []int, nClasses int) [][]int {
	m := newConfusion(nClasses)
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || p < 0 || t >= nClasses || p >= nClasses {
			continue
		}
		m[t][p]++
	}
	return m
}

// ClassError is the per-row misclassification rate of a confusion matrix.
func ClassError(confusion [][]int) []float64 {
	out := make([]float64, len(confusion))
	for i, row := range confusion {
		total := 0
		for _, c := range row {
			total += c
		}
		if total > 0 {
			out[i] = float64(total-row[i]) / float64(total)
		}
	}
	return out
}

// LogLoss is the mean multi-class cross-entropy of predicted class
// probabilities. Probabilities are clipped to [eps, 1-eps].
func LogLoss(yTrue []int, proba [][]float64) float64 {
	const eps = 1e-12
	n := len(yTrue)
	if n == 0 || n != len(proba) {
		return 0
	}
	s := 0.0
	for i, c := range yTrue {
		p := 0.0
		if c >= 0 && c < len(proba[i]) {
			p = proba[i][c]
		}
		p = math.Min(math.Max(p, eps), 1-eps)
		s -= math.Log(p)
	}
	return s / float64(n)
}
