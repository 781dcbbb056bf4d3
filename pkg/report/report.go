// Package report renders the results of a run: an HTML document, an xlsx
// workbook, a predictions CSV and one answer file per test case.
package report

import (
	"time"

	"github.com/easterhanu/practicalmachinelearning/pkg/selection"
	"github.com/easterhanu/practicalmachinelearning/pkg/stats"
)

// DataSummary describes the inputs before and after pruning.
type DataSummary struct {
	TrainPath, TestPath string
	TrainRows, TestRows int
	RawColumns          int
	Features            int
	DroppedMissing      []string
	DroppedBookkeeping  []string
	Imputed             int
}

// CVRow is one point of the cross-validation curve.
type CVRow struct {
	NVar  int
	Error float64
}

// FeatureSummary describes one selected feature over the training rows.
type FeatureSummary struct {
	Name string
	stats.Summary
}

// Holdout is the accuracy of a forest trained without the held-out rows,
// next to a single pruned decision tree scored on the same rows.
type Holdout struct {
	Rows      int
	Accuracy  float64
	LogLoss   float64
	Confusion [][]int

	TreeAccuracy float64
	TreePruned   int
}

// Report is everything a rendered report shows.
type Report struct {
	Title     string
	RunID     string
	Generated time.Time

	Data    DataSummary
	Classes []string

	CV         []CVRow
	Importance []selection.Ranked
	Selected   []string
	Summaries  []FeatureSummary
	Formula    string

	Trees      int
	Mtry       int
	OOBError   float64
	Confusion  [][]int
	ClassError []float64
	Holdout    *Holdout

	IDs         []string
	Predictions []string
}
