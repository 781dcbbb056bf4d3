package dataprep

import (
	"math"

	"github.com/easterhanu/practicalmachinelearning/pkg/stats"
)

// ColumnMedians returns the median of the non-missing values of each column.
// A column with no values gets 0.
func ColumnMedians(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	cols := len(X[0])
	medians := make([]float64, cols)
	vals := make([]float64, 0, len(X))
	for j := range cols {
		vals = vals[:0]
		for i := range X {
			if !math.IsNaN(X[i][j]) {
				vals = append(vals, X[i][j])
			}
		}
		medians[j] = stats.Median(vals)
	}
	return medians
}

// ImputeMedian replaces missing values in place with the given column medians.
// Fit the medians on training rows and reuse them for the test rows.
func ImputeMedian(X [][]float64, medians []float64) int {
	filled := 0
	for i := range X {
		for j, v := range X[i] {
			if math.IsNaN(v) {
				X[i][j] = medians[j]
				filled++
			}
		}
	}
	return filled
}
