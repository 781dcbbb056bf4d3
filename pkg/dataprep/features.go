package dataprep

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
)

// Matrix extracts the named columns of df as a row-major float matrix in the
// given order. Values that are missing or not numeric become NaN.
func Matrix(df dataframe.DataFrame, features []string) ([][]float64, error) {
	rows := df.Nrow()
	X := make([][]float64, rows)
	for i := range rows {
		X[i] = make([]float64, len(features))
	}
	for j, name := range features {
		col := df.Col(name)
		if col.Err != nil {
			return nil, fmt.Errorf("column %q: %w", name, col.Err)
		}
		for i, v := range col.Float() {
			X[i][j] = v
		}
	}
	return X, nil
}

// CheckComplete returns ErrMissingValues naming the first feature with a NaN.
func CheckComplete(X [][]float64, features []string) error {
	for j, name := range features {
		missing := 0
		for i := range X {
			if math.IsNaN(X[i][j]) {
				missing++
			}
		}
		if missing > 0 {
			return fmt.Errorf("%w: column %q has %d missing or non-numeric rows", ErrMissingValues, name, missing)
		}
	}
	return nil
}

// FeatureSelect selects columns by indices.
func FeatureSelect(X [][]float64, indices []int) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		selected := make([]float64, len(indices))
		for j, idx := range indices {
			selected[j] = row[idx]
		}
		out[i] = selected
	}
	return out
}

// IndicesOf maps names onto their positions in features.
func IndicesOf(features, names []string) ([]int, error) {
	pos := make(map[string]int, len(features))
	for i, f := range features {
		pos[f] = i
	}
	out := make([]int, len(names))
	for i, n := range names {
		p, ok := pos[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a feature", ErrSchemaMismatch, n)
		}
		out[i] = p
	}
	return out, nil
}
