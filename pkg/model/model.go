package model

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFitted is returned when predicting with a model that was never fit.
	ErrNotFitted = errors.New("model: not fitted")
	// ErrEmptyInput is returned when X has no rows or no columns.
	ErrEmptyInput = errors.New("model: empty X")
	// ErrLengthMismatch is returned when X and y disagree in length.
	ErrLengthMismatch = errors.New("model: X and y length mismatch")
)

// Classifier is a supervised multi-class model over class codes 0..K-1.
type Classifier interface {
	Fit(ctx context.Context, X [][]float64, y []int) error
	Predict(X [][]float64) ([]int, error)
	PredictProba(X [][]float64) ([][]float64, error)
}

// validateXY checks the shape of a training set and returns the class count
// implied by the largest code in y.
func validateXY(X [][]float64, y []int) (int, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return 0, ErrEmptyInput
	}
	if len(y) != len(X) {
		return 0, fmt.Errorf("%w: %d rows, %d labels", ErrLengthMismatch, len(X), len(y))
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return 0, fmt.Errorf("model: row %d has %d features, want %d", i, len(X[i]), p)
		}
	}
	nClasses := 0
	for i, c := range y {
		if c < 0 {
			return 0, fmt.Errorf("model: negative class code %d at row %d", c, i)
		}
		nClasses = max(nClasses, c+1)
	}
	return nClasses, nil
}
