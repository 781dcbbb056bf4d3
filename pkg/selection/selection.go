// Package selection turns cross-validation and importance output into the
// feature set of the final model.
package selection

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/easterhanu/practicalmachinelearning/pkg/model"
)

// ErrNoCandidates is returned when there is nothing to choose from.
var ErrNoCandidates = errors.New("selection: no candidates")

// Ranked is a feature name with its importance score.
type Ranked struct {
	Name       string
	Importance float64
}

// ChooseCount returns the smallest variable count whose cross-validated error is
// within tolerance of the best error observed.
func ChooseCount(cv model.CVResult, tolerance float64) (int, error) {
	if len(cv.NVar) == 0 || len(cv.NVar) != len(cv.ErrorCV) {
		return 0, ErrNoCandidates
	}
	if tolerance < 0 {
		return 0, fmt.Errorf("selection: negative tolerance %g", tolerance)
	}
	best := math.Inf(1)
	for _, e := range cv.ErrorCV {
		best = min(best, e)
	}
	choice := 0
	for k, n := range cv.NVar {
		if cv.ErrorCV[k] <= best+tolerance && (choice == 0 || n < choice) {
			choice = n
		}
	}
	return choice, nil
}

// Rank orders names by decreasing importance. Equal scores keep column order.
func Rank(names []string, importance []float64) ([]Ranked, error) {
	if len(names) != len(importance) {
		return nil, fmt.Errorf("selection: %d names for %d scores", len(names), len(importance))
	}
	out := make([]Ranked, len(names))
	for i := range names {
		out[i] = Ranked{Name: names[i], Importance: importance[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out, nil
}

// Top returns the names of the first n ranked features.
func Top(ranked []Ranked, n int) ([]string, error) {
	if n < 1 || len(ranked) == 0 {
		return nil, ErrNoCandidates
	}
	if n > len(ranked) {
		return nil, fmt.Errorf("selection: %d features requested, %d available", n, len(ranked))
	}
	out := make([]string, n)
	for i := range out {
		out[i] = ranked[i].Name
	}
	return out, nil
}
