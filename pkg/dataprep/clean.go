package dataprep

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	// ErrSchemaMismatch is returned when the test set lacks a selected feature.
	ErrSchemaMismatch = errors.New("dataprep: training and testing columns differ")
	// ErrMissingValues is returned when a selected feature still has missing values.
	ErrMissingValues = errors.New("dataprep: missing values after pruning")
)

// PruneOptions controls which training columns become model features.
type PruneOptions struct {
	// MaxMissingRatio drops columns whose fraction of missing values exceeds it.
	MaxMissingRatio float64
	// DropPatterns drops row bookkeeping columns such as indices and timestamps.
	DropPatterns []*regexp.Regexp
	LabelColumn  string
	IDColumn     string
}

// PruneResult holds the feature-only frames and the reasons columns were dropped.
type PruneResult struct {
	Train    dataframe.DataFrame
	Test     dataframe.DataFrame
	Features []string
	// Mask is aligned with the training columns; true keeps the column.
	Mask               []bool
	DroppedMissing     []string
	DroppedBookkeeping []string
}

// CompilePatterns compiles the configured bookkeeping-column patterns.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile drop pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// ValidityMask reports, per column of df, whether its missing ratio is at most
// maxMissingRatio.
func ValidityMask(df dataframe.DataFrame, maxMissingRatio float64) []bool {
	names := df.Names()
	rows := df.Nrow()
	mask := make([]bool, len(names))
	for c, name := range names {
		if rows == 0 {
			continue
		}
		missing := 0
		for _, nan := range df.Col(name).IsNaN() {
			if nan {
				missing++
			}
		}
		mask[c] = float64(missing)/float64(rows) <= maxMissingRatio
	}
	return mask
}

// DropPatterns reports, per name, whether it matches none of the patterns.
func DropPatterns(names []string, patterns []*regexp.Regexp) []bool {
	keep := make([]bool, len(names))
	for i, name := range names {
		keep[i] = true
		for _, re := range patterns {
			if re.MatchString(name) {
				keep[i] = false
				break
			}
		}
	}
	return keep
}

// Prune selects the feature columns from the training frame and takes the same
// columns from the test frame. The label and id columns are never features.
func Prune(train, test dataframe.DataFrame, opts PruneOptions) (PruneResult, error) {
	names := train.Names()
	valid := ValidityMask(train, opts.MaxMissingRatio)
	plain := DropPatterns(names, opts.DropPatterns)

	res := PruneResult{Mask: make([]bool, len(names))}
	for c, name := range names {
		switch {
		case name == opts.LabelColumn || name == opts.IDColumn:
		case !plain[c]:
			res.DroppedBookkeeping = append(res.DroppedBookkeeping, name)
		case !valid[c]:
			res.DroppedMissing = append(res.DroppedMissing, name)
		default:
			res.Mask[c] = true
			res.Features = append(res.Features, name)
		}
	}
	if len(res.Features) == 0 {
		return PruneResult{}, errors.New("dataprep: no feature columns left after pruning")
	}

	testNames := make(map[string]struct{}, test.Ncol())
	for _, name := range test.Names() {
		testNames[name] = struct{}{}
	}
	for _, name := range res.Features {
		if _, ok := testNames[name]; !ok {
			return PruneResult{}, fmt.Errorf("%w: %q absent from test set", ErrSchemaMismatch, name)
		}
	}

	res.Train = floatEmptyColumns(train.Select(res.Features))
	res.Test = floatEmptyColumns(test.Select(res.Features))
	for _, df := range []dataframe.DataFrame{res.Train, res.Test} {
		if df.Err != nil {
			return PruneResult{}, fmt.Errorf("select features: %w", df.Err)
		}
	}

	// With a positive ratio the survivors may still have gaps; callers impute them.
	if opts.MaxMissingRatio == 0 {
		if err := requireComplete(res.Train, "training"); err != nil {
			return PruneResult{}, err
		}
		if err := requireComplete(res.Test, "testing"); err != nil {
			return PruneResult{}, err
		}
	}
	return res, nil
}

// floatEmptyColumns retypes columns that hold nothing but missing values as
// float. Type detection reads such a column as string.
func floatEmptyColumns(df dataframe.DataFrame) dataframe.DataFrame {
	if df.Err != nil {
		return df
	}
	for _, name := range df.Names() {
		col := df.Col(name)
		if col.Type() != series.String || slices.Contains(col.IsNaN(), false) {
			continue
		}
		df = df.Mutate(series.New(col.Float(), series.Float, name))
	}
	return df
}

func requireComplete(df dataframe.DataFrame, set string) error {
	for _, name := range df.Names() {
		missing := 0
		for _, nan := range df.Col(name).IsNaN() {
			if nan {
				missing++
			}
		}
		if missing > 0 {
			return fmt.Errorf("%w: %s column %q has %d missing rows", ErrMissingValues, set, name, missing)
		}
	}
	return nil
}
